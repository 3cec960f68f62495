package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"recruitline/internal/domain"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config models recruitline.yml.
type Config struct {
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Feedback struct {
		SendDelay Duration `yaml:"send_delay"`
	} `yaml:"feedback"`
	Listing struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"listing"`
	Pipeline struct {
		Reject struct {
			DeleteScreens []domain.Screen `yaml:"delete_screens"`
		} `yaml:"reject"`
	} `yaml:"pipeline"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Notify struct {
		Webhooks []Webhook `yaml:"webhooks"`
	} `yaml:"notify"`
}

// Webhook receives the summary of every completed batch.
type Webhook struct {
	URL            string `yaml:"url"`
	Secret         string `yaml:"secret,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Duration is a time.Duration read from strings like "750ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("config.database.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config.database.driver must be one of memory, sqlite, postgres")
	}
	if c.Feedback.SendDelay < 0 {
		return fmt.Errorf("config.feedback.send_delay must not be negative")
	}
	if c.Listing.PageSize < 1 || c.Listing.PageSize > 100 {
		return fmt.Errorf("config.listing.page_size must be between 1 and 100")
	}
	for _, s := range c.Pipeline.Reject.DeleteScreens {
		if !s.Valid() {
			return fmt.Errorf("config.pipeline.reject.delete_screens has unknown screen %s", s)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	for i, h := range c.Notify.Webhooks {
		if !strings.HasPrefix(h.URL, "http://") && !strings.HasPrefix(h.URL, "https://") {
			return fmt.Errorf("config.notify.webhooks[%d].url must be an http(s) url", i)
		}
		if h.TimeoutSeconds < 0 {
			return fmt.Errorf("config.notify.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// DeletesOnReject reports whether rejecting from the screen removes the record.
func (c *Config) DeletesOnReject(screen domain.Screen) bool {
	for _, s := range c.Pipeline.Reject.DeleteScreens {
		if s == screen {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "recruitline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with rl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(DefaultYAML)).Decode(&cfg)
	return &cfg
}

// FromYAML parses config on top of the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const DefaultYAML = `database:
  driver: memory

feedback:
  send_delay: 1s

listing:
  page_size: 20

pipeline:
  reject:
    # screens on which a rejected candidate is deleted instead of moved to the rejected view
    delete_screens: []

server:
  addr: 127.0.0.1:8080
  base_path: /v0

log:
  level: info
  format: text

notify:
  # each webhook gets a POST with the summary of every completed batch
  webhooks: []
`

// Marshal renders cfg as YAML with secrets masked.
func Marshal(cfg *Config) ([]byte, error) {
	c := *cfg
	if c.Server.JWTSecret != "" {
		c.Server.JWTSecret = "***"
	}
	c.Notify.Webhooks = make([]Webhook, len(cfg.Notify.Webhooks))
	for i, h := range cfg.Notify.Webhooks {
		if h.Secret != "" {
			h.Secret = "***"
		}
		c.Notify.Webhooks[i] = h
	}
	return yaml.Marshal(&c)
}
