package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"recruitline/internal/config"
)

const defaultDBName = "recruitline.db"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Config struct {
	Driver    string
	DSN       string
	Workspace string
}

// FromAppConfig builds a db Config from the application config.
func FromAppConfig(cfg *config.Config, workspace string) Config {
	return Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, Workspace: workspace}
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".recruitline", defaultDBName)
}

// EnsureWorkspace creates workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, ".recruitline")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the configured database. SQLite handles are limited to one
// connection so transactions never contend with reads on a sibling connection.
func Open(cfg Config) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		conn, err := sqlx.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case config.DriverSQLite:
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return nil, err
		}
		dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath(cfg.Workspace))
		return openSQLite(dsn)
	case config.DriverMemory, "":
		return OpenMemory()
	default:
		return nil, fmt.Errorf("unknown database driver %s", cfg.Driver)
	}
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory() (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", uuid.NewString())
	return openSQLite(dsn)
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
