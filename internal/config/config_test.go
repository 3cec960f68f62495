package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"recruitline/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Fatalf("expected memory driver, got %s", cfg.Database.Driver)
	}
	if cfg.Feedback.SendDelay.Std() != time.Second {
		t.Fatalf("expected 1s send delay, got %s", cfg.Feedback.SendDelay.Std())
	}
	if cfg.DeletesOnReject(domain.ScreenInReview) {
		t.Fatalf("default config must not delete on reject")
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
feedback:
  send_delay: 250ms
pipeline:
  reject:
    delete_screens: [in_review]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Feedback.SendDelay.Std() != 250*time.Millisecond {
		t.Fatalf("unexpected delay %s", cfg.Feedback.SendDelay.Std())
	}
	if !cfg.DeletesOnReject(domain.ScreenInReview) || cfg.DeletesOnReject(domain.ScreenNewCandidates) {
		t.Fatalf("delete screens not applied: %v", cfg.Pipeline.Reject.DeleteScreens)
	}
	if cfg.Listing.PageSize != 20 {
		t.Fatalf("expected default page size to survive, got %d", cfg.Listing.PageSize)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"driver":   "database:\n  driver: oracle\n",
		"dsn":      "database:\n  driver: postgres\n",
		"screen":   "pipeline:\n  reject:\n    delete_screens: [lobby]\n",
		"pagesize": "listing:\n  page_size: 500\n",
		"duration": "feedback:\n  send_delay: soon\n",
		"webhook":  "notify:\n  webhooks:\n    - url: ftp://example.com\n",
	}
	for name, data := range cases {
		if _, err := FromYAML([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("expected default base path, got %s", cfg.Server.BasePath)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Log.Level)
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected missing config error")
	}
}

func TestMarshalMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Server.JWTSecret = "topsecret"
	cfg.Notify.Webhooks = []Webhook{{URL: "https://example.com/hook", Secret: "hooksecret"}}
	out, err := Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "topsecret") || strings.Contains(string(out), "hooksecret") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if cfg.Notify.Webhooks[0].Secret != "hooksecret" {
		t.Fatalf("marshal must not modify the config")
	}
	back, err := FromYAML(out)
	if err != nil {
		t.Fatal(err)
	}
	if back.Feedback.SendDelay.Std() != time.Second {
		t.Fatalf("send delay lost in round trip: %s", back.Feedback.SendDelay.Std())
	}
}
