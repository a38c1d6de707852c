package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()

	if cfg.Server.Port != 3010 {
		t.Errorf("expected default Port 3010, got %d", cfg.Server.Port)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("expected default Environment 'development', got %s", cfg.Server.Environment)
	}
	if cfg.Requests.PollInterval != 3*time.Second {
		t.Errorf("expected default PollInterval 3s, got %v", cfg.Requests.PollInterval)
	}
	if cfg.Requests.FeedInterval != 5*time.Second {
		t.Errorf("expected default FeedInterval 5s, got %v", cfg.Requests.FeedInterval)
	}
	if cfg.Voice.RecordWindow != 5*time.Second {
		t.Errorf("expected default RecordWindow 5s, got %v", cfg.Voice.RecordWindow)
	}
	if cfg.Analysis.BaseURL == "" {
		t.Error("expected a default analysis base URL")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	os.Setenv("PORT", "8085")
	os.Setenv("ANALYSIS_URL", "https://nlp.example.com")
	os.Setenv("POLL_INTERVAL", "4s")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ANALYSIS_URL")
		os.Unsetenv("POLL_INTERVAL")
	}()

	cfg := LoadFromEnv()

	if cfg.Server.Port != 8085 {
		t.Errorf("expected Port 8085, got %d", cfg.Server.Port)
	}
	if cfg.Analysis.BaseURL != "https://nlp.example.com" {
		t.Errorf("expected overridden analysis URL, got %s", cfg.Analysis.BaseURL)
	}
	if cfg.Requests.PollInterval != 4*time.Second {
		t.Errorf("expected PollInterval 4s, got %v", cfg.Requests.PollInterval)
	}
}

func TestPollIntervalClamped(t *testing.T) {
	os.Setenv("POLL_INTERVAL", "500ms")
	defer os.Unsetenv("POLL_INTERVAL")

	cfg := LoadFromEnv()
	if cfg.Requests.PollInterval != 3*time.Second {
		t.Errorf("expected PollInterval clamped to 3s, got %v", cfg.Requests.PollInterval)
	}

	os.Setenv("POLL_INTERVAL", "30s")
	cfg = LoadFromEnv()
	if cfg.Requests.PollInterval != 5*time.Second {
		t.Errorf("expected PollInterval clamped to 5s, got %v", cfg.Requests.PollInterval)
	}
}

func TestLoad_YAML(t *testing.T) {
	content := `
server:
  port: 4000
  environment: production
analysis:
  base_url: https://nlp.internal
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("expected Port 4000, got %d", cfg.Server.Port)
	}
	if cfg.Analysis.BaseURL != "https://nlp.internal" {
		t.Errorf("expected analysis base URL from file, got %s", cfg.Analysis.BaseURL)
	}
	// Defaults still fill unset sections.
	if cfg.Requests.PollInterval != 3*time.Second {
		t.Errorf("expected PollInterval defaulted to 3s, got %v", cfg.Requests.PollInterval)
	}
	if cfg.Voice.RecordWindow != 5*time.Second {
		t.Errorf("expected default RecordWindow 5s, got %v", cfg.Voice.RecordWindow)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
