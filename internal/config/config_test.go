package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): unexpected error: %v", err)
	}

	if got, want := cfg.SMTP.Listen, ":2525"; got != want {
		t.Errorf("SMTP.Listen: got %q, want %q", got, want)
	}
	if got, want := cfg.SMTP.Hostname, "localhost"; got != want {
		t.Errorf("SMTP.Hostname: got %q, want %q", got, want)
	}
	if got, want := cfg.SMTP.MaxMessageSize, int64(26214400); got != want {
		t.Errorf("SMTP.MaxMessageSize: got %d, want %d", got, want)
	}
	if got, want := cfg.Logging.Level, "info"; got != want {
		t.Errorf("Logging.Level: got %q, want %q", got, want)
	}
	if cfg.Provider != "" {
		t.Errorf("Provider: got %q, want empty", cfg.Provider)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROVIDER", "Brevo")
	t.Setenv("SMTP_LISTEN", ":1025")
	t.Setenv("SMTP_USERNAME", "relay")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("SMTP_MAX_MESSAGE_SIZE", "1048576")
	t.Setenv("BREVO_API_KEY", "xkeysib-test")
	t.Setenv("BREVO_HOST", "brevo.test")
	t.Setenv("BREVO_PORT", "8443")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): unexpected error: %v", err)
	}

	if got, want := cfg.Provider, "brevo"; got != want {
		t.Errorf("Provider: got %q, want %q", got, want)
	}
	if got, want := cfg.SMTP.Listen, ":1025"; got != want {
		t.Errorf("SMTP.Listen: got %q, want %q", got, want)
	}
	if got, want := cfg.SMTP.MaxMessageSize, int64(1048576); got != want {
		t.Errorf("SMTP.MaxMessageSize: got %d, want %d", got, want)
	}
	if got, want := cfg.Brevo.APIKey, "xkeysib-test"; got != want {
		t.Errorf("Brevo.APIKey: got %q, want %q", got, want)
	}
	if got, want := cfg.Brevo.Host, "brevo.test"; got != want {
		t.Errorf("Brevo.Host: got %q, want %q", got, want)
	}
	if got, want := cfg.Brevo.Port, 8443; got != want {
		t.Errorf("Brevo.Port: got %d, want %d", got, want)
	}
	if got, want := cfg.Logging.Level, "debug"; got != want {
		t.Errorf("Logging.Level: got %q, want %q", got, want)
	}
	if !cfg.AuthEnabled() {
		t.Error("AuthEnabled(): got false, want true")
	}
}

func TestLoad_InvalidNumericEnvIgnored(t *testing.T) {
	t.Setenv("SMTP_MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("BREVO_PORT", "not-a-port")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): unexpected error: %v", err)
	}

	if got, want := cfg.SMTP.MaxMessageSize, int64(26214400); got != want {
		t.Errorf("SMTP.MaxMessageSize: got %d, want %d", got, want)
	}
	if cfg.Brevo.Port != 0 {
		t.Errorf("Brevo.Port: got %d, want 0", cfg.Brevo.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
provider: ses
smtp:
  listen: ":2600"
  hostname: mail.example.com
brevo:
  api_key: file-key
  host: api.internal
  port: 9443
ses:
  region: eu-west-1
  access_key_id: AKIATEST
  secret_access_key: shhh
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile(): unexpected error: %v", err)
	}

	if got, want := cfg.Provider, "ses"; got != want {
		t.Errorf("Provider: got %q, want %q", got, want)
	}
	if got, want := cfg.SMTP.Listen, ":2600"; got != want {
		t.Errorf("SMTP.Listen: got %q, want %q", got, want)
	}
	if got, want := cfg.SMTP.Hostname, "mail.example.com"; got != want {
		t.Errorf("SMTP.Hostname: got %q, want %q", got, want)
	}
	if got, want := cfg.Brevo.Port, 9443; got != want {
		t.Errorf("Brevo.Port: got %d, want %d", got, want)
	}
	if got, want := cfg.SES.Region, "eu-west-1"; got != want {
		t.Errorf("SES.Region: got %q, want %q", got, want)
	}
	if got, want := cfg.Logging.Level, "warn"; got != want {
		t.Errorf("Logging.Level: got %q, want %q", got, want)
	}

	// Defaults survive for fields the file does not set
	if got, want := cfg.SMTP.MaxMessageSize, int64(26214400); got != want {
		t.Errorf("SMTP.MaxMessageSize: got %d, want %d", got, want)
	}
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	content := `
brevo:
  api_key: file-key
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("BREVO_API_KEY", "env-key")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile(): unexpected error: %v", err)
	}

	if got, want := cfg.Brevo.APIKey, "env-key"; got != want {
		t.Errorf("Brevo.APIKey: got %q, want %q", got, want)
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("smtp: [not a mapping"), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestConfigured(t *testing.T) {
	var cfg Config
	if cfg.BrevoConfigured() {
		t.Error("BrevoConfigured(): got true, want false")
	}
	if cfg.SESConfigured() {
		t.Error("SESConfigured(): got true, want false")
	}

	cfg.Brevo.APIKey = "k"
	cfg.SES.Region = "us-east-1"
	if !cfg.BrevoConfigured() {
		t.Error("BrevoConfigured(): got false, want true")
	}
	if !cfg.SESConfigured() {
		t.Error("SESConfigured(): got false, want true")
	}
}
