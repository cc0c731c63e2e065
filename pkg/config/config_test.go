package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xeoh/GCTool/pkg/stats"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
log_sources:
  - /var/log/jvm/**/*.log
analysis:
  mean_levels: [0.05]
  outlier_levels: [0.01, 0.25]
logging:
  level: debug
  file: /tmp/gctool.log
server:
  addr: ":9090"
  workers: 2
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.LogSources) != 1 {
		t.Errorf("LogSources = %d, want 1", len(cfg.LogSources))
	}
	if len(cfg.Analysis.MeanLevels) != 1 || cfg.Analysis.MeanLevels[0] != 0.05 {
		t.Errorf("MeanLevels = %v, want [0.05]", cfg.Analysis.MeanLevels)
	}
	if len(cfg.Analysis.OutlierLevels) != 2 {
		t.Errorf("OutlierLevels = %v, want 2 levels", cfg.Analysis.OutlierLevels)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Errorf("Logging.MaxSizeMB = %d, want default %d", cfg.Logging.MaxSizeMB, DefaultLogMaxSizeMB)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Server.Workers != 2 {
		t.Errorf("Server.Workers = %d, want 2", cfg.Server.Workers)
	}
	if cfg.Server.DBPath != DefaultDBPath {
		t.Errorf("Server.DBPath = %q, want default %q", cfg.Server.DBPath, DefaultDBPath)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	content := `invalid: yaml: content: [`
	path := writeTempFile(t, "invalid.yaml", content)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvDBPath, "/data/tickets.db")
	t.Setenv(EnvServerAddr, "127.0.0.1:7000")

	path := writeTempFile(t, "config.yaml", "logging:\n  level: debug\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Server.DBPath != "/data/tickets.db" {
		t.Errorf("Server.DBPath = %q, want /data/tickets.db", cfg.Server.DBPath)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("Server.Addr = %q, want 127.0.0.1:7000", cfg.Server.Addr)
	}
}

func TestLoadOrDefault_NoPath(t *testing.T) {
	t.Setenv(EnvServerAddr, ":1234")

	cfg, err := LoadOrDefault(context.Background(), "")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.Addr != ":1234" {
		t.Errorf("Server.Addr = %q, want :1234", cfg.Server.Addr)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(DefaultConfig()) error = %v", err)
	}
	if len(cfg.Analysis.MeanLevels) != 3 {
		t.Errorf("MeanLevels = %v, want 3 defaults", cfg.Analysis.MeanLevels)
	}
	if len(cfg.Analysis.OutlierLevels) != 3 {
		t.Errorf("OutlierLevels = %v, want 3 defaults", cfg.Analysis.OutlierLevels)
	}

	// Defaults must not alias the analyzer's package-level slices.
	cfg.Analysis.MeanLevels[0] = 0.5
	if DefaultConfig().Analysis.MeanLevels[0] == 0.5 {
		t.Error("DefaultConfig() shares MeanLevels between calls")
	}
}

func TestValidate_Analysis(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantLevel bool
	}{
		{"no mean levels", func(c *Config) { c.Analysis.MeanLevels = nil }, false},
		{"no outlier levels", func(c *Config) { c.Analysis.OutlierLevels = []float64{} }, false},
		{"mean level above one", func(c *Config) { c.Analysis.MeanLevels = []float64{1.2} }, true},
		{"mean level zero", func(c *Config) { c.Analysis.MeanLevels = []float64{0} }, true},
		{"outlier level negative", func(c *Config) { c.Analysis.OutlierLevels = []float64{-1} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if tt.wantLevel && !errors.Is(err, stats.ErrLevelOutOfRange) {
				t.Errorf("Validate() error = %v, want ErrLevelOutOfRange", err)
			}
		})
	}
}

func TestValidate_OutlierLevelZeroAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.OutlierLevels = []float64{0}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_Logging(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LoggingConfig)
		wantErr bool
	}{
		{"debug", func(l *LoggingConfig) { l.Level = "debug" }, false},
		{"upper case", func(l *LoggingConfig) { l.Level = "WARN" }, false},
		{"unknown level", func(l *LoggingConfig) { l.Level = "verbose" }, true},
		{"negative size", func(l *LoggingConfig) { l.MaxSizeMB = -1 }, true},
		{"negative backups", func(l *LoggingConfig) { l.MaxBackups = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Logging)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Server(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"empty addr", func(s *ServerConfig) { s.Addr = "" }},
		{"empty db path", func(s *ServerConfig) { s.DBPath = "" }},
		{"empty upload dir", func(s *ServerConfig) { s.UploadDir = "" }},
		{"zero upload size", func(s *ServerConfig) { s.MaxUploadMB = 0 }},
		{"zero rate", func(s *ServerConfig) { s.UploadsPerMinute = 0 }},
		{"zero workers", func(s *ServerConfig) { s.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Server)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestValidate_EmptyLogSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogSources = []string{"gc.log", "  "}
	if err := Validate(cfg); err == nil {
		t.Error("Validate() expected error for empty log source")
	}
}

func TestValidate_Webhook_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhooks = []WebhookConfig{
		{Name: "alerts", URL: "https://example.com/hook", Token: "abc"},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Trigger != WebhookTriggerOnIssues {
		t.Errorf("Trigger = %v, want %v", cfg.Webhooks[0].Trigger, WebhookTriggerOnIssues)
	}
	if cfg.Webhooks[0].Timeout != DefaultWebhookTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Webhooks[0].Timeout, DefaultWebhookTimeout)
	}
}

func TestValidate_Webhook_Invalid(t *testing.T) {
	tests := []struct {
		name string
		wh   WebhookConfig
	}{
		{"missing url", WebhookConfig{Name: "x"}},
		{"bad scheme", WebhookConfig{URL: "ftp://example.com/hook"}},
		{"no host", WebhookConfig{URL: "https:///hook"}},
		{"bad trigger", WebhookConfig{URL: "https://example.com", Trigger: "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Webhooks = []WebhookConfig{tt.wh}
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestValidate_Webhook_AllTriggers(t *testing.T) {
	for _, trigger := range []WebhookTrigger{WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever} {
		cfg := DefaultConfig()
		cfg.Webhooks = []WebhookConfig{{URL: "http://localhost:9000/hook", Trigger: trigger}}
		if err := Validate(cfg); err != nil {
			t.Errorf("Validate() trigger %q error = %v", trigger, err)
		}
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_TOKEN", "secret-value")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_WEBHOOK_TOKEN}", "secret-value"},
		{"$TEST_WEBHOOK_TOKEN", "secret-value"},
		{"plain-value", "plain-value"},
		{"", ""},
		{"${NONEXISTENT_VAR}", ""},
	}

	for _, tt := range tests {
		got := expandEnvVar(tt.input)
		if got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoad_WithWebhooks(t *testing.T) {
	content := `
webhooks:
  - name: test-webhook
    url: "https://example.com/webhook"
    trigger: on_issues
    timeout: 30s
  - url: "https://backup.example.com/webhook"
    trigger: always
`
	path := writeTempFile(t, "config-with-webhooks.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Webhooks) != 2 {
		t.Fatalf("Webhooks = %d, want 2", len(cfg.Webhooks))
	}
	if cfg.Webhooks[0].Timeout != 30*time.Second {
		t.Errorf("Webhook[0].Timeout = %v, want 30s", cfg.Webhooks[0].Timeout)
	}
	if cfg.Webhooks[1].Trigger != WebhookTriggerAlways {
		t.Errorf("Webhook[1].Trigger = %v, want %v", cfg.Webhooks[1].Trigger, WebhookTriggerAlways)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
