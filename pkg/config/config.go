package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/xeoh/GCTool/pkg/analyzer"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults with environment
// overrides applied when path is empty.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path != "" {
		return Load(ctx, path)
	}

	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks a configuration for errors and fills in webhook defaults.
func Validate(cfg *Config) error {
	for i, src := range cfg.LogSources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("log_sources[%d]: empty path", i)
		}
	}

	if err := validateAnalysis(&cfg.Analysis); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateAnalysis(a *AnalysisConfig) error {
	if len(a.MeanLevels) == 0 {
		return errors.New("mean_levels: at least one level is required")
	}
	if err := analyzer.ValidateMeanLevels(a.MeanLevels); err != nil {
		return fmt.Errorf("mean_levels: %w", err)
	}

	if len(a.OutlierLevels) == 0 {
		return errors.New("outlier_levels: at least one level is required")
	}
	if err := analyzer.ValidateOutlierLevels(a.OutlierLevels); err != nil {
		return fmt.Errorf("outlier_levels: %w", err)
	}

	return nil
}

func validateLogging(l *LoggingConfig) error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	if l.MaxSizeMB < 0 {
		return errors.New("max_size_mb must not be negative")
	}
	if l.MaxBackups < 0 {
		return errors.New("max_backups must not be negative")
	}
	return nil
}

func validateServer(s *ServerConfig) error {
	if s.Addr == "" {
		return errors.New("addr is required")
	}
	if s.DBPath == "" {
		return errors.New("db_path is required")
	}
	if s.UploadDir == "" {
		return errors.New("upload_dir is required")
	}
	if s.MaxUploadMB <= 0 {
		return errors.New("max_upload_mb must be positive")
	}
	if s.UploadsPerMinute <= 0 {
		return errors.New("uploads_per_minute must be positive")
	}
	if s.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	// Validate URL format
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	// Validate trigger if specified
	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
			// Valid
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		// Default to on_issues
		wh.Trigger = WebhookTriggerOnIssues
	}

	// Default timeout
	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	// Handle ${VAR} format
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}

	// Handle $VAR format (no braces)
	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		varName := s[1:]
		return os.Getenv(varName)
	}

	return s
}
