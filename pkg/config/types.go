// Package config provides configuration loading and validation for gctool.
package config

import (
	"time"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// LogSources lists GC log files or glob patterns ("**" is supported).
	LogSources []string        `yaml:"log_sources,omitempty"`
	Analysis   AnalysisConfig  `yaml:"analysis"`
	Logging    LoggingConfig   `yaml:"logging"`
	Server     ServerConfig    `yaml:"server"`
	Webhooks   []WebhookConfig `yaml:"webhooks,omitempty"`
}

// AnalysisConfig holds the statistical parameters of an analysis.
type AnalysisConfig struct {
	// MeanLevels are the confidence levels for mean estimation.
	MeanLevels []float64 `yaml:"mean_levels"`

	// OutlierLevels are the significance levels for outlier detection.
	OutlierLevels []float64 `yaml:"outlier_levels"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level"`

	// File, when set, receives JSON logs with size-based rotation.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// ServerConfig configures the upload and analysis service.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	DBPath    string `yaml:"db_path"`
	UploadDir string `yaml:"upload_dir"`

	MaxUploadMB      int `yaml:"max_upload_mb"`
	UploadsPerMinute int `yaml:"uploads_per_minute"`

	// Workers bounds the number of analyses running at once.
	Workers int `yaml:"workers"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when outliers are detected (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every analysis.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending analysis results.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
