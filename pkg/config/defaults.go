package config

import (
	"os"
	"time"

	"github.com/xeoh/GCTool/pkg/analyzer"
)

// Default values for configuration.
const (
	DefaultWebhookTimeout   = 10 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogMaxSizeMB     = 100
	DefaultLogMaxBackups    = 3
	DefaultServerAddr       = ":8080"
	DefaultDBPath           = "gctool.db"
	DefaultUploadDir        = "uploads"
	DefaultMaxUploadMB      = 512
	DefaultUploadsPerMinute = 30
	DefaultWorkers          = 4
)

// Environment variable names.
const (
	EnvLogLevel   = "GCTOOL_LOG_LEVEL"
	EnvDBPath     = "GCTOOL_DB_PATH"
	EnvServerAddr = "GCTOOL_SERVER_ADDR"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogSources: []string{},
		Analysis: AnalysisConfig{
			MeanLevels:    append([]float64(nil), analyzer.DefaultMeanLevels...),
			OutlierLevels: append([]float64(nil), analyzer.DefaultOutlierLevels...),
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		Server: ServerConfig{
			Addr:             DefaultServerAddr,
			DBPath:           DefaultDBPath,
			UploadDir:        DefaultUploadDir,
			MaxUploadMB:      DefaultMaxUploadMB,
			UploadsPerMinute: DefaultUploadsPerMinute,
			Workers:          DefaultWorkers,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv(EnvDBPath); path != "" {
		c.Server.DBPath = path
	}
	if addr := os.Getenv(EnvServerAddr); addr != "" {
		c.Server.Addr = addr
	}
}
