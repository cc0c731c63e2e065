// Package logging builds the zap logger used across gctool.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xeoh/GCTool/pkg/config"
)

// New builds a logger writing human-readable lines to stderr. When
// cfg.File is set, JSON lines are also written to a rotating file.
// verbose forces debug level on the console.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	return build(cfg, verbose, os.Stderr)
}

func build(cfg config.LoggingConfig, verbose bool, console io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(console)), level),
	}

	if cfg.File != "" {
		// Write to a rotating file as well
		fileLogger := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(fileLogger),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
