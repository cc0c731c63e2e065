package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/xeoh/GCTool/pkg/config"
)

var (
	vmLog      = filepath.Join("..", "..", "..", "testdata", "logs", "cms_vm.log")
	plainLog   = filepath.Join("..", "..", "..", "testdata", "logs", "cms_plain.log")
	unifiedLog = filepath.Join("..", "..", "..", "testdata", "logs", "unified.log")
)

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadOrDefault(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	return cfg
}

func TestNewAnalyzeCommand(t *testing.T) {
	cmd := NewAnalyzeCommand()

	if cmd.Use != "analyze [log-file|glob ...]" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	flags := []string{"config", "output", "mean-level", "outlier-level", "drop-samples",
		"verbose", "quiet", "debug", "webhook-url", "webhook-token", "webhook-trigger"}
	for _, flag := range flags {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Missing flag: %s", flag)
		}
	}
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	if cmd.Use != "validate <config-file>" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	if !strings.Contains(cmd.Long, "Validate") {
		t.Error("Missing description in Long")
	}
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	if cmd.Use != "serve" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}
	for _, flag := range []string{"config", "addr", "db", "upload-dir", "workers", "debug"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Missing flag: %s", flag)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, NewVersionCommand())
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "gctool dev\n" {
		t.Errorf("got %q", out)
	}
}

func TestRunValidate_Success(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeFile(t, tmpDir, "gc.log", "1.0: [CMS-concurrent-mark-start]\n")

	configPath := writeFile(t, tmpDir, "gctool.yaml", `log_sources:
  - `+logPath+`
analysis:
  mean_levels: [0.05]
  outlier_levels: [0.01, 0.1]
webhooks:
  - name: ops
    url: https://hooks.example.com/gc
`)

	out, _, err := execute(t, NewValidateCommand(), configPath)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	for _, want := range []string{
		"Configuration valid!",
		"Mean levels:    [0.05]",
		"Outlier levels: [0.01 0.1]",
		"[on_issues] ops",
		"Log files matched: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunValidate_NoMatchingLogs(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeFile(t, tmpDir, "gctool.yaml", "log_sources:\n  - "+filepath.Join(tmpDir, "none", "*.log")+"\n")

	out, _, err := execute(t, NewValidateCommand(), configPath)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !strings.Contains(out, "Warning: No files match log source patterns") {
		t.Errorf("missing warning:\n%s", out)
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "invalid: yaml: content"},
		{"mean level out of range", "analysis:\n  mean_levels: [1.5]\n"},
		{"zero outlier level", "analysis:\n  outlier_levels: [0]\n"},
		{"bad webhook trigger", "webhooks:\n  - url: https://example.com\n    trigger: sometimes\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeFile(t, t.TempDir(), "gctool.yaml", tt.content)
			if _, _, err := execute(t, NewValidateCommand(), configPath); err == nil {
				t.Error("Expected error for invalid config")
			}
		})
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	if _, _, err := execute(t, NewValidateCommand(), "/nonexistent/gctool.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestApplyServeOverrides(t *testing.T) {
	cfg := loadDefaults(t)
	applyServeOverrides(cfg, &ServeOptions{Addr: ":9999", DBPath: "t.db", UploadDir: "up", Workers: 2})

	if cfg.Server.Addr != ":9999" || cfg.Server.DBPath != "t.db" || cfg.Server.UploadDir != "up" || cfg.Server.Workers != 2 {
		t.Errorf("overrides not applied: %+v", cfg.Server)
	}

	cfg = loadDefaults(t)
	want := cfg.Server
	applyServeOverrides(cfg, &ServeOptions{})
	if cfg.Server != want {
		t.Errorf("empty overrides changed config: %+v", cfg.Server)
	}
}
