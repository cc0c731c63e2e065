package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a GCTool configuration file without running analysis.

Checks:
  - YAML syntax
  - Confidence and significance levels (strictly between 0 and 1)
  - Logging and server settings
  - Webhook URLs and triggers
  - Log source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Log sources:    %d pattern(s)\n", len(cfg.LogSources))
	fmt.Fprintf(w, "  Mean levels:    %v\n", cfg.Analysis.MeanLevels)
	fmt.Fprintf(w, "  Outlier levels: %v\n", cfg.Analysis.OutlierLevels)
	fmt.Fprintf(w, "  Log level:      %s\n", cfg.Logging.Level)
	if cfg.Logging.File != "" {
		fmt.Fprintf(w, "  Log file:       %s (%d MB x %d)\n", cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	}
	fmt.Fprintf(w, "  Server:         %s (db %s, uploads %s, %d workers)\n",
		cfg.Server.Addr, cfg.Server.DBPath, cfg.Server.UploadDir, cfg.Server.Workers)

	if len(cfg.Webhooks) > 0 {
		fmt.Fprintf(w, "\nWebhooks:\n")
		for i, wh := range cfg.Webhooks {
			name := wh.Name
			if name == "" {
				name = wh.URL
			}
			trigger := wh.Trigger
			if trigger == "" {
				trigger = config.WebhookTriggerOnIssues
			}
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, trigger, name)
		}
	}

	if len(cfg.LogSources) == 0 {
		return nil
	}

	// Log sources are a warning only; analyze may be given files directly.
	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Error expanding log source patterns: %v\n", err)
		return nil
	}
	found, missing := existingFiles(files)
	if len(found) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match log source patterns\n")
		return nil
	}
	fmt.Fprintf(w, "\nLog files matched: %d\n", len(found))
	for _, f := range found {
		fmt.Fprintf(w, "  - %s\n", f)
	}
	for _, f := range missing {
		fmt.Fprintf(w, "Warning: %s does not exist\n", f)
	}

	return nil
}

// existingFiles splits expanded log sources into regular files and paths
// that do not exist. ExpandGlobs keeps unmatched patterns as literals.
func existingFiles(paths []string) (found, missing []string) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			missing = append(missing, p)
			continue
		}
		found = append(found, p)
	}
	return found, missing
}
