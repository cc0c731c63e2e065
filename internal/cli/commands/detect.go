package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xeoh/GCTool/pkg/analyzer"
	"github.com/xeoh/GCTool/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect the GC log layout of a file",
		Long: `Sample a log file and report which garbage collector log layout it uses.

gctool analyzes CMS logs, either plain -XX:+PrintGCDetails output or the
HotSpot VM log (-XX:+LogVMOutput) with its writer thread markers. Other
layouts are recognized so that you get a hint instead of an empty report:
  - Unified JVM logging (-Xlog:gc*)
  - G1, Parallel and Serial collector logs

Optionally generates a starter config file with --write-config.

Example:
  gctool detect /var/log/app/gc.log
  gctool detect --sample 500 /var/log/app/vm.log
  gctool detect -w gctool.yaml /var/log/app/gc.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", detector.DefaultSampleSize, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all detected formats, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))
	result, err := d.DetectFromFile(ctx, logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(out, result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(out, result, logFile, opts)
	default:
		return outputDetectText(out, result, logFile, opts)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== GC Log Format Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Lines parsed as CMS events: %d\n", result.EventLines)
	if result.WriterLines > 0 || result.FragmentLines > 0 {
		fmt.Fprintf(w, "Writer markers: %d, split event fragments: %d\n", result.WriterLines, result.FragmentLines)
	}
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No GC log format detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: Enable CMS logging with -XX:+UseConcMarkSweepGC -XX:+PrintGCDetails")
		fmt.Fprintln(w, "and check the first few lines of the file manually.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Format: %s\n", best.Format.Name)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines matched)\n",
		best.Confidence*100, best.MatchCount, result.SampledLines)
	fmt.Fprintf(w, "Supported: %s\n", yesNo(best.Format.Supported))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleLine)
	fmt.Fprintln(w)

	if result.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", result.Note)
		fmt.Fprintln(w)
	}

	if result.Supported() {
		fmt.Fprintln(w, "--- Next step ---")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "gctool analyze %s\n", logFile)
		fmt.Fprintln(w)
	}

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Alternative formats detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence)\n", i+2, m.Format.Name, m.Confidence*100)
			fmt.Fprintf(w, "   pattern: '%s'\n", m.Format.PatternStr)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// JSONMatch represents a format match in JSON output.
type JSONMatch struct {
	Name       string  `json:"name"`
	Pattern    string  `json:"pattern"`
	Supported  bool    `json:"supported"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	SampleLine string  `json:"sample_line"`
	Hint       string  `json:"hint,omitempty"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File          string      `json:"file"`
	Matches       []JSONMatch `json:"matches"`
	SampledLines  int         `json:"sampled_lines"`
	EventLines    int         `json:"event_lines"`
	WriterLines   int         `json:"writer_lines"`
	FragmentLines int         `json:"fragment_lines"`
	Note          string      `json:"note,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	output := JSONOutput{
		File:          logFile,
		SampledLines:  result.SampledLines,
		EventLines:    result.EventLines,
		WriterLines:   result.WriterLines,
		FragmentLines: result.FragmentLines,
		Note:          result.Note,
		Matches:       make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1]
	}

	for _, m := range matches {
		output.Matches = append(output.Matches, JSONMatch{
			Name:       m.Format.Name,
			Pattern:    m.Format.PatternStr,
			Supported:  m.Format.Supported,
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			SampleLine: m.SampleLine,
			Hint:       m.Format.Hint,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// writeStarterConfig generates a starter config file for a supported log.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.Supported() {
		msg := "no GC log format detected"
		if result.HasMatch() {
			msg = result.BestMatch().Format.Name + " logs are not supported"
		}
		return fmt.Errorf("cannot generate config: %s", msg)
	}

	content := generateStarterConfig(logFile, result.BestMatch())

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(logFile string, match *detector.FormatMatch) string {
	absLogFile := logFile
	if abs, err := filepath.Abs(logFile); err == nil {
		absLogFile = abs
	}

	return fmt.Sprintf(`# GCTool Configuration
# Generated by: gctool detect
# Detected format: %s (%.0f%% confidence)

log_sources:
  - %s
  # Add more log files or use globs:
  # - /var/log/myapp/**/gc*.log

analysis:
  # Confidence levels for the mean pause estimate
  mean_levels: %s
  # Significance levels for outlier detection
  outlier_levels: %s

logging:
  level: info
  # file: /var/log/gctool/gctool.log

# webhooks:
#   - name: alerts
#     url: https://hooks.example.com/gc
#     trigger: on_issues
`, match.Format.Name, match.Confidence*100,
		absLogFile,
		yamlFloats(analyzer.DefaultMeanLevels),
		yamlFloats(analyzer.DefaultOutlierLevels))
}

func yamlFloats(vals []float64) string {
	b, _ := json.Marshal(vals)
	return string(b)
}
