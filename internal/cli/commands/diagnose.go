package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xeoh/GCTool/pkg/analyzer"
	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/detector"
	"github.com/xeoh/GCTool/pkg/parser"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common configuration and log issues",
		Long: `Diagnose common configuration and log issues.

This command checks your configuration file and the logs it points at:
- Config file syntax and structure
- Log source file existence and accessibility
- GC log layout of each log (CMS logs only)
- Lines the parser drops and split events it cannot rejoin
- Webhook settings

Example:
  gctool diagnose gctool.yaml
  gctool diagnose -v gctool.yaml  # verbose output, tests webhook connectivity`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDiagnose(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	// 1. Check config file existence
	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 2. Parse config file
	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 3. Check log sources
	files, logResults := checkLogSources(cfg)
	results = append(results, logResults...)

	// 4. Check the layout and parse quality of each log
	for _, file := range files {
		results = append(results, checkLogFormat(ctx, file, opts))
		results = append(results, checkLogParse(ctx, file, opts))
	}

	// 5. Check webhooks configuration
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'gctool detect <gc-log> --write-config gctool.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'gctool detect <gc-log> --write-config gctool.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Log sources: %d", len(cfg.LogSources)),
		fmt.Sprintf("Mean levels: %v", cfg.Analysis.MeanLevels),
		fmt.Sprintf("Outlier levels: %v", cfg.Analysis.OutlierLevels),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return cfg, result
}

// checkLogSources expands every log source and returns the readable files.
func checkLogSources(cfg *config.Config) ([]string, []DiagnosticResult) {
	results := []DiagnosticResult{}

	if len(cfg.LogSources) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Sources",
			Status:  "warning",
			Message: "No log sources defined",
			Suggests: []string{
				"Add a log_sources section, or pass logs to 'gctool analyze' directly",
				"Example: log_sources:\n  - /var/log/app/gc*.log",
			},
		})
		return nil, results
	}

	var files []string
	for _, source := range cfg.LogSources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Log Source: %s", source),
		}

		if strings.ContainsAny(source, "*?[") {
			expanded, err := parser.ExpandGlobs([]string{source})
			matches, _ := existingFiles(expanded)
			if err != nil {
				result.Status = "error"
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			} else if len(matches) == 0 {
				result.Status = "warning"
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the log files exist at this path",
					"Verify the glob pattern syntax",
				}
			} else {
				result.Status = "ok"
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				files = append(files, matches...)
			}
		} else {
			info, err := os.Stat(source)
			switch {
			case os.IsNotExist(err):
				result.Status = "error"
				result.Message = "File does not exist"
				result.Suggests = []string{
					"Check if the log file path is correct",
					"Make sure the JVM runs with -Xloggc or -XX:LogFile pointing here",
				}
			case err != nil:
				result.Status = "error"
				result.Message = fmt.Sprintf("Cannot access file: %v", err)
				result.Suggests = []string{"Check file permissions"}
			case info.IsDir():
				result.Status = "error"
				result.Message = "Path is a directory, not a file"
				result.Suggests = []string{
					"Use a glob pattern to match files in directory",
					"Example: /var/log/app/**/gc*.log",
				}
			case info.Size() == 0:
				result.Status = "warning"
				result.Message = "File is empty (0 bytes)"
			default:
				result.Status = "ok"
				result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
				files = append(files, source)
			}
		}
		results = append(results, result)
	}

	if len(files) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Files Summary",
			Status:  "error",
			Message: "No accessible log files found",
			Suggests: []string{
				"Ensure at least one log file exists and is readable",
			},
		})
	}

	return files, results
}

func checkLogFormat(ctx context.Context, file string, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Log Format: %s", filepath.Base(file)),
	}

	det, err := detector.New().DetectFromFile(ctx, file)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot sample file: %v", err)
		return result
	}

	if !det.HasMatch() {
		result.Status = "error"
		result.Message = "No GC log format detected"
		result.Suggests = []string{
			"Run the JVM with -XX:+UseConcMarkSweepGC -XX:+PrintGCDetails",
			"Use 'gctool detect " + file + "' to inspect the file",
		}
		return result
	}

	best := det.BestMatch()
	if !best.Format.Supported {
		result.Status = "error"
		result.Message = fmt.Sprintf("%s logs are not supported", best.Format.Name)
		if det.Note != "" {
			result.Suggests = []string{det.Note}
		}
		result.Details = []string{"Sample line:", truncate(best.SampleLine, 80)}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("%s (%.0f%% of %d sampled lines)", best.Format.Name, best.Confidence*100, det.SampledLines)
	if opts.Verbose {
		result.Details = []string{
			fmt.Sprintf("Event lines: %d", det.EventLines),
			fmt.Sprintf("Writer markers: %d", det.WriterLines),
			fmt.Sprintf("Split event fragments: %d", det.FragmentLines),
		}
	}
	return result
}

// checkLogParse runs the parser over the whole file and reports what it
// could not turn into events.
func checkLogParse(ctx context.Context, file string, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Log Parse: %s", filepath.Base(file)),
	}

	p := parser.New(parser.WithDropSamples(3))
	events, err := p.ParseFile(ctx, file)
	stats := p.Stats()
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Parse failed: %v", err)
		return result
	}

	result.Details = []string{
		fmt.Sprintf("Lines read: %d", stats.LinesRead),
		fmt.Sprintf("Events: %d", stats.EventsParsed),
		fmt.Sprintf("Dropped lines: %d", stats.LinesDropped),
	}
	for _, d := range stats.DroppedSamples {
		result.Details = append(result.Details,
			fmt.Sprintf("line %d (%s): %s", d.LineNum, d.Reason, truncate(d.Text, 60)))
	}

	var warnings []string
	if stats.BadThreadIDs > 0 {
		warnings = append(warnings, fmt.Sprintf("%d writer marker(s) with an unreadable thread id", stats.BadThreadIDs))
	}
	if stats.DanglingFragments > 0 {
		warnings = append(warnings, fmt.Sprintf("%d split event(s) never completed", stats.DanglingFragments))
	}

	switch {
	case len(events) == 0:
		result.Status = "error"
		result.Message = "No GC events found"
		result.Suggests = []string{"Use 'gctool detect " + file + "' to check the log layout"}
	case len(warnings) > 0:
		result.Status = "warning"
		result.Message = strings.Join(warnings, ", ")
		result.Suggests = []string{"The log may be truncated or written by several JVMs"}
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("%d events, %d dropped lines", stats.EventsParsed, stats.LinesDropped)
		if !opts.Verbose {
			result.Details = nil
		}
	}

	if len(events) > 0 && result.Status != "error" {
		if a, err := analyzer.New(events); err == nil {
			if report, err := a.Analyze(ctx); err == nil && report.HasOutliers() {
				result.Details = append(result.Details, "Outlier pauses present, see 'gctool analyze -v'")
			}
		}
	}

	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== GCTool Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	case warnCount > 0:
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	default:
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			} else if u.Host == "" {
				issues = append(issues, "URL must have a host")
			}
		}

		if wh.Trigger != "" {
			switch wh.Trigger {
			case config.WebhookTriggerOnIssues, config.WebhookTriggerAlways, config.WebhookTriggerNever:
			default:
				issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_issues, always, or never)", wh.Trigger))
			}
		}

		// Unexpanded env var
		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		switch {
		case len(issues) > 0:
			result.Status = "error"
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		case len(warnings) > 0:
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		default:
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}

			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
