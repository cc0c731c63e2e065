package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xeoh/GCTool/pkg/analyzer"
	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/logging"
	"github.com/xeoh/GCTool/pkg/output"
	"github.com/xeoh/GCTool/pkg/parser"
	"github.com/xeoh/GCTool/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes reported by Execute.
const (
	ExitOK       = 0
	ExitOutliers = 1
	ExitError    = 2
)

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	ConfigPath    string
	Output        string
	MeanLevels    []float64
	OutlierLevels []float64
	DropSamples   int
	Verbose       bool
	Quiet         bool
	Debug         bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [log-file|glob ...]",
		Short: "Analyze CMS GC logs for pause statistics and outliers",
		Long: `Parse CMS garbage collector logs and report pause statistics.

For every log, each stop-the-world category (full GC, minor GC, initial
mark, final remark) gets count, total, mean, standard deviation, median,
shortest and longest pause, confidence intervals for the mean pause and
outlier pauses. Concurrent phases are counted by name.

Logs are taken from the arguments, or from log_sources in the config file.
Globs may use ** to match across directories.

Exit codes:
  0 - No outlier pauses detected
  1 - Outlier pauses detected
  2 - Configuration or runtime error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().Float64SliceVar(&opts.MeanLevels, "mean-level", nil, "Confidence level for mean estimates (repeatable, overrides config)")
	cmd.Flags().Float64SliceVar(&opts.OutlierLevels, "outlier-level", nil, "Significance level for outlier detection (repeatable, overrides config)")
	cmd.Flags().IntVar(&opts.DropSamples, "drop-samples", 10, "Dropped lines kept per log for verbose output")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "List outlier pauses and dropped lines")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Log every dropped line to stderr")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	cfg, err := config.LoadOrDefault(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(opts.MeanLevels) > 0 {
		cfg.Analysis.MeanLevels = opts.MeanLevels
	}
	if len(opts.OutlierLevels) > 0 {
		cfg.Analysis.OutlierLevels = opts.OutlierLevels
	}
	if err := analyzer.ValidateMeanLevels(cfg.Analysis.MeanLevels); err != nil {
		return fmt.Errorf("invalid --mean-level: %w", err)
	}
	if err := analyzer.ValidateOutlierLevels(cfg.Analysis.OutlierLevels); err != nil {
		return fmt.Errorf("invalid --outlier-level: %w", err)
	}

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.LogSources
	}
	if len(patterns) == 0 {
		return errors.New("no GC logs given: pass log files or set log_sources in the config")
	}

	files, err := parser.ExpandGlobs(patterns)
	if err != nil {
		return fmt.Errorf("expanding log sources: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no log files matched patterns: %v", patterns)
	}

	logger, err := logging.New(cfg.Logging, opts.Debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	results := analyzeFiles(ctx, files, analysisSettings{
		meanLevels:    cfg.Analysis.MeanLevels,
		outlierLevels: cfg.Analysis.OutlierLevels,
		dropSamples:   opts.DropSamples,
		workers:       cfg.Server.Workers,
		logger:        logger,
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	report := output.NewReport(results, output.Metadata{
		ConfigFile:    opts.ConfigPath,
		MeanLevels:    cfg.Analysis.MeanLevels,
		OutlierLevels: cfg.Analysis.OutlierLevels,
		AnalyzedAt:    start,
		Duration:      time.Since(start),
	})

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Send webhooks (errors logged but don't fail analysis)
	sendWebhooks(ctx, cfg, opts, report, logger, cmd.ErrOrStderr())

	switch {
	case report.HasErrors():
		ExitCode = ExitError
	case report.HasIssues():
		ExitCode = ExitOutliers
	}

	return nil
}

type analysisSettings struct {
	meanLevels    []float64
	outlierLevels []float64
	dropSamples   int
	workers       int
	logger        *zap.Logger
}

// analyzeFiles runs parse and analysis for every file, each with its own
// parser, at most settings.workers at a time. Results keep file order.
func analyzeFiles(ctx context.Context, files []string, settings analysisSettings) []*output.SourceResult {
	workers := settings.workers
	if workers <= 0 {
		workers = config.DefaultWorkers
	}
	logger := settings.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]*output.SourceResult, len(files))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, file := range files {
		i, file := i, file
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = analyzeFile(ctx, file, settings, logger.With(zap.String("source", file)))
		}()
	}
	wg.Wait()

	return results
}

func analyzeFile(ctx context.Context, file string, settings analysisSettings, logger *zap.Logger) *output.SourceResult {
	result := &output.SourceResult{Source: file}

	p := parser.New(parser.WithLogger(logger), parser.WithDropSamples(settings.dropSamples))
	events, err := p.ParseFile(ctx, file)
	result.Parse = p.Stats()
	if err != nil {
		result.Error = err.Error()
		logger.Warn("Parsing failed", zap.Error(err))
		return result
	}

	a, err := analyzer.New(events,
		analyzer.WithMeanLevels(settings.meanLevels...),
		analyzer.WithOutlierLevels(settings.outlierLevels...),
		analyzer.WithLogger(logger),
	)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	report, err := a.Analyze(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Analysis = report
	return result
}

func createFormatter(opts *AnalyzeOptions) (output.Formatter, error) {
	return output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are reported to stderr but don't fail the analysis.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *AnalyzeOptions, report *output.Report, logger *zap.Logger, stderr io.Writer) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient(webhook.WithLogger(logger))
	for _, d := range client.Notify(ctx, webhooks, report) {
		if d.Response.Success() {
			fmt.Fprintf(stderr, "Webhook %s: sent (%d, %s)\n", d.Name, d.Response.StatusCode, d.Response.Duration)
		} else {
			fmt.Fprintf(stderr, "Webhook %s: failed (%v)\n", d.Name, d.Response.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
