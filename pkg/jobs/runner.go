// Package jobs runs GC log analyses for uploaded tickets in the background.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xeoh/GCTool/pkg/analyzer"
	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/output"
	"github.com/xeoh/GCTool/pkg/parser"
	"github.com/xeoh/GCTool/pkg/ticket"
	"github.com/xeoh/GCTool/pkg/webhook"
)

// DefaultWorkers is the number of analyses that may run at once.
const DefaultWorkers = config.DefaultWorkers

// Runner moves tickets through ANALYZING to COMPLETED or ERROR.
type Runner struct {
	store  ticket.Store
	logger *zap.Logger

	meanLevels    []float64
	outlierLevels []float64
	dropSamples   int

	notifier *webhook.Client
	hooks    []config.WebhookConfig

	sem chan struct{}
	wg  sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for job progress.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithWorkers bounds the number of concurrent analyses.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.sem = make(chan struct{}, n)
		}
	}
}

// WithLevels sets the statistical levels passed to the analyzer.
func WithLevels(meanLevels, outlierLevels []float64) Option {
	return func(r *Runner) {
		if len(meanLevels) > 0 {
			r.meanLevels = meanLevels
		}
		if len(outlierLevels) > 0 {
			r.outlierLevels = outlierLevels
		}
	}
}

// WithDropSamples keeps up to n dropped lines in each stored result.
func WithDropSamples(n int) Option {
	return func(r *Runner) {
		r.dropSamples = n
	}
}

// WithWebhooks posts each finished analysis to hooks.
func WithWebhooks(client *webhook.Client, hooks []config.WebhookConfig) Option {
	return func(r *Runner) {
		r.notifier = client
		r.hooks = hooks
	}
}

// New creates a Runner over store.
func New(store ticket.Store, opts ...Option) *Runner {
	r := &Runner{
		store:         store,
		logger:        zap.NewNop(),
		meanLevels:    analyzer.DefaultMeanLevels,
		outlierLevels: analyzer.DefaultOutlierLevels,
		sem:           make(chan struct{}, DefaultWorkers),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run analyzes the log stored for ticket id and records the outcome.
// Any failure, including a panic in the pipeline, leaves the ticket in
// ERROR and is returned.
func (r *Runner) Run(ctx context.Context, id int64) (err error) {
	log := r.logger.With(zap.Int64("ticket", id))
	// Status writes must land even if ctx was cancelled mid-analysis.
	bg := context.WithoutCancel(ctx)

	if err := r.store.SetStatus(bg, id, ticket.StatusAnalyzing); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("analysis panicked: %v", p)
		}
		if err != nil {
			log.Error("Failed to analyze the log", zap.Error(err))
			if serr := r.store.SetStatus(bg, id, ticket.StatusError); serr != nil {
				log.Error("Failed to record analysis error", zap.Error(serr))
			}
		}
	}()

	start := time.Now()
	result, err := r.analyze(ctx, id)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := r.store.SetResult(bg, id, payload); err != nil {
		return err
	}
	if err := r.store.SetStatus(bg, id, ticket.StatusCompleted); err != nil {
		return err
	}

	log.Info("Log analyzed",
		zap.Int("events", result.Parse.EventsParsed),
		zap.Int("outliers", result.OutlierEvents()),
		zap.Duration("duration", time.Since(start)))

	if r.notifier != nil && len(r.hooks) > 0 {
		report := output.NewReport([]*output.SourceResult{result}, output.Metadata{
			MeanLevels:    r.meanLevels,
			OutlierLevels: r.outlierLevels,
			AnalyzedAt:    start,
			Duration:      time.Since(start),
		})
		r.notifier.Notify(bg, r.hooks, report)
	}

	return nil
}

func (r *Runner) analyze(ctx context.Context, id int64) (*output.SourceResult, error) {
	path, err := r.store.LogFile(ctx, id)
	if err != nil {
		return nil, err
	}
	meta, err := r.store.Meta(ctx, id)
	if err != nil {
		return nil, err
	}

	source := meta.Name
	if source == "" {
		source = path
	}

	p := parser.New(
		parser.WithLogger(r.logger.With(zap.Int64("ticket", id))),
		parser.WithDropSamples(r.dropSamples),
	)
	events, err := p.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}

	a, err := analyzer.New(events,
		analyzer.WithMeanLevels(r.meanLevels...),
		analyzer.WithOutlierLevels(r.outlierLevels...),
		analyzer.WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}
	report, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	return &output.SourceResult{
		Source:   source,
		Parse:    p.Stats(),
		Analysis: report,
	}, nil
}

// Submit schedules ticket id for analysis and returns immediately. At most
// the configured number of analyses run at once; the rest wait their turn.
func (r *Runner) Submit(ctx context.Context, id int64) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			r.logger.Warn("Analysis not started", zap.Int64("ticket", id), zap.Error(ctx.Err()))
			_ = r.store.SetStatus(context.WithoutCancel(ctx), id, ticket.StatusError)
			return
		}
		defer func() { <-r.sem }()

		_ = r.Run(ctx, id)
	}()
}

// Wait blocks until every submitted analysis has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
