package analyzer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xeoh/GCTool/pkg/parser"
	"github.com/xeoh/GCTool/pkg/stats"
)

var (
	// DefaultMeanLevels are the confidence levels used for mean estimation.
	DefaultMeanLevels = []float64{0.01, 0.05, 0.1}

	// DefaultOutlierLevels are the significance levels used for outlier detection.
	DefaultOutlierLevels = []float64{0.01, 0.1, 0.25}
)

// Analyzer computes a Report over a list of parsed events.
type Analyzer struct {
	events []parser.GcEvent
	logger *zap.Logger

	meanLevels    []float64
	outlierLevels []float64

	pauses     []*pauseAggregator
	concurrent *concurrentAggregator
}

// Option configures analyzer behavior.
type Option func(*Analyzer)

// WithMeanLevels sets the confidence levels for mean estimation.
func WithMeanLevels(levels ...float64) Option {
	return func(a *Analyzer) {
		if len(levels) > 0 {
			a.meanLevels = append([]float64(nil), levels...)
		}
	}
}

// WithOutlierLevels sets the significance levels for outlier detection.
func WithOutlierLevels(levels ...float64) Option {
	return func(a *Analyzer) {
		if len(levels) > 0 {
			a.outlierLevels = append([]float64(nil), levels...)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an analyzer over events. Levels are validated here so that
// Analyze only fails on cancellation.
func New(events []parser.GcEvent, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		events:        events,
		logger:        zap.NewNop(),
		meanLevels:    DefaultMeanLevels,
		outlierLevels: DefaultOutlierLevels,
		concurrent:    newConcurrentAggregator(),
	}

	// Apply options
	for _, opt := range opts {
		opt(a)
	}

	if err := ValidateMeanLevels(a.meanLevels); err != nil {
		return nil, err
	}
	if err := ValidateOutlierLevels(a.outlierLevels); err != nil {
		return nil, err
	}

	for _, c := range PauseCategories {
		a.pauses = append(a.pauses, newPauseAggregator(c))
	}

	return a, nil
}

// ValidateMeanLevels checks confidence levels. Zero is rejected because it
// gives an unbounded interval.
func ValidateMeanLevels(levels []float64) error {
	for _, level := range levels {
		if err := stats.CheckLevel(level); err != nil {
			return fmt.Errorf("mean level: %w", err)
		}
		if level == 0 {
			return fmt.Errorf("mean level 0 gives an unbounded interval: %w", stats.ErrLevelOutOfRange)
		}
	}
	return nil
}

// ValidateOutlierLevels checks significance levels.
func ValidateOutlierLevels(levels []float64) error {
	for _, level := range levels {
		if err := stats.CheckLevel(level); err != nil {
			return fmt.Errorf("outlier level: %w", err)
		}
	}
	return nil
}

func (a *Analyzer) aggregators() []Aggregator {
	aggs := make([]Aggregator, 0, len(a.pauses)+1)
	for _, p := range a.pauses {
		aggs = append(aggs, p)
	}
	return append(aggs, a.concurrent)
}

// Analyze builds the report. It can be called more than once.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	aggs := a.aggregators()

	// Reset all aggregators before analysis
	for _, agg := range aggs {
		agg.Reset()
	}

	for i := range a.events {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ev := &a.events[i]
		for _, agg := range aggs {
			if agg.Accepts(ev) {
				agg.Add(*ev)
			}
		}
	}

	report := &Report{Pauses: make([]PauseStat, 0, len(a.pauses))}
	for _, p := range a.pauses {
		ps, err := p.build(a.meanLevels, a.outlierLevels)
		if err != nil {
			return nil, fmt.Errorf("building %s stats: %w", p.category, err)
		}
		report.Pauses = append(report.Pauses, ps)
	}
	report.Concurrences = a.concurrent.build()

	a.logger.Debug("Analysis complete",
		zap.Int("events", len(a.events)),
		zap.Int("concurrent_phases", len(report.Concurrences)),
		zap.Bool("outliers", report.HasOutliers()))

	return report, nil
}
