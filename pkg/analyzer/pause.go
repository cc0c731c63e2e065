package analyzer

import (
	"errors"

	"github.com/xeoh/GCTool/pkg/parser"
	"github.com/xeoh/GCTool/pkg/stats"
)

// pauseAggregator collects the events of one stop-the-world category.
type pauseAggregator struct {
	category parser.Category
	events   []parser.GcEvent
}

func newPauseAggregator(c parser.Category) *pauseAggregator {
	return &pauseAggregator{category: c}
}

func (a *pauseAggregator) Accepts(ev *parser.GcEvent) bool {
	return ev.Category == a.category
}

func (a *pauseAggregator) Add(ev parser.GcEvent) {
	a.events = append(a.events, ev)
}

func (a *pauseAggregator) Reset() {
	a.events = nil
}

// build computes the stat. Sample-size failures are recorded as undefined
// values; any other error is returned.
func (a *pauseAggregator) build(meanLevels, outlierLevels []float64) (PauseStat, error) {
	sample := stats.New(a.events, func(ev parser.GcEvent) float64 { return ev.PauseTime })

	ps := PauseStat{
		Category:       a.category,
		Count:          sample.Len(),
		TotalPauseTime: sample.Total(),
		Means:          make([]MeanEstimate, 0, len(meanLevels)),
		Outliers:       make([]OutlierSet, 0, len(outlierLevels)),
	}

	if v, err := sample.Mean(); err == nil {
		ps.SampleMean = &v
	}
	if v, err := sample.StdDev(); err == nil {
		ps.SampleStdDev = &v
	}
	if v, err := sample.Median(); err == nil {
		ps.SampleMedian = &v
	}
	if ev, err := sample.Min(); err == nil {
		ps.MinEvent = &ev
	}
	if ev, err := sample.Max(); err == nil {
		ps.MaxEvent = &ev
	}

	for _, level := range meanLevels {
		est := MeanEstimate{Level: level}
		r, err := sample.EstimateMean(level)
		switch {
		case err == nil:
			est.Mean = &r
		case isSampleSize(err):
			est.Undefined = err.Error()
		default:
			return PauseStat{}, err
		}
		ps.Means = append(ps.Means, est)
	}

	for _, level := range outlierLevels {
		set := OutlierSet{Level: level, Events: []parser.GcEvent{}}
		events, err := sample.Outliers(level)
		switch {
		case err == nil:
			set.Events = events
		case isSampleSize(err):
			set.Undefined = err.Error()
		default:
			return PauseStat{}, err
		}
		ps.Outliers = append(ps.Outliers, set)
	}

	return ps, nil
}

func isSampleSize(err error) bool {
	return errors.Is(err, stats.ErrNoData) || errors.Is(err, stats.ErrNotEnoughData)
}
