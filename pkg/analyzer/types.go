// Package analyzer aggregates parsed GC events into pause-time statistics
// per category and occurrence counts per concurrent CMS phase.
package analyzer

import (
	"github.com/xeoh/GCTool/pkg/parser"
	"github.com/xeoh/GCTool/pkg/stats"
)

// PauseCategories are the stop-the-world categories, in report order.
var PauseCategories = []parser.Category{
	parser.FullGC,
	parser.MinorGC,
	parser.CMSInitMark,
	parser.CMSFinalRemark,
}

// ConcurrentPhaseOrder is the order concurrent phases run in during a CMS
// cycle. Concurrent stats are reported in this order.
var ConcurrentPhaseOrder = []string{
	"CMS-concurrent-mark-start",
	"CMS-concurrent-mark",
	"CMS-concurrent-preclean-start",
	"CMS-concurrent-preclean",
	"CMS-concurrent-abortable-preclean-start",
	"CMS-concurrent-abortable-preclean",
	"CMS-concurrent-sweep-start",
	"CMS-concurrent-sweep",
	"CMS-concurrent-reset-start",
	"CMS-concurrent-reset",
}

// Report is the result of one analysis.
type Report struct {
	// Pauses holds one entry per PauseCategories element, in that order,
	// including categories with no events.
	Pauses []PauseStat `json:"pauses"`

	// Concurrences counts concurrent phases in ConcurrentPhaseOrder.
	Concurrences []ConcurrentStat `json:"concurrences"`
}

// HasOutliers reports whether any category flagged an outlier at any level.
func (r *Report) HasOutliers() bool {
	for i := range r.Pauses {
		if r.Pauses[i].HasOutliers() {
			return true
		}
	}
	return false
}

// Pause returns the stat for category c, or nil.
func (r *Report) Pause(c parser.Category) *PauseStat {
	for i := range r.Pauses {
		if r.Pauses[i].Category == c {
			return &r.Pauses[i]
		}
	}
	return nil
}

// PauseStat summarizes the pause times of one category.
// Statistics that are undefined for the number of events are left nil.
type PauseStat struct {
	Category       parser.Category `json:"type"`
	Count          int             `json:"count"`
	TotalPauseTime float64         `json:"total_pause_time"`

	SampleMean   *float64 `json:"sample_mean,omitempty"`
	SampleStdDev *float64 `json:"sample_std_dev,omitempty"`
	SampleMedian *float64 `json:"sample_median,omitempty"`

	// MinEvent and MaxEvent are the events with the shortest and longest pause.
	MinEvent *parser.GcEvent `json:"min_event,omitempty"`
	MaxEvent *parser.GcEvent `json:"max_event,omitempty"`

	// Means holds one interval per configured confidence level, in order.
	Means []MeanEstimate `json:"means"`

	// Outliers holds one result per configured significance level, in order.
	Outliers []OutlierSet `json:"outliers"`
}

// HasOutliers reports whether any level flagged at least one event.
func (p *PauseStat) HasOutliers() bool {
	for _, o := range p.Outliers {
		if len(o.Events) > 0 {
			return true
		}
	}
	return false
}

// MeanEstimate is the mean interval at one confidence level.
type MeanEstimate struct {
	Level float64          `json:"level"`
	Mean  *stats.MeanRange `json:"mean,omitempty"`

	// Undefined explains why Mean is nil.
	Undefined string `json:"undefined,omitempty"`
}

// OutlierSet is the result of the outlier test at one significance level.
type OutlierSet struct {
	Level  float64          `json:"level"`
	Events []parser.GcEvent `json:"events"`

	// Undefined explains why the test could not run.
	Undefined string `json:"undefined,omitempty"`
}

// ConcurrentStat counts occurrences of one concurrent phase.
type ConcurrentStat struct {
	TypeDetail string `json:"type_detail"`
	Count      int    `json:"count"`
}
