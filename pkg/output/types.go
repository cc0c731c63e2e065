// Package output provides formatting and output generation for analysis results.
package output

import (
	"time"

	"github.com/xeoh/GCTool/pkg/analyzer"
	"github.com/xeoh/GCTool/pkg/parser"
)

// Report is the complete analysis output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Results contains one entry per analyzed log.
	Results []*SourceResult `json:"results"`

	// Metadata provides context about the analysis.
	Metadata Metadata `json:"metadata"`
}

// SourceResult is the outcome of analyzing one log.
type SourceResult struct {
	// Source is the log file path or upload name.
	Source string `json:"source"`

	// Parse holds the parser counters.
	Parse parser.Stats `json:"parse"`

	// Analysis is nil when the source failed.
	Analysis *analyzer.Report `json:"analysis,omitempty"`

	// Error describes why the source failed.
	Error string `json:"error,omitempty"`
}

// OutlierEvents returns the number of events flagged at the widest
// significance level of each category.
func (r *SourceResult) OutlierEvents() int {
	if r.Analysis == nil {
		return 0
	}
	total := 0
	for _, ps := range r.Analysis.Pauses {
		widest := 0
		for _, set := range ps.Outliers {
			if len(set.Events) > widest {
				widest = len(set.Events)
			}
		}
		total += widest
	}
	return total
}

// Summary provides aggregate statistics.
type Summary struct {
	// SourcesAnalyzed is the number of logs that were analyzed successfully.
	SourcesAnalyzed int `json:"sources_analyzed"`

	// SourcesFailed is the number of logs that could not be analyzed.
	SourcesFailed int `json:"sources_failed"`

	// EventsParsed is the total number of GC events found.
	EventsParsed int `json:"events_parsed"`

	// LinesDropped is the total number of lines that produced no event.
	LinesDropped int `json:"lines_dropped"`

	// OutlierEvents is the total number of outlier pauses.
	OutlierEvents int `json:"outlier_events"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// MeanLevels and OutlierLevels are the levels the analysis ran with.
	MeanLevels    []float64 `json:"mean_levels"`
	OutlierLevels []float64 `json:"outlier_levels"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration_ns"`
}

// NewReport creates a Report from per-source results.
func NewReport(results []*SourceResult, meta Metadata) *Report {
	report := &Report{
		Results:  results,
		Metadata: meta,
	}

	for _, r := range results {
		if r.Analysis == nil {
			report.Summary.SourcesFailed++
		} else {
			report.Summary.SourcesAnalyzed++
		}
		report.Summary.EventsParsed += r.Parse.EventsParsed
		report.Summary.LinesDropped += r.Parse.LinesDropped
		report.Summary.OutlierEvents += r.OutlierEvents()
	}

	return report
}

// HasIssues returns true if any outlier pause was detected.
func (r *Report) HasIssues() bool {
	return r.Summary.OutlierEvents > 0
}

// HasErrors returns true if any source failed.
func (r *Report) HasErrors() bool {
	return r.Summary.SourcesFailed > 0
}
