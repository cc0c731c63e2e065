package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		// Quiet mode: just summary
		return encoder.Encode(report.Summary)
	}

	if !f.opts.Verbose {
		// Drop per-line samples unless asked for
		trimmed := *report
		trimmed.Results = make([]*SourceResult, len(report.Results))
		for i, r := range report.Results {
			c := *r
			c.Parse.DroppedSamples = nil
			trimmed.Results[i] = &c
		}
		return encoder.Encode(&trimmed)
	}

	return encoder.Encode(report)
}
