package output

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/xeoh/GCTool/pkg/analyzer"
	"github.com/xeoh/GCTool/pkg/parser"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "GCTool: %d logs analyzed, %d failed, %d events, %d outlier pauses\n",
		report.Summary.SourcesAnalyzed,
		report.Summary.SourcesFailed,
		report.Summary.EventsParsed,
		report.Summary.OutlierEvents)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	// Header
	fmt.Fprintln(w, "=== GCTool Analysis Report ===")
	fmt.Fprintln(w)

	for _, result := range report.Results {
		f.formatSource(result, w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d logs analyzed, %d failed, %d events, %d outlier pauses\n",
		report.Summary.SourcesAnalyzed,
		report.Summary.SourcesFailed,
		report.Summary.EventsParsed,
		report.Summary.OutlierEvents)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Lines dropped: %d\n", report.Summary.LinesDropped)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatSource(result *SourceResult, w io.Writer) {
	fmt.Fprintf(w, "[LOG] %s\n", result.Source)

	if result.Analysis == nil {
		fmt.Fprintf(w, "  Error: %s\n", result.Error)
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  %d events, %d lines dropped\n", result.Parse.EventsParsed, result.Parse.LinesDropped)
	fmt.Fprintln(w)

	f.formatPauses(result.Analysis, w)
	f.formatConcurrent(result.Analysis, w)

	if f.opts.Verbose {
		f.formatParseStats(&result.Parse, w)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatPauses(report *analyzer.Report, w io.Writer) {
	fmt.Fprintln(w, "  STW SUMMARY")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "  TYPE\tCOUNT\tTOTAL(s)\tMEAN(s)\tSTDDEV(s)\tMEDIAN(s)\tMIN(s)\tMAX(s)\t")
	for i := range report.Pauses {
		ps := &report.Pauses[i]
		fmt.Fprintf(tw, "  %s\t%d\t%.4f\t%s\t%s\t%s\t%s\t%s\t\n",
			ps.Category, ps.Count, ps.TotalPauseTime,
			optional(ps.SampleMean), optional(ps.SampleStdDev), optional(ps.SampleMedian),
			eventPause(ps.MinEvent), eventPause(ps.MaxEvent))
	}
	tw.Flush()
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  MEAN ESTIMATES")
	for i := range report.Pauses {
		ps := &report.Pauses[i]
		for _, m := range ps.Means {
			if m.Mean == nil {
				fmt.Fprintf(w, "    %-16s level %-5g undefined (%s)\n", ps.Category, m.Level, m.Undefined)
				continue
			}
			fmt.Fprintf(w, "    %-16s level %-5g [%.5f, %.5f]\n", ps.Category, m.Level, m.Mean.Min, m.Mean.Max)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  OUTLIERS")
	for i := range report.Pauses {
		ps := &report.Pauses[i]
		for _, set := range ps.Outliers {
			if set.Undefined != "" {
				fmt.Fprintf(w, "    %-16s level %-5g undefined (%s)\n", ps.Category, set.Level, set.Undefined)
				continue
			}
			fmt.Fprintf(w, "    %-16s level %-5g %d pause(s)\n", ps.Category, set.Level, len(set.Events))
			if f.opts.Verbose {
				for _, ev := range set.Events {
					f.formatEvent(&ev, w)
				}
			}
		}
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatEvent(ev *parser.GcEvent, w io.Writer) {
	fmt.Fprintf(w, "      - %s: %.7fs (thread %d) %s\n",
		parser.FormatTimestamp(ev.Timestamp), ev.PauseTime, ev.Thread, ev.TypeDetail)
}

func (f *TextFormatter) formatConcurrent(report *analyzer.Report, w io.Writer) {
	fmt.Fprintln(w, "  CONCURRENT SUMMARY")
	if len(report.Concurrences) == 0 {
		fmt.Fprintln(w, "    No concurrent phases")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, cs := range report.Concurrences {
		fmt.Fprintf(tw, "    %s\t%d\n", cs.TypeDetail, cs.Count)
	}
	tw.Flush()
}

func (f *TextFormatter) formatParseStats(s *parser.Stats, w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  PARSER")
	fmt.Fprintf(w, "    Lines read: %d, writer switches: %d, fragments joined: %d/%d, dangling: %d\n",
		s.LinesRead, s.WriterSwitches, s.FragmentsJoined, s.FragmentsStored, s.DanglingFragments)
	for _, d := range s.DroppedSamples {
		fmt.Fprintf(w, "    Dropped line %d (thread %d, %s): %s\n", d.LineNum, d.Thread, d.Reason, d.Text)
	}
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func eventPause(ev *parser.GcEvent) string {
	if ev == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", ev.PauseTime)
}
