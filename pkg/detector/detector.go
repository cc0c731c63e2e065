// Package detector identifies which GC log layout a file was written in.
package detector

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/xeoh/GCTool/pkg/parser"
)

// DefaultSampleSize is the number of non-blank lines sampled from a file.
const DefaultSampleSize = 100

// DetectionResult holds the result of sampling a log file.
type DetectionResult struct {
	Matches       []FormatMatch // Formats that matched, sorted by confidence descending
	SampledLines  int           // Number of lines sampled
	EventLines    int           // Sampled lines the event grammar accepts
	WriterLines   int           // Writer thread markers seen
	FragmentLines int           // Lines that would be held as fragments
	Note          string        // Advice when the best match is unsupported
}

// FormatMatch represents a format that matched with its confidence score.
type FormatMatch struct {
	Format     *LogFormat
	Confidence float64 // 0.0 to 1.0 (share of sampled lines matched)
	MatchCount int     // Number of lines that matched
	SampleLine string  // First line that matched
}

// Detector samples log files to identify their layout.
type Detector struct {
	formats    []*LogFormat
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a new Detector with default formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:    DefaultFormats(),
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples a log file and returns detected formats.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines analyzes a slice of log lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{}

	type formatStats struct {
		format     *LogFormat
		order      int
		matchCount int
		sampleLine string
	}
	stats := make(map[string]*formatStats)

	reassembler := parser.NewReassembler()
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.SampledLines++

		for i, format := range d.formats {
			if !format.Pattern.MatchString(line) {
				continue
			}
			s := stats[format.Name]
			if s == nil {
				s = &formatStats{format: format, order: i, sampleLine: line}
				stats[format.Name] = s
			}
			s.matchCount++
		}

		raw, err := reassembler.Feed(line)
		if err != nil {
			continue
		}
		switch raw.Kind {
		case parser.LineWriterThread:
			result.WriterLines++
		case parser.LineFragment:
			result.FragmentLines++
		case parser.LineCandidate:
			if _, ok := parser.ParseEvent(raw.Text); ok {
				result.EventLines++
			}
		}
	}

	if result.SampledLines == 0 {
		return result
	}

	ordered := make([]*formatStats, 0, len(stats))
	for _, s := range stats {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].matchCount != ordered[j].matchCount {
			return ordered[i].matchCount > ordered[j].matchCount
		}
		return ordered[i].order < ordered[j].order
	})

	for _, s := range ordered {
		result.Matches = append(result.Matches, FormatMatch{
			Format:     s.format,
			Confidence: float64(s.matchCount) / float64(result.SampledLines),
			MatchCount: s.matchCount,
			SampleLine: s.sampleLine,
		})
	}

	if best := result.BestMatch(); best != nil && !best.Format.Supported {
		result.Note = best.Format.Hint
	}

	return result
}

// sampleFile reads up to sampleSize non-blank lines from a file.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]string, error) {
	src, err := parser.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var lines []string
	for len(lines) < d.sampleSize {
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return lines, nil
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *FormatMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one format matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// Supported reports whether the best match is a layout the parser reads.
func (r *DetectionResult) Supported() bool {
	best := r.BestMatch()
	return best != nil && best.Format.Supported
}
