package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// ErrInput marks a failure to open or read the log being parsed.
var ErrInput = errors.New("reading GC log")

const (
	reasonNoMatch     = "no grammar match"
	reasonBadThreadID = "invalid writer thread id"
)

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger that receives dropped-line diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDropSamples keeps up to n dropped lines in Stats for inspection.
func WithDropSamples(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.dropSamples = n
		}
	}
}

// DroppedLine describes an input line that produced no event.
type DroppedLine struct {
	LineNum int    `json:"line_num"`
	Thread  int    `json:"thread"`
	Reason  string `json:"reason"`
	Text    string `json:"line"`
}

// Stats counts what happened during a parse.
type Stats struct {
	LinesRead         int           `json:"lines_read"`
	WriterSwitches    int           `json:"writer_switches"`
	FragmentsStored   int           `json:"fragments_stored"`
	FragmentsJoined   int           `json:"fragments_joined"`
	EventsParsed      int           `json:"events_parsed"`
	LinesDropped      int           `json:"lines_dropped"`
	BadThreadIDs      int           `json:"bad_thread_ids"`
	DanglingFragments int           `json:"dangling_fragments"`
	DroppedSamples    []DroppedLine `json:"dropped_samples,omitempty"`
}

// Parser turns a stream of CMS log lines into GcEvents.
// It owns its reassembly state, so use one Parser per log and per caller.
type Parser struct {
	logger      *zap.Logger
	dropSamples int

	reassembler *Reassembler
	stats       Stats
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		logger:      zap.NewNop(),
		reassembler: NewReassembler(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns a snapshot of the parse counters.
func (p *Parser) Stats() Stats {
	s := p.stats
	s.DroppedSamples = append([]DroppedLine(nil), p.stats.DroppedSamples...)
	return s
}

// ParseLine feeds one input line. It returns the event completed by that
// line, if any. The only error is a *ClassificationError, which means the
// run should be aborted.
func (p *Parser) ParseLine(line string) (GcEvent, bool, error) {
	p.stats.LinesRead++

	raw, err := p.reassembler.Feed(line)
	switch raw.Kind {
	case LineWriterThread:
		p.stats.WriterSwitches++
		if err != nil {
			p.stats.BadThreadIDs++
			p.drop(raw, reasonBadThreadID, zap.Error(err))
		}
		return GcEvent{}, false, nil
	case LineFragment:
		p.stats.FragmentsStored++
		return GcEvent{}, false, nil
	}

	if raw.Joined {
		p.stats.FragmentsJoined++
	}

	root, ok := ParseEvent(raw.Text)
	if !ok {
		p.drop(raw, reasonNoMatch)
		return GcEvent{}, false, nil
	}

	category, err := Classify(root)
	if err != nil {
		return GcEvent{}, false, fmt.Errorf("line %d: %w", p.stats.LinesRead, err)
	}

	p.stats.EventsParsed++
	return BuildEvent(root, raw.Thread, category), true, nil
}

// Parse reads src to the end and returns the events in input order.
// A read failure returns an empty slice and an error wrapping ErrInput.
func (p *Parser) Parse(ctx context.Context, src LineSource) ([]GcEvent, error) {
	events := []GcEvent{}

	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return []GcEvent{}, ctxErr
			}
			return []GcEvent{}, fmt.Errorf("%w: %w", ErrInput, err)
		}

		ev, ok, err := p.ParseLine(line)
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, ev)
		}
	}

	p.finish()
	return events, nil
}

// ParseLines parses lines already held in memory.
func (p *Parser) ParseLines(ctx context.Context, lines []string) ([]GcEvent, error) {
	return p.Parse(ctx, NewSliceSource(lines))
}

// ParseFile parses the log at path.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]GcEvent, error) {
	src, err := OpenFile(path)
	if err != nil {
		return []GcEvent{}, fmt.Errorf("%w: %w", ErrInput, err)
	}
	defer src.Close()

	return p.Parse(ctx, src)
}

// finish records fragments whose continuation never arrived.
func (p *Parser) finish() {
	pending := p.reassembler.Pending()
	p.stats.DanglingFragments = len(pending)
	for _, thread := range pending {
		text, _ := p.reassembler.Fragment(thread)
		p.logger.Debug("Fragment never completed",
			zap.Int("thread", thread),
			zap.String("line", text))
	}
}

func (p *Parser) drop(raw RawLine, reason string, fields ...zap.Field) {
	p.stats.LinesDropped++
	if len(p.stats.DroppedSamples) < p.dropSamples {
		p.stats.DroppedSamples = append(p.stats.DroppedSamples, DroppedLine{
			LineNum: p.stats.LinesRead,
			Thread:  raw.Thread,
			Reason:  reason,
			Text:    raw.Text,
		})
	}

	fields = append(fields,
		zap.Int("line_num", p.stats.LinesRead),
		zap.Int("thread", raw.Thread),
		zap.String("reason", reason),
		zap.String("line", raw.Text))
	p.logger.Debug("Dropped log line", fields...)
}
