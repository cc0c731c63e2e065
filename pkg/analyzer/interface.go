package analyzer

import (
	"github.com/xeoh/GCTool/pkg/parser"
)

// Aggregator accumulates the events it is interested in.
// The pause and concurrent aggregators implement this interface.
type Aggregator interface {
	// Accepts reports whether ev belongs to this aggregator.
	Accepts(ev *parser.GcEvent) bool

	// Add records an accepted event.
	Add(ev parser.GcEvent)

	// Reset clears internal state for reuse.
	Reset()
}
