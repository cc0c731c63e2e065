package parser

import (
	"context"
)

// LineSource provides an iterator over raw log lines in file order.
// Implementations must be safe for sequential access (not concurrent).
type LineSource interface {
	// Next returns the next line without its line terminator.
	// Returns io.EOF when no more lines are available.
	Next(ctx context.Context) (string, error)

	// Close releases any resources held by the source.
	Close() error
}
