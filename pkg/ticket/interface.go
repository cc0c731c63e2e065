package ticket

import "context"

// Store persists tickets. Every method taking an id returns an error
// wrapping ErrNotFound when the ticket does not exist.
type Store interface {
	// Issue creates a ticket in StatusNotReady and returns its id.
	// Ids are positive and increase with every call.
	Issue(ctx context.Context) (int64, error)

	Get(ctx context.Context, id int64) (*Ticket, error)

	Status(ctx context.Context, id int64) (Status, error)
	SetStatus(ctx context.Context, id int64, status Status) error

	LogFile(ctx context.Context, id int64) (string, error)
	SetLogFile(ctx context.Context, id int64, path string) error

	Meta(ctx context.Context, id int64) (Meta, error)
	SetMeta(ctx context.Context, id int64, meta Meta) error

	// Result returns the serialized analysis, or ErrNoResult.
	Result(ctx context.Context, id int64) ([]byte, error)
	SetResult(ctx context.Context, id int64, result []byte) error

	Delete(ctx context.Context, id int64) error

	Close() error
}
