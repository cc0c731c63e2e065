package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	status TEXT NOT NULL,
	log_file TEXT NOT NULL DEFAULT '',
	meta_name TEXT NOT NULL DEFAULT '',
	meta_size INTEGER NOT NULL DEFAULT 0,
	result BLOB,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger for store operations.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OpenSQLite opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ticket database %s: %w", path, err)
	}
	// :memory: databases are per connection, and SQLite has one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ticket table: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug("Ticket store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// Issue creates a new ticket.
func (s *SQLiteStore) Issue(ctx context.Context) (int64, error) {
	ts := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (status, created_at, updated_at) VALUES (?, ?, ?)`,
		string(StatusNotReady), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("issuing ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("issuing ticket: %w", err)
	}
	s.logger.Debug("Ticket issued", zap.Int64("ticket", id))
	return id, nil
}

// Get returns everything stored for a ticket except the result.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Ticket, error) {
	var (
		t                Ticket
		status           string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, log_file, meta_name, meta_size, created_at, updated_at
		 FROM tickets WHERE id = ?`, id).
		Scan(&t.ID, &status, &t.LogFile, &t.Meta.Name, &t.Meta.Size, &created, &updated)
	if err != nil {
		return nil, s.notFound(id, err)
	}

	if t.Status, err = ParseStatus(status); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("ticket %d created_at: %w", id, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("ticket %d updated_at: %w", id, err)
	}
	return &t, nil
}

// Status returns the ticket's analysis state.
func (s *SQLiteStore) Status(ctx context.Context, id int64) (Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tickets WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return "", s.notFound(id, err)
	}
	return ParseStatus(status)
}

// SetStatus records a state transition.
func (s *SQLiteStore) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown ticket status %q", status)
	}
	if err := s.update(ctx, id, `status = ?`, string(status)); err != nil {
		return err
	}
	s.logger.Debug("Ticket status changed", zap.Int64("ticket", id), zap.String("status", string(status)))
	return nil
}

// LogFile returns the path of the stored upload.
func (s *SQLiteStore) LogFile(ctx context.Context, id int64) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT log_file FROM tickets WHERE id = ?`, id).Scan(&path)
	if err != nil {
		return "", s.notFound(id, err)
	}
	return path, nil
}

// SetLogFile records where the upload was stored.
func (s *SQLiteStore) SetLogFile(ctx context.Context, id int64, path string) error {
	return s.update(ctx, id, `log_file = ?`, path)
}

// Meta returns the upload's name and size.
func (s *SQLiteStore) Meta(ctx context.Context, id int64) (Meta, error) {
	var m Meta
	err := s.db.QueryRowContext(ctx, `SELECT meta_name, meta_size FROM tickets WHERE id = ?`, id).
		Scan(&m.Name, &m.Size)
	if err != nil {
		return Meta{}, s.notFound(id, err)
	}
	return m, nil
}

// SetMeta records the upload's name and size.
func (s *SQLiteStore) SetMeta(ctx context.Context, id int64, meta Meta) error {
	return s.update(ctx, id, `meta_name = ?, meta_size = ?`, meta.Name, meta.Size)
}

// Result returns the serialized analysis.
func (s *SQLiteStore) Result(ctx context.Context, id int64) ([]byte, error) {
	var result []byte
	err := s.db.QueryRowContext(ctx, `SELECT result FROM tickets WHERE id = ?`, id).Scan(&result)
	if err != nil {
		return nil, s.notFound(id, err)
	}
	if result == nil {
		return nil, fmt.Errorf("ticket %d: %w", id, ErrNoResult)
	}
	return result, nil
}

// SetResult stores the serialized analysis.
func (s *SQLiteStore) SetResult(ctx context.Context, id int64, result []byte) error {
	return s.update(ctx, id, `result = ?`, result)
}

// Delete removes a ticket. The uploaded file is left to the caller.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting ticket %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	s.logger.Debug("Ticket deleted", zap.Int64("ticket", id))
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) update(ctx context.Context, id int64, set string, args ...any) error {
	args = append(args, s.timestamp(), id)
	res, err := s.db.ExecContext(ctx, `UPDATE tickets SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating ticket %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating ticket %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) notFound(id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("reading ticket %d: %w", id, err)
}
