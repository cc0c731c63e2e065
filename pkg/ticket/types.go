// Package ticket tracks uploaded GC logs through analysis.
package ticket

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned for a ticket that was never issued or was deleted.
	ErrNotFound = errors.New("ticket not found")

	// ErrNoResult is returned when a ticket has no stored analysis.
	ErrNoResult = errors.New("ticket has no result")
)

// Status is the analysis state of a ticket.
type Status string

const (
	StatusNotReady  Status = "NOT_READY"
	StatusAnalyzing Status = "ANALYZING"
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
)

// Message returns the user-facing description of s.
func (s Status) Message() string {
	switch s {
	case StatusNotReady:
		return "The file to be analyzed is not ready"
	case StatusAnalyzing:
		return "Server is analyzing log. Please wait."
	case StatusCompleted:
		return "Log is analysed successfully"
	case StatusError:
		return "Error occurred during analysis."
	default:
		return ""
	}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotReady, StatusAnalyzing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Done reports whether no further transition is expected.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusError
}

// ParseStatus converts a stored status name.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown ticket status %q", s)
	}
	return st, nil
}

// Meta describes the uploaded file.
type Meta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Ticket is the stored state of one upload.
type Ticket struct {
	ID        int64     `json:"ticket"`
	Status    Status    `json:"status"`
	LogFile   string    `json:"-"`
	Meta      Meta      `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
