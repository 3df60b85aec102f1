// Package history keeps the extraction log: one entry per upload handled
// by the service, stored in PostgreSQL when a database is configured and
// in a bounded in-memory ring otherwise.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the number of entries Recent returns when no limit
	// is given.
	DefaultLimit = 50

	// MaxLimit caps a single Recent call.
	MaxLimit = 500
)

// Entry records the outcome of one extraction.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	FileName   string    `json:"fileName"`
	Format     string    `json:"format,omitempty"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Records    int       `json:"records"`
	Tables     int       `json:"tables,omitempty"`
	DurationMS int64     `json:"durationMs"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store persists extraction log entries.
type Store interface {
	// Record appends an entry. A zero ID or CreatedAt is filled in.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// ClampLimit normalizes a requested page size to [1, MaxLimit], using
// DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// prepare fills the generated fields of an entry.
func prepare(e Entry, now time.Time) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	return e
}
