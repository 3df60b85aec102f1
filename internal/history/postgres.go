package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the extraction log table. It is safe to apply on every
// start.
const schema = `
CREATE TABLE IF NOT EXISTS extraction_log (
	id          UUID PRIMARY KEY,
	kind        TEXT        NOT NULL,
	file_name   TEXT        NOT NULL,
	format      TEXT        NOT NULL DEFAULT '',
	status      TEXT        NOT NULL,
	message     TEXT        NOT NULL DEFAULT '',
	records     INTEGER     NOT NULL DEFAULT 0,
	tables      INTEGER     NOT NULL DEFAULT 0,
	duration_ms BIGINT      NOT NULL DEFAULT 0,
	ip_address  TEXT        NOT NULL DEFAULT '',
	user_agent  TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS extraction_log_created_at_idx ON extraction_log (created_at DESC);
`

// db is the subset of *pgxpool.Pool the store uses.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ db = (*pgxpool.Pool)(nil)

// PostgresStore writes the extraction log to the extraction_log table.
type PostgresStore struct {
	pool db
	now  func() time.Time
}

// NewPostgresStore returns a store backed by pool. Call Migrate once
// before use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Migrate creates the extraction_log table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate extraction_log: %w", err)
	}
	return nil
}

// Record inserts e.
func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	e = prepare(e, s.now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO extraction_log
			(id, kind, file_name, format, status, message, records, tables,
			 duration_ms, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Kind, e.FileName, e.Format, e.Status, e.Message, e.Records, e.Tables,
		e.DurationMS, e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction_log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, file_name, format, status, message, records, tables,
		       duration_ms, ip_address, user_agent, created_at
		FROM extraction_log
		ORDER BY created_at DESC
		LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query extraction_log: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.FileName, &e.Format, &e.Status, &e.Message, &e.Records, &e.Tables,
			&e.DurationMS, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan extraction_log: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read extraction_log: %w", err)
	}
	return entries, nil
}
