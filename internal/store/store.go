// File: internal/store/store.go

// Package store persists the invocation audit log to PostgreSQL. Auditing is
// optional; the dispatcher runs without it when no database is configured.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/internal/command"
)

// DBPool abstracts pgxpool.Pool for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Store is the PostgreSQL-backed audit recorder.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ command.AuditRecorder = (*Store)(nil)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS invocations (
		id         UUID PRIMARY KEY,
		command    TEXT NOT NULL,
		succeeded  BOOLEAN NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL
	);
`

// New verifies the connection and ensures the audit table exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to ensure invocations table: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// RecordInvocation inserts one audit row per command invocation.
func (s *Store) RecordInvocation(ctx context.Context, rec command.InvocationRecord) error {
	const sql = `
		INSERT INTO invocations (id, command, succeeded, error_kind, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	_, err := s.pool.Exec(ctx, sql,
		rec.ID,
		rec.Command,
		rec.Succeeded,
		rec.ErrorKind,
		rec.Duration.Milliseconds(),
		rec.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invocation record: %w", err)
	}

	s.log.Debug("Invocation recorded.",
		zap.String("invocation_id", rec.ID),
		zap.String("command", rec.Command),
		zap.Bool("succeeded", rec.Succeeded))
	return nil
}

// RecentInvocations returns the newest audit rows up to limit, most recent
// first.
func (s *Store) RecentInvocations(ctx context.Context, limit int) ([]command.InvocationRecord, error) {
	const sql = `
		SELECT id, command, succeeded, error_kind, duration_ms, started_at
		FROM invocations
		ORDER BY started_at DESC
		LIMIT $1;
	`

	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var records []command.InvocationRecord
	for rows.Next() {
		var rec command.InvocationRecord
		var durationMs int64
		var startedAt time.Time

		if err := rows.Scan(&rec.ID, &rec.Command, &rec.Succeeded, &rec.ErrorKind, &durationMs, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invocation row: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.StartedAt = startedAt
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
