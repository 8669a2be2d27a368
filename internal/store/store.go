// Package store keeps the action log in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/internal/journal"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const schemaSQL = `
        CREATE TABLE IF NOT EXISTS action_log (
            session_id    UUID        NOT NULL,
            seq           INTEGER     NOT NULL,
            instruction   TEXT        NOT NULL,
            action        TEXT        NOT NULL,
            target        TEXT,
            thought       TEXT,
            converged     BOOLEAN     NOT NULL,
            error_kind    TEXT,
            error_message TEXT,
            recorded_at   TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (session_id, seq)
        );
    `

const insertSQL = `
        INSERT INTO action_log (session_id, seq, instruction, action, target, thought, converged, error_kind, error_message, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (session_id, seq) DO NOTHING;
    `

// Store is a journal.Sink backed by the action_log table.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the action_log table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create action_log table: %w", err)
	}
	return nil
}

// Write inserts one entry in its own transaction. Re-writing an entry that is
// already stored is a no-op.
func (s *Store) Write(ctx context.Context, e journal.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	r := e.Record()
	_, err = tx.Exec(ctx, insertSQL,
		r.SessionID, r.Seq, r.Instruction, r.Action,
		nullable(r.Target), nullable(r.Thought),
		r.Converged,
		nullable(r.ErrorKind), nullable(r.ErrorMessage),
		r.At,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action %d: %w", r.Seq, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
