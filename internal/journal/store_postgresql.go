package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

const insertPostgreSQL = `
	INSERT INTO ` + TableName + ` (id, timestamp, duration_ns, request_id, endpoint, model, backend,
		resolved_model, stream, status_code, error_type, error_message, prompt_chars, response_chars,
		frames, data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO NOTHING`

// NewPostgreSQLStore creates the journal table and indexes if needed and
// starts retention cleanup when retentionDays > 0.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+TableName+` (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			duration_ns BIGINT DEFAULT 0,
			request_id TEXT,
			endpoint TEXT,
			model TEXT,
			backend TEXT,
			resolved_model TEXT,
			stream BOOLEAN DEFAULT FALSE,
			status_code INTEGER DEFAULT 0,
			error_type TEXT,
			error_message TEXT,
			prompt_chars INTEGER DEFAULT 0,
			response_chars INTEGER DEFAULT 0,
			frames INTEGER DEFAULT 0,
			data JSONB
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", TableName, err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON " + TableName + "(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_journal_backend ON " + TableName + "(backend)",
		"CREATE INDEX IF NOT EXISTS idx_journal_status ON " + TableName + "(status_code)",
		"CREATE INDEX IF NOT EXISTS idx_journal_data_gin ON " + TableName + " USING GIN (data)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool:          pool,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

// WriteBatch sends all inserts in one pgx batch inside a transaction.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertPostgreSQL,
			e.ID, e.Timestamp, e.DurationNs, e.RequestID, e.Endpoint, e.Model, e.Backend,
			e.ResolvedModel, e.Stream, e.StatusCode, e.ErrorType, e.ErrorMessage,
			e.PromptChars, e.ResponseChars, e.Frames, marshalData(e.Data))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert journal batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Flush is a no-op for PostgreSQL as writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The pool belongs to the storage layer.
func (s *PostgreSQLStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *PostgreSQLStore) cleanup() {
	if s.retentionDays <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := s.pool.Exec(ctx, "DELETE FROM "+TableName+" WHERE timestamp < $1", cutoff(s.retentionDays))
	if err != nil {
		slog.Error("failed to clean up journal entries", "error", err)
		return
	}
	if result.RowsAffected() > 0 {
		slog.Info("cleaned up journal entries", "deleted", result.RowsAffected())
	}
}
