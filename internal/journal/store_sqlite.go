package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SQLite allows at most 999 bound parameters per statement, so batches are
// split into chunks of maxEntriesPerBatch rows.
const (
	maxSQLiteParams    = 999
	columnsPerEntry    = 16
	maxEntriesPerBatch = maxSQLiteParams / columnsPerEntry
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore creates the journal table and indexes if needed and starts
// retention cleanup when retentionDays > 0.
func NewSQLiteStore(db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			duration_ns INTEGER DEFAULT 0,
			request_id TEXT,
			endpoint TEXT,
			model TEXT,
			backend TEXT,
			resolved_model TEXT,
			stream INTEGER DEFAULT 0,
			status_code INTEGER DEFAULT 0,
			error_type TEXT,
			error_message TEXT,
			prompt_chars INTEGER DEFAULT 0,
			response_chars INTEGER DEFAULT 0,
			frames INTEGER DEFAULT 0,
			data JSON
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", TableName, err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON " + TableName + "(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_journal_backend ON " + TableName + "(backend)",
		"CREATE INDEX IF NOT EXISTS idx_journal_status ON " + TableName + "(status_code)",
		"CREATE INDEX IF NOT EXISTS idx_journal_request_id ON " + TableName + "(request_id)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

// WriteBatch inserts entries with multi-row INSERTs. Duplicate ids are ignored.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	for i := 0; i < len(entries); i += maxEntriesPerBatch {
		end := min(i+maxEntriesPerBatch, len(entries))
		chunk := entries[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]interface{}, 0, len(chunk)*columnsPerEntry)

		for j, e := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

			stream := 0
			if e.Stream {
				stream = 1
			}
			var data interface{}
			if b := marshalData(e.Data); b != nil {
				data = string(b)
			}

			values = append(values,
				e.ID,
				e.Timestamp.UTC().Format(time.RFC3339Nano),
				e.DurationNs,
				e.RequestID,
				e.Endpoint,
				e.Model,
				e.Backend,
				e.ResolvedModel,
				stream,
				e.StatusCode,
				e.ErrorType,
				e.ErrorMessage,
				e.PromptChars,
				e.ResponseChars,
				e.Frames,
				data,
			)
		}

		query := `INSERT OR IGNORE INTO ` + TableName + ` (id, timestamp, duration_ns, request_id, endpoint,
			model, backend, resolved_model, stream, status_code, error_type, error_message,
			prompt_chars, response_chars, frames, data) VALUES ` + strings.Join(placeholders, ",")

		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert journal batch %d: %w", i/maxEntriesPerBatch, err)
		}
	}
	return nil
}

// Flush is a no-op for SQLite as writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The database belongs to the storage layer.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *SQLiteStore) cleanup() {
	if s.retentionDays <= 0 {
		return
	}

	result, err := s.db.Exec("DELETE FROM "+TableName+" WHERE timestamp < ?",
		cutoff(s.retentionDays).Format(time.RFC3339Nano))
	if err != nil {
		slog.Error("failed to clean up journal entries", "error", err)
		return
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		slog.Info("cleaned up journal entries", "deleted", n)
	}
}
