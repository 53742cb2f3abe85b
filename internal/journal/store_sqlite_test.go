package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentbridge/internal/storage"
)

func newSQLiteStore(t *testing.T, retentionDays int) (*SQLiteStore, storage.Storage) {
	t.Helper()
	db, err := storage.NewSQLite(storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "journal.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db.SQLiteDB(), retentionDays)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, db
}

func TestSQLiteStore_WriteBatchLargerThanParamLimit(t *testing.T) {
	store, db := newSQLiteStore(t, 0)

	entries := make([]*Entry, 150)
	for i := range entries {
		entries[i] = &Entry{
			ID:         uuid.NewString(),
			Timestamp:  time.Now(),
			Endpoint:   "/api/chat",
			Model:      "codex",
			Backend:    "codex",
			StatusCode: 200,
			Frames:     i,
		}
	}
	require.NoError(t, store.WriteBatch(context.Background(), entries))

	var count int
	require.NoError(t, db.SQLiteDB().QueryRow("SELECT COUNT(*) FROM "+TableName).Scan(&count))
	assert.Equal(t, 150, count)
}

func TestSQLiteStore_DuplicateIDsIgnored(t *testing.T) {
	store, db := newSQLiteStore(t, 0)
	e := &Entry{ID: "same", Timestamp: time.Now()}

	require.NoError(t, store.WriteBatch(context.Background(), []*Entry{e}))
	require.NoError(t, store.WriteBatch(context.Background(), []*Entry{e}))

	var count int
	require.NoError(t, db.SQLiteDB().QueryRow("SELECT COUNT(*) FROM "+TableName).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_Columns(t *testing.T) {
	store, db := newSQLiteStore(t, 0)

	e := &Entry{
		ID:            "e1",
		Timestamp:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		DurationNs:    42,
		RequestID:     "abcd1234",
		Endpoint:      "/api/generate",
		Model:         "gemini",
		Backend:       "gemini",
		ResolvedModel: "gemini-2.5-flash",
		Stream:        true,
		StatusCode:    502,
		ErrorType:     "backend_timeout_error",
		ErrorMessage:  "gemini timed out after 2m0s",
		PromptChars:   10,
		Frames:        0,
		Data: &EntryData{
			Request:      map[string]interface{}{"prompt": "hi"},
			ResponseText: "",
		},
	}
	require.NoError(t, store.WriteBatch(context.Background(), []*Entry{e}))

	var (
		ts, backend, resolved, errType, data string
		stream, status, promptChars          int
	)
	row := db.SQLiteDB().QueryRow(`SELECT timestamp, backend, resolved_model, stream, status_code,
		error_type, prompt_chars, data FROM `+TableName+` WHERE id = ?`, "e1")
	require.NoError(t, row.Scan(&ts, &backend, &resolved, &stream, &status, &errType, &promptChars, &data))

	assert.Equal(t, "2025-01-02T03:04:05Z", ts)
	assert.Equal(t, "gemini", backend)
	assert.Equal(t, "gemini-2.5-flash", resolved)
	assert.Equal(t, 1, stream)
	assert.Equal(t, 502, status)
	assert.Equal(t, "backend_timeout_error", errType)
	assert.Equal(t, 10, promptChars)

	var decoded EntryData
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, map[string]interface{}{"prompt": "hi"}, decoded.Request)
}

func TestSQLiteStore_NilDataIsNull(t *testing.T) {
	store, db := newSQLiteStore(t, 0)
	require.NoError(t, store.WriteBatch(context.Background(), []*Entry{{ID: "n", Timestamp: time.Now()}}))

	var isNull bool
	require.NoError(t, db.SQLiteDB().QueryRow("SELECT data IS NULL FROM "+TableName+" WHERE id = 'n'").Scan(&isNull))
	assert.True(t, isNull)
}

func TestSQLiteStore_CleanupRemovesExpired(t *testing.T) {
	store, db := newSQLiteStore(t, 0)
	store.retentionDays = 7

	now := time.Now()
	entries := []*Entry{
		{ID: "old", Timestamp: now.AddDate(0, 0, -30)},
		{ID: "fresh", Timestamp: now.Add(-time.Hour)},
	}
	require.NoError(t, store.WriteBatch(context.Background(), entries))

	store.cleanup()

	var ids []string
	rows, err := db.SQLiteDB().Query("SELECT id FROM " + TableName)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestNewSQLiteStore_RequiresDB(t *testing.T) {
	_, err := NewSQLiteStore(nil, 0)
	assert.Error(t, err)
}

func TestMaxEntriesPerBatch(t *testing.T) {
	assert.LessOrEqual(t, maxEntriesPerBatch*columnsPerEntry, maxSQLiteParams, fmt.Sprint(maxEntriesPerBatch))
}
