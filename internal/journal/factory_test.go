package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentbridge/config"
	"agentbridge/internal/storage"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	res, err := New(context.Background(), &config.Config{})
	require.NoError(t, err)

	assert.IsType(t, NoopJournal{}, res.Journal)
	assert.Nil(t, res.Storage)
	assert.NoError(t, res.Close())
}

func TestNew_SQLiteEndToEnd(t *testing.T) {
	cfg := &config.Config{
		Journal: config.JournalConfig{Enabled: true, BufferSize: 10, FlushInterval: 60, RetentionDays: 0},
		Storage: config.StorageConfig{
			Type:   storage.TypeSQLite,
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "j.db")},
		},
	}

	res, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Storage)
	assert.Equal(t, 10, res.Journal.Config().BufferSize)

	res.Journal.Write(&Entry{ID: "x1", Timestamp: time.Now(), Endpoint: "/api/chat"})

	// Close flushes the journal before storage goes away; reopen to verify.
	require.NoError(t, res.Close())

	db, err := storage.NewSQLite(storage.SQLiteConfig{Path: cfg.Storage.SQLite.Path})
	require.NoError(t, err)
	defer db.Close()

	var endpoint string
	require.NoError(t, db.SQLiteDB().QueryRow("SELECT endpoint FROM "+TableName+" WHERE id = 'x1'").Scan(&endpoint))
	assert.Equal(t, "/api/chat", endpoint)
}

func TestNew_UnknownStorage(t *testing.T) {
	_, err := New(context.Background(), &config.Config{
		Journal: config.JournalConfig{Enabled: true},
		Storage: config.StorageConfig{Type: "cassandra"},
	})
	assert.Error(t, err)
}

func TestBuildConfig(t *testing.T) {
	got := BuildConfig(config.JournalConfig{Enabled: true, LogBodies: true, BufferSize: 5, FlushInterval: 3, RetentionDays: 9})
	assert.Equal(t, Config{Enabled: true, LogBodies: true, BufferSize: 5, FlushInterval: 3 * time.Second, RetentionDays: 9}, got)
}
