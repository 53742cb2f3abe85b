package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agentbridge/config"
	"agentbridge/internal/storage"
)

// Result holds the journal and the storage it writes to.
// The caller must call Close during shutdown.
type Result struct {
	Journal Journal
	Storage storage.Storage
}

// Close flushes the journal, then closes storage.
func (r *Result) Close() error {
	var errs []error
	if r.Journal != nil {
		if err := r.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// New creates the journal from configuration. A disabled journal is a
// NoopJournal with no storage.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if !cfg.Journal.Enabled {
		return &Result{Journal: NoopJournal{}}, nil
	}

	store, err := storage.New(ctx, BuildStorageConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	entryStore, err := NewStore(ctx, store, cfg.Journal.RetentionDays)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Result{
		Journal: NewLogger(entryStore, BuildConfig(cfg.Journal)),
		Storage: store,
	}, nil
}

// BuildStorageConfig maps application config onto storage.Config.
func BuildStorageConfig(cfg *config.Config) storage.Config {
	sc := storage.Config{
		Type:       cfg.Storage.Type,
		SQLite:     storage.SQLiteConfig{Path: cfg.Storage.SQLite.Path},
		PostgreSQL: storage.PostgreSQLConfig{URL: cfg.Storage.PostgreSQL.URL, MaxConns: cfg.Storage.PostgreSQL.MaxConns},
		MongoDB:    storage.MongoDBConfig{URL: cfg.Storage.MongoDB.URL, Database: cfg.Storage.MongoDB.Database},
	}
	if sc.Type == "" {
		sc.Type = storage.TypeSQLite
	}
	return sc
}

// BuildConfig maps application config onto the journal Config.
func BuildConfig(jc config.JournalConfig) Config {
	return Config{
		Enabled:       jc.Enabled,
		LogBodies:     jc.LogBodies,
		BufferSize:    jc.BufferSize,
		FlushInterval: time.Duration(jc.FlushInterval) * time.Second,
		RetentionDays: jc.RetentionDays,
	}
}

// NewStore creates the entry store matching the storage backend.
func NewStore(ctx context.Context, store storage.Storage, retentionDays int) (Store, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(store.SQLiteDB(), retentionDays)
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, store.PostgreSQLPool(), retentionDays)
	case storage.TypeMongoDB:
		return NewMongoDBStore(ctx, store.MongoDatabase(), retentionDays)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}
