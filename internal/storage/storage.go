// Package storage opens the database connection shared by persistence
// features. Exactly one backend is active per process.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Type constants for storage backends
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// Config holds storage configuration
type Config struct {
	// Type specifies the storage backend: "sqlite", "postgresql", or "mongodb"
	Type string

	SQLite     SQLiteConfig
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	// Path is the database file path (default: data/agentbridge.db)
	Path string
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL string
	// MaxConns is the maximum connection pool size (default: 10)
	MaxConns int
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL string
	// Database is the database name (default: agentbridge)
	Database string
}

// Storage provides a unified interface for database connections.
// Exactly one of the accessors returns a non-nil handle.
type Storage interface {
	// Type returns the storage type ("sqlite", "postgresql", or "mongodb")
	Type() string

	SQLiteDB() *sql.DB
	PostgreSQLPool() *pgxpool.Pool
	MongoDatabase() *mongo.Database

	// Ping verifies the connection is usable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the storage.
	Close() error
}

// New creates a new Storage based on the configuration.
// It validates the configuration and establishes the database connection.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		return NewSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return NewMongoDB(ctx, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Type:       TypeSQLite,
		SQLite:     SQLiteConfig{Path: DefaultSQLitePath},
		PostgreSQL: PostgreSQLConfig{MaxConns: 10},
		MongoDB:    MongoDBConfig{Database: DefaultMongoDatabase},
	}
}

// Defaults applied when a field is left empty.
const (
	DefaultSQLitePath    = "data/agentbridge.db"
	DefaultMongoDatabase = "agentbridge"
)
