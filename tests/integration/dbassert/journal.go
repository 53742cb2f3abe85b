//go:build integration

// Package dbassert provides database assertion helpers for integration tests.
// It queries journal entries in PostgreSQL and MongoDB.
package dbassert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"agentbridge/internal/journal"
)

// QueryJournalByRequestID queries journal entries by request ID from PostgreSQL.
func QueryJournalByRequestID(t *testing.T, pool *pgxpool.Pool, requestID string) []journal.Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		SELECT id, timestamp, duration_ns, request_id, endpoint, model, backend,
		       resolved_model, stream, status_code, error_type, error_message,
		       prompt_chars, response_chars, frames, data
		FROM ` + journal.TableName + `
		WHERE request_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := pool.Query(ctx, query, requestID)
	require.NoError(t, err, "failed to query journal")
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var e journal.Entry
		var dataJSON []byte
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.DurationNs, &e.RequestID, &e.Endpoint,
			&e.Model, &e.Backend, &e.ResolvedModel, &e.Stream, &e.StatusCode,
			&e.ErrorType, &e.ErrorMessage, &e.PromptChars, &e.ResponseChars,
			&e.Frames, &dataJSON,
		)
		require.NoError(t, err, "failed to scan journal row")

		if dataJSON != nil {
			var data journal.EntryData
			require.NoError(t, json.Unmarshal(dataJSON, &data), "failed to unmarshal entry data")
			e.Data = &data
		}
		entries = append(entries, e)
	}
	require.NoError(t, rows.Err(), "error iterating journal rows")

	return entries
}

// QueryJournalByRequestIDMongo queries journal entries by request ID from MongoDB.
func QueryJournalByRequestIDMongo(t *testing.T, db *mongo.Database, requestID string) []journal.Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := db.Collection(journal.TableName).Find(ctx, bson.M{"request_id": requestID})
	require.NoError(t, err, "failed to query journal from MongoDB")
	defer cursor.Close(ctx)

	var entries []journal.Entry
	require.NoError(t, cursor.All(ctx, &entries), "failed to decode journal documents")
	return entries
}

// AssertSuccessEntry checks the fields every successful exchange records.
func AssertSuccessEntry(t *testing.T, e journal.Entry, endpoint, backend string) {
	t.Helper()
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, endpoint, e.Endpoint)
	assert.Equal(t, backend, e.Backend)
	assert.Equal(t, 200, e.StatusCode)
	assert.Empty(t, e.ErrorType)
	assert.Positive(t, e.PromptChars)
	assert.Positive(t, e.ResponseChars)
}
