// Package journal records one entry per bridged exchange. Entries are
// buffered in memory and written to the configured storage in batches, off
// the request path.
package journal

import (
	"context"
	"encoding/json"
	"time"
)

// Store persists batches of entries.
// Implementations must be safe for concurrent use.
type Store interface {
	WriteBatch(ctx context.Context, entries []*Entry) error
	// Flush forces pending writes to complete. Called during shutdown.
	Flush(ctx context.Context) error
	// Close stops background work. It does not close the shared storage.
	Close() error
}

// Entry is the record of one request: what was asked, which backend served
// it and how it ended. Data is only set when body capture is enabled.
type Entry struct {
	ID         string    `json:"id" bson:"_id"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	DurationNs int64     `json:"duration_ns" bson:"duration_ns"`

	RequestID     string `json:"request_id" bson:"request_id"`
	Endpoint      string `json:"endpoint" bson:"endpoint"`
	Model         string `json:"model" bson:"model"`
	Backend       string `json:"backend,omitempty" bson:"backend,omitempty"`
	ResolvedModel string `json:"resolved_model,omitempty" bson:"resolved_model,omitempty"`
	Stream        bool   `json:"stream" bson:"stream"`
	StatusCode    int    `json:"status_code" bson:"status_code"`

	ErrorType    string `json:"error_type,omitempty" bson:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty" bson:"error_message,omitempty"`

	PromptChars   int `json:"prompt_chars" bson:"prompt_chars"`
	ResponseChars int `json:"response_chars" bson:"response_chars"`
	Frames        int `json:"frames" bson:"frames"`

	Data *EntryData `json:"data,omitempty" bson:"data,omitempty"`
}

// EntryData holds captured bodies.
// Values are interface{} so MongoDB stores them as native documents.
type EntryData struct {
	Request      interface{}   `json:"request,omitempty" bson:"request,omitempty"`
	ResponseText string        `json:"response_text,omitempty" bson:"response_text,omitempty"`
	RawEvents    []interface{} `json:"raw_events,omitempty" bson:"raw_events,omitempty"`
}

// DecodeEvents converts raw backend events for storage. Events that fail to
// decode are kept as strings.
func DecodeEvents(raw []json.RawMessage) []interface{} {
	if len(raw) == 0 {
		return nil
	}
	out := make([]interface{}, 0, len(raw))
	for _, ev := range raw {
		var v interface{}
		if err := json.Unmarshal(ev, &v); err != nil {
			out = append(out, string(ev))
			continue
		}
		out = append(out, v)
	}
	return out
}

// Config holds journal configuration
type Config struct {
	Enabled bool

	// LogBodies captures request payloads, answers and raw backend events.
	LogBodies bool

	// BufferSize is the number of entries queued before new ones are dropped.
	BufferSize int

	// FlushInterval is how often buffered entries are written.
	FlushInterval time.Duration

	// RetentionDays is how long to keep entries (0 = forever).
	RetentionDays int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		RetentionDays: 30,
	}
}

func marshalData(data *EntryData) []byte {
	if data == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return []byte("{}")
	}
	return b
}
