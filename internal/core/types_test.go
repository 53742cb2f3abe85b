package core

import (
	"context"
	"testing"
	"time"
)

func TestBackend_String(t *testing.T) {
	tests := map[Backend]string{
		BackendPrimary:   "codex",
		BackendSecondary: "gemini",
		Backend(99):      "unknown",
	}
	for b, want := range tests {
		if got := b.String(); got != want {
			t.Errorf("Backend(%d).String() = %q, want %q", int(b), got, want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 678901000, time.UTC)

	seoul := time.FixedZone("KST", 9*60*60)
	if got, want := Timestamp(ts, seoul), "2025-01-02T12:04:05.678901+09:00"; got != want {
		t.Errorf("Timestamp() = %q, want %q", got, want)
	}
	if got, want := Timestamp(ts, nil), "2025-01-02T03:04:05.678901+00:00"; got != want {
		t.Errorf("Timestamp(nil loc) = %q, want %q", got, want)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID() on empty context = %q", got)
	}
	ctx = WithRequestID(ctx, "abc12345")
	if got := GetRequestID(ctx); got != "abc12345" {
		t.Errorf("GetRequestID() = %q, want abc12345", got)
	}
}
