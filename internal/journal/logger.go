package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Journal accepts entries. Write never blocks the caller.
type Journal interface {
	Write(entry *Entry)
	Config() Config
	Close() error
}

// Logger provides async buffered writing with batch flushes. Entries are
// flushed when BatchFlushThreshold accumulate or every FlushInterval.
type Logger struct {
	store     Store
	config    Config
	buffer    chan *Entry
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	mu     sync.RWMutex
	closed bool
}

var _ Journal = (*Logger)(nil)

// NewLogger starts a Logger writing to store.
func NewLogger(store Store, cfg Config) *Logger {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}

	l := &Logger{
		store:  store,
		config: cfg,
		buffer: make(chan *Entry, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.flushLoop()
	return l
}

// Write queues entry. When the buffer is full, or the logger is closed, the
// entry is dropped with a warning.
func (l *Logger) Write(entry *Entry) {
	if entry == nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	select {
	case l.buffer <- entry:
	default:
		slog.Warn("journal buffer full, dropping entry",
			"request_id", entry.RequestID,
			"endpoint", entry.Endpoint,
		)
	}
}

// Config returns the logger configuration
func (l *Logger) Config() Config {
	return l.config
}

// Close drains the buffer, flushes the store and closes it. Safe to call
// multiple times.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		close(l.done)
		l.wg.Wait()
		l.closeErr = l.store.Close()
	})
	return l.closeErr
}

func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, BatchFlushThreshold)

	for {
		select {
		case entry := <-l.buffer:
			batch = append(batch, entry)
			if len(batch) >= BatchFlushThreshold {
				l.flushBatch(batch)
				batch = make([]*Entry, 0, BatchFlushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = make([]*Entry, 0, BatchFlushThreshold)
			}

		case <-l.done:
			close(l.buffer)
			for entry := range l.buffer {
				batch = append(batch, entry)
			}
			if len(batch) > 0 {
				l.flushBatch(batch)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := l.store.Flush(ctx); err != nil {
				slog.Error("failed to flush journal store", "error", err)
			}
			cancel()
			return
		}
	}
}

func (l *Logger) flushBatch(batch []*Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write journal batch",
			"error", err,
			"count", len(batch),
		)
	}
}

// NoopJournal discards entries (used when the journal is disabled).
type NoopJournal struct{}

func (NoopJournal) Write(*Entry)   {}
func (NoopJournal) Config() Config { return Config{} }
func (NoopJournal) Close() error   { return nil }
