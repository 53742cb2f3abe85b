package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// ConsoleValueMaxChars bounds string values printed to the console.
const ConsoleValueMaxChars = 200

// Options configures Setup.
type Options struct {
	Level string
	// Format is "pretty" (tint) or "json".
	Format string
	// Dir receives the log file; empty disables it.
	Dir string
	// Location names the log file's timestamp.
	Location *time.Location
	Console  io.Writer
}

// Logger is the configured process logger with its log file, if any.
type Logger struct {
	*slog.Logger
	FilePath string
	file     *os.File
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps debug, info, warn and error to slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FileName returns the log file name for a process started at t.
func FileName(t time.Time) string {
	return t.Format("bridge_server-20060102-150405.log")
}

// Setup builds the process logger.
func Setup(opts Options) (*Logger, error) {
	level := ParseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	var consoleHandler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		consoleHandler = slog.NewJSONHandler(console, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: TruncateAttrs(ConsoleValueMaxChars),
		})
	} else {
		consoleHandler = tint.NewHandler(console, &tint.Options{
			Level:       level,
			TimeFormat:  time.TimeOnly,
			NoColor:     !isTerminal(console),
			ReplaceAttr: TruncateAttrs(ConsoleValueMaxChars),
		})
	}

	l := &Logger{}
	handlers := []slog.Handler{consoleHandler}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		now := time.Now()
		if opts.Location != nil {
			now = now.In(opts.Location)
		}
		l.FilePath = filepath.Join(opts.Dir, FileName(now))
		f, err := os.OpenFile(l.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		handlers = append(handlers, slog.NewJSONHandler(NewLockedWriter(f), &slog.HandlerOptions{Level: level}))
	}

	l.Logger = slog.New(NewFanoutHandler(handlers...))
	return l, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
