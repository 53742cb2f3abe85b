// Package stream emulates token streaming over a completed answer.
package stream

import (
	"unicode/utf8"

	"agentbridge/internal/core"
)

// DefaultChunkSize is the slice width used when a non-positive size is given.
const DefaultChunkSize = 40

// Frame is one emulated streaming unit. Exactly the last frame of a sequence
// has Done set.
type Frame struct {
	Content    string
	Done       bool
	DoneReason string
}

// Emulate slices text into fixed-width rune windows followed by one terminal
// frame. Empty text still yields one empty content frame.
func Emulate(text string, chunkSize int) []Frame {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	chunks := Chunk(text, chunkSize)
	frames := make([]Frame, 0, len(chunks)+1)
	for _, c := range chunks {
		frames = append(frames, Frame{Content: c})
	}
	return append(frames, Frame{Done: true, DoneReason: core.DoneReasonStop})
}

// Chunk splits text into consecutive slices of at most size runes. Multi-byte
// characters are never split. Empty text yields a single empty chunk.
func Chunk(text string, size int) []string {
	if text == "" {
		return []string{""}
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, runes := 0, 0
	for i := range text {
		if runes == size {
			chunks = append(chunks, text[start:i])
			start, runes = i, 0
		}
		runes++
	}
	return append(chunks, text[start:])
}
