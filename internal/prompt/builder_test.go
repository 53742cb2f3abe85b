package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"agentbridge/internal/core"
)

func TestBuildChat(t *testing.T) {
	tests := []struct {
		name     string
		builder  *Builder
		messages []core.Message
		expected string
	}{
		{
			name:     "single message without detail",
			builder:  NewBuilder("off", "be verbose"),
			messages: []core.Message{{Role: "user", Content: "hi"}},
			expected: "[USER] hi\n\nAnswer as the assistant only.",
		},
		{
			name:    "history with detail instruction",
			builder: NewBuilder("high", "be verbose"),
			messages: []core.Message{
				{Role: "system", Content: "You are terse."},
				{Role: "user", Content: "2+2?"},
				{Role: "assistant", Content: "4"},
				{Role: "user", Content: "3+3?"},
			},
			expected: "[SYSTEM] be verbose\n[SYSTEM] You are terse.\n[USER] 2+2?\n[ASSISTANT] 4\n[USER] 3+3?\n\nAnswer as the assistant only.",
		},
		{
			name:     "blank instruction is skipped",
			builder:  NewBuilder("high", "   "),
			messages: []core.Message{{Role: "user", Content: "x"}},
			expected: "[USER] x\n\nAnswer as the assistant only.",
		},
		{
			name:     "missing role defaults to user",
			builder:  NewBuilder("OFF", ""),
			messages: []core.Message{{Content: "x"}},
			expected: "[USER] x\n\nAnswer as the assistant only.",
		},
		{
			name:     "duplicates are kept",
			builder:  NewBuilder("off", ""),
			messages: []core.Message{{Role: "user", Content: "a"}, {Role: "user", Content: "a"}},
			expected: "[USER] a\n[USER] a\n\nAnswer as the assistant only.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.builder.BuildChat(tt.messages)
			assert.Equal(t, tt.expected, got)
			assert.True(t, strings.HasSuffix(got, ClosingInstruction))
		})
	}
}

func TestBuildGenerate(t *testing.T) {
	tests := []struct {
		name     string
		builder  *Builder
		prompt   string
		system   string
		expected string
	}{
		{
			name:     "prompt only",
			builder:  NewBuilder("off", "detail"),
			prompt:   "why is the sky blue",
			expected: "[USER] why is the sky blue",
		},
		{
			name:     "system and detail",
			builder:  NewBuilder("high", "detail"),
			prompt:   "why",
			system:   "answer in French",
			expected: "[SYSTEM] detail\n[SYSTEM] answer in French\n[USER] why",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.builder.BuildGenerate(tt.prompt, tt.system))
		})
	}
}
