// Package prompt flattens chat and generate payloads into a single backend prompt.
package prompt

import (
	"strings"

	"agentbridge/internal/core"
)

// ClosingInstruction terminates every chat prompt.
const ClosingInstruction = "Answer as the assistant only."

// DetailModeOff disables the detail instruction line.
const DetailModeOff = "off"

// Builder assembles prompts. It holds no per-request state and is safe for
// concurrent use.
type Builder struct {
	detailMode        string
	detailInstruction string
}

// NewBuilder creates a Builder. The detail instruction is prepended to every
// prompt unless mode is "off" or the instruction is blank.
func NewBuilder(mode, instruction string) *Builder {
	return &Builder{
		detailMode:        strings.ToLower(strings.TrimSpace(mode)),
		detailInstruction: strings.TrimSpace(instruction),
	}
}

// BuildChat renders messages as "[ROLE] content" lines in turn order.
func (b *Builder) BuildChat(messages []core.Message) string {
	lines := make([]string, 0, len(messages)+2)
	lines = b.appendDetail(lines)
	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		lines = append(lines, "["+strings.ToUpper(role)+"] "+msg.Content)
	}
	lines = append(lines, "\n"+ClosingInstruction)
	return strings.Join(lines, "\n")
}

// BuildGenerate renders a single-turn prompt with an optional system line.
func (b *Builder) BuildGenerate(prompt, system string) string {
	lines := make([]string, 0, 3)
	lines = b.appendDetail(lines)
	if system != "" {
		lines = append(lines, "[SYSTEM] "+system)
	}
	lines = append(lines, "[USER] "+prompt)
	return strings.Join(lines, "\n")
}

func (b *Builder) appendDetail(lines []string) []string {
	if b.detailMode == DetailModeOff || b.detailInstruction == "" {
		return lines
	}
	return append(lines, "[SYSTEM] "+b.detailInstruction)
}
