package codex

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Event types and item types the bridge cares about. Everything else in the
// codex JSON stream is kept as a raw event and otherwise ignored.
const (
	EventItemCompleted = "item.completed"

	ItemAgentMessage       = "agent_message"
	ItemAgentMessageLegacy = "agentMessage"
)

// ParseEvents returns every stdout line that is a JSON object, in order.
// Blank and unparseable lines are skipped.
func ParseEvents(stdout string) []json.RawMessage {
	var events []json.RawMessage
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		if !gjson.Parse(line).IsObject() {
			continue
		}
		events = append(events, json.RawMessage(line))
	}
	return events
}

// Event is the envelope of one line in the codex JSON stream. Item stays raw
// until the event kind says what it holds.
type Event struct {
	Type string          `json:"type"`
	Item json.RawMessage `json:"item,omitempty"`
}

// Item is the payload of an item.* event.
type Item struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// FinalAgentMessage returns the text of the last completed agent message.
// A later message replaces an earlier one, even when its text is empty.
// Events or items that do not decode are skipped.
func FinalAgentMessage(events []json.RawMessage) string {
	var answer string
	for _, raw := range events {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case EventItemCompleted:
			var item Item
			if len(ev.Item) == 0 || json.Unmarshal(ev.Item, &item) != nil {
				continue
			}
			switch item.Type {
			case ItemAgentMessage, ItemAgentMessageLegacy:
				answer = item.Text
			}
		}
	}
	return answer
}
