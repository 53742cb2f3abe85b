package core

import (
	"encoding/json"
	"time"
)

// Backend identifies which external model-execution facility serves a request.
type Backend int

const (
	// BackendPrimary is the codex-style agent CLI.
	BackendPrimary Backend = iota
	// BackendSecondary is the gemini-style CLI or remote API.
	BackendSecondary
)

// String returns the backend's public name, used for logs, metrics and tags.
func (b Backend) String() string {
	switch b {
	case BackendPrimary:
		return "codex"
	case BackendSecondary:
		return "gemini"
	default:
		return "unknown"
	}
}

// Backends lists every known backend in tag order.
var Backends = []Backend{BackendPrimary, BackendSecondary}

// RunnerSelection is the resolved backend + model pair for one invocation.
type RunnerSelection struct {
	Backend       Backend
	ResolvedModel string
}

// BridgeResult is the unified answer returned by every invoker.
// RawEvents is empty for backends that do not emit structured traces.
type BridgeResult struct {
	Text      string
	RawEvents []json.RawMessage
}

// Message represents a single message in the chat history
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the inbound /api/chat payload.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// GenerateRequest is the inbound /api/generate payload.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

// ChatResponse is the non-streaming /api/chat response and, without
// TotalDuration, the shape of every streamed chat frame.
type ChatResponse struct {
	Model         string  `json:"model"`
	CreatedAt     string  `json:"created_at"`
	Message       Message `json:"message"`
	Done          bool    `json:"done"`
	DoneReason    string  `json:"done_reason,omitempty"`
	TotalDuration *int64  `json:"total_duration,omitempty"`
}

// GenerateResponse is the /api/generate counterpart of ChatResponse.
type GenerateResponse struct {
	Model         string `json:"model"`
	CreatedAt     string `json:"created_at"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	DoneReason    string `json:"done_reason,omitempty"`
	TotalDuration *int64 `json:"total_duration,omitempty"`
}

// ModelDetails is the placeholder metadata reported for bridge models.
type ModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ModelTag is one entry of the /api/tags listing.
type ModelTag struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt string       `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// TagsResponse is the /api/tags response body.
type TagsResponse struct {
	Models []ModelTag `json:"models"`
}

// HealthResponse is the /healthz response body.
type HealthResponse struct {
	OK   bool   `json:"ok"`
	Time string `json:"time"`
}

// DoneReasonStop is the only done_reason the bridge ever reports.
const DoneReasonStop = "stop"

// Timestamp formats t the way every created_at field is rendered.
func Timestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02T15:04:05.000000-07:00")
}
