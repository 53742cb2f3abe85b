package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"agentbridge/internal/core"
	"agentbridge/internal/journal"
	"agentbridge/internal/observability"
	"agentbridge/internal/prompt"
	"agentbridge/internal/runner"
	"agentbridge/internal/stream"
)

// ContentTypeNDJSON is the media type of streamed responses.
const ContentTypeNDJSON = "application/x-ndjson; charset=utf-8"

const (
	endpointChat     = "/api/chat"
	endpointGenerate = "/api/generate"
)

// HandlerOptions carries the collaborators of a Handler. Zero values fall
// back to working defaults.
type HandlerOptions struct {
	DefaultModel string
	Resolver     *runner.Resolver
	Prompts      *prompt.Builder
	Journal      journal.Journal
	Metrics      *observability.Metrics
	ChunkSize    int
	FrameDelay   time.Duration
	Location     *time.Location
}

// Handler holds the HTTP handlers
type Handler struct {
	dispatcher   core.Dispatcher
	resolver     *runner.Resolver
	prompts      *prompt.Builder
	journal      journal.Journal
	metrics      *observability.Metrics
	defaultModel string
	chunkSize    int
	frameDelay   time.Duration
	location     *time.Location
	now          func() time.Time
}

// NewHandler creates a new handler that dispatches to the given backends.
func NewHandler(dispatcher core.Dispatcher, opts HandlerOptions) *Handler {
	h := &Handler{
		dispatcher:   dispatcher,
		resolver:     opts.Resolver,
		prompts:      opts.Prompts,
		journal:      opts.Journal,
		metrics:      opts.Metrics,
		defaultModel: strings.TrimSpace(opts.DefaultModel),
		chunkSize:    opts.ChunkSize,
		frameDelay:   opts.FrameDelay,
		location:     opts.Location,
		now:          time.Now,
	}
	if h.defaultModel == "" {
		h.defaultModel = "codex"
	}
	if h.resolver == nil {
		h.resolver = runner.NewResolver(h.defaultModel, "")
	}
	if h.prompts == nil {
		h.prompts = prompt.NewBuilder(prompt.DetailModeOff, "")
	}
	if h.journal == nil {
		h.journal = journal.NoopJournal{}
	}
	if h.chunkSize <= 0 {
		h.chunkSize = stream.DefaultChunkSize
	}
	return h
}

type chatPayload struct {
	Model    string          `json:"model"`
	Messages json.RawMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type generatePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system"`
	Stream bool   `json:"stream"`
}

// Health handles GET /healthz
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, core.HealthResponse{
		OK:   true,
		Time: h.timestamp(),
	})
}

// Tags handles GET /api/tags
func (h *Handler) Tags(c echo.Context) error {
	modifiedAt := h.timestamp()
	models := make([]core.ModelTag, 0, len(core.Backends))
	for _, b := range core.Backends {
		name := b.String()
		models = append(models, core.ModelTag{
			Name:       name,
			Model:      name,
			ModifiedAt: modifiedAt,
			Size:       0,
			Digest:     name + "-bridge",
			Details: core.ModelDetails{
				ParentModel:       "",
				Format:            "bridge",
				Family:            name,
				Families:          []string{name},
				ParameterSize:     "unknown",
				QuantizationLevel: "none",
			},
		})
	}
	return c.JSON(http.StatusOK, core.TagsResponse{Models: models})
}

// Chat handles POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	ex := h.begin(c, endpointChat)

	var payload chatPayload
	raw, err := decodeBody(c, &payload)
	if err != nil {
		return h.bodyError(c, ex, err)
	}
	ex.logStart(raw)

	var messages []core.Message
	if err := json.Unmarshal(payload.Messages, &messages); err != nil || len(messages) == 0 {
		return h.fail(c, ex, core.NewInvalidRequestError("messages must be a non-empty list", err))
	}

	model := h.modelOrDefault(payload.Model)
	ex.entry.Model = model
	ex.entry.Stream = payload.Stream
	if ex.data != nil {
		ex.data.Request = core.ChatRequest{Model: model, Messages: messages, Stream: payload.Stream}
	}

	result, err := h.invoke(c, ex, model, h.prompts.BuildChat(messages))
	if err != nil {
		return h.fail(c, ex, err)
	}

	if payload.Stream {
		return h.stream(c, ex, result.Text, func(f stream.Frame) any {
			return core.ChatResponse{
				Model:      model,
				CreatedAt:  h.timestamp(),
				Message:    core.Message{Role: "assistant", Content: f.Content},
				Done:       f.Done,
				DoneReason: f.DoneReason,
			}
		})
	}

	var total int64
	h.finish(ex, http.StatusOK, nil)
	return c.JSON(http.StatusOK, core.ChatResponse{
		Model:         model,
		CreatedAt:     h.timestamp(),
		Message:       core.Message{Role: "assistant", Content: result.Text},
		Done:          true,
		DoneReason:    core.DoneReasonStop,
		TotalDuration: &total,
	})
}

// Generate handles POST /api/generate
func (h *Handler) Generate(c echo.Context) error {
	ex := h.begin(c, endpointGenerate)

	var payload generatePayload
	raw, err := decodeBody(c, &payload)
	if err != nil {
		return h.bodyError(c, ex, err)
	}
	ex.logStart(raw)

	userPrompt := strings.TrimSpace(payload.Prompt)
	if userPrompt == "" {
		return h.fail(c, ex, core.NewInvalidRequestError("prompt is required", nil))
	}

	model := h.modelOrDefault(payload.Model)
	system := strings.TrimSpace(payload.System)
	ex.entry.Model = model
	ex.entry.Stream = payload.Stream
	if ex.data != nil {
		ex.data.Request = core.GenerateRequest{Model: model, Prompt: userPrompt, System: system, Stream: payload.Stream}
	}

	result, err := h.invoke(c, ex, model, h.prompts.BuildGenerate(userPrompt, system))
	if err != nil {
		return h.fail(c, ex, err)
	}

	if payload.Stream {
		return h.stream(c, ex, result.Text, func(f stream.Frame) any {
			return core.GenerateResponse{
				Model:      model,
				CreatedAt:  h.timestamp(),
				Response:   f.Content,
				Done:       f.Done,
				DoneReason: f.DoneReason,
			}
		})
	}

	var total int64
	h.finish(ex, http.StatusOK, nil)
	return c.JSON(http.StatusOK, core.GenerateResponse{
		Model:         model,
		CreatedAt:     h.timestamp(),
		Response:      result.Text,
		Done:          true,
		DoneReason:    core.DoneReasonStop,
		TotalDuration: &total,
	})
}

// invoke resolves the runner and dispatches the prompt. An unrecognized
// model never reaches a backend.
func (h *Handler) invoke(c echo.Context, ex *exchange, model, builtPrompt string) (*core.BridgeResult, error) {
	sel, err := h.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	ex.entry.Backend = sel.Backend.String()
	ex.entry.ResolvedModel = sel.ResolvedModel
	ex.entry.PromptChars = utf8.RuneCountInString(builtPrompt)

	result, err := h.dispatcher.Dispatch(c.Request().Context(), sel, builtPrompt)
	if err != nil {
		return nil, err
	}
	ex.answer = result.Text
	ex.entry.ResponseChars = utf8.RuneCountInString(result.Text)
	if ex.data != nil {
		ex.data.ResponseText = result.Text
		ex.data.RawEvents = journal.DecodeEvents(result.RawEvents)
	}
	return result, nil
}

// stream writes text as NDJSON frames, flushing each one. It stops quietly
// when a write fails or the client goes away.
func (h *Handler) stream(c echo.Context, ex *exchange, text string, render func(stream.Frame) any) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, ContentTypeNDJSON)
	res.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	enc := json.NewEncoder(res)
	enc.SetEscapeHTML(false)

	frames := stream.Emulate(text, h.chunkSize)
	written := 0
	completed := false

write:
	for _, f := range frames {
		if ctx.Err() != nil {
			break
		}
		if err := enc.Encode(render(f)); err != nil {
			slog.Debug("stream write failed", "request_id", ex.entry.RequestID, "error", err)
			break
		}
		res.Flush()
		written++
		if f.Done {
			completed = true
			break
		}
		if h.frameDelay > 0 {
			timer := time.NewTimer(h.frameDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				break write
			case <-timer.C:
			}
		}
	}

	ex.entry.Frames = written
	h.metrics.ObserveStream(ex.entry.Endpoint, written, completed)
	slog.Info("stream done",
		"request_id", ex.entry.RequestID,
		"endpoint", ex.entry.Endpoint,
		"chunks", written,
		"chars", utf8.RuneCountInString(text),
		"completed", completed,
	)
	h.finish(ex, http.StatusOK, nil)
	return nil
}

// handleError converts an error into the {"error": msg} response
func handleError(c echo.Context, err error) error {
	gatewayErr := core.AsGatewayError(err)
	return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
}

func (h *Handler) fail(c echo.Context, ex *exchange, err error) error {
	gatewayErr := core.AsGatewayError(err)
	status := gatewayErr.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "request_id", ex.entry.RequestID, "endpoint", ex.entry.Endpoint,
			"status", status, "error", gatewayErr.Message)
	} else {
		slog.Warn("request rejected", "request_id", ex.entry.RequestID, "endpoint", ex.entry.Endpoint,
			"status", status, "error", gatewayErr.Message)
	}
	h.finish(ex, status, gatewayErr)
	return handleError(c, gatewayErr)
}

// bodyError rejects an unreadable body. Oversized bodies keep their 413.
func (h *Handler) bodyError(c echo.Context, ex *exchange, err error) error {
	var tooLarge *http.MaxBytesError
	var httpErr *echo.HTTPError
	if errors.As(err, &tooLarge) || (errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge) {
		h.finish(ex, http.StatusRequestEntityTooLarge, nil)
		return echo.ErrStatusRequestEntityTooLarge
	}
	return h.fail(c, ex, core.NewInvalidRequestError("Invalid JSON body", err))
}

func (h *Handler) modelOrDefault(model string) string {
	if strings.TrimSpace(model) == "" {
		return h.defaultModel
	}
	return model
}

func (h *Handler) timestamp() string {
	return core.Timestamp(h.now(), h.location)
}

// exchange accumulates the journal entry for one request.
type exchange struct {
	start  time.Time
	entry  *journal.Entry
	data   *journal.EntryData
	answer string
}

func (h *Handler) begin(c echo.Context, endpoint string) *exchange {
	start := h.now()
	ex := &exchange{
		start: start,
		entry: &journal.Entry{
			ID:        uuid.NewString(),
			Timestamp: start,
			RequestID: requestIDFrom(c),
			Endpoint:  endpoint,
		},
	}
	if h.journal.Config().LogBodies {
		ex.data = &journal.EntryData{}
	}
	return ex
}

func (ex *exchange) logStart(raw []byte) {
	slog.Info("request received",
		"request_id", ex.entry.RequestID,
		"endpoint", ex.entry.Endpoint,
		"body", string(raw),
	)
}

func (h *Handler) finish(ex *exchange, status int, gatewayErr *core.GatewayError) {
	ex.entry.DurationNs = h.now().Sub(ex.start).Nanoseconds()
	ex.entry.StatusCode = status
	if gatewayErr != nil {
		ex.entry.ErrorType = string(gatewayErr.Type)
		ex.entry.ErrorMessage = gatewayErr.Message
	}
	if ex.data != nil && (ex.data.Request != nil || ex.data.ResponseText != "") {
		ex.entry.Data = ex.data
	}
	slog.Info("request finished",
		"request_id", ex.entry.RequestID,
		"endpoint", ex.entry.Endpoint,
		"model", ex.entry.Model,
		"backend", ex.entry.Backend,
		"status", status,
		"duration", time.Duration(ex.entry.DurationNs),
		"response", ex.answer,
	)
	h.journal.Write(ex.entry)
}

// decodeBody reads the request body into v. An empty body decodes as {}.
func decodeBody(c echo.Context, v any) ([]byte, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return raw, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return raw, errors.New("request body must be a JSON object")
	}
	return raw, json.Unmarshal(raw, v)
}
