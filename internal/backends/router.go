package backends

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"agentbridge/internal/core"
)

// Router dispatches a RunnerSelection to the invoker serving its backend.
// It is safe for concurrent use; each call is independent.
type Router struct {
	primary   core.Invoker
	secondary core.Invoker
	hooks     Hooks
}

// NewRouter creates a router over exactly one invoker per backend.
func NewRouter(primary, secondary core.Invoker, hooks Hooks) (*Router, error) {
	if primary == nil || secondary == nil {
		return nil, errors.New("router requires a primary and a secondary invoker")
	}
	return &Router{primary: primary, secondary: secondary, hooks: hooks}, nil
}

// Invoker returns the invoker registered for backend.
func (r *Router) Invoker(backend core.Backend) (core.Invoker, bool) {
	switch backend {
	case core.BackendPrimary:
		return r.primary, true
	case core.BackendSecondary:
		return r.secondary, true
	default:
		return nil, false
	}
}

// Dispatch invokes the selected backend once. There are no retries.
func (r *Router) Dispatch(ctx context.Context, sel core.RunnerSelection, prompt string) (*core.BridgeResult, error) {
	inv, ok := r.Invoker(sel.Backend)
	if !ok {
		return nil, core.NewUnrecognizedRunnerError(sel.ResolvedModel)
	}

	info := InvokeInfo{
		Backend:     inv.Name(),
		Model:       sel.ResolvedModel,
		PromptChars: utf8.RuneCountInString(prompt),
	}
	if r.hooks.OnInvokeStart != nil {
		ctx = r.hooks.OnInvokeStart(ctx, info)
	}

	start := time.Now()
	result, err := inv.Invoke(ctx, prompt, sel.ResolvedModel)
	elapsed := time.Since(start)

	if r.hooks.OnInvokeEnd != nil {
		r.hooks.OnInvokeEnd(ctx, InvokeOutcome{
			Backend:  info.Backend,
			Model:    info.Model,
			Duration: elapsed,
			Err:      err,
		})
	}

	attrs := []any{
		"request_id", core.GetRequestID(ctx),
		"backend", info.Backend,
		"model", info.Model,
		"prompt_chars", info.PromptChars,
		"duration", elapsed,
	}
	switch {
	case err == nil:
		slog.Info("backend invocation completed",
			append(attrs, "response_chars", utf8.RuneCountInString(result.Text), "events", len(result.RawEvents))...)
	case core.IsTimeout(err):
		slog.Warn("backend invocation timed out", append(attrs, "error", err)...)
	default:
		slog.Error("backend invocation failed", append(attrs, "error", err)...)
	}
	return result, err
}
