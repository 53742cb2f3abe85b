// Package probe runs the startup readiness checks: one tiny prompt per
// backend, reported as READY or FAIL.
package probe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agentbridge/internal/core"
	"agentbridge/internal/logging"
	"agentbridge/internal/runner"
)

// Prompt is sent to every backend during the check.
const Prompt = "Reply with one short word only: OK"

// PreviewMaxChars bounds the answer preview reported for a ready backend.
const PreviewMaxChars = 80

// ErrNotReady is returned by Prober.Run in strict mode when any check fails.
var ErrNotReady = errors.New("startup readiness checks failed and STARTUP_CHECK_STRICT is enabled")

// Result is the outcome of one check. Detail is the answer preview when OK,
// the failure text otherwise.
type Result struct {
	Name     string
	OK       bool
	Detail   string
	Duration time.Duration
}

// Prober checks backends through the same dispatch path requests use.
type Prober struct {
	dispatcher core.Dispatcher
	resolver   *runner.Resolver
	timeout    time.Duration
	strict     bool
}

// New creates a Prober. timeout bounds each check; strict makes Run fail
// when any check fails.
func New(dispatcher core.Dispatcher, resolver *runner.Resolver, timeout time.Duration, strict bool) *Prober {
	return &Prober{dispatcher: dispatcher, resolver: resolver, timeout: timeout, strict: strict}
}

// Check probes the backend selected by model name.
func (p *Prober) Check(ctx context.Context, name string) Result {
	start := time.Now()
	res := Result{Name: name}

	sel, err := p.resolver.Resolve(name)
	if err != nil {
		res.Detail = core.AsGatewayError(err).Message
		return res
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	out, err := p.dispatcher.Dispatch(ctx, sel, Prompt)
	res.Duration = time.Since(start)
	if err != nil {
		res.Detail = core.AsGatewayError(err).Message
		return res
	}

	res.OK = true
	res.Detail = Preview(out.Text)
	return res
}

// Run checks each name in order and logs one line per result. In strict mode
// a failed check yields ErrNotReady.
func (p *Prober) Run(ctx context.Context, names ...string) ([]Result, error) {
	slog.Info("running startup readiness checks", "backends", names, "timeout", p.timeout)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		r := p.Check(ctx, name)
		if r.OK {
			slog.Info("[READY] "+r.Name, "preview", r.Detail, "duration", r.Duration)
		} else {
			slog.Warn("[FAIL ] "+r.Name, "error", r.Detail, "duration", r.Duration)
		}
		results = append(results, r)
	}

	if p.strict && AnyFailed(results) {
		return results, ErrNotReady
	}
	return results, nil
}

// AnyFailed reports whether any result is not OK.
func AnyFailed(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return true
		}
	}
	return false
}

// Preview flattens an answer to one line of at most PreviewMaxChars runes.
func Preview(text string) string {
	flat := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	return logging.Truncate(flat, PreviewMaxChars)
}
