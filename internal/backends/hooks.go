package backends

import (
	"context"
	"time"
)

// InvokeInfo describes an invocation about to start.
type InvokeInfo struct {
	Backend     string
	Model       string
	PromptChars int
}

// InvokeOutcome describes a finished invocation. Err is nil on success.
type InvokeOutcome struct {
	Backend  string
	Model    string
	Duration time.Duration
	Err      error
}

// Hooks lets observers watch invocations without the router knowing about
// any particular metrics system. Both callbacks are optional.
type Hooks struct {
	OnInvokeStart func(ctx context.Context, info InvokeInfo) context.Context
	OnInvokeEnd   func(ctx context.Context, outcome InvokeOutcome)
}
