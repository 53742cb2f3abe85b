// Package core defines the core interfaces and types for the bridge.
package core

import "context"

// Invoker executes one blocking backend call. Implementations enforce their
// own timeout and return typed *GatewayError failures.
type Invoker interface {
	// Name returns the backend name used in errors, logs and metrics.
	Name() string

	// Invoke sends prompt to the backend and returns its final answer.
	Invoke(ctx context.Context, prompt, resolvedModel string) (*BridgeResult, error)
}

// Dispatcher routes an invocation to the invoker for the selected backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, sel RunnerSelection, prompt string) (*BridgeResult, error)
}
