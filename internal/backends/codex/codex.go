// Package codex invokes the codex agent CLI in non-interactive exec mode.
package codex

import (
	"context"
	"os"
	"time"

	"agentbridge/internal/backends"
	"agentbridge/internal/core"
)

// Name is the backend name used in errors, logs and metrics.
const Name = "codex"

// Config configures the codex invoker.
type Config struct {
	Bin string
	// Model is passed through --model when non-empty. The model named in the
	// request is not forwarded.
	Model string
	// Verbosity is passed as model_verbosity when it is low, medium or high.
	Verbosity string
	Timeout   time.Duration
}

// Invoker runs `codex exec` once per call with the prompt on stdin.
type Invoker struct {
	cfg Config
}

var _ core.Invoker = (*Invoker)(nil)

// New creates a codex invoker.
func New(cfg Config) *Invoker {
	return &Invoker{cfg: cfg}
}

// Name implements core.Invoker.
func (i *Invoker) Name() string { return Name }

// Args returns the exec arguments, ending with "-" so the prompt is read from stdin.
func (i *Invoker) Args() []string {
	args := []string{"exec", "--skip-git-repo-check", "--json"}
	if i.cfg.Model != "" {
		args = append(args, "--model", i.cfg.Model)
	}
	switch i.cfg.Verbosity {
	case "low", "medium", "high":
		args = append(args, "-c", `model_verbosity="`+i.cfg.Verbosity+`"`)
	}
	return append(args, "-")
}

// Invoke implements core.Invoker.
func (i *Invoker) Invoke(ctx context.Context, prompt, _ string) (*core.BridgeResult, error) {
	res, err := backends.RunCommand(ctx, Name, backends.Command{
		Path: i.cfg.Bin,
		Args: i.Args(),
		Env: backends.BuildEnv(os.Environ(), backends.EnvSpec{
			Defaults: map[string]string{"CI": "true", "GIT_TERMINAL_PROMPT": "0"},
		}),
		Stdin:   &prompt,
		Timeout: i.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	events := ParseEvents(res.Stdout)
	if res.ExitCode != 0 {
		return nil, core.NewBackendExecutionError(Name, res.FailureText("codex exec failed"), nil)
	}

	answer := FinalAgentMessage(events)
	if answer == "" {
		return nil, core.NewBackendEmptyResponseError(Name, "No assistant message found in codex output")
	}
	return &core.BridgeResult{Text: answer, RawEvents: events}, nil
}
