// Package gemini invokes the gemini backend, either through its CLI using
// the Google account login or through the remote generateContent API.
package gemini

import (
	"context"
	"os"
	"strings"
	"time"

	"agentbridge/internal/backends"
	"agentbridge/internal/core"
)

// Name is the backend name used in errors, logs and metrics.
const Name = "gemini"

// CLIConfig configures the CLI variant.
type CLIConfig struct {
	Bin     string
	Timeout time.Duration
}

// CLIInvoker runs `gemini --prompt P --model M` once per call.
type CLIInvoker struct {
	cfg CLIConfig
}

var _ core.Invoker = (*CLIInvoker)(nil)

// NewCLI creates the CLI variant of the gemini invoker.
func NewCLI(cfg CLIConfig) *CLIInvoker {
	return &CLIInvoker{cfg: cfg}
}

// Name implements core.Invoker.
func (i *CLIInvoker) Name() string { return Name }

// Args returns the CLI arguments for one call.
func (i *CLIInvoker) Args(prompt, model string) []string {
	args := []string{"--prompt", prompt}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

// cliEnv keeps the CLI on the cached Google account login.
var cliEnv = backends.EnvSpec{
	Remove:    []string{"CI", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	Defaults:  map[string]string{"GIT_TERMINAL_PROMPT": "0"},
	Overrides: map[string]string{"GOOGLE_GENAI_USE_GCA": "true"},
}

// Invoke implements core.Invoker. Stdin is not attached.
func (i *CLIInvoker) Invoke(ctx context.Context, prompt, resolvedModel string) (*core.BridgeResult, error) {
	res, err := backends.RunCommand(ctx, Name, backends.Command{
		Path:    i.cfg.Bin,
		Args:    i.Args(prompt, resolvedModel),
		Env:     backends.BuildEnv(os.Environ(), cliEnv),
		Timeout: i.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, core.NewBackendExecutionError(Name, res.FailureText("gemini cli call failed"), nil)
	}

	answer := strings.TrimSpace(res.Stdout)
	if answer == "" {
		return nil, core.NewBackendEmptyResponseError(Name, "No assistant message found in gemini output")
	}
	return &core.BridgeResult{Text: answer}, nil
}
