// Package runner classifies requested model names into backend selections.
package runner

import (
	"strings"

	"agentbridge/internal/core"
)

// FallbackSecondaryModel is used for the bare "gemini" name when no default is configured.
const FallbackSecondaryModel = "gemini-2.5-flash"

const (
	primaryPrefix   = "codex"
	secondaryPrefix = "gemini"
)

// Resolver maps model names to a RunnerSelection. The zero value is usable:
// it labels unnamed requests "codex" and uses FallbackSecondaryModel.
type Resolver struct {
	// DefaultModel labels requests that name no model.
	DefaultModel string
	// DefaultSecondaryModel replaces the bare secondary name.
	DefaultSecondaryModel string
}

// NewResolver creates a Resolver with the given defaults.
func NewResolver(defaultModel, defaultSecondaryModel string) *Resolver {
	return &Resolver{
		DefaultModel:          strings.TrimSpace(defaultModel),
		DefaultSecondaryModel: strings.TrimSpace(defaultSecondaryModel),
	}
}

// Resolve classifies modelName. Names that are empty or start with "codex"
// select the primary backend; names starting with "gemini" select the
// secondary one. Anything else fails with an unrecognized-runner error.
func (r *Resolver) Resolve(modelName string) (core.RunnerSelection, error) {
	trimmed := strings.TrimSpace(modelName)
	normalized := strings.ToLower(trimmed)

	switch {
	case normalized == "":
		return core.RunnerSelection{Backend: core.BackendPrimary, ResolvedModel: r.defaultModel()}, nil
	case strings.HasPrefix(normalized, primaryPrefix):
		return core.RunnerSelection{Backend: core.BackendPrimary, ResolvedModel: trimmed}, nil
	case strings.HasPrefix(normalized, secondaryPrefix):
		return core.RunnerSelection{Backend: core.BackendSecondary, ResolvedModel: r.secondaryModel(trimmed)}, nil
	default:
		return core.RunnerSelection{}, core.NewUnrecognizedRunnerError(modelName)
	}
}

func (r *Resolver) defaultModel() string {
	if r.DefaultModel != "" {
		return r.DefaultModel
	}
	return primaryPrefix
}

func (r *Resolver) secondaryModel(trimmed string) string {
	if strings.ToLower(trimmed) != secondaryPrefix {
		return trimmed
	}
	if r.DefaultSecondaryModel != "" {
		return r.DefaultSecondaryModel
	}
	return FallbackSecondaryModel
}
