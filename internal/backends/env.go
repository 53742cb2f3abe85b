package backends

import (
	"sort"
	"strings"
)

// EnvSpec describes how a child environment differs from its base.
type EnvSpec struct {
	// Defaults are applied only when the key is absent from the base.
	Defaults map[string]string
	// Overrides always win.
	Overrides map[string]string
	// Remove drops keys before Defaults and Overrides are applied.
	Remove []string
}

// BuildEnv applies spec to base (KEY=VALUE entries) and returns a sorted
// environment suitable for exec.Cmd.Env.
func BuildEnv(base []string, spec EnvSpec) []string {
	vars := make(map[string]string, len(base)+len(spec.Overrides))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}

	for _, k := range spec.Remove {
		delete(vars, k)
	}
	for k, v := range spec.Defaults {
		if _, exists := vars[k]; !exists {
			vars[k] = v
		}
	}
	for k, v := range spec.Overrides {
		vars[k] = v
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
