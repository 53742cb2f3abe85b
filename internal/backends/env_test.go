package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnv(t *testing.T) {
	base := []string{"PATH=/bin", "CI=1", "KEEP=a=b", "malformed", "GEMINI_API_KEY=x"}

	env := BuildEnv(base, EnvSpec{
		Remove:    []string{"CI", "GEMINI_API_KEY"},
		Defaults:  map[string]string{"CI": "true", "PATH": "/usr/bin", "NEW": "1"},
		Overrides: map[string]string{"FORCED": "yes", "KEEP": "c"},
	})

	assert.Equal(t, []string{"CI=true", "FORCED=yes", "KEEP=c", "NEW=1", "PATH=/bin"}, env)
}

func TestBuildEnv_DefaultsDoNotReplaceExisting(t *testing.T) {
	env := BuildEnv([]string{"GIT_TERMINAL_PROMPT=1"}, EnvSpec{
		Defaults: map[string]string{"GIT_TERMINAL_PROMPT": "0"},
	})
	assert.Equal(t, []string{"GIT_TERMINAL_PROMPT=1"}, env)
}
