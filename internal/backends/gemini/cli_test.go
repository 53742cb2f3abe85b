package gemini

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentbridge/internal/core"
)

func fakeGemini(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script backends require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "gemini")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCLIInvoke_TrimmedStdout(t *testing.T) {
	bin := fakeGemini(t, `printf '\n  Hello from gemini  \n\n'`)

	res, err := NewCLI(CLIConfig{Bin: bin, Timeout: 5 * time.Second}).Invoke(context.Background(), "hi", "gemini-2.5-pro")

	require.NoError(t, err)
	assert.Equal(t, "Hello from gemini", res.Text)
	assert.Empty(t, res.RawEvents)
}

func TestCLIInvoke_ArgsAndSanitizedEnv(t *testing.T) {
	t.Setenv("CI", "true")
	t.Setenv("GEMINI_API_KEY", "k1")
	t.Setenv("GOOGLE_API_KEY", "k2")
	t.Setenv("GOOGLE_GENAI_USE_GCA", "false")

	bin := fakeGemini(t, `printf '%s|%s|%s|%s|%s' "${CI-unset}" "${GEMINI_API_KEY-unset}" "${GOOGLE_API_KEY-unset}" "$GOOGLE_GENAI_USE_GCA" "$*"`)

	res, err := NewCLI(CLIConfig{Bin: bin, Timeout: 5 * time.Second}).Invoke(context.Background(), "say hi", "gemini-2.5-flash")

	require.NoError(t, err)
	assert.Equal(t, "unset|unset|unset|true|--prompt say hi --model gemini-2.5-flash", res.Text)
}

func TestCLIInvoke_StdinNotAttached(t *testing.T) {
	bin := fakeGemini(t, `if [ -t 0 ]; then echo tty; else n=$(cat | wc -c | tr -d " "); echo "stdin:$n"; fi`)

	res, err := NewCLI(CLIConfig{Bin: bin, Timeout: 5 * time.Second}).Invoke(context.Background(), "p", "gemini")

	require.NoError(t, err)
	assert.Equal(t, "stdin:0", res.Text)
}

func TestCLIInvoke_Failures(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		wantType core.ErrorType
		wantMsg  string
	}{
		{"stderr", `echo 'quota exceeded' >&2; exit 2`, core.ErrorTypeBackendExecution, "quota exceeded"},
		{"fallback", `exit 1`, core.ErrorTypeBackendExecution, "gemini cli call failed"},
		{"blank stdout", `echo '   '`, core.ErrorTypeBackendEmptyResponse, "No assistant message found in gemini output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := fakeGemini(t, tt.script)
			_, err := NewCLI(CLIConfig{Bin: bin, Timeout: 5 * time.Second}).Invoke(context.Background(), "p", "gemini")

			var gwErr *core.GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.wantType, gwErr.Type)
			assert.Equal(t, tt.wantMsg, gwErr.Message)
			assert.Equal(t, Name, gwErr.Backend)
		})
	}
}

func TestCLIInvoke_Timeout(t *testing.T) {
	bin := fakeGemini(t, `sleep 5`)
	_, err := NewCLI(CLIConfig{Bin: bin, Timeout: 150 * time.Millisecond}).Invoke(context.Background(), "p", "gemini")
	assert.True(t, core.IsTimeout(err), "expected timeout, got %v", err)
}
