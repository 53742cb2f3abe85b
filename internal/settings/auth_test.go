package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	interactive bool
	line        string
	secret      string
	err         error

	lines   int
	secrets int
}

func (f *fakePrompter) Interactive() bool { return f.interactive }

func (f *fakePrompter) ReadLine(string) (string, error) {
	f.lines++
	return f.line, f.err
}

func (f *fakePrompter) ReadSecret(string) (string, error) {
	f.secrets++
	return f.secret, f.err
}

func savedMode(t *testing.T, r *Resolver) string {
	t.Helper()
	values, err := r.Settings.Load()
	require.NoError(t, err)
	return String(values, KeyGeminiAuthMode)
}

func TestResolveAuthMode_ConfiguredWins(t *testing.T) {
	p := &fakePrompter{interactive: true, line: "2"}
	r := NewResolver(t.TempDir(), p)
	require.NoError(t, r.Settings.Save(map[string]any{KeyGeminiAuthMode: "api"}))

	mode, err := r.ResolveAuthMode("GOOGLE")

	require.NoError(t, err)
	assert.Equal(t, AuthModeGoogle, mode)
	assert.Zero(t, p.lines)
	assert.Equal(t, "api", savedMode(t, r))
}

func TestResolveAuthMode_SavedSetting(t *testing.T) {
	p := &fakePrompter{interactive: true}
	r := NewResolver(t.TempDir(), p)
	require.NoError(t, r.Settings.Save(map[string]any{KeyGeminiAuthMode: " API ", "other": "kept"}))

	mode, err := r.ResolveAuthMode("")

	require.NoError(t, err)
	assert.Equal(t, AuthModeAPI, mode)
	assert.Zero(t, p.lines)
}

func TestResolveAuthMode_InteractiveChoicePersisted(t *testing.T) {
	p := &fakePrompter{interactive: true, line: "api-key"}
	r := NewResolver(t.TempDir(), p)
	require.NoError(t, r.Settings.Save(map[string]any{"other": "kept"}))

	mode, err := r.ResolveAuthMode("")

	require.NoError(t, err)
	assert.Equal(t, AuthModeAPI, mode)
	assert.Equal(t, 1, p.lines)
	assert.Equal(t, "api", savedMode(t, r))

	values, err := r.Settings.Load()
	require.NoError(t, err)
	assert.Equal(t, "kept", values["other"])
}

func TestResolveAuthMode_UnknownChoiceFallsBack(t *testing.T) {
	r := NewResolver(t.TempDir(), &fakePrompter{interactive: true, line: "maybe"})

	mode, err := r.ResolveAuthMode("")

	require.NoError(t, err)
	assert.Equal(t, AuthModeGoogle, mode)
}

func TestResolveAuthMode_NonInteractiveDefault(t *testing.T) {
	p := &fakePrompter{interactive: false}
	r := NewResolver(t.TempDir(), p)

	mode, err := r.ResolveAuthMode("")

	require.NoError(t, err)
	assert.Equal(t, AuthModeGoogle, mode)
	assert.Zero(t, p.lines)
	assert.Equal(t, "google", savedMode(t, r))
}

func TestResolveAuthMode_PromptError(t *testing.T) {
	r := NewResolver(t.TempDir(), &fakePrompter{interactive: true, err: errors.New("eof")})

	_, err := r.ResolveAuthMode("")
	assert.Error(t, err)
}

func TestParseModeChoice(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"", AuthModeGoogle, true},
		{"1", AuthModeGoogle, true},
		{" G ", AuthModeGoogle, true},
		{"google", AuthModeGoogle, true},
		{"2", AuthModeAPI, true},
		{"APIKEY", AuthModeAPI, true},
		{"3", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseModeChoice(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
	}
}

func TestResolveAPIKey_GoogleModeSkipsSecrets(t *testing.T) {
	p := &fakePrompter{interactive: true}
	r := NewResolver(t.TempDir(), p)

	key, err := r.ResolveAPIKey(AuthModeGoogle, "")

	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Zero(t, p.secrets)
	assert.NoFileExists(t, r.Secrets.Path())
}

func TestResolveAPIKey_ConfiguredKeyWrittenBack(t *testing.T) {
	r := NewResolver(t.TempDir(), nil)
	require.NoError(t, r.Secrets.Save(map[string]any{KeyGeminiAPIKey: "old"}))

	key, err := r.ResolveAPIKey(AuthModeAPI, " fresh ")

	require.NoError(t, err)
	assert.Equal(t, "fresh", key)
	secrets, err := r.Secrets.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", secrets[KeyGeminiAPIKey])
}

func TestResolveAPIKey_SavedKey(t *testing.T) {
	p := &fakePrompter{interactive: true, secret: "typed"}
	r := NewResolver(t.TempDir(), p)
	require.NoError(t, r.Secrets.Save(map[string]any{KeyGeminiAPIKey: "saved"}))

	key, err := r.ResolveAPIKey(AuthModeAPI, "")

	require.NoError(t, err)
	assert.Equal(t, "saved", key)
	assert.Zero(t, p.secrets)
}

func TestResolveAPIKey_InteractiveEntry(t *testing.T) {
	p := &fakePrompter{interactive: true, secret: "  typed-key\n"}
	r := NewResolver(t.TempDir(), p)

	key, err := r.ResolveAPIKey(AuthModeAPI, "")

	require.NoError(t, err)
	assert.Equal(t, "typed-key", key)
	secrets, err := r.Secrets.Load()
	require.NoError(t, err)
	assert.Equal(t, "typed-key", secrets[KeyGeminiAPIKey])
}

func TestResolveAPIKey_NonInteractiveMissing(t *testing.T) {
	r := NewResolver(t.TempDir(), &fakePrompter{interactive: false})

	key, err := r.ResolveAPIKey(AuthModeAPI, "")

	require.NoError(t, err)
	assert.Empty(t, key)
}
