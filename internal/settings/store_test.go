package settings

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), SettingsFileName), 0o644)

	values, err := s.Load()

	require.NoError(t, err)
	assert.Empty(t, values)
	assert.NotNil(t, values)
}

func TestStore_LoadCorrupt(t *testing.T) {
	for name, content := range map[string]string{
		"garbage": "{not json",
		"array":   `["a","b"]`,
		"null":    `null`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), SettingsFileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			values, err := NewStore(path, 0o644).Load()

			require.NoError(t, err)
			assert.Empty(t, values)
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", SecretsFileName)
	s := NewStore(path, 0o600)

	require.NoError(t, s.Save(map[string]any{"b": "ünïcode <x>", "a": float64(2)}))

	values, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(2), "b": "ünïcode <x>"}, values)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 2,\n  \"b\": \"ünïcode <x>\"\n}\n", string(raw))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestString(t *testing.T) {
	values := map[string]any{"s": "  api ", "n": 3}
	assert.Equal(t, "api", String(values, "s"))
	assert.Equal(t, "", String(values, "n"))
	assert.Equal(t, "", String(values, "missing"))
}
