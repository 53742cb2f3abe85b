// Package settings persists the operator's backend choices between runs:
// the gemini auth mode in a settings file and the API key in a secrets file.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// File names inside the settings directory.
const (
	SettingsFileName = ".bridge_settings.json"
	SecretsFileName  = ".bridge_secrets.json"
)

// Keys used in the persisted maps.
const (
	KeyGeminiAuthMode = "gemini_auth_mode"
	KeyGeminiAPIKey   = "gemini_api_key"
)

// Store is a JSON object persisted in a single file.
type Store struct {
	path string
	perm fs.FileMode
}

// NewStore creates a store backed by path. Files are created with perm.
func NewStore(path string, perm fs.FileMode) *Store {
	return &Store{path: path, perm: perm}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the stored object. A missing file, or one that does not hold a
// JSON object, loads as an empty map. Only I/O failures are returned.
func (s *Store) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return map[string]any{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil || values == nil {
		slog.Warn("ignoring unreadable settings file", "path", s.path, "error", err)
		return map[string]any{}, nil
	}
	return values, nil
}

// Save replaces the stored object. Keys are written sorted and indented.
func (s *Store) Save(values map[string]any) error {
	if values == nil {
		values = map[string]any{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(values); err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := tmp.Chmod(s.perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// String reads key as a trimmed string; absent and non-string values are "".
func String(values map[string]any, key string) string {
	s, _ := values[key].(string)
	return strings.TrimSpace(s)
}
