package settings

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Auth modes, mirrored from config to keep this package free of it.
const (
	AuthModeGoogle = "google"
	AuthModeAPI    = "api"
)

// Prompter asks the operator for first-run choices.
type Prompter interface {
	// Interactive reports whether a human can answer.
	Interactive() bool
	ReadLine(prompt string) (string, error)
	// ReadSecret reads without echoing input.
	ReadSecret(prompt string) (string, error)
}

// TerminalPrompter prompts on a terminal attached to In.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stdin and stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// Interactive implements Prompter.
func (p *TerminalPrompter) Interactive() bool {
	return p.In != nil && term.IsTerminal(int(p.In.Fd()))
}

// ReadLine implements Prompter.
func (p *TerminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadSecret implements Prompter.
func (p *TerminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	b, err := term.ReadPassword(int(p.In.Fd()))
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Resolver settles the gemini auth mode and API key once at startup.
type Resolver struct {
	Settings *Store
	Secrets  *Store
	Prompter Prompter
}

// NewResolver opens the settings and secrets files inside dir.
func NewResolver(dir string, prompter Prompter) *Resolver {
	if dir == "" {
		dir = "."
	}
	return &Resolver{
		Settings: NewStore(filepath.Join(dir, SettingsFileName), 0o644),
		Secrets:  NewStore(filepath.Join(dir, SecretsFileName), 0o600),
		Prompter: prompter,
	}
}

// ResolveAuthMode picks the auth mode in order: configured value, saved
// setting, interactive choice, then google. Anything other than a configured
// value is persisted.
func (r *Resolver) ResolveAuthMode(configured string) (string, error) {
	if mode := normalizeMode(configured); mode != "" {
		return mode, nil
	}

	values, err := r.Settings.Load()
	if err != nil {
		return "", err
	}
	if mode := normalizeMode(String(values, KeyGeminiAuthMode)); mode != "" {
		return mode, nil
	}

	mode := AuthModeGoogle
	if r.Prompter != nil && r.Prompter.Interactive() {
		mode, err = r.chooseMode(AuthModeGoogle)
		if err != nil {
			return "", err
		}
	}

	values[KeyGeminiAuthMode] = mode
	if err := r.Settings.Save(values); err != nil {
		return "", fmt.Errorf("save auth mode: %w", err)
	}
	return mode, nil
}

func (r *Resolver) chooseMode(def string) (string, error) {
	slog.Info("gemini auth mode is not configured")
	answer, err := r.Prompter.ReadLine("Choose Gemini auth mode: [1] google (default), [2] api\nSelect mode (Enter=1): ")
	if err != nil {
		return "", fmt.Errorf("read auth mode: %w", err)
	}
	mode, ok := ParseModeChoice(answer)
	if !ok {
		slog.Warn("unknown auth mode choice, using default", "choice", answer, "default", def)
		return def, nil
	}
	return mode, nil
}

// ParseModeChoice maps an interactive answer to an auth mode.
func ParseModeChoice(answer string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "2", "api", "apikey", "api-key":
		return AuthModeAPI, true
	case "1", "google", "", "g":
		return AuthModeGoogle, true
	default:
		return "", false
	}
}

// ResolveAPIKey returns the key for api mode. A configured key is written
// back to the secrets file when it differs; otherwise the saved key is used,
// then a hidden interactive entry. An empty result is not an error: api-mode
// invocations then fail with a missing credential.
func (r *Resolver) ResolveAPIKey(mode, configured string) (string, error) {
	if mode != AuthModeAPI {
		return strings.TrimSpace(configured), nil
	}

	secrets, err := r.Secrets.Load()
	if err != nil {
		return "", err
	}

	if key := strings.TrimSpace(configured); key != "" {
		if String(secrets, KeyGeminiAPIKey) != key {
			secrets[KeyGeminiAPIKey] = key
			if err := r.Secrets.Save(secrets); err != nil {
				return "", fmt.Errorf("save api key: %w", err)
			}
		}
		return key, nil
	}

	if key := String(secrets, KeyGeminiAPIKey); key != "" {
		return key, nil
	}

	if r.Prompter == nil || !r.Prompter.Interactive() {
		return "", nil
	}

	slog.Warn("gemini api mode selected but API key is missing")
	entered, err := r.Prompter.ReadSecret("Enter GEMINI_API_KEY (input hidden): ")
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	key := strings.TrimSpace(entered)
	if key == "" {
		return "", nil
	}
	secrets[KeyGeminiAPIKey] = key
	if err := r.Secrets.Save(secrets); err != nil {
		return "", fmt.Errorf("save api key: %w", err)
	}
	return key, nil
}

func normalizeMode(s string) string {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case AuthModeGoogle, AuthModeAPI:
		return m
	default:
		return ""
	}
}
