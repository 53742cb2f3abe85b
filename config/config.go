// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBodySizeLimit is the maximum accepted request body (10MB).
const DefaultBodySizeLimit int64 = 10 * 1024 * 1024

// DefaultDetailInstruction steers backend answers toward natural prose.
const DefaultDetailInstruction = "Always respond in the user's language environment and match the language used in the user's request unless explicitly asked otherwise. Respond naturally and conversationally. Prefer flowing prose and avoid forced numbered or bullet lists unless the user explicitly asks for list format. Give enough detail to be useful while keeping the flow smooth and readable."

// Gemini auth modes. "google" drives the CLI, "api" the remote endpoint.
const (
	AuthModeGoogle = "google"
	AuthModeAPI    = "api"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Codex    CodexConfig    `yaml:"codex"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Stream   StreamConfig   `yaml:"stream"`
	Startup  StartupConfig  `yaml:"startup"`
	Settings SettingsConfig `yaml:"settings"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Journal  JournalConfig  `yaml:"journal"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	BodySizeLimit int64  `yaml:"body_size_limit"`
}

// BridgeConfig controls prompt shaping and response rendering.
type BridgeConfig struct {
	// ModelName is reported when a request omits "model" and is the primary
	// backend's default label.
	ModelName         string `yaml:"model_name"`
	DetailMode        string `yaml:"detail_mode"`
	DetailInstruction string `yaml:"detail_instruction"`
	// Timezone is the IANA zone used for created_at timestamps.
	Timezone string `yaml:"timezone"`
}

// CodexConfig configures the primary agent CLI.
type CodexConfig struct {
	Bin            string `yaml:"bin"`
	Model          string `yaml:"model"`
	Verbosity      string `yaml:"verbosity"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// GeminiConfig configures the secondary backend in both its variants.
type GeminiConfig struct {
	Bin        string `yaml:"bin"`
	Model      string `yaml:"model"`
	APIBaseURL string `yaml:"api_base_url"`
	AuthMode   string `yaml:"auth_mode"`
	APIKey     string `yaml:"api_key"`
}

// StreamConfig configures the streaming emulator.
type StreamConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	FrameDelayMs int `yaml:"frame_delay_ms"`
}

// StartupConfig configures the readiness probe.
type StartupConfig struct {
	CheckEnabled   bool `yaml:"check_enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	Strict         bool `yaml:"strict"`
}

// SettingsConfig locates the persisted settings and secrets files.
type SettingsConfig struct {
	Dir string `yaml:"dir"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// JournalConfig controls the exchange journal.
type JournalConfig struct {
	Enabled       bool `yaml:"enabled"`
	LogBodies     bool `yaml:"log_bodies"`
	BufferSize    int  `yaml:"buffer_size"`
	FlushInterval int  `yaml:"flush_interval"`
	RetentionDays int  `yaml:"retention_days"`
}

// StorageConfig selects the journal backend.
type StorageConfig struct {
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Dir receives the append-only log file; empty disables the file sink.
	Dir string `yaml:"dir"`
}

// CodexTimeout returns the per-invocation backend timeout.
func (c *Config) CodexTimeout() time.Duration {
	return time.Duration(c.Codex.TimeoutSeconds) * time.Second
}

// StartupTimeout returns the per-probe timeout.
func (c *Config) StartupTimeout() time.Duration {
	return time.Duration(c.Startup.TimeoutSeconds) * time.Second
}

// FrameDelay returns the pause between streamed frames.
func (c *Config) FrameDelay() time.Duration {
	return time.Duration(c.Stream.FrameDelayMs) * time.Millisecond
}

// Location resolves the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Bridge.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// configPaths are probed in order; the first existing file wins.
var configPaths = []string{"config/config.yaml", "config.yaml"}

// Load reads configuration from .env, an optional config.yaml and the environment.
// Precedence: environment > config.yaml > defaults.
func Load() (*Config, error) {
	// Optional; never overrides variables already set in the process.
	_ = godotenv.Load()

	cfg := defaultConfig()

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		break
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          "11435",
			BodySizeLimit: DefaultBodySizeLimit,
		},
		Bridge: BridgeConfig{
			ModelName:         "codex",
			DetailMode:        "high",
			DetailInstruction: DefaultDetailInstruction,
			Timezone:          "Asia/Seoul",
		},
		Codex: CodexConfig{
			Bin:            "codex",
			Verbosity:      "high",
			TimeoutSeconds: 120,
		},
		Gemini: GeminiConfig{
			Bin:        "gemini",
			APIBaseURL: "https://generativelanguage.googleapis.com/v1beta",
		},
		Stream: StreamConfig{
			ChunkSize:    40,
			FrameDelayMs: 10,
		},
		Startup: StartupConfig{
			CheckEnabled:   true,
			TimeoutSeconds: 15,
		},
		Settings: SettingsConfig{Dir: "."},
		Metrics:  MetricsConfig{Endpoint: "/metrics"},
		Journal: JournalConfig{
			BufferSize:    1000,
			FlushInterval: 5,
			RetentionDays: 30,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/agentbridge.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "agentbridge"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "pretty",
			Dir:    "logs",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "BRIDGE_HOST")
	setString(&cfg.Server.Port, "BRIDGE_PORT")
	setInt64(&cfg.Server.BodySizeLimit, "BODY_SIZE_LIMIT")

	setTrimmed(&cfg.Bridge.ModelName, "BRIDGE_MODEL_NAME")
	setLower(&cfg.Bridge.DetailMode, "DETAIL_MODE")
	if v, ok := os.LookupEnv("DETAIL_SYSTEM_INSTRUCTION"); ok {
		cfg.Bridge.DetailInstruction = strings.TrimSpace(v)
	}
	setTrimmed(&cfg.Bridge.Timezone, "BRIDGE_TIMEZONE")

	setString(&cfg.Codex.Bin, "CODEX_BIN")
	setTrimmed(&cfg.Codex.Model, "CODEX_MODEL")
	setLower(&cfg.Codex.Verbosity, "CODEX_MODEL_VERBOSITY")
	setInt(&cfg.Codex.TimeoutSeconds, "CODEX_TIMEOUT_SECONDS")

	setString(&cfg.Gemini.Bin, "GEMINI_BIN")
	setTrimmed(&cfg.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.Gemini.APIBaseURL, "GEMINI_API_BASE_URL")
	setLower(&cfg.Gemini.AuthMode, "GEMINI_AUTH_MODE")
	setTrimmed(&cfg.Gemini.APIKey, "GOOGLE_API_KEY")
	setTrimmed(&cfg.Gemini.APIKey, "GEMINI_API_KEY")

	setInt(&cfg.Stream.ChunkSize, "STREAM_CHUNK_SIZE")
	setInt(&cfg.Stream.FrameDelayMs, "STREAM_FRAME_DELAY_MS")

	setBool(&cfg.Startup.CheckEnabled, "STARTUP_CHECK_ENABLED")
	setInt(&cfg.Startup.TimeoutSeconds, "STARTUP_CHECK_TIMEOUT_SECONDS")
	setBool(&cfg.Startup.Strict, "STARTUP_CHECK_STRICT")

	setString(&cfg.Settings.Dir, "SETTINGS_DIR")

	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	setString(&cfg.Metrics.Endpoint, "METRICS_ENDPOINT")

	setBool(&cfg.Journal.Enabled, "JOURNAL_ENABLED")
	setBool(&cfg.Journal.LogBodies, "JOURNAL_LOG_BODIES")
	setInt(&cfg.Journal.BufferSize, "JOURNAL_BUFFER_SIZE")
	setInt(&cfg.Journal.FlushInterval, "JOURNAL_FLUSH_INTERVAL")
	setInt(&cfg.Journal.RetentionDays, "JOURNAL_RETENTION_DAYS")

	setLower(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Storage.SQLite.Path, "SQLITE_PATH")
	setString(&cfg.Storage.PostgreSQL.URL, "POSTGRES_URL")
	setInt(&cfg.Storage.PostgreSQL.MaxConns, "POSTGRES_MAX_CONNS")
	setString(&cfg.Storage.MongoDB.URL, "MONGODB_URL")
	setString(&cfg.Storage.MongoDB.Database, "MONGODB_DATABASE")

	setLower(&cfg.Log.Level, "LOG_LEVEL")
	setLower(&cfg.Log.Format, "LOG_FORMAT")
	if v, ok := os.LookupEnv("LOG_DIR"); ok {
		cfg.Log.Dir = strings.TrimSpace(v)
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Codex.TimeoutSeconds <= 0 {
		return fmt.Errorf("CODEX_TIMEOUT_SECONDS must be positive, got %d", c.Codex.TimeoutSeconds)
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("STREAM_CHUNK_SIZE must be positive, got %d", c.Stream.ChunkSize)
	}
	if c.Stream.FrameDelayMs < 0 {
		return fmt.Errorf("STREAM_FRAME_DELAY_MS must not be negative, got %d", c.Stream.FrameDelayMs)
	}
	if c.Startup.TimeoutSeconds <= 0 {
		c.Startup.TimeoutSeconds = 15
	}
	switch c.Gemini.AuthMode {
	case "", AuthModeGoogle, AuthModeAPI:
	default:
		// Unknown modes fall through to the persisted or interactive choice.
		c.Gemini.AuthMode = ""
	}
	if c.Bridge.ModelName == "" {
		c.Bridge.ModelName = "codex"
	}
	return nil
}

// IsTruthy reports whether s is one of 1, true, yes, on (case-insensitive).
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setTrimmed(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setLower(dst *string, key string) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = IsTruthy(v)
	}
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders.
// Unresolved placeholders without a default are left untouched.
func expandString(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		name, hasDefault, fallback := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return fallback
		}
		return match
	})
}
