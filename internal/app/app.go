// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the bridge server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"agentbridge/config"
	"agentbridge/internal/backends"
	"agentbridge/internal/backends/codex"
	"agentbridge/internal/backends/gemini"
	"agentbridge/internal/core"
	"agentbridge/internal/journal"
	"agentbridge/internal/observability"
	"agentbridge/internal/probe"
	"agentbridge/internal/prompt"
	"agentbridge/internal/runner"
	"agentbridge/internal/server"
	"agentbridge/internal/settings"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config   *config.Config
	authMode string
	router   *backends.Router
	resolver *runner.Resolver
	metrics  *observability.Metrics
	journal  *journal.Result
	server   *server.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the loaded application configuration.
	AppConfig *config.Config

	// Prompter answers first-run auth questions. Nil means non-interactive.
	Prompter settings.Prompter

	// Primary and Secondary replace the configured invokers when set.
	Primary   core.Invoker
	Secondary core.Invoker

	// Registry receives the bridge metrics. Nil creates a private registry
	// with Go runtime and process collectors.
	Registry *prometheus.Registry
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	app := &App{
		config:   appCfg,
		resolver: runner.NewResolver(appCfg.Bridge.ModelName, appCfg.Gemini.Model),
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if appCfg.Metrics.Enabled {
		metrics, err := observability.NewMetrics(registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		app.metrics = metrics
	}

	primary := cfg.Primary
	if primary == nil {
		primary = codex.New(codex.Config{
			Bin:       appCfg.Codex.Bin,
			Model:     appCfg.Codex.Model,
			Verbosity: appCfg.Codex.Verbosity,
			Timeout:   appCfg.CodexTimeout(),
		})
	}

	secondary := cfg.Secondary
	if secondary == nil {
		var err error
		secondary, app.authMode, err = newSecondary(appCfg, settings.NewResolver(appCfg.Settings.Dir, cfg.Prompter))
		if err != nil {
			return nil, fmt.Errorf("failed to configure gemini backend: %w", err)
		}
	}

	router, err := backends.NewRouter(primary, secondary, app.metrics.Hooks())
	if err != nil {
		return nil, fmt.Errorf("failed to create backend router: %w", err)
	}
	app.router = router

	journalResult, err := journal.New(ctx, appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	app.journal = journalResult

	app.logStartupInfo()

	handler := server.NewHandler(router, server.HandlerOptions{
		DefaultModel: appCfg.Bridge.ModelName,
		Resolver:     app.resolver,
		Prompts:      prompt.NewBuilder(appCfg.Bridge.DetailMode, appCfg.Bridge.DetailInstruction),
		Journal:      journalResult.Journal,
		Metrics:      app.metrics,
		ChunkSize:    appCfg.Stream.ChunkSize,
		FrameDelay:   appCfg.FrameDelay(),
		Location:     appCfg.Location(),
	})

	app.server = server.New(handler, &server.Config{
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		MetricsGatherer: registry,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
	})

	return app, nil
}

// newSecondary settles the gemini auth mode once and builds the matching variant.
func newSecondary(cfg *config.Config, auth *settings.Resolver) (core.Invoker, string, error) {
	mode, err := auth.ResolveAuthMode(cfg.Gemini.AuthMode)
	if err != nil {
		return nil, "", err
	}

	if mode != settings.AuthModeAPI {
		return gemini.NewCLI(gemini.CLIConfig{
			Bin:     cfg.Gemini.Bin,
			Timeout: cfg.CodexTimeout(),
		}), mode, nil
	}

	key, err := auth.ResolveAPIKey(mode, cfg.Gemini.APIKey)
	if err != nil {
		return nil, "", err
	}
	if key == "" {
		slog.Warn("gemini auth mode is 'api' but no API key is available; gemini requests will fail")
	}
	return gemini.NewAPI(gemini.APIConfig{
		BaseURL: cfg.Gemini.APIBaseURL,
		APIKey:  key,
		Timeout: cfg.CodexTimeout(),
	}), mode, nil
}

// Addr returns the listen address.
func (a *App) Addr() string {
	return net.JoinHostPort(a.config.Server.Host, a.config.Server.Port)
}

// AuthMode returns the gemini auth mode chosen at startup. It is empty when
// the secondary invoker was supplied by the caller.
func (a *App) AuthMode() string {
	return a.authMode
}

// Server returns the HTTP server.
func (a *App) Server() *server.Server {
	return a.server
}

// CheckBackends runs the readiness probe against every backend. The error is
// non-nil only in strict mode.
func (a *App) CheckBackends(ctx context.Context, strict bool) ([]probe.Result, error) {
	names := make([]string, 0, len(core.Backends))
	for _, b := range core.Backends {
		names = append(names, b.String())
	}
	p := probe.New(a.router, a.resolver, a.config.StartupTimeout(), strict)
	return p.Run(ctx, names...)
}

// StartupCheckEnabled reports whether serve should probe backends first.
func (a *App) StartupCheckEnabled() bool {
	return a.config.Startup.CheckEnabled
}

// StartupCheckStrict reports whether a failed startup probe aborts serve.
func (a *App) StartupCheckStrict() bool {
	return a.config.Startup.Strict
}

// ListenerAddr returns the address the running server is bound to, which
// differs from Addr when the configured port is "0".
func (a *App) ListenerAddr() net.Addr {
	if a.server == nil {
		return nil
	}
	return a.server.ListenerAddr()
}

// Start starts the HTTP server on the configured address.
// This is a blocking call that returns when the server stops.
func (a *App) Start() error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	addr := a.Addr()
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first, then the journal (which flushes pending entries
// before closing its storage).
//
// Shutdown is idempotent. Every caller blocks until the first shutdown has
// finished and receives its result.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown(ctx)
	})
	return a.shutdownErr
}

func (a *App) shutdown(ctx context.Context) error {
	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			slog.Error("journal close error", "error", err)
			errs = append(errs, fmt.Errorf("journal close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("backends configured",
		"codex_bin", cfg.Codex.Bin,
		"codex_model", cfg.Codex.Model,
		"gemini_auth_mode", a.authMode,
		"timeout", cfg.CodexTimeout(),
	)

	slog.Info("bridge configured",
		"model_name", cfg.Bridge.ModelName,
		"detail_mode", cfg.Bridge.DetailMode,
		"chunk_size", cfg.Stream.ChunkSize,
		"frame_delay", cfg.FrameDelay(),
		"timezone", cfg.Location().String(),
	)

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Journal.Enabled {
		slog.Info("journal enabled",
			"storage_type", cfg.Storage.Type,
			"log_bodies", cfg.Journal.LogBodies,
			"retention_days", cfg.Journal.RetentionDays,
		)
	} else {
		slog.Info("journal disabled")
	}
}
