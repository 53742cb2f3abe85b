package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentbridge/config"
	"agentbridge/internal/app"
	"agentbridge/internal/logging"
	"agentbridge/internal/settings"
	"agentbridge/internal/version"
)

const shutdownTimeout = 30 * time.Second

// bootstrap loads configuration, installs the process logger and builds the app.
func bootstrap(ctx context.Context) (*app.App, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagHost != "" {
		cfg.Server.Host = flagHost
	}
	if flagPort != "" {
		cfg.Server.Port = flagPort
	}

	logger, err := logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Dir:      cfg.Log.Dir,
		Location: cfg.Location(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger.Logger)

	slog.Info("starting agentbridge",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
		"log_file", logger.FilePath,
	)

	a, err := app.New(ctx, app.Config{
		AppConfig: cfg,
		Prompter:  settings.NewTerminalPrompter(),
	})
	if err != nil {
		_ = logger.Close()
		return nil, nil, err
	}
	return a, logger, nil
}

// lifecycle is the part of the app serve drives.
type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer logger.Close()

	if a.StartupCheckEnabled() {
		if _, err := a.CheckBackends(ctx, a.StartupCheckStrict()); err != nil {
			shutdown(a, shutdownTimeout)
			return err
		}
	}

	return serve(ctx, a, shutdownTimeout)
}

// serve runs the server until it stops on its own or ctx is cancelled, then
// shuts it down and waits for both Start and Shutdown to return, so in-flight
// streams and journal writes finish before the process exits.
func serve(ctx context.Context, lc lifecycle, timeout time.Duration) error {
	startErr := make(chan error, 1)
	go func() {
		startErr <- lc.Start()
	}()

	select {
	case err := <-startErr:
		shutdown(lc, timeout)
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdown(lc, timeout)
	return <-startErr
}

func shutdown(lc lifecycle, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := lc.Shutdown(ctx); err != nil {
		slog.Error("application shutdown error", "error", err)
	}
}

func runProbe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer logger.Close()
	defer a.Shutdown(context.Background())

	results, err := a.CheckBackends(ctx, true)
	for _, r := range results {
		status := "READY"
		if !r.OK {
			status = "FAIL"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-8s %-8s %s\n", status, r.Name, r.Duration.Round(time.Millisecond), r.Detail)
	}
	return err
}
