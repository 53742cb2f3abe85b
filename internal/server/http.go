package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentbridge/config"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MetricsEnabled  bool   // Whether to expose the Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 10MB)
	// MetricsGatherer is scraped by the metrics endpoint (default: prometheus.DefaultGatherer).
	MetricsGatherer prometheus.Gatherer
}

// New creates a new HTTP server
func New(handler *Handler, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	bodySizeLimit := config.DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}

	// Global middleware stack (order matters)
	e.Use(RequestIDMiddleware())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))
	e.Use(DecodeContentEncoding(bodySizeLimit))

	e.GET("/healthz", handler.Health)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			metricsPath = path.Clean("/" + cfg.MetricsEndpoint)
		}
		gatherer := cfg.MetricsGatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	e.GET("/api/tags", handler.Tags)
	e.POST("/api/chat", handler.Chat)
	e.POST("/api/generate", handler.Generate)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// ListenerAddr returns the bound address, or nil before Start has opened
// the listener.
func (s *Server) ListenerAddr() net.Addr {
	return s.echo.ListenerAddr()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// httpErrorHandler renders framework errors in the bridge's {"error": msg}
// shape. Unknown routes and wrong methods both answer 404.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch status {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			status = http.StatusNotFound
			msg = "Not found"
		case http.StatusRequestEntityTooLarge:
			msg = "Request body too large"
		default:
			msg = http.StatusText(status)
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
		}
	} else {
		slog.Error("unhandled error", "request_id", requestIDFrom(c), "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, map[string]string{"error": msg})
	}
	if writeErr != nil {
		slog.Debug("failed to write error response", "error", writeErr)
	}
}
