package server

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"agentbridge/internal/core"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// NewRequestID returns a short random id.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// RequestIDMiddleware preserves a client-supplied X-Request-ID or generates
// one, echoes it in the response and stores it in the request context.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := strings.TrimSpace(req.Header.Get(HeaderRequestID))
			if id == "" {
				id = NewRequestID()
			}
			c.Response().Header().Set(HeaderRequestID, id)
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

func requestIDFrom(c echo.Context) string {
	return core.GetRequestID(c.Request().Context())
}

// RequestLogger logs one line per finished request.
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("request_id", requestIDFrom(c)),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				level = slog.LevelWarn
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// DecodeContentEncoding transparently decodes gzip, deflate and br request
// bodies. The decoded body is capped at limit bytes.
func DecodeContentEncoding(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			encoding := strings.ToLower(strings.TrimSpace(strings.Split(req.Header.Get(echo.HeaderContentEncoding), ",")[0]))
			if encoding == "" || encoding == "identity" || req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			var decoded io.ReadCloser
			switch encoding {
			case "gzip":
				zr, err := gzip.NewReader(req.Body)
				if err != nil {
					return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
				}
				decoded = zr
			case "deflate":
				decoded = flate.NewReader(req.Body)
			case "br":
				decoded = io.NopCloser(brotli.NewReader(req.Body))
			default:
				return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": "Unsupported Content-Encoding: " + encoding})
			}

			req.Body = http.MaxBytesReader(c.Response(), decoded, limit)
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			req.ContentLength = -1
			return next(c)
		}
	}
}
