package middleware

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerConfig tunes the access log.
type LoggerConfig struct {
	// SkipPaths are logged only when the response is an error.
	SkipPaths []string
	// SlowThreshold raises successful requests slower than it to Warn.
	// Zero disables the check.
	SlowThreshold time.Duration
}

// Logger returns the access log middleware with the default config.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return LoggerWithConfig(logger, LoggerConfig{})
}

// LoggerWithConfig returns a gin middleware that writes one log line per
// request. The level follows the outcome: Error for 5xx, Warn for 4xx and
// slow requests, Info otherwise. Errors attached to the gin context are
// included so handler failures show their cause.
//
// Context-aware logging lets the ContextHandler attach the request_id.
func LoggerWithConfig(logger *slog.Logger, cfg LoggerConfig) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		if status < 400 && slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			return
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.String("client_ip", c.ClientIP()),
			slog.Int("bytes", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" {
			attrs = append(attrs, slog.String("route", route))
		}
		if q := c.Request.URL.RawQuery; q != "" {
			attrs = append(attrs, slog.String("query", q))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case cfg.SlowThreshold > 0 && latency > cfg.SlowThreshold:
			level = slog.LevelWarn
			attrs = append(attrs, slog.Bool("slow", true))
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}
