package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/innkeeper/internal/pkg"
)

// Recovery returns a gin middleware that recovers from panics, logs the
// value with its stack trace and answers with the standard JSON envelope:
//
//	{"code": 500, "message": "internal server error", "data": null}
//
// A panic caused by a client that went away is logged without a stack and
// no response is attempted.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			attrs := []any{
				slog.Any("panic", rec),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
			}

			if brokenPipe(rec) {
				logger.WarnContext(ctx, "connection closed by client", attrs...)
				_ = c.Error(asError(rec))
				c.Abort()
				return
			}

			logger.ErrorContext(ctx, "panic recovered",
				append(attrs, slog.String("stack", string(debug.Stack())))...)
			c.AbortWithStatusJSON(http.StatusInternalServerError, pkg.Response{
				Code:    http.StatusInternalServerError,
				Message: "internal server error",
			})
		}()
		c.Next()
	}
}

// brokenPipe reports whether a panic value is a write to a closed connection.
func brokenPipe(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var netErr *net.OpError
	if !errors.As(err, &netErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(netErr, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}

func asError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return errors.New("panic")
}
