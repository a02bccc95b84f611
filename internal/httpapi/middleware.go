package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
)

// RequestLogger logs one line per request. Query strings are left out
// because upload URLs and filters may carry tokens.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := []any{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.Error("http request", fields...)
		case status >= 400:
			slog.Warn("http request", fields...)
		default:
			slog.Info("http request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		slog.Error("panic serving request", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorEnvelope{
			Error: APIError{Message: "internal error", Code: apierr.CodeInternal},
		})
	})
}
