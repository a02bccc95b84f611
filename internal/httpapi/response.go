package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
)

type APIError struct {
	Message string           `json:"message"`
	Code    string           `json:"code,omitempty"`
	Details []apierr.Problem `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// respondError writes err as an error envelope with the status its class maps
// to. Internal and upstream failures are logged and their messages are not
// echoed to the caller.
func respondError(c *gin.Context, err error) {
	status, code := apierr.Status(err)
	msg := err.Error()

	switch status {
	case http.StatusInternalServerError:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	case http.StatusBadGateway:
		slog.Error("upstream storage failed", "path", c.FullPath(), "error", err)
		var up *apierr.UpstreamError
		if errors.As(err, &up) {
			msg = up.Op + " failed"
		}
	case http.StatusBadRequest:
		msg = "validation failed"
	}

	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
			Details: apierr.Problems(err),
		},
	})
}

func badRequest(c *gin.Context, field, msg string) {
	respondError(c, apierr.Validation(apierr.Field(field, msg)))
}
