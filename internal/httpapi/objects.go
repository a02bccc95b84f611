package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-content/internal/upload"
)

func (h *handler) requestUpload(c *gin.Context) {
	if h.uploads == nil {
		storageUnavailable(c)
		return
	}
	grant, err := h.uploads.RequestGrant(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// serveObject streams a stored object by its canonical path.
func (h *handler) serveObject(c *gin.Context) {
	if h.uploads == nil {
		storageUnavailable(c)
		return
	}
	obj, err := h.uploads.Open(c.Request.Context(), upload.ObjectPrefix+strings.TrimLeft(c.Param("path"), "/"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer obj.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	if obj.Size >= 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, obj); err != nil {
		slog.Warn("object stream interrupted", "path", c.Param("path"), "error", err)
	}
}

func storageUnavailable(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorEnvelope{
		Error: APIError{Message: "object storage is not configured", Code: "unavailable"},
	})
}
