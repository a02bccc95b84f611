// Package httpapi exposes the content service over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-content/internal/catalog"
	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/platform/objectstore"
	"github.com/p-n-ai/pai-content/internal/upload"
)

const (
	defaultMaxImportBytes = 8 << 20
	readyTimeout          = 2 * time.Second
)

// Checker is a dependency that can report whether it is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Uploads issues upload grants and serves stored objects.
type Uploads interface {
	RequestGrant(ctx context.Context) (upload.Grant, error)
	Open(ctx context.Context, objectPath string) (*objectstore.Object, error)
}

// Config holds dependencies for the router.
type Config struct {
	Catalog *catalog.Service
	// Uploads may be nil, in which case upload and object routes answer 503.
	Uploads Uploads
	// Checks are run by /readyz, keyed by dependency name.
	Checks         map[string]Checker
	MaxImportBytes int64 // multipart limit for quiz imports (default 8 MiB)
}

type handler struct {
	catalog        *catalog.Service
	uploads        Uploads
	checks         map[string]Checker
	maxImportBytes int64
}

// NewRouter builds the gin engine with every route.
func NewRouter(cfg Config) *gin.Engine {
	h := &handler{
		catalog:        cfg.Catalog,
		uploads:        cfg.Uploads,
		checks:         cfg.Checks,
		maxImportBytes: cfg.MaxImportBytes,
	}
	if h.maxImportBytes <= 0 {
		h.maxImportBytes = defaultMaxImportBytes
	}

	r := gin.New()
	r.Use(Recovery(), RequestLogger())
	r.MaxMultipartMemory = h.maxImportBytes
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorEnvelope{Error: APIError{Message: "route not found", Code: apierr.CodeNotFound}})
	})

	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)

	api := r.Group("/api")

	api.GET("/courses", h.listCourses)
	api.POST("/courses", h.createCourse)
	api.GET("/courses/:id", h.getCourse)
	api.DELETE("/courses/:id", h.deleteCourse)

	api.GET("/sections", h.listSections)
	api.POST("/sections", h.createSection)
	api.GET("/sections/:id", h.getSection)
	api.DELETE("/sections/:id", h.deleteSection)

	api.GET("/assets", h.listAssets)
	api.POST("/assets", h.createAsset)
	api.GET("/assets/:id", h.getAsset)
	api.DELETE("/assets/:id", h.deleteAsset)

	api.POST("/objects/upload", h.requestUpload)
	r.GET("/objects/*path", h.serveObject)

	api.GET("/quizzes", h.listQuizzes)
	api.POST("/quizzes", h.createQuiz)
	api.POST("/quizzes/import", h.importQuiz)
	api.GET("/quizzes/:id", h.getQuiz)
	api.POST("/quizzes/:id/grade", h.gradeQuiz)
	api.DELETE("/quizzes/:id", h.deleteQuiz)

	return r
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
