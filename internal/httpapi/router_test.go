package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-content/internal/catalog"
	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/httpapi"
	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/platform/objectstore"
	"github.com/p-n-ai/pai-content/internal/upload"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type memObjects struct {
	objects map[string]string
}

func (m *memObjects) SignedUploadURL(_ context.Context, name string, ttl time.Duration) (objectstore.SignedURL, error) {
	m.objects[name] = "uploaded bytes"
	return objectstore.SignedURL{
		URL:       "https://storage.googleapis.com/media/" + name + "?X-Goog-Signature=abc",
		Method:    http.MethodPut,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (m *memObjects) Open(_ context.Context, name string) (*objectstore.Object, error) {
	body, ok := m.objects[name]
	if !ok {
		return nil, apierr.NotFound("object", name)
	}
	return &objectstore.Object{ReadCloser: io.NopCloser(strings.NewReader(body)), ContentType: "video/mp4", Size: int64(len(body))}, nil
}

type checker struct{ err error }

func (c checker) HealthCheck(context.Context) error { return c.err }

func newTestRouter(t *testing.T, checks map[string]httpapi.Checker) http.Handler {
	t.Helper()
	coord, err := upload.NewCoordinator(&memObjects{objects: map[string]string{}}, upload.Options{
		Bucket:       "media",
		Prefix:       "uploads",
		TTL:          time.Minute,
		ManagedHosts: []string{"storage.googleapis.com"},
	})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	svc := catalog.NewService(catalog.ServiceConfig{
		Store:      content.NewMemoryStore(),
		Normalizer: coord,
	})
	return httpapi.NewRouter(httpapi.Config{Catalog: svc, Uploads: coord, Checks: checks})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]httpapi.Checker
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz returns 200", nil, "/healthz", http.StatusOK, `{"status":"ok"}`},
		{"readyz returns 200", map[string]httpapi.Checker{"database": checker{}}, "/readyz", http.StatusOK, `{"status":"ready"}`},
		{"readyz reports failures", map[string]httpapi.Checker{"cache": checker{err: errors.New("down")}}, "/readyz", http.StatusServiceUnavailable, `{"failed":{"cache":"down"},"status":"unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(t, tt.checks), http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCourseLifecycle(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/courses", map[string]any{"title": "Algebra", "description": "Basics"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	course := decode[content.Course](t, rec)

	rec = do(t, h, http.MethodGet, "/api/courses/"+course.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"sections":[]`) {
		t.Errorf("empty course body = %s, want sections: []", rec.Body)
	}

	rec = do(t, h, http.MethodPost, "/api/sections", map[string]any{"courseId": course.ID, "title": "Intro"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create section status = %d, body = %s", rec.Code, rec.Body)
	}
	section := decode[content.Section](t, rec)
	if section.OrderIndex != 0 {
		t.Errorf("orderIndex = %d, want 0", section.OrderIndex)
	}

	rec = do(t, h, http.MethodGet, "/api/sections?courseId="+course.ID, nil)
	if got := decode[[]content.Section](t, rec); len(got) != 1 {
		t.Errorf("sections = %d, want 1", len(got))
	}

	rec = do(t, h, http.MethodDelete, "/api/courses/"+course.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	rec = do(t, h, http.MethodDelete, "/api/courses/"+course.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("second delete status = %d, want 204", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/sections/"+section.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cascaded section status = %d, want 404", rec.Code)
	}
	env := decode[httpapi.ErrorEnvelope](t, rec)
	if env.Error.Code != apierr.CodeNotFound {
		t.Errorf("error code = %q, want %q", env.Error.Code, apierr.CodeNotFound)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"course without title", http.MethodPost, "/api/courses", map[string]any{}, http.StatusBadRequest, apierr.CodeValidation, "title"},
		{"malformed json", http.MethodPost, "/api/courses", "{not json", http.StatusBadRequest, apierr.CodeValidation, "body"},
		{"sections without courseId", http.MethodGet, "/api/sections", nil, http.StatusBadRequest, apierr.CodeValidation, "courseId"},
		{"section for missing course", http.MethodPost, "/api/sections", map[string]any{"courseId": "nope", "title": "S"}, http.StatusUnprocessableEntity, apierr.CodeReferentialIntegrity, ""},
		{"asset with unknown type", http.MethodPost, "/api/assets", map[string]any{"sectionId": "s", "type": "pdf", "title": "t", "url": "u"}, http.StatusBadRequest, apierr.CodeValidation, "type"},
		{"missing quiz", http.MethodGet, "/api/quizzes/nope", nil, http.StatusNotFound, apierr.CodeNotFound, ""},
		{"missing object", http.MethodGet, "/objects/uploads/nope", nil, http.StatusNotFound, apierr.CodeNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			env := decode[httpapi.ErrorEnvelope](t, rec)
			if env.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.wantCode)
			}
			if tt.wantField == "" {
				return
			}
			found := false
			for _, p := range env.Error.Details {
				found = found || p.Field == tt.wantField
			}
			if !found {
				t.Errorf("details = %+v, want a %s problem", env.Error.Details, tt.wantField)
			}
		})
	}
}

func seedSection(t *testing.T, h http.Handler) content.Section {
	t.Helper()
	course := decode[content.Course](t, do(t, h, http.MethodPost, "/api/courses", map[string]any{"title": "C"}))
	return decode[content.Section](t, do(t, h, http.MethodPost, "/api/sections", map[string]any{"courseId": course.ID, "title": "S"}))
}

func TestQuizCreateAndGrade(t *testing.T) {
	h := newTestRouter(t, nil)
	section := seedSection(t, h)

	rec := do(t, h, http.MethodPost, "/api/quizzes", map[string]any{
		"sectionId":   section.ID,
		"title":       "Check",
		"description": "Quick",
		"json": map[string]any{"questions": []any{
			map[string]any{"question": "2+2?", "options": []string{"3", "4", "5"}, "correctAnswer": 1},
		}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create quiz status = %d, body = %s", rec.Code, rec.Body)
	}
	q := decode[content.Quiz](t, rec)

	rec = do(t, h, http.MethodPost, "/api/quizzes/"+q.ID+"/grade", `{"answers":{"0":1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("grade status = %d, body = %s", rec.Code, rec.Body)
	}
	var res struct {
		Correct    int    `json:"correct"`
		Total      int    `json:"total"`
		Percentage int    `json:"percentage"`
		Band       string `json:"band"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Correct != 1 || res.Total != 1 || res.Percentage != 100 || res.Band != "great" {
		t.Errorf("grade = %+v", res)
	}

	rec = do(t, h, http.MethodPost, "/api/quizzes/"+q.ID+"/grade", `{"answers":{"first":1}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("grade with bad key status = %d, want 400", rec.Code)
	}
}

func TestQuizCreate_ReportsQuestionIndex(t *testing.T) {
	h := newTestRouter(t, nil)
	section := seedSection(t, h)

	rec := do(t, h, http.MethodPost, "/api/quizzes", map[string]any{
		"sectionId":   section.ID,
		"title":       "Bad",
		"description": "Off by one",
		"json": map[string]any{"questions": []any{
			map[string]any{"question": "ok", "options": []string{"a", "b"}, "correctAnswer": 0},
			map[string]any{"question": "bad", "options": []string{"a", "b"}, "correctAnswer": 2},
		}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decode[httpapi.ErrorEnvelope](t, rec)
	if len(env.Error.Details) != 1 || env.Error.Details[0].Question == nil || *env.Error.Details[0].Question != 1 {
		t.Errorf("details = %+v, want one problem on question 1", env.Error.Details)
	}
}

func TestUploadFlow(t *testing.T) {
	h := newTestRouter(t, nil)
	section := seedSection(t, h)

	rec := do(t, h, http.MethodPost, "/api/objects/upload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload grant status = %d, body = %s", rec.Code, rec.Body)
	}
	grant := decode[upload.Grant](t, rec)
	if grant.URL == "" || !strings.HasPrefix(grant.ObjectPath, "/objects/uploads/") {
		t.Fatalf("grant = %+v", grant)
	}

	rec = do(t, h, http.MethodPost, "/api/assets", map[string]any{
		"sectionId": section.ID,
		"type":      "video_file",
		"title":     "Lecture",
		"url":       grant.URL,
		"metadata":  map[string]any{"size": 1024, "contentType": "video/mp4"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create asset status = %d, body = %s", rec.Code, rec.Body)
	}
	asset := decode[content.Asset](t, rec)
	if asset.URL != grant.ObjectPath {
		t.Errorf("asset url = %q, want %q", asset.URL, grant.ObjectPath)
	}

	rec = do(t, h, http.MethodGet, asset.URL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("object status = %d", rec.Code)
	}
	if rec.Body.String() != "uploaded bytes" || rec.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("object = %q (%s)", rec.Body.String(), rec.Header().Get("Content-Type"))
	}

	rec = do(t, h, http.MethodGet, "/api/assets?sectionId="+section.ID, nil)
	if got := decode[[]content.Asset](t, rec); len(got) != 1 {
		t.Errorf("assets = %d, want 1", len(got))
	}
}

func TestUploads_NotConfigured(t *testing.T) {
	svc := catalog.NewService(catalog.ServiceConfig{})
	h := httpapi.NewRouter(httpapi.Config{Catalog: svc})

	for _, path := range []string{"/api/objects/upload", "/objects/uploads/x"} {
		method := http.MethodGet
		if strings.HasPrefix(path, "/api") {
			method = http.MethodPost
		}
		if rec := do(t, h, method, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", method, path, rec.Code)
		}
	}
}

func TestQuizImport(t *testing.T) {
	h := newTestRouter(t, nil)
	section := seedSection(t, h)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("sectionId", section.ID)
	mw.WriteField("title", "Imported")
	mw.WriteField("description", "From YAML")
	fw, err := mw.CreateFormFile("file", "quiz.yaml")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, "questions:\n  - question: Pick b\n    options: [a, b]\n    correctAnswer: 1\n")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/quizzes/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", rec.Code, rec.Body)
	}
	q := decode[content.Quiz](t, rec)
	if q.Document.Len() != 1 || q.Title != "Imported" {
		t.Errorf("imported quiz = %+v", q)
	}

	rec = do(t, h, http.MethodPost, "/api/quizzes/import", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("import without file status = %d, want 400", rec.Code)
	}
}
