package upload_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/platform/objectstore"
	"github.com/p-n-ai/pai-content/internal/upload"
)

type fakeStore struct {
	signErr error
	names   []string
	objects map[string]string
}

func (f *fakeStore) SignedUploadURL(_ context.Context, name string, ttl time.Duration) (objectstore.SignedURL, error) {
	if f.signErr != nil {
		return objectstore.SignedURL{}, f.signErr
	}
	f.names = append(f.names, name)
	return objectstore.SignedURL{
		URL:       "https://storage.googleapis.com/media/" + name + "?X-Goog-Signature=secret",
		Method:    http.MethodPut,
		ExpiresAt: time.Unix(0, 0).Add(ttl),
	}, nil
}

func (f *fakeStore) Open(_ context.Context, name string) (*objectstore.Object, error) {
	body, ok := f.objects[name]
	if !ok {
		return nil, apierr.NotFound("object", name)
	}
	return &objectstore.Object{ReadCloser: io.NopCloser(strings.NewReader(body)), ContentType: "text/plain", Size: int64(len(body))}, nil
}

func newCoordinator(t *testing.T, store upload.ObjectStore) *upload.Coordinator {
	t.Helper()
	c, err := upload.NewCoordinator(store, upload.Options{
		Bucket:       "media",
		Prefix:       "uploads",
		TTL:          15 * time.Minute,
		ManagedHosts: []string{"storage.googleapis.com", "Storage.Example"},
		EmulatorHost: "http://localhost:4443",
	})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	return c
}

func TestNewCoordinator_Errors(t *testing.T) {
	if _, err := upload.NewCoordinator(nil, upload.Options{TTL: time.Minute}); err == nil {
		t.Error("NewCoordinator(nil) should fail")
	}
	if _, err := upload.NewCoordinator(&fakeStore{}, upload.Options{}); err == nil {
		t.Error("NewCoordinator() with zero ttl should fail")
	}
}

func TestRequestGrant(t *testing.T) {
	store := &fakeStore{}
	c := newCoordinator(t, store)

	g, err := c.RequestGrant(t.Context())
	if err != nil {
		t.Fatalf("RequestGrant() error = %v", err)
	}
	if len(store.names) != 1 || !strings.HasPrefix(store.names[0], "uploads/") {
		t.Fatalf("object names = %v", store.names)
	}
	if g.ObjectPath != "/objects/"+store.names[0] {
		t.Errorf("ObjectPath = %q", g.ObjectPath)
	}
	if g.Method != http.MethodPut {
		t.Errorf("Method = %q", g.Method)
	}
	if g.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set")
	}

	// The granted URL normalizes back to the object path.
	if got := c.Normalize(g.URL); got != g.ObjectPath {
		t.Errorf("Normalize(grant URL) = %q, want %q", got, g.ObjectPath)
	}

	g2, _ := c.RequestGrant(t.Context())
	if g2.ObjectPath == g.ObjectPath {
		t.Error("two grants share an object path")
	}
}

func TestRequestGrant_UpstreamFailure(t *testing.T) {
	c := newCoordinator(t, &fakeStore{signErr: errors.New("connection refused")})
	_, err := c.RequestGrant(t.Context())
	if !apierr.IsUpstream(err) {
		t.Errorf("RequestGrant() error = %v, want upstream", err)
	}
}

func TestNormalize(t *testing.T) {
	c := newCoordinator(t, &fakeStore{})

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"path style", "https://storage.googleapis.com/media/uploads/abc?X-Goog-Signature=s", "/objects/uploads/abc"},
		{"configured host", "https://storage.example/media/obj?token=xyz", "/objects/obj"},
		{"host case insensitive", "https://STORAGE.example/media/obj", "/objects/obj"},
		{"foreign bucket keeps path", "https://storage.example/bucket/obj?token=xyz", "https://storage.example/bucket/obj"},
		{"virtual host", "https://media.storage.googleapis.com/uploads/x?sig=1", "/objects/uploads/x"},
		{"virtual host foreign bucket", "https://other.storage.googleapis.com/x?sig=1#frag", "https://other.storage.googleapis.com/x"},
		{"json api", "http://localhost:4443/storage/v1/b/media/o/uploads%2Fx?alt=media", "/objects/uploads/x"},
		{"download api", "http://localhost:4443/download/storage/v1/b/media/o/uploads/x?alt=media", "/objects/uploads/x"},
		{"emulator upload", "http://localhost:4443/upload/storage/v1/b/media/o?uploadType=media&name=uploads%2Fx", "/objects/uploads/x"},
		{"bucket only", "https://storage.googleapis.com/media?sig=1", "https://storage.googleapis.com/media"},
		{"external link", "https://youtube.com/watch?v=abc", "https://youtube.com/watch?v=abc"},
		{"canonical path", "/objects/uploads/abc", "/objects/uploads/abc"},
		{"not a url", "::::", "::::"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_DropsTokenQuery(t *testing.T) {
	c, err := upload.NewCoordinator(&fakeStore{}, upload.Options{
		Bucket:       "bucket",
		TTL:          time.Minute,
		ManagedHosts: []string{"storage.example"},
	})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	got := c.Normalize("https://storage.example/bucket/obj?token=xyz")
	if strings.Contains(got, "?") || strings.Contains(got, "token") {
		t.Errorf("Normalize() = %q still carries the query string", got)
	}
	if got != "/objects/obj" {
		t.Errorf("Normalize() = %q, want /objects/obj", got)
	}
}

func TestOpen(t *testing.T) {
	c := newCoordinator(t, &fakeStore{objects: map[string]string{"uploads/a": "hello"}})

	obj, err := c.Open(t.Context(), "/objects/uploads/a")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer obj.Close()
	body, _ := io.ReadAll(obj)
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}

	for _, p := range []string{"/objects/uploads/missing", "/objects/", "/objects/../secret", "/objects/a//b"} {
		if _, err := c.Open(t.Context(), p); !apierr.IsNotFound(err) {
			t.Errorf("Open(%q) error = %v, want not found", p, err)
		}
	}
}

func TestIsManaged(t *testing.T) {
	if !upload.IsManaged("/objects/x") {
		t.Error("IsManaged(/objects/x) = false")
	}
	if upload.IsManaged("/objects/") || upload.IsManaged("https://x/objects/y") {
		t.Error("IsManaged accepted a non-object path")
	}
}
