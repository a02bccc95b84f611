package objectstore

import (
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"
)

func TestEmulatorUploadURL(t *testing.T) {
	raw := emulatorUploadURL("http://fake-gcs:4443", "media", "uploads/abc 1")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if u.Host != "fake-gcs:4443" || u.Path != "/upload/storage/v1/b/media/o" {
		t.Errorf("url = %s", raw)
	}
	if got := u.Query().Get("name"); got != "uploads/abc 1" {
		t.Errorf("name = %q", got)
	}
	if got := u.Query().Get("uploadType"); got != "media" {
		t.Errorf("uploadType = %q", got)
	}
}

func TestGCS_SignedUploadURL_Emulator(t *testing.T) {
	g, err := NewGCS(t.Context(), Config{Mode: ModeGCSEmulator, Bucket: "media", EmulatorHost: "http://fake-gcs:4443/"})
	if err != nil {
		t.Fatalf("NewGCS() error = %v", err)
	}
	t.Cleanup(func() { g.Close() })

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g.now = func() time.Time { return now }

	got, err := g.SignedUploadURL(t.Context(), "uploads/obj", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignedUploadURL() error = %v", err)
	}
	if got.Method != http.MethodPost {
		t.Errorf("Method = %q, want POST", got.Method)
	}
	if !got.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", got.ExpiresAt)
	}
	if g.EmulatorHost() != "http://fake-gcs:4443" {
		t.Errorf("EmulatorHost() = %q, want trailing slash trimmed", g.EmulatorHost())
	}

	if _, err := g.SignedUploadURL(t.Context(), "uploads/obj", 0); err == nil {
		t.Error("SignedUploadURL() with zero ttl should fail")
	}
}

func TestNewGCS_EmulatorClientsAreIndependent(t *testing.T) {
	t.Setenv("STORAGE_EMULATOR_HOST", "http://unrelated:9000")

	hosts := []string{"http://fake-gcs-a:4443", "http://fake-gcs-b:4443"}
	for _, host := range hosts {
		g, err := NewGCS(t.Context(), Config{Mode: ModeGCSEmulator, Bucket: "media", EmulatorHost: host})
		if err != nil {
			t.Fatalf("NewGCS(%s) error = %v", host, err)
		}
		t.Cleanup(func() { g.Close() })

		if g.EmulatorHost() != host {
			t.Errorf("EmulatorHost() = %q, want %q", g.EmulatorHost(), host)
		}
	}

	if got := os.Getenv("STORAGE_EMULATOR_HOST"); got != "http://unrelated:9000" {
		t.Errorf("STORAGE_EMULATOR_HOST = %q, want it left unchanged", got)
	}
}

func TestNewGCS_InvalidConfig(t *testing.T) {
	if _, err := NewGCS(t.Context(), Config{Mode: "ftp"}); err == nil {
		t.Fatal("NewGCS() should reject an unknown mode")
	}
}
