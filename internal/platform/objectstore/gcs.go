package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
)

const entityObject = "object"

// SignedURL is a time-bounded write URL for one object.
type SignedURL struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}

// Object is an open stored object. Callers must close it.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// GCS is an object store over a single bucket.
type GCS struct {
	client       *storage.Client
	bucket       string
	mode         Mode
	emulatorHost string
	now          func() time.Time
}

// NewGCS creates a storage client for cfg. No request is made until the
// store is used.
func NewGCS(ctx context.Context, cfg Config) (*GCS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	if cfg.IsEmulator() {
		// Endpoint options keep the emulator per client; STORAGE_EMULATOR_HOST
		// would switch every client in the process.
		opts = append(opts,
			option.WithEndpoint(host+"/storage/v1/"),
			option.WithoutAuthentication(),
			storage.WithJSONReads(),
		)
	} else {
		opts = append(ClientOptions(cfg.Credentials), option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	slog.Info("object storage initialized",
		"mode", cfg.Mode,
		"bucket", cfg.Bucket,
		"emulator_host", host,
	)

	return &GCS{
		client:       client,
		bucket:       cfg.Bucket,
		mode:         cfg.Mode,
		emulatorHost: host,
		now:          time.Now,
	}, nil
}

// Bucket returns the bucket name.
func (g *GCS) Bucket() string {
	return g.bucket
}

// EmulatorHost returns the emulator base URL, or "" outside emulator mode.
func (g *GCS) EmulatorHost() string {
	if g.mode != ModeGCSEmulator {
		return ""
	}
	return g.emulatorHost
}

// SignedUploadURL issues a write URL for name valid for ttl. Against GCS this
// is a V4 signed PUT URL. The emulator does not verify signatures, so there
// it is the media upload endpoint, written with POST.
func (g *GCS) SignedUploadURL(ctx context.Context, name string, ttl time.Duration) (SignedURL, error) {
	if err := ctx.Err(); err != nil {
		return SignedURL{}, err
	}
	if ttl <= 0 {
		return SignedURL{}, fmt.Errorf("upload url ttl must be positive, got %s", ttl)
	}
	expires := g.now().Add(ttl)

	if g.mode == ModeGCSEmulator {
		return SignedURL{
			URL:       emulatorUploadURL(g.emulatorHost, g.bucket, name),
			Method:    http.MethodPost,
			ExpiresAt: expires,
		}, nil
	}

	signed, err := g.client.Bucket(g.bucket).SignedURL(name, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodPut,
		Expires: expires,
	})
	if err != nil {
		return SignedURL{}, apierr.Upstream("sign upload url", err)
	}
	return SignedURL{URL: signed, Method: http.MethodPut, ExpiresAt: expires}, nil
}

// Open streams the object called name.
func (g *GCS) Open(ctx context.Context, name string) (*Object, error) {
	r, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, apierr.NotFound(entityObject, name)
	}
	if err != nil {
		return nil, apierr.Upstream("open object", err)
	}
	return &Object{
		ReadCloser:  r,
		ContentType: r.Attrs.ContentType,
		Size:        r.Attrs.Size,
	}, nil
}

// HealthCheck verifies the bucket is reachable.
func (g *GCS) HealthCheck(ctx context.Context) error {
	if _, err := g.client.Bucket(g.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", g.bucket, err)
	}
	return nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func emulatorUploadURL(host, bucket, name string) string {
	q := url.Values{}
	q.Set("uploadType", "media")
	q.Set("name", name)
	return fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", host, url.PathEscape(bucket), q.Encode())
}
