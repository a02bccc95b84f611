// Package upload coordinates direct-to-storage uploads. A caller first asks
// for a grant, then writes the bytes straight to the object store, and only
// afterwards commits an asset whose URL is normalized here into a stable,
// credential-free /objects/ path. The server never buffers file bytes and
// does not verify that a granted object actually landed.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/platform/objectstore"
)

// ObjectPrefix is the canonical path prefix of managed objects.
const ObjectPrefix = "/objects/"

// ObjectStore is the external store the coordinator grants uploads into.
type ObjectStore interface {
	SignedUploadURL(ctx context.Context, name string, ttl time.Duration) (objectstore.SignedURL, error)
	Open(ctx context.Context, name string) (*objectstore.Object, error)
}

// Grant is a time-bounded permission to write one object.
type Grant struct {
	URL        string    `json:"uploadURL"`
	ObjectPath string    `json:"objectPath"`
	Method     string    `json:"method"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type Options struct {
	Bucket string
	// Prefix is prepended to generated object names.
	Prefix string
	TTL    time.Duration
	// ManagedHosts are storage hosts whose URLs may point into Bucket.
	ManagedHosts []string
	// EmulatorHost is the base URL of a storage emulator, if any.
	EmulatorHost string
}

type Coordinator struct {
	store  ObjectStore
	bucket string
	prefix string
	ttl    time.Duration
	hosts  map[string]bool
}

func NewCoordinator(store ObjectStore, opts Options) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is nil")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive, got %s", opts.TTL)
	}
	hosts := make(map[string]bool, len(opts.ManagedHosts)+1)
	for _, h := range opts.ManagedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = true
		}
	}
	if opts.EmulatorHost != "" {
		if u, err := url.Parse(opts.EmulatorHost); err == nil && u.Host != "" {
			hosts[strings.ToLower(u.Host)] = true
		}
	}
	return &Coordinator{
		store:  store,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		ttl:    opts.TTL,
		hosts:  hosts,
	}, nil
}

// RequestGrant issues a grant for a freshly named object. No asset row is
// created. A failing object store surfaces immediately; there is no retry.
func (c *Coordinator) RequestGrant(ctx context.Context) (Grant, error) {
	name := uuid.NewString()
	if c.prefix != "" {
		name = c.prefix + "/" + name
	}

	signed, err := c.store.SignedUploadURL(ctx, name, c.ttl)
	if err != nil {
		return Grant{}, apierr.Upstream("request upload grant", err)
	}

	// The URL carries signing credentials; only the object path is logged.
	slog.Info("upload grant issued",
		"object_path", ObjectPrefix+name,
		"expires_at", signed.ExpiresAt,
	)
	return Grant{
		URL:        signed.URL,
		ObjectPath: ObjectPrefix + name,
		Method:     signed.Method,
		ExpiresAt:  signed.ExpiresAt,
	}, nil
}

// Normalize maps a raw storage URL onto its canonical form. URLs on a
// managed host that name an object in the configured bucket become
// /objects/<name>. Other managed-host URLs lose their query string and
// fragment. Anything else, including already canonical paths, is returned
// unchanged. Normalize never fails.
func (c *Coordinator) Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Host)

	if bucket, ok := c.virtualHostBucket(host); ok {
		if bucket == c.bucket && c.bucket != "" {
			if name := strings.TrimPrefix(u.Path, "/"); name != "" {
				return ObjectPrefix + name
			}
		}
		return stripCredentials(u)
	}
	if !c.hosts[host] {
		return raw
	}

	bucket, name := splitObjectPath(u)
	if bucket != "" && bucket == c.bucket && name != "" {
		return ObjectPrefix + name
	}
	return stripCredentials(u)
}

// IsManaged reports whether p is a canonical object path.
func IsManaged(p string) bool {
	return strings.HasPrefix(p, ObjectPrefix) && len(p) > len(ObjectPrefix)
}

// Open streams the object at a canonical path. A leading /objects/ is
// optional.
func (c *Coordinator) Open(ctx context.Context, objectPath string) (*objectstore.Object, error) {
	name := strings.TrimPrefix(objectPath, ObjectPrefix)
	name = strings.TrimPrefix(name, "/")
	if name == "" || path.Clean("/"+name) != "/"+name {
		return nil, apierr.NotFound("object", objectPath)
	}
	obj, err := c.store.Open(ctx, name)
	if err != nil {
		return nil, apierr.Upstream("open object", err)
	}
	return obj, nil
}

func (c *Coordinator) virtualHostBucket(host string) (string, bool) {
	for h := range c.hosts {
		if bucket, ok := strings.CutSuffix(host, "."+h); ok && bucket != "" {
			return bucket, true
		}
	}
	return "", false
}

// splitObjectPath recognises the path-style, JSON API and media upload URL
// shapes of Cloud Storage and its emulators.
func splitObjectPath(u *url.URL) (bucket, name string) {
	p := u.Path
	for _, api := range []string{"/download/storage/v1/b/", "/upload/storage/v1/b/", "/storage/v1/b/"} {
		rest, ok := strings.CutPrefix(p, api)
		if !ok {
			continue
		}
		bucket, obj, _ := strings.Cut(rest, "/")
		switch {
		case strings.HasPrefix(obj, "o/"):
			return bucket, strings.TrimPrefix(obj, "o/")
		case obj == "o":
			return bucket, u.Query().Get("name")
		default:
			return bucket, ""
		}
	}
	bucket, name, _ = strings.Cut(strings.TrimPrefix(p, "/"), "/")
	return bucket, name
}

func stripCredentials(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	clean.ForceQuery = false
	clean.Fragment = ""
	clean.RawFragment = ""
	return clean.String()
}
