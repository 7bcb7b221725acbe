package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixelvault/apiserver/config"
	"github.com/pixelvault/apiserver/types"
)

// Object keys embed a ULID and are never rewritten.
const immutableCacheControl = "public, max-age=31536000, immutable"

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	// EnsureBucket prepares the bucket so objects under publicPrefix can be
	// served at their ObjectURL.
	EnsureBucket(ctx context.Context, publicPrefix string) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// ObjectURL is the backend's default public address for key.
	ObjectURL(key string) string
	Bucket() string
}

// Media is the media provider the services talk to. Uploads get a ULID key
// under the configured folder; the key doubles as the opaque public id.
type Media struct {
	backend   ObjectStorage
	folder    string
	publicURL string
	now       func() time.Time
}

// NewMedia wraps backend. A non-empty publicURL replaces the backend's own
// object URLs, e.g. when a CDN fronts the bucket.
func NewMedia(backend ObjectStorage, folder, publicURL string) *Media {
	return &Media{
		backend:   backend,
		folder:    strings.Trim(folder, "/"),
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// Open builds the backend selected by cfg.Media.Driver.
func Open(ctx context.Context, cfg config.Config) (*Media, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Media.Driver {
	case "", "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown media driver %q", cfg.Media.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx, cfg.Media.Folder); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewMedia(backend, cfg.Media.Folder, cfg.Media.PublicURL), nil
}

// Upload stores r and returns its URL and public id. A failed Put still
// reports the key so the caller can destroy a partially written object.
func (m *Media) Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (types.MediaAsset, error) {
	if r == nil {
		return types.MediaAsset{}, errors.New("empty upload")
	}
	key := m.newKey(filename)
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(filename))
	}
	if err := m.backend.Put(ctx, key, r, size, contentType); err != nil {
		return types.MediaAsset{PublicID: key}, err
	}
	return types.MediaAsset{URL: m.url(key), PublicID: key}, nil
}

// Destroy removes the object behind publicID.
func (m *Media) Destroy(ctx context.Context, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return nil
	}
	return m.backend.Delete(ctx, publicID)
}

func (m *Media) newKey(filename string) string {
	id := ulid.MustNew(ulid.Timestamp(m.now()), rand.Reader)
	ext := strings.ToLower(path.Ext(filename))
	key := id.String() + ext
	if m.folder == "" {
		return key
	}
	return m.folder + "/" + key
}

func (m *Media) url(key string) string {
	if m.publicURL != "" {
		return m.publicURL + "/" + key
	}
	return m.backend.ObjectURL(key)
}
