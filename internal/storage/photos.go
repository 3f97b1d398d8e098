// Package storage puts profile photos into an S3 compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oggyb/campus-match/internal/config"
	svcErr "github.com/oggyb/campus-match/internal/errors"
)

// MaxPhotoBytes caps a single upload. Clients compress before sending.
const MaxPhotoBytes = 5 << 20

// PhotoSlots is the number of photo positions on a profile.
const PhotoSlots = 2

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

// ObjectAPI is the subset of *minio.Client the store needs.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewMinioClient connects to the configured endpoint.
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	if cfg.Storage.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return client, nil
}

type Photo struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type PhotoStore struct {
	client    ObjectAPI
	bucket    string
	publicURL string
	now       func() time.Time

	ensureOnce sync.Once
	ensureErr  error
}

// NewPhotoStore builds a store. publicURL prefixes keys in returned URLs;
// empty means "/<bucket>".
func NewPhotoStore(client ObjectAPI, bucket, publicURL string) *PhotoStore {
	bucket = strings.TrimSpace(bucket)
	publicURL = strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if publicURL == "" {
		publicURL = "/" + bucket
	}
	return &PhotoStore{
		client:    client,
		bucket:    bucket,
		publicURL: publicURL,
		now:       time.Now,
	}
}

// ObjectKey is {userId}/{unixMillis}-{slot}.{ext}.
func ObjectKey(userID string, at time.Time, slot int, ext string) string {
	return fmt.Sprintf("%s/%d-%d.%s", userID, at.UnixMilli(), slot, ext)
}

// ExtensionFor maps an accepted image content type to a file extension.
func ExtensionFor(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := extensions[ct]
	return ext, ok
}

func (s *PhotoStore) ensureBucket(ctx context.Context) error {
	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})
	if s.ensureErr != nil {
		return fmt.Errorf("ensure bucket %q: %w", s.bucket, s.ensureErr)
	}
	return nil
}

// PutPhoto uploads one photo for userID into slot.
func (s *PhotoStore) PutPhoto(
	ctx context.Context,
	userID string,
	slot int,
	contentType string,
	body io.Reader,
	size int64,
) (Photo, error) {
	if slot < 0 || slot >= PhotoSlots {
		return Photo{}, svcErr.Validation("slot", "Photo slot must be 0 or 1")
	}
	ext, ok := ExtensionFor(contentType)
	if !ok {
		return Photo{}, svcErr.Validation("photo", "Photos must be JPEG, PNG or WebP")
	}
	if size <= 0 || size > MaxPhotoBytes {
		return Photo{}, svcErr.Validation("photo", "Photos must be smaller than 5 MB")
	}

	if err := s.ensureBucket(ctx); err != nil {
		return Photo{}, svcErr.Persistence("ensure photo bucket", err)
	}

	key := ObjectKey(userID, s.now(), slot, ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentTypes[ext],
	})
	if err != nil {
		return Photo{}, svcErr.Persistence("put photo", err)
	}
	return Photo{Key: key, URL: s.URL(key)}, nil
}

// URL is the public address of key.
func (s *PhotoStore) URL(key string) string {
	return s.publicURL + "/" + key
}
