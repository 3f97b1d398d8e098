package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcErr "github.com/oggyb/campus-match/internal/errors"
)

type fakeObjects struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	b, _ := io.ReadAll(r)
	f.objects[bucket+"/"+key] = b
	f.types[bucket+"/"+key] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(b))}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "u1/1700000000123-1.png", ObjectKey("u1", at, 1, "png"))
}

func TestPutPhoto(t *testing.T) {
	objs := newFakeObjects()
	store := NewPhotoStore(objs, "profile-photos", "https://cdn.example.com/")
	store.now = func() time.Time { return time.UnixMilli(42) }

	body := []byte("jpeg-bytes")
	photo, err := store.PutPhoto(context.Background(), "u1", 0, "image/jpeg; charset=binary", bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	assert.Equal(t, "u1/42-0.jpg", photo.Key)
	assert.Equal(t, "https://cdn.example.com/u1/42-0.jpg", photo.URL)
	assert.True(t, objs.buckets["profile-photos"], "bucket created on first use")
	assert.Equal(t, body, objs.objects["profile-photos/u1/42-0.jpg"])
	assert.Equal(t, "image/jpeg", objs.types["profile-photos/u1/42-0.jpg"])
}

func TestPutPhotoValidation(t *testing.T) {
	store := NewPhotoStore(newFakeObjects(), "b", "")
	ctx := context.Background()

	_, err := store.PutPhoto(ctx, "u1", 2, "image/png", bytes.NewReader([]byte("x")), 1)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = store.PutPhoto(ctx, "u1", 0, "application/pdf", bytes.NewReader([]byte("x")), 1)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = store.PutPhoto(ctx, "u1", 0, "image/png", bytes.NewReader(nil), MaxPhotoBytes+1)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}

func TestPutPhotoBackendFailure(t *testing.T) {
	objs := newFakeObjects()
	objs.putErr = errors.New("connection reset")
	store := NewPhotoStore(objs, "b", "")

	_, err := store.PutPhoto(context.Background(), "u1", 1, "image/webp", bytes.NewReader([]byte("x")), 1)
	require.Error(t, err)
	assert.Equal(t, svcErr.KindInternal, svcErr.KindOf(err))
	assert.Equal(t, "/b/x", store.URL("x"))
}
