package services

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obogportal/internal/config"
)

func TestStorage_DisabledWithoutBucket(t *testing.T) {
	svc, err := NewStorageService(context.Background(), config.StorageConfig{})
	require.NoError(t, err)

	_, err = svc.PresignUpload(context.Background(), "u1", "a.png", "image/png")
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestStorage_PresignsPut(t *testing.T) {
	svc, err := NewStorageService(context.Background(), config.StorageConfig{
		Bucket:    "portal",
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		UploadTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	up, err := svc.PresignUpload(context.Background(), "u1", "Photo.PNG", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "PUT", up.Method)
	assert.True(t, strings.HasPrefix(up.Key, "posts/u1/"))
	assert.True(t, strings.HasSuffix(up.Key, ".png"))

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/portal/posts/u1/"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestStorage_RejectsNonImages(t *testing.T) {
	svc, err := NewStorageService(context.Background(), config.StorageConfig{
		Bucket: "portal", Region: "us-east-1", AccessKey: "k", SecretKey: "s", UploadTTL: time.Minute,
	})
	require.NoError(t, err)

	_, err = svc.PresignUpload(context.Background(), "u1", "notes.txt", "text/plain")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.PresignUpload(context.Background(), "u1", "noext", "image/png")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
