// Package storage wraps the S3-compatible artifact store behind core.ObjectStore.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"

	"github.com/driftline/driftline/internal/core"
)

// MinioStore reads and writes mission artifacts in a single bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

var _ core.ObjectStore = (*MinioStore)(nil)

// NewMinioStore creates a store bound to the given bucket.
func NewMinioStore(client *minio.Client, bucket string, logger *slog.Logger) *MinioStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MinioStore{client: client, bucket: bucket, logger: logger}
}

// Bucket returns the bucket name this store writes to.
func (s *MinioStore) Bucket() string { return s.bucket }

// EnsureBucket creates the bucket if it does not already exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.InfoContext(ctx, "created artifact bucket", "bucket", s.bucket)
	return nil
}

// Put uploads an object, overwriting any existing version of the key.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get downloads an object in full.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("get %s/%s: %w", s.bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("read %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Exists reports whether the key is present.
func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat %s/%s: %w", s.bucket, key, err)
}

// ErrObjectNotFound marks a missing artifact key.
var ErrObjectNotFound = errors.New("object not found")
