package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"transcription-service/pkg/errno"
)

// MinioStore implements gateway.ObjectStore on a minio/S3-compatible bucket.
// Key-based operations target the pipeline bucket; URI operations parse the
// s3://bucket/key paths carried in job descriptors, which may name a
// different bucket on the same endpoint.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore wraps a connected client and the pipeline bucket.
func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

// GetObject reads one object fully into memory. Missing keys surface as
// errno.ErrObjectNotFound.
func (s *MinioStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinio(key, err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinio(key, err)
	}
	return body, nil
}

// PutObject writes one object, overwriting any existing content.
func (s *MinioStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("put %s: %w", key, err))
	}
	return nil
}

// ListKeys returns every key under prefix in the pipeline bucket.
func (s *MinioStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errno.Classify(errno.ErrTransientInfra, fmt.Errorf("list %s: %w", prefix, obj.Err))
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// DownloadURI fetches an s3://bucket/key object to a local file.
func (s *MinioStore) DownloadURI(ctx context.Context, uri, localPath string) error {
	bucket, key, err := splitURI(uri)
	if err != nil {
		return err
	}
	if err := s.client.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return classifyMinio(uri, err)
	}
	return nil
}

// UploadURI stores a local file at an s3://bucket/key destination.
func (s *MinioStore) UploadURI(ctx context.Context, localPath, uri string) error {
	bucket, key, err := splitURI(uri)
	if err != nil {
		return err
	}
	_, err = s.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("upload %s: %w", uri, err))
	}
	return nil
}

func splitURI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	if trimmed == uri {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 uri: %q", uri)
	}
	return parts[0], parts[1], nil
}

func classifyMinio(ref string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return errno.Classify(errno.ErrObjectNotFound, fmt.Errorf("%s: %w", ref, err))
	}
	return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("%s: %w", ref, err))
}
