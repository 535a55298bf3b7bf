package gateway

import "context"

// ObjectStore is the durable blob store holding transcript checkpoints,
// progress documents, worker heartbeats and the queue metrics document.
// Key-based operations address the pipeline bucket; the URI operations accept
// s3://bucket/key paths from job descriptors, which may point elsewhere.
//
// GetObject returns errno.ErrObjectNotFound (wrapped) for missing keys.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DownloadURI(ctx context.Context, uri, localPath string) error
	UploadURI(ctx context.Context, localPath, uri string) error
}
