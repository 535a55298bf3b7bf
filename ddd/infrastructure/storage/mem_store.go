package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"transcription-service/pkg/errno"
)

// MemStore is an in-memory gateway.ObjectStore for tests and local runs.
// URI operations treat the bucket name in the URI as part of the key.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// GetObject returns a copy of the stored bytes.
func (s *MemStore) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, errno.Classify(errno.ErrObjectNotFound, fmt.Errorf("key %s", key))
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// PutObject stores a copy of body under key.
func (s *MemStore) PutObject(_ context.Context, key string, body []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(body))
	copy(stored, body)
	s.objects[key] = stored
	return nil
}

// ListKeys returns sorted keys under prefix.
func (s *MemStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// DownloadURI copies a stored object to a local file.
func (s *MemStore) DownloadURI(ctx context.Context, uri, localPath string) error {
	body, err := s.GetObject(ctx, uriKey(uri))
	if err != nil {
		return err
	}
	return os.WriteFile(localPath, body, 0o644)
}

// UploadURI stores a local file's content under the URI-derived key.
func (s *MemStore) UploadURI(ctx context.Context, localPath, uri string) error {
	body, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return s.PutObject(ctx, uriKey(uri), body, "application/json")
}

func uriKey(uri string) string {
	return strings.TrimPrefix(uri, "s3://")
}
