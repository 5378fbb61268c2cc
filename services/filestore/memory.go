package filesvc

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

type memoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps objects in memory. Its URLs are not downloadable.
type MemoryStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]memoryObject
}

var _ core.FileStore = (*MemoryStore)(nil)

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (s *MemoryStore) PresignedURL(_ context.Context, key, filename string, expiry time.Duration) (string, error) {
	u := url.URL{Scheme: "memory", Host: s.bucket, Path: "/" + key}
	q := u.Query()
	q.Set("filename", filename)
	q.Set("expires", expiry.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Object returns the data stored under key.
func (s *MemoryStore) Object(key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj.Data, obj.ContentType, ok
}
