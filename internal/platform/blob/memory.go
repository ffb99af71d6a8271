package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is a stored blob as seen by tests.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps objects in process. Used in demo mode and tests.
type MemoryStore struct {
	mu      sync.Mutex
	base    string
	bucket  string
	objects map[string]Object
}

func NewMemoryStore(base, bucket string) *MemoryStore {
	return &MemoryStore{base: base, bucket: bucket, objects: make(map[string]Object)}
}

func (s *MemoryStore) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{ContentType: contentType, Data: buf.Bytes()}
	return s.PublicURL(key), nil
}

func (s *MemoryStore) Delete(_ context.Context, rawURL string) error {
	key, ok := s.PathFromURL(rawURL)
	if !ok {
		return fmt.Errorf("%w: %s", errForeignURL, rawURL)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return publicURL(s.base, s.bucket, key)
}

func (s *MemoryStore) PathFromURL(raw string) (string, bool) {
	return pathFromURL(s.base, s.bucket, raw)
}

// Get returns a stored object by key.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	return o, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
