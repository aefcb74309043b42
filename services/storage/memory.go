package storagesvc

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Object is a file kept by MemoryStorage.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStorage keeps files in memory. Its URLs are not servable.
type MemoryStorage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

var _ core.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{baseURL: baseURL, objects: make(map[string]Object)}
}

func (s *MemoryStorage) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return errors.Wrap(err, "reading object")
	}
	if int64(len(data)) != size {
		return errors.Errorf("short object: read %d of %d bytes", len(data), size)
	}

	s.mu.Lock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	if _, ok := s.Get(key); !ok {
		return "", errors.Errorf("object %q not found", key)
	}
	v := url.Values{"expires": {strconv.FormatInt(time.Now().Add(expiry).Unix(), 10)}}
	return s.baseURL + "/" + key + "?" + v.Encode(), nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
