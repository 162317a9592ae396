package blob

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

type memoryEntry struct {
	info Info
	data []byte
}

// Memory keeps blobs in process memory. URLs point at the /blobs/ handler
// like the filesystem driver.
type Memory struct {
	baseURL string

	mu   sync.RWMutex
	objs map[string]memoryEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, objs: make(map[string]memoryEntry)}
}

func (s *Memory) Driver() Driver { return DriverMemory }

func (s *Memory) Put(_ context.Context, key string, r io.Reader, contentType string) (Info, error) {
	k, err := CleanKey(key)
	if err != nil {
		return Info{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	info := Info{Key: k, Size: int64(len(b)), ContentType: contentType}

	s.mu.Lock()
	s.objs[k] = memoryEntry{info: info, data: b}
	s.mu.Unlock()
	return info, nil
}

func (s *Memory) Open(_ context.Context, key string) (Info, io.ReadCloser, error) {
	k, err := CleanKey(key)
	if err != nil {
		return Info{}, nil, err
	}
	s.mu.RLock()
	obj, ok := s.objs[k]
	s.mu.RUnlock()
	if !ok {
		return Info{}, nil, ErrNotFound
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objs, k)
	s.mu.Unlock()
	return nil
}

func (s *Memory) URL(_ context.Context, key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return localURL(s.baseURL, k), nil
}

// Keys returns all stored keys in lexical order.
func (s *Memory) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objs))
	for k := range s.objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
