package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Backend is a durable key to bytes mapping. Writes are visible to the next Get.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

type MemoryBackend struct {
	mu    sync.Mutex
	data  map[string][]byte
	used  int
	Quota int // max total bytes of keys and values, 0 means unlimited
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used
	if old, ok := m.data[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if m.Quota > 0 && used > m.Quota {
		return ErrQuotaExceeded
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.used = used
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

// Raw overwrites a key without any checks. Tests use it to plant corrupted values.
func (m *MemoryBackend) Raw(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}
