package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned by KV.Get when the key has never been written.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned by KV.Put when the value does not fit.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// KV is a single-namespace byte store. The report collection lives under one key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
	puts   int
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte(nil), value...)
	m.puts++
	return nil
}

// Puts returns the number of successful writes.
func (m *MemoryKV) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// QuotaKV rejects writes larger than a fixed byte budget, the way a browser's
// local storage does.
type QuotaKV struct {
	inner    KV
	maxBytes int
}

// WithQuota wraps inner with a per-value size limit.
func WithQuota(inner KV, maxBytes int) *QuotaKV {
	return &QuotaKV{inner: inner, maxBytes: maxBytes}
}

func (q *QuotaKV) Get(ctx context.Context, key string) ([]byte, error) {
	return q.inner.Get(ctx, key)
}

func (q *QuotaKV) Put(ctx context.Context, key string, value []byte) error {
	if len(value) > q.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrQuotaExceeded, len(value), q.maxBytes)
	}
	return q.inner.Put(ctx, key, value)
}

func (q *QuotaKV) Ping(ctx context.Context) error {
	if p, ok := q.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
