package storage

import (
	"context"
	"sync"
)

// InMemoryBackend keeps values in process memory for local/dev use and tests.
type InMemoryBackend struct {
	mu      sync.RWMutex
	values  map[string][]byte
	closed  bool
	putHook func(key string, value []byte) error
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{values: make(map[string][]byte)}
}

// SetPutHook installs a function run before every Put; a non-nil error
// fails the write. Tests use it to simulate quota or outage failures.
func (b *InMemoryBackend) SetPutHook(hook func(key string, value []byte) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putHook = hook
}

func (b *InMemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	v, ok := b.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (b *InMemoryBackend) Put(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.putHook != nil {
		if err := b.putHook(key, value); err != nil {
			return err
		}
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	b.values[key] = stored
	return nil
}

func (b *InMemoryBackend) Kind() string { return "memory" }

func (b *InMemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
