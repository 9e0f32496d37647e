package store

import (
	"context"
	"errors"
	"sync"
)

// Well-known keys.
const (
	// KeySecurityState holds the security engine blob: settings, failed
	// attempt counter, lock state and the recent event ring.
	KeySecurityState = "security_state"

	// KeyAuthToken holds the bearer token presented to the dashboard.
	KeyAuthToken = "auth_token"

	// KeyDeviceID holds the dashboard-assigned device identifier.
	KeyDeviceID = "device_id"
)

// Store is an opaque key/value blob store.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

// Remove deletes key.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// GetString is a convenience wrapper returning the value as a string.
func GetString(ctx context.Context, s Store, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// SetIfAbsent stores value under key only when nothing is stored yet.
// It reports whether the value was written.
func SetIfAbsent(ctx context.Context, s Store, key string, value []byte) (bool, error) {
	_, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, err
	}
	if err := s.Set(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}
