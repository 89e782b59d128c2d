package testutil

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// ErrInjected is returned by MemoryKV when a failure has been armed.
var ErrInjected = errors.New("injected failure")

// MemoryKV is an in-memory key/value collaborator with failure injection.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string]string
	failGet  bool
	failSet  bool
	setCalls int
}

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get returns the value for key.
func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", false, ErrInjected
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.failSet {
		return ErrInjected
	}
	m.data[key] = value
	return nil
}

// FailGets makes subsequent Get calls fail (or succeed again).
func (m *MemoryKV) FailGets(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = fail
}

// FailSets makes subsequent Set calls fail (or succeed again).
func (m *MemoryKV) FailSets(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = fail
}

// Put seeds a raw value, bypassing failure injection.
func (m *MemoryKV) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Snapshot returns a copy of the stored data.
func (m *MemoryKV) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.data)
}

// SetCalls returns how many times Set was called, including failures.
func (m *MemoryKV) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}
