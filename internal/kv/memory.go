package kv

import (
	"context"
	"path"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// Memory is an in-process Store used by tests and local development.
// The clock is injectable so TTL behavior can be tested deterministically.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	lists   map[string][]string
	Now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		lists:   make(map[string][]string),
		Now:     time.Now,
	}
}

func (m *Memory) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.Now().Before(e.expiresAt)
}

func (m *Memory) GetWithTTL(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		delete(m.entries, key)
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !m.expired(e) {
		return false, nil
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	m.entries[key] = e
	return true, nil
}

func (m *Memory) ScanByPrefix(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *Memory) ListPush(_ context.Context, key, item string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists[key] = append([]string{item}, m.lists[key]...)
	return nil
}

func (m *Memory) ListPop(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.lists[key]
	if len(list) == 0 {
		return "", ErrNotFound
	}
	item := list[len(list)-1]
	m.lists[key] = list[:len(list)-1]
	return item, nil
}

func (m *Memory) ListLength(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.lists[key])), nil
}
