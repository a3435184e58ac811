package utils

import (
	"sync"
	"time"
)

// memoryStore is the single-instance fallback for short-lived keys when Redis is absent.
type memoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: map[string]memoryEntry{}}
}

var localStore = newMemoryStore()

func (m *memoryStore) getLocked(key string, now time.Time) (memoryEntry, bool) {
	e, ok := m.items[key]
	if ok && !now.Before(e.expiresAt) {
		delete(m.items, key)
		return memoryEntry{}, false
	}
	return e, ok
}

func (m *memoryStore) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key, time.Now())
	return e.value, ok
}

func (m *memoryStore) set(key, value string, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// setNX stores value only when key is absent or expired.
func (m *memoryStore) setNX(key, value string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if _, ok := m.getLocked(key, now); ok {
		return false
	}
	m.items[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return true
}

// delIf removes key only while it still holds value.
func (m *memoryStore) delIf(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.items[key]; ok && e.value == value {
		delete(m.items, key)
	}
}
