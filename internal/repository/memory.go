package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is the in-process locker used without Redis or while Redis is down.
type MemoryLocker struct {
	mu         sync.Mutex
	locks      map[string]lockEntry
	rateLimits sync.Map
	now        func() time.Time
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]lockEntry), now: time.Now}
}

func (m *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.locks[key]; ok && now.Before(e.expiresAt) {
		return "", false, nil
	}
	token := memoryTokenPrefix + uuid.NewString()
	m.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (m *MemoryLocker) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.locks[key]; ok && e.token == token {
		delete(m.locks, key)
	}
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (m *MemoryLocker) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := m.now()
	val, _ := m.rateLimits.LoadOrStore(key, &rateLimitEntry{expiresAt: now.Add(window)})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
