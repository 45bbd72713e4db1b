package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryUsedCodes is a process-local UsedCodeStore. A single instance must be
// shared by every handler in the process.
type MemoryUsedCodes struct {
	mu    sync.Mutex
	codes map[string]time.Time // code -> expiry
	now   func() time.Time
}

var _ UsedCodeStore = (*MemoryUsedCodes)(nil)

// MemoryOption configures a MemoryUsedCodes.
type MemoryOption func(*MemoryUsedCodes)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryUsedCodes) {
		m.now = now
	}
}

// NewMemoryUsedCodes creates an empty in-memory store.
func NewMemoryUsedCodes(opts ...MemoryOption) *MemoryUsedCodes {
	m := &MemoryUsedCodes{
		codes: make(map[string]time.Time),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// live must be called with mu held.
func (m *MemoryUsedCodes) live(code string, now time.Time) bool {
	expiry, ok := m.codes[code]
	return ok && now.Before(expiry)
}

func (m *MemoryUsedCodes) IsUsed(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(code, m.now()), nil
}

func (m *MemoryUsedCodes) MarkUsed(_ context.Context, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = m.now().Add(ttl)
	return nil
}

func (m *MemoryUsedCodes) MarkIfUnused(_ context.Context, code string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.live(code, now) {
		return false, nil
	}
	m.codes[code] = now.Add(ttl)
	return true, nil
}

func (m *MemoryUsedCodes) Remove(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, code)
	return nil
}

func (m *MemoryUsedCodes) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for code := range m.codes {
		if m.live(code, now) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryUsedCodes) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for code, expiry := range m.codes {
		if !now.Before(expiry) {
			delete(m.codes, code)
			removed++
		}
	}
	return removed, nil
}

// Size returns the number of entries including expired ones not yet swept.
func (m *MemoryUsedCodes) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

func (m *MemoryUsedCodes) Close() error {
	return nil
}
