package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process implementation, suitable for development and tests only.
type MemoryStore struct {
	revoked map[string]time.Time // user id -> expiry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Consumer = (*MemoryStore)(nil)
)

// NewMemoryStore creates a store whose flags expire after ttl. A ttl <= 0 keeps flags until observed.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		revoked: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Revoke(_ context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if m.ttl > 0 {
		exp = m.now().Add(m.ttl)
	}
	m.revoked[userID] = exp
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, exists := m.revoked[userID]
	return exists && !m.expired(exp), nil
}

func (m *MemoryStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revoked, userID)
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, exists := m.revoked[userID]
	if !exists {
		return false, nil
	}
	delete(m.revoked, userID)
	return !m.expired(exp), nil
}

// Cleanup removes expired flags.
func (m *MemoryStore) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, exp := range m.revoked {
		if m.expired(exp) {
			delete(m.revoked, userID)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (m *MemoryStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// Len is the number of flags held, including expired ones not yet cleaned up.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.revoked)
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) expired(exp time.Time) bool {
	return !exp.IsZero() && m.now().After(exp)
}
