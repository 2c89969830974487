package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DenyList records revoked token ids until their natural expiry.
type DenyList interface {
	Add(ctx context.Context, id string, until time.Time) error
	Contains(ctx context.Context, id string) (bool, error)
}

// MemoryDenyList is a process-local deny-list. Entries are dropped lazily
// once expired.
type MemoryDenyList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenyList() *MemoryDenyList {
	return &MemoryDenyList{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryDenyList) Add(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !until.After(m.now()) {
		return nil
	}
	m.entries[id] = until
	return nil
}

func (m *MemoryDenyList) Contains(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.entries[id]
	if !ok {
		return false, nil
	}
	if !until.After(m.now()) {
		delete(m.entries, id)
		return false, nil
	}
	return true, nil
}

// Len reports the number of live entries.
func (m *MemoryDenyList) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := m.now()
	for id, until := range m.entries {
		if until.After(now) {
			n++
		} else {
			delete(m.entries, id)
		}
	}
	return n
}

const revokedKeyPrefix = "auth:revoked:"

// RedisDenyList shares revocations across instances; keys expire with the
// token they revoke.
type RedisDenyList struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisDenyList(rdb redis.Cmdable) *RedisDenyList {
	return &RedisDenyList{rdb: rdb, now: time.Now}
}

func (r *RedisDenyList) Add(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKeyPrefix+id, 1, ttl).Err()
}

func (r *RedisDenyList) Contains(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
