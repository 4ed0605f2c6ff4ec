package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/muziki/core/ai"
)

type memEntry struct {
	val     string
	expires time.Time // zero: never
}

// sweepInterval is how often Set drops all expired entries.
const sweepInterval = 5 * time.Minute

// Memory is a process local cache. Expired entries are dropped when read,
// and swept from Set every sweepInterval.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]memEntry
	now       func() time.Time
	lastSweep time.Time
}

var _ ai.Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.val, true, nil
}

func (m *Memory) Set(_ context.Context, key, val string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > sweepInterval {
		for k, e := range m.entries {
			if !e.expires.IsZero() && !now.Before(e.expires) {
				delete(m.entries, k)
			}
		}
		m.lastSweep = now
	}

	e := memEntry{val: val}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.entries[key] = e
	return nil
}
