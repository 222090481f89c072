package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/toozej/fuzic/internal/types"
)

const defaultMaxEntries = 10000

// MemoryStore keeps sessions in a size-bounded LRU whose entries expire after a TTL.
// Sessions do not survive a restart.
type MemoryStore struct {
	cache *expirable.LRU[string, types.Session]
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl disables expiry.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, types.Session](maxEntries, nil, ttl),
		now:   time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*types.Session, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Save(_ context.Context, s *types.Session) error {
	if s == nil || s.ID == "" {
		return types.ValidationError("session id is required")
	}
	stamp(s, m.now())
	m.cache.Add(s.ID, *clone(*s))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

func (m *MemoryStore) Close() error {
	m.cache.Purge()
	return nil
}

func clone(s types.Session) *types.Session {
	if s.Token != nil {
		tok := *s.Token
		s.Token = &tok
	}
	return &s
}

func stamp(s *types.Session, now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}
