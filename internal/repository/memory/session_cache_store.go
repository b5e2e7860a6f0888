package memory

import (
	"context"
	"time"

	"property-insight-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// SessionCacheStore keeps session snapshots in a go-cache. Items expire
// maxAge after they were set; the janitor is disabled because eviction is
// driven by the scheduled sweep.
type SessionCacheStore struct {
	cache  *cache.Cache
	maxAge time.Duration
}

var _ contract.SessionCacheStore = (*SessionCacheStore)(nil)

func NewSessionCacheStore(maxAge time.Duration) *SessionCacheStore {
	return &SessionCacheStore{
		cache:  cache.New(maxAge, 0),
		maxAge: maxAge,
	}
}

func (s *SessionCacheStore) Get(_ context.Context, sessionID string) (*contract.CacheEntry, bool, error) {
	if x, found := s.cache.Get(sessionID); found {
		return x.(*contract.CacheEntry), true, nil
	}
	return nil, false, nil
}

func (s *SessionCacheStore) Set(_ context.Context, entry *contract.CacheEntry) error {
	s.cache.Set(entry.Session.SessionID, entry, cache.DefaultExpiration)
	return nil
}

func (s *SessionCacheStore) Delete(_ context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}

func (s *SessionCacheStore) Sweep(_ context.Context, now time.Time) (int, error) {
	removed := 0
	for key, item := range s.cache.Items() {
		entry, ok := item.Object.(*contract.CacheEntry)
		if !ok || entry.Age(now) > s.maxAge {
			s.cache.Delete(key)
			removed++
		}
	}
	before := s.cache.ItemCount()
	s.cache.DeleteExpired()
	removed += before - s.cache.ItemCount()
	return removed, nil
}

func (s *SessionCacheStore) Len() int {
	return s.cache.ItemCount()
}
