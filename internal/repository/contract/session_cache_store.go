package contract

import (
	"context"
	"time"

	"property-insight-be/pkg/store"
)

// CacheEntry is the last snapshot fetched from the engine for a session.
type CacheEntry struct {
	Session    *store.Session
	CapturedAt time.Time
}

// Age is measured against the caller's clock.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}

// SessionCacheStore holds at most one entry per session id. Set replaces the
// entry as a whole.
type SessionCacheStore interface {
	Get(ctx context.Context, sessionID string) (*CacheEntry, bool, error)
	Set(ctx context.Context, entry *CacheEntry) error
	Delete(ctx context.Context, sessionID string) error
	// Sweep drops entries captured more than the store's max age before now
	// and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
