package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property-insight-be/internal/repository/contract"
	"property-insight-be/pkg/store"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "insight:session:"

type cachedSession struct {
	CapturedAt time.Time       `json:"capturedAt"`
	Snapshot   json.RawMessage `json:"snapshot"`
}

// SessionCacheStore shares snapshots across instances. Keys carry a TTL of
// maxAge so Redis performs the eviction itself.
type SessionCacheStore struct {
	rdb    *redis.Client
	maxAge time.Duration
}

var _ contract.SessionCacheStore = (*SessionCacheStore)(nil)

func NewSessionCacheStore(rdb *redis.Client, maxAge time.Duration) *SessionCacheStore {
	return &SessionCacheStore{rdb: rdb, maxAge: maxAge}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (s *SessionCacheStore) Get(ctx context.Context, sessionID string) (*contract.CacheEntry, bool, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session %s: %w", sessionID, err)
	}

	var cached cachedSession
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, fmt.Errorf("decode cached session %s: %w", sessionID, err)
	}
	session, err := store.ParseSession(cached.Snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached session %s: %w", sessionID, err)
	}
	return &contract.CacheEntry{Session: session, CapturedAt: cached.CapturedAt}, true, nil
}

func (s *SessionCacheStore) Set(ctx context.Context, entry *contract.CacheEntry) error {
	payload, err := json.Marshal(cachedSession{
		CapturedAt: entry.CapturedAt,
		Snapshot:   entry.Session.Raw(),
	})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, sessionKey(entry.Session.SessionID), payload, s.maxAge).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", entry.Session.SessionID, err)
	}
	return nil
}

func (s *SessionCacheStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

// Sweep is a no-op: keys expire on their own.
func (s *SessionCacheStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
