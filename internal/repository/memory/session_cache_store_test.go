package memory

import (
	"context"
	"testing"
	"time"

	"property-insight-be/internal/repository/contract"
	"property-insight-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSession(t *testing.T, doc string) *store.Session {
	t.Helper()
	s, err := store.ParseSession([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestSessionCacheStoreReplacesWholeEntry(t *testing.T) {
	ctx := context.Background()
	s := NewSessionCacheStore(time.Minute)
	now := time.Now()

	first := mustSession(t, `{"sessionId":"abc","status":"analyzing","completedSteps":1,"totalSteps":4}`)
	second := mustSession(t, `{"sessionId":"abc","status":"completed","completedSteps":4,"totalSteps":4,"report":{}}`)

	require.NoError(t, s.Set(ctx, &contract.CacheEntry{Session: first, CapturedAt: now}))
	require.NoError(t, s.Set(ctx, &contract.CacheEntry{Session: second, CapturedAt: now.Add(time.Second)}))

	got, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.StatusCompleted, got.Session.Status)
	assert.Equal(t, now.Add(time.Second), got.CapturedAt)
	assert.Equal(t, 1, s.Len())
}

func TestSessionCacheStoreSweep(t *testing.T) {
	ctx := context.Background()
	s := NewSessionCacheStore(5 * time.Minute)
	now := time.Now()

	old := mustSession(t, `{"sessionId":"old","status":"completed"}`)
	fresh := mustSession(t, `{"sessionId":"fresh","status":"pending"}`)
	require.NoError(t, s.Set(ctx, &contract.CacheEntry{Session: old, CapturedAt: now.Add(-6 * time.Minute)}))
	require.NoError(t, s.Set(ctx, &contract.CacheEntry{Session: fresh, CapturedAt: now.Add(-time.Minute)}))

	removed, err := s.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, _ := s.Get(ctx, "old")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "fresh")
	assert.True(t, ok)
}

func TestSessionCacheStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewSessionCacheStore(time.Minute)
	require.NoError(t, s.Set(ctx, &contract.CacheEntry{Session: mustSession(t, `{"sessionId":"abc","status":"pending"}`), CapturedAt: time.Now()}))

	require.NoError(t, s.Delete(ctx, "abc"))
	_, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
