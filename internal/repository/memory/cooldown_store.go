package memory

import (
	"context"
	"sync"
	"time"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/repository/contract"
)

// CooldownStore is a mutex-guarded marker map for single-instance deployments.
type CooldownStore struct {
	mu      sync.Mutex
	markers map[string]entity.CooldownMarker
	now     func() time.Time
}

var _ contract.CooldownStore = (*CooldownStore)(nil)

func NewCooldownStore() *CooldownStore {
	return NewCooldownStoreWithClock(time.Now)
}

func NewCooldownStoreWithClock(now func() time.Time) *CooldownStore {
	return &CooldownStore{
		markers: make(map[string]entity.CooldownMarker),
		now:     now,
	}
}

// live returns the marker if it has not expired. Caller holds mu.
func (s *CooldownStore) live(sessionID string) (entity.CooldownMarker, bool) {
	m, ok := s.markers[sessionID]
	if !ok {
		return m, false
	}
	if !s.now().Before(m.ExpiresAt) {
		delete(s.markers, sessionID)
		return m, false
	}
	return m, true
}

func (s *CooldownStore) Acquire(_ context.Context, sessionID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(sessionID); ok {
		return false, nil
	}
	now := s.now()
	s.markers[sessionID] = entity.CooldownMarker{
		SessionId: sessionID,
		Phase:     entity.CooldownArmed,
		ArmedAt:   now,
		ExpiresAt: now.Add(ttl),
	}
	return true, nil
}

func (s *CooldownStore) MarkRunning(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.live(sessionID)
	if !ok || m.Phase != entity.CooldownArmed {
		return false, nil
	}
	m.Phase = entity.CooldownRunning
	s.markers[sessionID] = m
	return true, nil
}

func (s *CooldownStore) Release(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, sessionID)
	return nil
}

func (s *CooldownStore) Get(_ context.Context, sessionID string) (*entity.CooldownMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.live(sessionID)
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *CooldownStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, m := range s.markers {
		if !now.Before(m.ExpiresAt) {
			delete(s.markers, id)
			removed++
		}
	}
	return removed, nil
}
