package contract

import (
	"context"
	"time"

	"property-insight-be/internal/entity"
)

// CooldownStore owns the per-session trigger cooldown marker.
type CooldownStore interface {
	// Acquire sets an armed marker if none exists. Exactly one concurrent
	// caller per session gets true.
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	// MarkRunning moves an armed marker to running, keeping its expiry.
	// It reports whether a transition happened.
	MarkRunning(ctx context.Context, sessionID string) (bool, error)
	Release(ctx context.Context, sessionID string) error
	// Get returns the live marker or nil.
	Get(ctx context.Context, sessionID string) (*entity.CooldownMarker, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}
