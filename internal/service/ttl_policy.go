package service

import (
	"time"

	"property-insight-be/pkg/store"
)

const (
	ttlPending  = 1 * time.Second
	ttlRunning  = 3 * time.Second
	ttlSettled  = 30 * time.Second
	ttlFallback = 5 * time.Second
)

// CacheTTL is how long a snapshot in the given status may be served from
// cache before it is revalidated against the engine.
func CacheTTL(status store.Status) time.Duration {
	switch status {
	case store.StatusPending:
		return ttlPending
	case store.StatusAnalyzing:
		return ttlRunning
	case store.StatusCompleted, store.StatusDegraded:
		return ttlSettled
	default:
		return ttlFallback
	}
}
