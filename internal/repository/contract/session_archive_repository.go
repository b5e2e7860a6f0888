package contract

import (
	"context"

	"property-insight-be/pkg/store"
)

// SessionArchiveRepository is the read-only fallback store of persisted
// engine snapshots. A missing session is (nil, nil).
type SessionArchiveRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*store.Session, error)
}
