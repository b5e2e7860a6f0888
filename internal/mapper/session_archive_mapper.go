package mapper

import (
	"fmt"

	"property-insight-be/internal/model"
	"property-insight-be/pkg/store"
)

type SessionArchiveMapper struct{}

func NewSessionArchiveMapper() *SessionArchiveMapper {
	return &SessionArchiveMapper{}
}

// ToSession parses the archived engine document through the same ingestion
// checks as a live fetch.
func (m *SessionArchiveMapper) ToSession(a *model.AnalysisSession) (*store.Session, error) {
	if a == nil {
		return nil, nil
	}
	s, err := store.ParseSession(a.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("archived session %s: %w", a.SessionId, err)
	}
	return s, nil
}
