package implementation

import (
	"context"
	"errors"

	"property-insight-be/internal/mapper"
	"property-insight-be/internal/model"
	"property-insight-be/internal/repository/contract"
	"property-insight-be/pkg/store"

	"gorm.io/gorm"
)

type SessionArchiveRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionArchiveMapper
}

func NewSessionArchiveRepository(db *gorm.DB) contract.SessionArchiveRepository {
	return &SessionArchiveRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionArchiveMapper(),
	}
}

func (r *SessionArchiveRepositoryImpl) FindBySessionID(ctx context.Context, sessionID string) (*store.Session, error) {
	var m model.AnalysisSession
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToSession(&m)
}
