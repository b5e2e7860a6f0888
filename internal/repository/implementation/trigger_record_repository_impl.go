package implementation

import (
	"context"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/mapper"
	"property-insight-be/internal/model"
	"property-insight-be/internal/repository/contract"
	"property-insight-be/internal/repository/specification"

	"gorm.io/gorm"
)

type TriggerRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TriggerMapper
}

func NewTriggerRecordRepository(db *gorm.DB) contract.TriggerRecordRepository {
	return &TriggerRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewTriggerMapper(),
	}
}

func (r *TriggerRecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *TriggerRecordRepositoryImpl) Create(ctx context.Context, record *entity.TriggerRecord) error {
	m, err := r.mapper.ToModel(record)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	record.Id = m.Id
	return nil
}

func (r *TriggerRecordRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TriggerRecord, error) {
	var models []*model.TriggerRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *TriggerRecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.TriggerRecord{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
