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

type FeedbackRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.FeedbackMapper
}

func NewFeedbackRepository(db *gorm.DB) contract.FeedbackRepository {
	return &FeedbackRepositoryImpl{
		db:     db,
		mapper: mapper.NewFeedbackMapper(),
	}
}

func (r *FeedbackRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *FeedbackRepositoryImpl) CreateSectionFeedback(ctx context.Context, event *entity.FeedbackEvent) error {
	m := r.mapper.SectionFeedbackToModel(event)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	event.Id = m.Id
	return nil
}

func (r *FeedbackRepositoryImpl) CreateRating(ctx context.Context, event *entity.FeedbackEvent) error {
	m := r.mapper.StarRatingToModel(event)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	event.Id = m.Id
	return nil
}

func (r *FeedbackRepositoryImpl) FindSectionFeedback(ctx context.Context, specs ...specification.Specification) ([]*entity.FeedbackEvent, error) {
	var models []*model.SectionFeedback
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.SectionFeedbackToEntities(models), nil
}

func (r *FeedbackRepositoryImpl) FindRatings(ctx context.Context, specs ...specification.Specification) ([]*entity.FeedbackEvent, error) {
	var models []*model.StarRating
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.StarRatingsToEntities(models), nil
}

func (r *FeedbackRepositoryImpl) CountSectionFeedback(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.SectionFeedback{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FeedbackRepositoryImpl) SectionBreakdown(ctx context.Context, specs ...specification.Specification) ([]entity.SectionStat, error) {
	var rows []model.SectionStatRow
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.SectionFeedback{}), specs...)
	err := query.
		Select("section_id, " +
			"COUNT(*) FILTER (WHERE polarity = 'positive') AS positive, " +
			"COUNT(*) FILTER (WHERE polarity = 'negative') AS negative").
		Group("section_id").
		Order("section_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.SectionStatsToEntities(rows), nil
}
