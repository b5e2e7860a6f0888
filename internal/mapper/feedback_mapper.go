package mapper

import (
	"property-insight-be/internal/entity"
	"property-insight-be/internal/model"
)

type FeedbackMapper struct{}

func NewFeedbackMapper() *FeedbackMapper {
	return &FeedbackMapper{}
}

func (m *FeedbackMapper) SectionFeedbackToModel(e *entity.FeedbackEvent) *model.SectionFeedback {
	if e == nil {
		return nil
	}
	return &model.SectionFeedback{
		Id:        e.Id,
		SessionId: e.SessionId,
		SectionId: e.SectionId,
		Polarity:  string(e.Polarity),
		UserId:    e.UserId,
		Timestamp: e.Timestamp,
	}
}

func (m *FeedbackMapper) SectionFeedbackToEntity(f *model.SectionFeedback) *entity.FeedbackEvent {
	if f == nil {
		return nil
	}
	return &entity.FeedbackEvent{
		Id:        f.Id,
		Kind:      entity.FeedbackKindSection,
		SessionId: f.SessionId,
		SectionId: f.SectionId,
		Polarity:  entity.Polarity(f.Polarity),
		UserId:    f.UserId,
		Timestamp: f.Timestamp,
	}
}

func (m *FeedbackMapper) StarRatingToModel(e *entity.FeedbackEvent) *model.StarRating {
	if e == nil {
		return nil
	}
	return &model.StarRating{
		Id:        e.Id,
		SessionId: e.SessionId,
		Rating:    e.Rating,
		UserId:    e.UserId,
		Timestamp: e.Timestamp,
	}
}

func (m *FeedbackMapper) StarRatingToEntity(r *model.StarRating) *entity.FeedbackEvent {
	if r == nil {
		return nil
	}
	return &entity.FeedbackEvent{
		Id:        r.Id,
		Kind:      entity.FeedbackKindRating,
		SessionId: r.SessionId,
		Rating:    r.Rating,
		UserId:    r.UserId,
		Timestamp: r.Timestamp,
	}
}

func (m *FeedbackMapper) SectionFeedbackToEntities(models []*model.SectionFeedback) []*entity.FeedbackEvent {
	entities := make([]*entity.FeedbackEvent, len(models))
	for i, f := range models {
		entities[i] = m.SectionFeedbackToEntity(f)
	}
	return entities
}

func (m *FeedbackMapper) StarRatingsToEntities(models []*model.StarRating) []*entity.FeedbackEvent {
	entities := make([]*entity.FeedbackEvent, len(models))
	for i, r := range models {
		entities[i] = m.StarRatingToEntity(r)
	}
	return entities
}

func (m *FeedbackMapper) SectionStatsToEntities(rows []model.SectionStatRow) []entity.SectionStat {
	stats := make([]entity.SectionStat, len(rows))
	for i, row := range rows {
		stats[i] = entity.SectionStat{
			SectionId: row.SectionId,
			Positive:  row.Positive,
			Negative:  row.Negative,
		}
	}
	return stats
}
