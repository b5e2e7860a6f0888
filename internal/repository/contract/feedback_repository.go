package contract

import (
	"context"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/repository/specification"
)

type FeedbackRepository interface {
	CreateSectionFeedback(ctx context.Context, event *entity.FeedbackEvent) error
	CreateRating(ctx context.Context, event *entity.FeedbackEvent) error
	FindSectionFeedback(ctx context.Context, specs ...specification.Specification) ([]*entity.FeedbackEvent, error)
	FindRatings(ctx context.Context, specs ...specification.Specification) ([]*entity.FeedbackEvent, error)
	CountSectionFeedback(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SectionBreakdown groups section feedback by section id.
	SectionBreakdown(ctx context.Context, specs ...specification.Specification) ([]entity.SectionStat, error)
}
