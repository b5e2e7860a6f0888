package service

import (
	"context"
	"strings"
	"time"

	"property-insight-be/internal/dto"
	"property-insight-be/internal/entity"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/repository/specification"
	"property-insight-be/internal/repository/unitofwork"
	insightEvents "property-insight-be/pkg/insight/events"
)

const feedbackListLimit = 500

type IFeedbackService interface {
	SubmitSectionFeedback(ctx context.Context, req *dto.SectionFeedbackRequest, callerId *string) (*dto.SectionFeedbackResponse, error)
	SubmitStarRating(ctx context.Context, req *dto.StarRatingRequest, callerId *string) (*dto.StarRatingResponse, error)
	ListSectionFeedback(ctx context.Context, sessionId, sectionId string) (*dto.SectionFeedbackListResponse, error)
	GetSectionFeedbackStats(ctx context.Context) (*dto.FeedbackStatsResponse, error)
	ListStarRatings(ctx context.Context, sessionId string) (*dto.StarRatingListResponse, error)
	GetAggregate(ctx context.Context, sessionId string) (*dto.FeedbackAggregateResponse, error)
	ListTriggers(ctx context.Context, sessionId string) ([]*dto.TriggerRecordResponse, error)
}

type feedbackService struct {
	aggregator IFeedbackAggregator
	triggers   ITriggerService
	uowFactory unitofwork.RepositoryFactory
	events     insightEvents.Publisher
	logger     logger.ILogger
	now        func() time.Time
}

func NewFeedbackService(
	aggregator IFeedbackAggregator,
	triggers ITriggerService,
	uowFactory unitofwork.RepositoryFactory,
	events insightEvents.Publisher,
	logger logger.ILogger,
) IFeedbackService {
	return &feedbackService{
		aggregator: aggregator,
		triggers:   triggers,
		uowFactory: uowFactory,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// resolveTimestamp accepts RFC3339 (with or without fractional seconds) and
// defaults to now.
func (s *feedbackService) resolveTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, &entity.ValidationError{Field: "timestamp", Reason: "must be an RFC3339 timestamp"}
	}
	return t.UTC(), nil
}

// resolveUser prefers the identity in the body over the caller's token.
func resolveUser(bodyUser, callerId *string) *string {
	if bodyUser != nil && strings.TrimSpace(*bodyUser) != "" {
		return bodyUser
	}
	return callerId
}

// record stores the event and runs the trigger. A trigger failure never
// fails the submission.
func (s *feedbackService) record(ctx context.Context, event *entity.FeedbackEvent) (TriggerOutcome, error) {
	if _, err := s.aggregator.Record(ctx, event); err != nil {
		return TriggerOutcome{}, err
	}
	s.events.PublishFeedbackRecorded(ctx, event)

	outcome, err := s.triggers.OnFeedbackRecorded(ctx, event.SessionId)
	if err != nil {
		s.logger.Error("FEEDBACK", "Trigger evaluation failed", map[string]interface{}{
			"session_id": event.SessionId,
			"error":      err.Error(),
		})
	}
	return outcome, nil
}

func (s *feedbackService) SubmitSectionFeedback(ctx context.Context, req *dto.SectionFeedbackRequest, callerId *string) (*dto.SectionFeedbackResponse, error) {
	at, err := s.resolveTimestamp(req.Timestamp)
	if err != nil {
		return nil, err
	}

	event := entity.NewSectionFeedback(
		strings.TrimSpace(req.SessionId),
		strings.TrimSpace(req.SectionId),
		entity.Polarity(req.Feedback),
		at,
		resolveUser(req.UserId, callerId),
	)
	outcome, err := s.record(ctx, event)
	if err != nil {
		return nil, err
	}

	return &dto.SectionFeedbackResponse{
		SessionId:        event.SessionId,
		SectionId:        event.SectionId,
		Feedback:         string(event.Polarity),
		Timestamp:        event.Timestamp,
		TriggerActivated: outcome.Activated,
		TriggerDetails:   outcome.Details,
	}, nil
}

func (s *feedbackService) SubmitStarRating(ctx context.Context, req *dto.StarRatingRequest, callerId *string) (*dto.StarRatingResponse, error) {
	at, err := s.resolveTimestamp(req.Timestamp)
	if err != nil {
		return nil, err
	}

	event := entity.NewStarRating(strings.TrimSpace(req.SessionId), req.OverallRating, at, resolveUser(req.UserId, callerId))
	outcome, err := s.record(ctx, event)
	if err != nil {
		return nil, err
	}

	return &dto.StarRatingResponse{
		SessionId:        event.SessionId,
		OverallRating:    event.Rating,
		Timestamp:        event.Timestamp,
		TriggerActivated: outcome.Activated,
		TriggerDetails:   outcome.Details,
	}, nil
}

func (s *feedbackService) ListSectionFeedback(ctx context.Context, sessionId, sectionId string) (*dto.SectionFeedbackListResponse, error) {
	var filters []specification.Specification
	if sessionId != "" {
		filters = append(filters, specification.BySessionID{SessionID: sessionId})
	}
	if sectionId != "" {
		filters = append(filters, specification.BySectionID{SectionID: sectionId})
	}

	repo := s.uowFactory.NewUnitOfWork(ctx).FeedbackRepository()
	count, err := repo.CountSectionFeedback(ctx, filters...)
	if err != nil {
		return nil, err
	}
	events, err := repo.FindSectionFeedback(ctx, append(filters,
		specification.OrderBy{Field: "timestamp", Desc: true},
		specification.Pagination{Limit: feedbackListLimit},
	)...)
	if err != nil {
		return nil, err
	}

	items := make([]dto.SectionFeedbackItem, len(events))
	for i, e := range events {
		items[i] = dto.SectionFeedbackItem{
			Id:        e.Id,
			SessionId: e.SessionId,
			SectionId: e.SectionId,
			Feedback:  string(e.Polarity),
			UserId:    e.UserId,
			Timestamp: e.Timestamp,
		}
	}
	return &dto.SectionFeedbackListResponse{Feedback: items, Count: count}, nil
}

func (s *feedbackService) GetSectionFeedbackStats(ctx context.Context) (*dto.FeedbackStatsResponse, error) {
	repo := s.uowFactory.NewUnitOfWork(ctx).FeedbackRepository()

	stats, err := repo.SectionBreakdown(ctx)
	if err != nil {
		return nil, err
	}

	res := &dto.FeedbackStatsResponse{Sections: make([]dto.SectionBreakdownItem, len(stats))}
	for i, st := range stats {
		res.Positive += st.Positive
		res.Negative += st.Negative
		res.Sections[i] = dto.SectionBreakdownItem{
			SectionId: st.SectionId,
			Positive:  st.Positive,
			Negative:  st.Negative,
			Total:     st.Positive + st.Negative,
		}
	}
	res.Total = res.Positive + res.Negative
	if res.Total > 0 {
		res.PositivePercentage = float64(res.Positive) * 100 / float64(res.Total)
	}
	return res, nil
}

func (s *feedbackService) ListStarRatings(ctx context.Context, sessionId string) (*dto.StarRatingListResponse, error) {
	specs := []specification.Specification{
		specification.OrderBy{Field: "timestamp", Desc: true},
		specification.Pagination{Limit: feedbackListLimit},
	}
	if sessionId != "" {
		specs = append(specs, specification.BySessionID{SessionID: sessionId})
	}

	ratings, err := s.uowFactory.NewUnitOfWork(ctx).FeedbackRepository().FindRatings(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := &dto.StarRatingListResponse{Ratings: make([]dto.StarRatingItem, len(ratings)), Count: len(ratings)}
	sum := 0
	for i, r := range ratings {
		sum += r.Rating
		res.Ratings[i] = dto.StarRatingItem{
			Id:            r.Id,
			SessionId:     r.SessionId,
			OverallRating: r.Rating,
			UserId:        r.UserId,
			Timestamp:     r.Timestamp,
		}
	}
	if len(ratings) > 0 {
		res.AverageRating = float64(sum) / float64(len(ratings))
	}
	return res, nil
}

func (s *feedbackService) GetAggregate(ctx context.Context, sessionId string) (*dto.FeedbackAggregateResponse, error) {
	agg, err := s.aggregator.Aggregate(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	res := &dto.FeedbackAggregateResponse{
		SessionId:     sessionId,
		Sections:      make(map[string]dto.SectionTallyResponse, len(agg.Sections)),
		RatingCount:   agg.RatingCount(),
		AverageRating: agg.AverageRating,
	}
	for id, tally := range agg.Sections {
		res.Sections[id] = dto.SectionTallyResponse{
			Positive:      tally.Positive,
			Negative:      tally.Negative,
			NegativeRatio: tally.NegativeRatio(),
		}
	}
	if !agg.LastEventAt.IsZero() {
		t := agg.LastEventAt
		res.LastEventAt = &t
	}

	marker, err := s.triggers.Cooldown(ctx, sessionId)
	if err != nil {
		s.logger.Warn("FEEDBACK", "Failed to read cooldown", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
	if marker != nil {
		res.Cooldown = &dto.CooldownResponse{
			Phase:     string(marker.Phase),
			ArmedAt:   marker.ArmedAt,
			ExpiresAt: marker.ExpiresAt,
		}
	}
	return res, nil
}

func (s *feedbackService) ListTriggers(ctx context.Context, sessionId string) ([]*dto.TriggerRecordResponse, error) {
	records, err := s.triggers.ListTriggers(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.TriggerRecordResponse, len(records))
	for i, r := range records {
		res[i] = &dto.TriggerRecordResponse{
			Id:          r.Id,
			SessionId:   r.SessionId,
			TriggeredAt: r.TriggeredAt,
			Reason:      string(r.Reason),
			Details:     r.Details,
		}
	}
	return res, nil
}
