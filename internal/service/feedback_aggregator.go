package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/repository/specification"
	"property-insight-be/internal/repository/unitofwork"
)

type IFeedbackAggregator interface {
	// Record validates, persists and applies one event. It returns the
	// aggregate as it stands right after the event.
	Record(ctx context.Context, event *entity.FeedbackEvent) (entity.FeedbackAggregate, error)
	Aggregate(ctx context.Context, sessionId string) (entity.FeedbackAggregate, error)
	// StartWindow moves the session's window start to base. A base behind the
	// current one is ignored.
	StartWindow(ctx context.Context, sessionId string, base entity.FeedbackBaseline) error
	// EvictIdle drops aggregates untouched for longer than idle. They are
	// hydrated again from the database on next access.
	EvictIdle(idle time.Duration) int
}

// sessionAggregate is guarded by its own mu. evicted marks a value that was
// removed from the index while a caller was waiting for mu.
type sessionAggregate struct {
	mu          sync.Mutex
	hydrated    bool
	evicted     bool
	sections    map[string]entity.SectionTally
	ratings     []int
	ratingSum   int
	baseline    entity.FeedbackBaseline
	lastEventAt time.Time
	lastTouched time.Time
}

func (s *sessionAggregate) apply(event *entity.FeedbackEvent) {
	switch event.Kind {
	case entity.FeedbackKindSection:
		tally := s.sections[event.SectionId]
		if event.Polarity == entity.PolarityNegative {
			tally.Negative++
		} else {
			tally.Positive++
		}
		s.sections[event.SectionId] = tally
	case entity.FeedbackKindRating:
		s.ratings = append(s.ratings, event.Rating)
		s.ratingSum += event.Rating
	}
	if event.Timestamp.After(s.lastEventAt) {
		s.lastEventAt = event.Timestamp
	}
}

func (s *sessionAggregate) snapshot(sessionId string) entity.FeedbackAggregate {
	sections := make(map[string]entity.SectionTally, len(s.sections))
	for id, tally := range s.sections {
		sections[id] = tally
	}
	ratings := make([]int, len(s.ratings))
	copy(ratings, s.ratings)

	var avg float64
	if len(ratings) > 0 {
		avg = float64(s.ratingSum) / float64(len(ratings))
	}

	return entity.FeedbackAggregate{
		SessionId:     sessionId,
		Sections:      sections,
		Ratings:       ratings,
		RatingSum:     s.ratingSum,
		AverageRating: avg,
		LastEventAt:   s.lastEventAt,
		Baseline:      s.baseline,
	}
}

type feedbackAggregator struct {
	mu         sync.Mutex
	sessions   map[string]*sessionAggregate
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
	now        func() time.Time
}

func NewFeedbackAggregator(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) IFeedbackAggregator {
	return &feedbackAggregator{
		sessions:   make(map[string]*sessionAggregate),
		uowFactory: uowFactory,
		logger:     logger,
		now:        time.Now,
	}
}

// acquire returns the hydrated aggregate for sessionId with its lock held.
func (a *feedbackAggregator) acquire(ctx context.Context, sessionId string) (*sessionAggregate, error) {
	for {
		a.mu.Lock()
		agg, ok := a.sessions[sessionId]
		if !ok {
			agg = &sessionAggregate{sections: make(map[string]entity.SectionTally)}
			a.sessions[sessionId] = agg
		}
		a.mu.Unlock()

		agg.mu.Lock()
		if agg.evicted {
			agg.mu.Unlock()
			continue
		}
		if !agg.hydrated {
			if err := a.hydrate(ctx, sessionId, agg); err != nil {
				agg.mu.Unlock()
				return nil, err
			}
		}
		agg.lastTouched = a.now()
		return agg, nil
	}
}

// hydrate loads the persisted history once. Caller holds agg.mu.
func (a *feedbackAggregator) hydrate(ctx context.Context, sessionId string, agg *sessionAggregate) error {
	repo := a.uowFactory.NewUnitOfWork(ctx).FeedbackRepository()
	bySession := specification.BySessionID{SessionID: sessionId}

	stats, err := repo.SectionBreakdown(ctx, bySession)
	if err != nil {
		return fmt.Errorf("hydrate section feedback for %s: %w", sessionId, err)
	}
	ratings, err := repo.FindRatings(ctx, bySession, specification.OrderBy{Field: "timestamp"})
	if err != nil {
		return fmt.Errorf("hydrate ratings for %s: %w", sessionId, err)
	}
	latest, err := repo.FindSectionFeedback(ctx, bySession,
		specification.OrderBy{Field: "timestamp", Desc: true},
		specification.Pagination{Limit: 1},
	)
	if err != nil {
		return fmt.Errorf("hydrate section feedback for %s: %w", sessionId, err)
	}
	lastTrigger, err := a.uowFactory.NewUnitOfWork(ctx).TriggerRecordRepository().FindAll(ctx, bySession,
		specification.OrderBy{Field: "triggered_at", Desc: true},
		specification.Pagination{Limit: 1},
	)
	if err != nil {
		return fmt.Errorf("hydrate trigger window for %s: %w", sessionId, err)
	}

	for _, stat := range stats {
		agg.sections[stat.SectionId] = entity.SectionTally{
			Positive: int(stat.Positive),
			Negative: int(stat.Negative),
		}
	}
	for _, r := range ratings {
		agg.apply(r)
	}
	if len(latest) > 0 && latest[0].Timestamp.After(agg.lastEventAt) {
		agg.lastEventAt = latest[0].Timestamp
	}
	if len(lastTrigger) > 0 && lastTrigger[0].Baseline != nil {
		agg.baseline = *lastTrigger[0].Baseline
	}
	agg.hydrated = true

	if len(stats) > 0 || len(ratings) > 0 {
		a.logger.Debug("FEEDBACK", "Aggregate hydrated", map[string]interface{}{
			"session_id": sessionId,
			"sections":   len(stats),
			"ratings":    len(ratings),
		})
	}
	return nil
}

func (a *feedbackAggregator) Record(ctx context.Context, event *entity.FeedbackEvent) (entity.FeedbackAggregate, error) {
	if err := event.Validate(); err != nil {
		return entity.FeedbackAggregate{}, err
	}

	agg, err := a.acquire(ctx, event.SessionId)
	if err != nil {
		return entity.FeedbackAggregate{}, err
	}
	defer agg.mu.Unlock()

	repo := a.uowFactory.NewUnitOfWork(ctx).FeedbackRepository()
	switch event.Kind {
	case entity.FeedbackKindSection:
		err = repo.CreateSectionFeedback(ctx, event)
	case entity.FeedbackKindRating:
		err = repo.CreateRating(ctx, event)
	}
	if err != nil {
		return entity.FeedbackAggregate{}, fmt.Errorf("persist %s feedback: %w", event.Kind, err)
	}

	agg.apply(event)
	feedbackEvents.WithLabelValues(string(event.Kind)).Inc()
	return agg.snapshot(event.SessionId), nil
}

func (a *feedbackAggregator) Aggregate(ctx context.Context, sessionId string) (entity.FeedbackAggregate, error) {
	agg, err := a.acquire(ctx, sessionId)
	if err != nil {
		return entity.FeedbackAggregate{}, err
	}
	defer agg.mu.Unlock()
	return agg.snapshot(sessionId), nil
}

func (a *feedbackAggregator) StartWindow(ctx context.Context, sessionId string, base entity.FeedbackBaseline) error {
	agg, err := a.acquire(ctx, sessionId)
	if err != nil {
		return err
	}
	defer agg.mu.Unlock()

	if agg.baseline.Covers(base) {
		return nil
	}
	agg.baseline = base
	return nil
}

func (a *feedbackAggregator) EvictIdle(idle time.Duration) int {
	cutoff := a.now().Add(-idle)

	a.mu.Lock()
	defer a.mu.Unlock()

	evicted := 0
	for id, agg := range a.sessions {
		// A busy aggregate is by definition not idle.
		if !agg.mu.TryLock() {
			continue
		}
		if agg.lastTouched.Before(cutoff) {
			agg.evicted = true
			delete(a.sessions, id)
			evicted++
		}
		agg.mu.Unlock()
	}
	if evicted > 0 {
		sweptEntries.WithLabelValues("feedback_aggregate").Add(float64(evicted))
	}
	return evicted
}
