package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FeedbackKind string

const (
	FeedbackKindSection FeedbackKind = "section"
	FeedbackKindRating  FeedbackKind = "rating"
)

type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

func (p Polarity) Valid() bool {
	return p == PolarityPositive || p == PolarityNegative
}

const (
	MinRating = 1
	MaxRating = 5
)

// FeedbackEvent is an immutable, append-only piece of user feedback. Section
// feedback carries SectionId and Polarity; star ratings carry Rating.
type FeedbackEvent struct {
	Id        uuid.UUID
	Kind      FeedbackKind
	SessionId string
	SectionId string
	Polarity  Polarity
	Rating    int
	UserId    *string
	Timestamp time.Time
}

// ValidationError is a malformed feedback shape. Nothing is recorded.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewSectionFeedback(sessionId, sectionId string, polarity Polarity, at time.Time, userId *string) *FeedbackEvent {
	return &FeedbackEvent{
		Id:        uuid.New(),
		Kind:      FeedbackKindSection,
		SessionId: sessionId,
		SectionId: sectionId,
		Polarity:  polarity,
		UserId:    userId,
		Timestamp: at,
	}
}

func NewStarRating(sessionId string, rating int, at time.Time, userId *string) *FeedbackEvent {
	return &FeedbackEvent{
		Id:        uuid.New(),
		Kind:      FeedbackKindRating,
		SessionId: sessionId,
		Rating:    rating,
		UserId:    userId,
		Timestamp: at,
	}
}

// Validate checks shape only; no event is rejected for business reasons.
func (e *FeedbackEvent) Validate() error {
	if strings.TrimSpace(e.SessionId) == "" {
		return &ValidationError{Field: "sessionId", Reason: "is required"}
	}
	switch e.Kind {
	case FeedbackKindSection:
		if strings.TrimSpace(e.SectionId) == "" {
			return &ValidationError{Field: "sectionId", Reason: "is required"}
		}
		if !e.Polarity.Valid() {
			return &ValidationError{Field: "feedback", Reason: "must be positive or negative"}
		}
	case FeedbackKindRating:
		if e.Rating < MinRating || e.Rating > MaxRating {
			return &ValidationError{Field: "overallRating", Reason: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)}
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown feedback kind %q", e.Kind)}
	}
	return nil
}

type SectionTally struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

func (t SectionTally) Total() int {
	return t.Positive + t.Negative
}

func (t SectionTally) NegativeRatio() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Negative) / float64(t.Total())
}

// FeedbackAggregate is a point-in-time copy of a session's rolling feedback.
// Baseline marks where the current accumulation window starts.
type FeedbackAggregate struct {
	SessionId     string
	Sections      map[string]SectionTally
	Ratings       []int
	RatingSum     int
	AverageRating float64
	LastEventAt   time.Time
	Baseline      FeedbackBaseline
}

func (a FeedbackAggregate) RatingCount() int {
	return len(a.Ratings)
}

// Totals captures the aggregate's cumulative counts.
func (a FeedbackAggregate) Totals() FeedbackBaseline {
	sections := make(map[string]SectionTally, len(a.Sections))
	for id, tally := range a.Sections {
		sections[id] = tally
	}
	return FeedbackBaseline{Sections: sections, RatingCount: len(a.Ratings), RatingSum: a.RatingSum}
}

// Window returns only the feedback accumulated past the baseline.
func (a FeedbackAggregate) Window() FeedbackAggregate {
	base := a.Baseline
	sections := make(map[string]SectionTally, len(a.Sections))
	for id, tally := range a.Sections {
		prior := base.Sections[id]
		delta := SectionTally{
			Positive: max(tally.Positive-prior.Positive, 0),
			Negative: max(tally.Negative-prior.Negative, 0),
		}
		if delta.Total() > 0 {
			sections[id] = delta
		}
	}

	var ratings []int
	if n := base.RatingCount; n < len(a.Ratings) {
		ratings = append(ratings, a.Ratings[n:]...)
	}
	sum := a.RatingSum - base.RatingSum
	var avg float64
	if len(ratings) > 0 {
		avg = float64(sum) / float64(len(ratings))
	}

	return FeedbackAggregate{
		SessionId:     a.SessionId,
		Sections:      sections,
		Ratings:       ratings,
		RatingSum:     sum,
		AverageRating: avg,
		LastEventAt:   a.LastEventAt,
		Baseline:      base,
	}
}

// FeedbackBaseline is a session's cumulative feedback at the moment a trigger
// fired. Zero means the window covers the whole history.
type FeedbackBaseline struct {
	Sections    map[string]SectionTally `json:"sections,omitempty"`
	RatingCount int                     `json:"ratingCount"`
	RatingSum   int                     `json:"ratingSum"`
}

// Covers reports whether b includes at least everything counted by other.
func (b FeedbackBaseline) Covers(other FeedbackBaseline) bool {
	if b.RatingCount < other.RatingCount {
		return false
	}
	for id, tally := range other.Sections {
		mine := b.Sections[id]
		if mine.Positive < tally.Positive || mine.Negative < tally.Negative {
			return false
		}
	}
	return true
}

// SectionStat is one row of the persisted per-section breakdown.
type SectionStat struct {
	SectionId string
	Positive  int64
	Negative  int64
}
