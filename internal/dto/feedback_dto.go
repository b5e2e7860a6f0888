package dto

import (
	"time"

	"github.com/google/uuid"
)

type SectionFeedbackRequest struct {
	SessionId string  `json:"sessionId" validate:"required"`
	SectionId string  `json:"sectionId" validate:"required"`
	Feedback  string  `json:"feedback" validate:"required,oneof=positive negative"`
	Timestamp string  `json:"timestamp"`
	UserId    *string `json:"userId"`
}

type StarRatingRequest struct {
	SessionId     string  `json:"sessionId" validate:"required"`
	OverallRating int     `json:"overallRating" validate:"required,min=1,max=5"`
	Timestamp     string  `json:"timestamp"`
	UserId        *string `json:"userId"`
}

type SectionFeedbackResponse struct {
	SessionId        string                 `json:"sessionId"`
	SectionId        string                 `json:"sectionId"`
	Feedback         string                 `json:"feedback"`
	Timestamp        time.Time              `json:"timestamp"`
	TriggerActivated bool                   `json:"triggerActivated"`
	TriggerDetails   map[string]interface{} `json:"triggerDetails"`
}

type StarRatingResponse struct {
	SessionId        string                 `json:"sessionId"`
	OverallRating    int                    `json:"overallRating"`
	Timestamp        time.Time              `json:"timestamp"`
	TriggerActivated bool                   `json:"triggerActivated"`
	TriggerDetails   map[string]interface{} `json:"triggerDetails"`
}

type SectionFeedbackItem struct {
	Id        uuid.UUID `json:"id"`
	SessionId string    `json:"sessionId"`
	SectionId string    `json:"sectionId"`
	Feedback  string    `json:"feedback"`
	UserId    *string   `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type SectionFeedbackListResponse struct {
	Feedback []SectionFeedbackItem `json:"feedback"`
	Count    int64                 `json:"count"`
}

type SectionBreakdownItem struct {
	SectionId string `json:"sectionId"`
	Positive  int64  `json:"positive"`
	Negative  int64  `json:"negative"`
	Total     int64  `json:"total"`
}

type FeedbackStatsResponse struct {
	Total              int64                  `json:"total"`
	Positive           int64                  `json:"positive"`
	Negative           int64                  `json:"negative"`
	PositivePercentage float64                `json:"positivePercentage"`
	Sections           []SectionBreakdownItem `json:"sections"`
}

type StarRatingItem struct {
	Id            uuid.UUID `json:"id"`
	SessionId     string    `json:"sessionId"`
	OverallRating int       `json:"overallRating"`
	UserId        *string   `json:"userId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type StarRatingListResponse struct {
	Ratings       []StarRatingItem `json:"ratings"`
	Count         int              `json:"count"`
	AverageRating float64          `json:"averageRating"`
}

type SectionTallyResponse struct {
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	NegativeRatio float64 `json:"negativeRatio"`
}

type CooldownResponse struct {
	Phase     string    `json:"phase"`
	ArmedAt   time.Time `json:"armedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type FeedbackAggregateResponse struct {
	SessionId     string                          `json:"sessionId"`
	Sections      map[string]SectionTallyResponse `json:"sections"`
	RatingCount   int                             `json:"ratingCount"`
	AverageRating float64                         `json:"averageRating"`
	LastEventAt   *time.Time                      `json:"lastEventAt"`
	Cooldown      *CooldownResponse               `json:"cooldown"`
}

type TriggerRecordResponse struct {
	Id          uuid.UUID              `json:"id"`
	SessionId   string                 `json:"sessionId"`
	TriggeredAt time.Time              `json:"triggeredAt"`
	Reason      string                 `json:"reason"`
	Details     map[string]interface{} `json:"details"`
}
