package model

import (
	"time"

	"github.com/google/uuid"
)

type SectionFeedback struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId string    `gorm:"type:varchar(128);not null;index:idx_section_feedback_session_section,priority:1"`
	SectionId string    `gorm:"type:varchar(128);not null;index:idx_section_feedback_session_section,priority:2"`
	Polarity  string    `gorm:"type:varchar(16);not null"`
	UserId    *string   `gorm:"type:varchar(128)"`
	Timestamp time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SectionFeedback) TableName() string {
	return "section_feedback"
}

type StarRating struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId string    `gorm:"type:varchar(128);not null;index"`
	Rating    int       `gorm:"type:smallint;not null;check:rating BETWEEN 1 AND 5"`
	UserId    *string   `gorm:"type:varchar(128)"`
	Timestamp time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (StarRating) TableName() string {
	return "session_ratings"
}

// SectionStatRow is the scan target for the grouped breakdown query.
type SectionStatRow struct {
	SectionId string
	Positive  int64
	Negative  int64
}
