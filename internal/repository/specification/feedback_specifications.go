package specification

import (
	"time"

	"gorm.io/gorm"
)

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type BySectionID struct {
	SectionID string
}

func (s BySectionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("section_id = ?", s.SectionID)
}

type ByPolarity struct {
	Polarity string
}

func (s ByPolarity) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("polarity = ?", s.Polarity)
}

// TriggeredSince keeps trigger records at or after Since.
type TriggeredSince struct {
	Since time.Time
}

func (s TriggeredSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("triggered_at >= ?", s.Since)
}
