package model

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisSession is the engine-owned snapshot table. This service only reads it.
type AnalysisSession struct {
	SessionId string         `gorm:"type:varchar(128);primaryKey"`
	Status    string         `gorm:"type:varchar(20);not null"`
	Snapshot  datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (AnalysisSession) TableName() string {
	return "analysis_sessions"
}
