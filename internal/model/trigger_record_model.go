package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TriggerRecord struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId   string         `gorm:"type:varchar(128);not null;index:idx_trigger_records_session_time,priority:1"`
	TriggeredAt time.Time      `gorm:"not null;index:idx_trigger_records_session_time,priority:2"`
	Reason      string         `gorm:"type:varchar(50);not null"`
	Details     datatypes.JSON `gorm:"type:jsonb"`
	Baseline    datatypes.JSON `gorm:"type:jsonb"`
}

func (TriggerRecord) TableName() string {
	return "trigger_records"
}
