package entity

import (
	"time"

	"github.com/google/uuid"
)

type TriggerReason string

const (
	TriggerReasonNegativeSection TriggerReason = "negative_section_ratio"
	TriggerReasonLowRating       TriggerReason = "low_average_rating"
)

// TriggerRecord is written once per qualifying threshold crossing.
type TriggerRecord struct {
	Id          uuid.UUID
	SessionId   string
	TriggeredAt time.Time
	Reason      TriggerReason
	Details     map[string]interface{}
	// Baseline starts the next accumulation window; nil on older records.
	Baseline *FeedbackBaseline
}

type CooldownPhase string

const (
	// CooldownArmed: a trigger won and asked the engine for a new run.
	CooldownArmed CooldownPhase = "armed"
	// CooldownRunning: the engine has been seen working on that run.
	CooldownRunning CooldownPhase = "running"
)

type CooldownMarker struct {
	SessionId string
	Phase     CooldownPhase
	ArmedAt   time.Time
	ExpiresAt time.Time
}
