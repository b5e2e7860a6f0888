package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle state of an analysis session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAnalyzing  Status = "analyzing"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusDegraded   Status = "degraded"
)

// IsTerminal reports whether the Analysis Engine is done with the run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusDegraded, StatusError:
		return true
	}
	return false
}

// CarriesReport reports whether a report may be attached in this status.
func (s Status) CarriesReport() bool {
	return s == StatusCompleted || s == StatusDegraded
}

var ErrInvalidSnapshot = errors.New("invalid session snapshot")

// Session is one snapshot of an analysis run as reported by the Analysis Engine.
// The typed fields are read-only views over the normalized document in raw,
// which is what gets cached and served.
type Session struct {
	SessionID      string
	Status         Status
	Property       map[string]interface{}
	CompletedSteps *int
	TotalSteps     *int
	HasReport      bool
	CreatedAt      interface{}

	// StepsClamped is set when completedSteps exceeded totalSteps on ingestion.
	StepsClamped bool

	raw json.RawMessage
}

// ParseSession decodes an Engine snapshot, applies the ingestion checks and
// re-encodes the normalized document.
func ParseSession(data []byte) (*Session, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidSnapshot)
	}

	id, _ := doc["sessionId"].(string)
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: missing sessionId", ErrInvalidSnapshot)
	}
	status, _ := doc["status"].(string)
	if status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrInvalidSnapshot)
	}

	s := &Session{
		SessionID: id,
		Status:    Status(status),
		CreatedAt: doc["createdAt"],
	}

	if prop, ok := doc["property"].(map[string]interface{}); ok {
		normalizeValue(prop)
		s.Property = prop
	}

	s.CompletedSteps = intField(doc, "completedSteps")
	s.TotalSteps = intField(doc, "totalSteps")
	if s.CompletedSteps != nil && *s.CompletedSteps < 0 {
		zero := 0
		s.CompletedSteps = &zero
		doc["completedSteps"] = json.Number("0")
	}
	if s.CompletedSteps != nil && s.TotalSteps != nil && *s.CompletedSteps > *s.TotalSteps {
		clamped := *s.TotalSteps
		s.CompletedSteps = &clamped
		s.StepsClamped = true
		doc["completedSteps"] = json.Number(strconv.Itoa(clamped))
	}

	if report, ok := doc["report"]; ok && report != nil {
		s.HasReport = true
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	s.raw = raw

	return s, nil
}

// Raw returns the normalized JSON document.
func (s *Session) Raw() json.RawMessage {
	return s.raw
}

func (s *Session) MarshalJSON() ([]byte, error) {
	if len(s.raw) == 0 {
		return []byte("null"), nil
	}
	return s.raw, nil
}

func (s *Session) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSession(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// Progress returns completedSteps/totalSteps when both are known and total > 0.
func (s *Session) Progress() (float64, bool) {
	if s.CompletedSteps == nil || s.TotalSteps == nil || *s.TotalSteps <= 0 {
		return 0, false
	}
	return float64(*s.CompletedSteps) / float64(*s.TotalSteps), true
}

// StepsDone reports completedSteps >= totalSteps with both known.
func (s *Session) StepsDone() bool {
	if s.CompletedSteps == nil || s.TotalSteps == nil {
		return false
	}
	return *s.CompletedSteps >= *s.TotalSteps
}

// PropertyField returns a top-level property value, or nil.
func (s *Session) PropertyField(key string) interface{} {
	if s.Property == nil {
		return nil
	}
	return s.Property[key]
}

func intField(doc map[string]interface{}, key string) *int {
	switch v := doc[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			n := int(i)
			return &n
		}
		if f, err := v.Float64(); err == nil {
			n := int(f)
			return &n
		}
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return &i
		}
	}
	return nil
}
