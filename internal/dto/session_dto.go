package dto

import (
	"encoding/json"
	"time"

	"property-insight-be/pkg/store"
)

// BasicPropertyFields are the property keys kept by the basic projection.
var BasicPropertyFields = []string{"address", "city", "province", "price", "propertyType"}

type SessionBasicResponse struct {
	SessionId      string                 `json:"sessionId"`
	Status         store.Status           `json:"status"`
	Property       map[string]interface{} `json:"property,omitempty"`
	CompletedSteps *int                   `json:"completedSteps,omitempty"`
	TotalSteps     *int                   `json:"totalSteps,omitempty"`
	CreatedAt      interface{}            `json:"createdAt,omitempty"`
}

// NewSessionBasicResponse projects a snapshot down to its summary fields.
func NewSessionBasicResponse(s *store.Session) *SessionBasicResponse {
	if s == nil {
		return nil
	}

	var property map[string]interface{}
	for _, key := range BasicPropertyFields {
		v, ok := s.Property[key]
		if !ok {
			continue
		}
		if property == nil {
			property = make(map[string]interface{}, len(BasicPropertyFields))
		}
		property[key] = v
	}

	return &SessionBasicResponse{
		SessionId:      s.SessionID,
		Status:         s.Status,
		Property:       property,
		CompletedSteps: s.CompletedSteps,
		TotalSteps:     s.TotalSteps,
		CreatedAt:      s.CreatedAt,
	}
}

// SessionSnapshotObservedMessage is published on the in-process bus every
// time a snapshot is fetched from the engine.
type SessionSnapshotObservedMessage struct {
	SessionId  string       `json:"sessionId"`
	Status     store.Status `json:"status"`
	HasReport  bool         `json:"hasReport"`
	ObservedAt time.Time    `json:"observedAt"`
}

// SessionUpdateMessage is pushed to session stream subscribers.
type SessionUpdateMessage struct {
	Type string               `json:"type"`
	Data SessionUpdatePayload `json:"data"`
}

type SessionUpdatePayload struct {
	SessionId  string          `json:"sessionId"`
	View       string          `json:"view"`
	IntervalMs int64           `json:"intervalMs"`
	Done       bool            `json:"done"`
	Error      string          `json:"error,omitempty"`
	Session    json.RawMessage `json:"session,omitempty"`
}

// SessionStreamCommand is sent by stream clients: "refresh" or
// "analysis_started".
type SessionStreamCommand struct {
	Type string `json:"type"`
}
