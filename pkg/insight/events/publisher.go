package events

import (
	"context"
	"time"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/pkg/logger"
	pkgEvents "property-insight-be/pkg/events"
)

// Publisher abstracts domain event publishing for feedback and re-analysis.
type Publisher interface {
	PublishFeedbackRecorded(ctx context.Context, event *entity.FeedbackEvent)
	PublishAnalysisRetriggered(ctx context.Context, record *entity.TriggerRecord)
	PublishAnalysisRetriggerFailed(ctx context.Context, sessionId string, reason entity.TriggerReason, cause error)
}

// EventSink is the transport side; *nats.Publisher satisfies it.
type EventSink interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// NatsPublisher implements Publisher on top of an EventSink. A nil sink turns
// every call into a no-op.
type NatsPublisher struct {
	publisher EventSink
	logger    logger.ILogger
	timeout   time.Duration
}

func NewNatsPublisher(publisher EventSink, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		publisher: publisher,
		logger:    logger,
		timeout:   3 * time.Second,
	}
}

func (p *NatsPublisher) publish(ctx context.Context, evt pkgEvents.BaseEvent) {
	if p.publisher == nil {
		return
	}
	// Request cancellation must not drop an event that already happened.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish "+evt.Type+" event", map[string]interface{}{"error": err.Error()})
	}
}

// PublishFeedbackRecorded emits FEEDBACK_RECORDED
func (p *NatsPublisher) PublishFeedbackRecorded(ctx context.Context, event *entity.FeedbackEvent) {
	data := map[string]interface{}{
		"event_id":   event.Id.String(),
		"session_id": event.SessionId,
		"kind":       string(event.Kind),
	}
	switch event.Kind {
	case entity.FeedbackKindSection:
		data["section_id"] = event.SectionId
		data["feedback"] = string(event.Polarity)
	case entity.FeedbackKindRating:
		data["overall_rating"] = event.Rating
	}
	if event.UserId != nil {
		data["user_id"] = *event.UserId
	}

	p.publish(ctx, pkgEvents.BaseEvent{
		Type:       pkgEvents.FeedbackRecorded,
		Data:       data,
		OccurredAt: event.Timestamp,
	})
}

// PublishAnalysisRetriggered emits ANALYSIS_RETRIGGERED
func (p *NatsPublisher) PublishAnalysisRetriggered(ctx context.Context, record *entity.TriggerRecord) {
	p.publish(ctx, pkgEvents.BaseEvent{
		Type: pkgEvents.AnalysisRetriggered,
		Data: map[string]interface{}{
			"trigger_id":  record.Id.String(),
			"session_id":  record.SessionId,
			"reason":      string(record.Reason),
			"details":     record.Details,
			"entity_type": "analysis_session",
			"entity_id":   record.SessionId,
		},
		OccurredAt: record.TriggeredAt,
	})
}

// PublishAnalysisRetriggerFailed emits ANALYSIS_RETRIGGER_FAILED
func (p *NatsPublisher) PublishAnalysisRetriggerFailed(ctx context.Context, sessionId string, reason entity.TriggerReason, cause error) {
	data := map[string]interface{}{
		"session_id":  sessionId,
		"reason":      string(reason),
		"entity_type": "analysis_session",
		"entity_id":   sessionId,
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	p.publish(ctx, pkgEvents.BaseEvent{
		Type:       pkgEvents.AnalysisRetriggerFailed,
		Data:       data,
		OccurredAt: time.Now(),
	})
}
