package service

import (
	"context"
	"errors"
	"time"

	"property-insight-be/internal/config"
	"property-insight-be/internal/entity"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/pkg/mailer"
	"property-insight-be/internal/repository/contract"
	"property-insight-be/internal/repository/specification"
	"property-insight-be/internal/repository/unitofwork"
	"property-insight-be/pkg/engine"
	insightEvents "property-insight-be/pkg/insight/events"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Reasons reported in TriggerOutcome.Details when no run was started.
const (
	TriggerSkipCooldown    = "cooldown_active"
	TriggerSkipNotTerminal = "session_not_terminal"
	TriggerSkipRateLimited = "rate_limited"
	TriggerSkipEngine      = "engine_failed"
	TriggerSkipUnavailable = "trigger_unavailable"
)

type TriggerOutcome struct {
	Activated bool
	Details   map[string]interface{}
}

type ITriggerService interface {
	// OnFeedbackRecorded evaluates the session's aggregate and, if a
	// threshold is crossed and no cooldown is active, starts a re-analysis.
	// The returned error is informational; the outcome is always usable.
	OnFeedbackRecorded(ctx context.Context, sessionId string) (TriggerOutcome, error)
	Cooldown(ctx context.Context, sessionId string) (*entity.CooldownMarker, error)
	ListTriggers(ctx context.Context, sessionId string) ([]*entity.TriggerRecord, error)
}

type triggerService struct {
	policy        TriggerPolicy
	cooldownMax   time.Duration
	alertEmail    string
	engineTimeout time.Duration

	aggregator IFeedbackAggregator
	sessions   ISessionService
	cooldowns  contract.CooldownStore
	uowFactory unitofwork.RepositoryFactory
	engine     engine.Client
	limiter    *rate.Limiter
	events     insightEvents.Publisher
	mailer     mailer.IEmailService
	logger     logger.ILogger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewTriggerService builds the evaluator. emailService may be nil.
func NewTriggerService(
	cfg config.TriggerConfig,
	engineTimeout time.Duration,
	aggregator IFeedbackAggregator,
	sessions ISessionService,
	cooldowns contract.CooldownStore,
	uowFactory unitofwork.RepositoryFactory,
	engineClient engine.Client,
	events insightEvents.Publisher,
	emailService mailer.IEmailService,
	logger logger.ILogger,
) ITriggerService {
	perMinute := cfg.MaxPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	return &triggerService{
		policy:        NewTriggerPolicy(cfg),
		cooldownMax:   cfg.CooldownMax,
		alertEmail:    cfg.AlertEmail,
		engineTimeout: engineTimeout,
		aggregator:    aggregator,
		sessions:      sessions,
		cooldowns:     cooldowns,
		uowFactory:    uowFactory,
		engine:        engineClient,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		events:        events,
		mailer:        emailService,
		logger:        logger,
		tracer:        otel.Tracer("property-insight/trigger"),
		now:           time.Now,
	}
}

func skipped(reason string) TriggerOutcome {
	return TriggerOutcome{Details: map[string]interface{}{"reason": reason}}
}

func (s *triggerService) OnFeedbackRecorded(ctx context.Context, sessionId string) (TriggerOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "TriggerService.OnFeedbackRecorded", trace.WithAttributes(
		attribute.String("session.id", sessionId),
	))
	defer span.End()

	// Fast path: most feedback after a crossing lands inside the cooldown.
	if marker, err := s.cooldowns.Get(ctx, sessionId); err == nil && marker != nil {
		triggerOutcomes.WithLabelValues("cooldown").Inc()
		return skipped(TriggerSkipCooldown), nil
	}

	agg, err := s.aggregator.Aggregate(ctx, sessionId)
	if err != nil {
		return skipped(TriggerSkipUnavailable), err
	}
	// Only feedback since the last trigger counts toward a new crossing.
	breach, ok := s.policy.Evaluate(agg.Window())
	if !ok {
		return TriggerOutcome{}, nil
	}
	span.SetAttributes(attribute.String("trigger.reason", string(breach.Reason)))

	result, err := s.sessions.Get(ctx, sessionId, GetOptions{})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return skipped(TriggerSkipNotTerminal), nil
		}
		return skipped(TriggerSkipUnavailable), err
	}
	if !result.Session.Status.IsTerminal() {
		return skipped(TriggerSkipNotTerminal), nil
	}

	won, err := s.cooldowns.Acquire(ctx, sessionId, s.cooldownMax)
	if err != nil {
		triggerOutcomes.WithLabelValues("error").Inc()
		return skipped(TriggerSkipUnavailable), err
	}
	if !won {
		triggerOutcomes.WithLabelValues("cooldown").Inc()
		return skipped(TriggerSkipCooldown), nil
	}

	// From here on the work belongs to the process, not the request.
	return s.fire(context.WithoutCancel(ctx), sessionId, breach, agg.Totals())
}

func (s *triggerService) fire(ctx context.Context, sessionId string, breach *Breach, base entity.FeedbackBaseline) (TriggerOutcome, error) {
	logDetails := map[string]interface{}{"session_id": sessionId, "reason": string(breach.Reason)}

	if !s.limiter.Allow() {
		s.release(ctx, sessionId)
		triggerOutcomes.WithLabelValues("rate_limited").Inc()
		s.logger.Warn("TRIGGER", "Re-analysis throttled", logDetails)
		return skipped(TriggerSkipRateLimited), nil
	}

	record := &entity.TriggerRecord{
		Id:          uuid.New(),
		SessionId:   sessionId,
		TriggeredAt: s.now(),
		Reason:      breach.Reason,
		Details:     breach.Details,
		Baseline:    &base,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		s.release(ctx, sessionId)
		triggerOutcomes.WithLabelValues("error").Inc()
		return skipped(TriggerSkipUnavailable), err
	}
	if err := uow.TriggerRecordRepository().Create(ctx, record); err != nil {
		_ = uow.Rollback()
		s.release(ctx, sessionId)
		triggerOutcomes.WithLabelValues("error").Inc()
		return skipped(TriggerSkipUnavailable), err
	}

	engineCtx, cancel := context.WithTimeout(ctx, s.engineTimeout)
	err := s.engine.StartAnalysis(engineCtx, sessionId)
	cancel()
	if err != nil {
		_ = uow.Rollback()
		s.release(ctx, sessionId)
		triggerOutcomes.WithLabelValues("engine_failed").Inc()
		s.events.PublishAnalysisRetriggerFailed(ctx, sessionId, breach.Reason, err)

		logDetails["error"] = err.Error()
		s.logger.Error("TRIGGER", "Engine rejected re-analysis", logDetails)
		return TriggerOutcome{Details: map[string]interface{}{
			"reason": TriggerSkipEngine,
			"error":  err.Error(),
		}}, nil
	}

	if err := uow.Commit(); err != nil {
		// The run is already started; keep the cooldown so it is not doubled.
		logDetails["error"] = err.Error()
		s.logger.Error("TRIGGER", "Failed to commit trigger record", logDetails)
	}

	if err := s.aggregator.StartWindow(ctx, sessionId, base); err != nil {
		s.logger.Error("TRIGGER", "Failed to start feedback window", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
	if err := s.sessions.Invalidate(ctx, sessionId); err != nil {
		s.logger.Warn("TRIGGER", "Failed to invalidate cached session", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
	s.events.PublishAnalysisRetriggered(ctx, record)
	s.sendAlert(record)

	triggerOutcomes.WithLabelValues("activated").Inc()
	s.logger.Info("TRIGGER", "Re-analysis triggered", logDetails)

	details := make(map[string]interface{}, len(breach.Details)+1)
	for k, v := range breach.Details {
		details[k] = v
	}
	details["triggerId"] = record.Id.String()
	return TriggerOutcome{Activated: true, Details: details}, nil
}

func (s *triggerService) release(ctx context.Context, sessionId string) {
	if err := s.cooldowns.Release(ctx, sessionId); err != nil {
		s.logger.Error("TRIGGER", "Failed to release cooldown", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}

func (s *triggerService) sendAlert(record *entity.TriggerRecord) {
	if s.mailer == nil || s.alertEmail == "" {
		return
	}
	alert := mailer.TriggerAlert{
		SessionId:   record.SessionId,
		Reason:      string(record.Reason),
		TriggeredAt: record.TriggeredAt,
		Details:     record.Details,
	}
	go func() {
		_ = s.mailer.SendTriggerAlert(s.alertEmail, alert)
	}()
}

func (s *triggerService) Cooldown(ctx context.Context, sessionId string) (*entity.CooldownMarker, error) {
	return s.cooldowns.Get(ctx, sessionId)
}

func (s *triggerService) ListTriggers(ctx context.Context, sessionId string) ([]*entity.TriggerRecord, error) {
	specs := []specification.Specification{
		specification.OrderBy{Field: "triggered_at", Desc: true},
		specification.Pagination{Limit: 100},
	}
	if sessionId != "" {
		specs = append(specs, specification.BySessionID{SessionID: sessionId})
	}
	return s.uowFactory.NewUnitOfWork(ctx).TriggerRecordRepository().FindAll(ctx, specs...)
}
