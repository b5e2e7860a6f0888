package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"property-insight-be/internal/dto"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/repository/contract"
	"property-insight-be/internal/repository/unitofwork"
	"property-insight-be/pkg/dedup"
	"property-insight-be/pkg/engine"
	"property-insight-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SnapshotObservedTopic carries a SessionSnapshotObservedMessage for every
// snapshot fetched from the engine.
const SnapshotObservedTopic = "session.snapshot.observed"

var ErrSessionNotFound = errors.New("session not found")

// Source tells which step of the resolution chain answered a lookup.
type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
	SourceStale    Source = "stale"
	SourceFallback Source = "fallback"
)

type GetOptions struct {
	// SkipCache forces revalidation against the engine.
	SkipCache bool
	// BasicOnly fills SessionResult.Basic with the summary projection.
	BasicOnly bool
}

type SessionResult struct {
	Session *store.Session
	Source  Source
	Basic   *dto.SessionBasicResponse
}

type ISessionService interface {
	Get(ctx context.Context, sessionId string, opts GetOptions) (*SessionResult, error)
	Invalidate(ctx context.Context, sessionId string) error
	Sweep(ctx context.Context) (int, error)
}

type sessionService struct {
	cache      contract.SessionCacheStore
	engine     engine.Client
	fetches    *dedup.Group[*store.Session]
	uowFactory unitofwork.RepositoryFactory
	publisher  message.Publisher
	logger     logger.ILogger
	tracer     trace.Tracer
	now        func() time.Time

	// generations counts invalidations per session. A fetch that sees the
	// count move while it ran holds a snapshot older than the invalidation.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewSessionService wires the resolution chain. publisher may be nil.
func NewSessionService(
	cache contract.SessionCacheStore,
	engineClient engine.Client,
	fetches *dedup.Group[*store.Session],
	uowFactory unitofwork.RepositoryFactory,
	publisher message.Publisher,
	logger logger.ILogger,
) ISessionService {
	return &sessionService{
		cache:       cache,
		engine:      engineClient,
		fetches:     fetches,
		uowFactory:  uowFactory,
		publisher:   publisher,
		logger:      logger,
		tracer:      otel.Tracer("property-insight/session"),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

func (s *sessionService) Get(ctx context.Context, sessionId string, opts GetOptions) (*SessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Get", trace.WithAttributes(
		attribute.String("session.id", sessionId),
		attribute.Bool("session.skip_cache", opts.SkipCache),
	))
	defer span.End()

	session, source, err := s.resolve(ctx, sessionId, opts.SkipCache)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			sessionResolutions.WithLabelValues("not_found").Inc()
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	sessionResolutions.WithLabelValues(string(source)).Inc()
	span.SetAttributes(
		attribute.String("session.source", string(source)),
		attribute.String("session.status", string(session.Status)),
	)

	result := &SessionResult{Session: session, Source: source}
	if opts.BasicOnly {
		result.Basic = dto.NewSessionBasicResponse(session)
	}
	return result, nil
}

func (s *sessionService) resolve(ctx context.Context, sessionId string, skipCache bool) (*store.Session, Source, error) {
	entry, found, err := s.cache.Get(ctx, sessionId)
	if err != nil {
		s.logger.Warn("SESSION", "Cache read failed, treating as miss", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		entry, found = nil, false
	}

	if found && !skipCache && entry.Age(s.now()) < CacheTTL(entry.Session.Status) {
		return entry.Session, SourceCache, nil
	}

	session, err := s.fetch(ctx, sessionId)
	if err == nil {
		return session, SourceUpstream, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", ctxErr
	}

	s.logger.Warn("SESSION", "Upstream fetch failed, falling back", map[string]interface{}{
		"session_id":   sessionId,
		"error":        err.Error(),
		"cached_entry": found,
	})

	if found {
		return entry.Session, SourceStale, nil
	}

	archived, err := s.uowFactory.NewUnitOfWork(ctx).SessionArchiveRepository().FindBySessionID(ctx, sessionId)
	if err != nil {
		s.logger.Error("SESSION", "Fallback store lookup failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return nil, "", ErrSessionNotFound
	}
	if archived != nil {
		return archived, SourceFallback, nil
	}

	return nil, "", ErrSessionNotFound
}

// fetch collapses concurrent fetches for one session into a single engine
// call. The winning call alone stores the entry and announces it.
func (s *sessionService) fetch(ctx context.Context, sessionId string) (*store.Session, error) {
	session, _, err := s.fetches.Do(ctx, sessionId, func(ctx context.Context) (*store.Session, error) {
		gen := s.generation(sessionId)
		start := time.Now()
		session, err := s.engine.FetchSession(ctx, sessionId)
		upstreamFetchLatency.Observe(time.Since(start).Seconds())
		if err == nil && session.SessionID != sessionId {
			err = fmt.Errorf("%w: engine answered for session %q", engine.ErrUpstreamUnavailable, session.SessionID)
		}
		if err != nil {
			upstreamFetches.WithLabelValues("error").Inc()
			return nil, err
		}
		upstreamFetches.WithLabelValues("ok").Inc()

		if session.StepsClamped {
			s.logger.Warn("SESSION", "completedSteps exceeded totalSteps, clamped", map[string]interface{}{
				"session_id":  sessionId,
				"total_steps": *session.TotalSteps,
			})
		}

		if err := s.cache.Set(ctx, &contract.CacheEntry{Session: session, CapturedAt: s.now()}); err != nil {
			s.logger.Warn("SESSION", "Failed to store cache entry", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
		}
		if s.generation(sessionId) != gen {
			_ = s.cache.Delete(ctx, sessionId)
			return session, nil
		}
		s.publishObserved(session)
		return session, nil
	})
	return session, err
}

func (s *sessionService) generation(sessionId string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[sessionId]
}

func (s *sessionService) publishObserved(session *store.Session) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(dto.SessionSnapshotObservedMessage{
		SessionId:  session.SessionID,
		Status:     session.Status,
		HasReport:  session.HasReport,
		ObservedAt: s.now(),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(SnapshotObservedTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		s.logger.Warn("SESSION", "Failed to publish snapshot observation", map[string]interface{}{
			"session_id": session.SessionID,
			"error":      err.Error(),
		})
	}
}

// Invalidate drops the cached snapshot. Fetches already in flight are
// detached so later callers start a fresh one, and their results are not
// cached.
func (s *sessionService) Invalidate(ctx context.Context, sessionId string) error {
	s.genMu.Lock()
	s.generations[sessionId]++
	s.genMu.Unlock()

	s.fetches.Forget(sessionId)
	return s.cache.Delete(ctx, sessionId)
}

func (s *sessionService) Sweep(ctx context.Context) (int, error) {
	removed, err := s.cache.Sweep(ctx, s.now())
	if err != nil {
		return 0, err
	}
	sweptEntries.WithLabelValues("session_cache").Add(float64(removed))
	return removed, nil
}
