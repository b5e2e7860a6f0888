package service

import (
	"context"
	"fmt"
	"time"

	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/repository/contract"

	rcron "github.com/robfig/cron/v3"
)

// IMaintenanceService runs the periodic sweeps: cache eviction, expired
// cooldown markers and idle feedback aggregates.
type IMaintenanceService interface {
	Start() error
	Stop(ctx context.Context) error
	RunOnce(ctx context.Context)
}

type MaintenanceSchedule struct {
	CacheSweepInterval  time.Duration
	CooldownSweepEvery  time.Duration
	AggregateEvictEvery time.Duration
	AggregateIdleAfter  time.Duration
}

type maintenanceService struct {
	schedule   MaintenanceSchedule
	sessions   ISessionService
	cooldowns  contract.CooldownStore
	aggregator IFeedbackAggregator
	logger     logger.ILogger
	cron       *rcron.Cron
}

func NewMaintenanceService(
	schedule MaintenanceSchedule,
	sessions ISessionService,
	cooldowns contract.CooldownStore,
	aggregator IFeedbackAggregator,
	logger logger.ILogger,
) IMaintenanceService {
	return &maintenanceService{
		schedule:   schedule,
		sessions:   sessions,
		cooldowns:  cooldowns,
		aggregator: aggregator,
		logger:     logger,
		cron:       rcron.New(rcron.WithSeconds(), rcron.WithChain(rcron.SkipIfStillRunning(rcron.DiscardLogger))),
	}
}

func every(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return fmt.Sprintf("@every %s", d)
}

func (m *maintenanceService) Start() error {
	jobs := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{"session_cache_sweep", every(m.schedule.CacheSweepInterval), m.sweepCache},
		{"cooldown_sweep", every(m.schedule.CooldownSweepEvery), m.sweepCooldowns},
		{"aggregate_eviction", every(m.schedule.AggregateEvictEvery), m.evictAggregates},
	}

	for _, job := range jobs {
		fn := job.fn
		if _, err := m.cron.AddFunc(job.spec, func() { fn(context.Background()) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}

	m.cron.Start()
	m.logger.Info("MAINTENANCE", "Scheduler started", map[string]interface{}{
		"cache_sweep":    m.schedule.CacheSweepInterval.String(),
		"cooldown_sweep": m.schedule.CooldownSweepEvery.String(),
		"aggregate_idle": m.schedule.AggregateIdleAfter.String(),
	})
	return nil
}

// Stop waits for running jobs or until ctx is done.
func (m *maintenanceService) Stop(ctx context.Context) error {
	stopped := m.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *maintenanceService) RunOnce(ctx context.Context) {
	m.sweepCache(ctx)
	m.sweepCooldowns(ctx)
	m.evictAggregates(ctx)
}

func (m *maintenanceService) sweepCache(ctx context.Context) {
	removed, err := m.sessions.Sweep(ctx)
	if err != nil {
		m.logger.Error("MAINTENANCE", "Session cache sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if removed > 0 {
		m.logger.Debug("MAINTENANCE", "Session cache swept", map[string]interface{}{"removed": removed})
	}
}

func (m *maintenanceService) sweepCooldowns(ctx context.Context) {
	removed, err := m.cooldowns.Sweep(ctx, time.Now())
	if err != nil {
		m.logger.Error("MAINTENANCE", "Cooldown sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if removed > 0 {
		sweptEntries.WithLabelValues("cooldown").Add(float64(removed))
		m.logger.Info("MAINTENANCE", "Expired cooldowns removed", map[string]interface{}{"removed": removed})
	}
}

func (m *maintenanceService) evictAggregates(context.Context) {
	if evicted := m.aggregator.EvictIdle(m.schedule.AggregateIdleAfter); evicted > 0 {
		m.logger.Debug("MAINTENANCE", "Idle aggregates evicted", map[string]interface{}{"evicted": evicted})
	}
}
