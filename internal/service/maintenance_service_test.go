package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"property-insight-be/internal/dto"
	"property-insight-be/internal/entity"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/repository/memory"
	"property-insight-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceRunOnce(t *testing.T) {
	f := newSessionFixture(t)
	f.engine.set("abc", analyzingDoc)
	ctx := context.Background()
	_, err := f.svc.Get(ctx, "abc", GetOptions{})
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	cooldowns := memory.NewCooldownStore()
	ok, err := cooldowns.Acquire(ctx, "abc", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	agg := newTestAggregator(newFakeDB())
	aggClock := newTestClock()
	agg.now = aggClock.Now
	_, err = agg.Aggregate(ctx, "abc")
	require.NoError(t, err)
	aggClock.Advance(2 * time.Hour)

	m := NewMaintenanceService(MaintenanceSchedule{
		CacheSweepInterval:  30 * time.Second,
		CooldownSweepEvery:  time.Minute,
		AggregateEvictEvery: 10 * time.Minute,
		AggregateIdleAfter:  time.Hour,
	}, f.svc, cooldowns, agg, logger.NewNopLogger())
	m.RunOnce(ctx)

	assert.Equal(t, 0, f.cache.Len())
	assert.Equal(t, 0, agg.EvictIdle(time.Hour), "already evicted")
	removed, _ := cooldowns.Sweep(ctx, time.Now())
	assert.Equal(t, 0, removed, "already swept")
}

func TestMaintenanceStartStop(t *testing.T) {
	f := newSessionFixture(t)
	m := NewMaintenanceService(MaintenanceSchedule{
		CacheSweepInterval:  time.Second,
		CooldownSweepEvery:  time.Second,
		AggregateEvictEvery: time.Second,
		AggregateIdleAfter:  time.Hour,
	}, f.svc, memory.NewCooldownStore(), newTestAggregator(newFakeDB()), logger.NewNopLogger())

	require.NoError(t, m.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, m.Stop(ctx))
}

func TestCooldownConsumerFollowsBus(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer bus.Close()

	cooldowns := memory.NewCooldownStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ok, _ := cooldowns.Acquire(ctx, "abc", time.Minute)
	require.True(t, ok)

	consumer := NewCooldownReleaseConsumer(bus, SnapshotObservedTopic, cooldowns, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publish := func(status store.Status) {
		payload, err := json.Marshal(dto.SessionSnapshotObservedMessage{SessionId: "abc", Status: status, ObservedAt: time.Now()})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(SnapshotObservedTopic, message.NewMessage(watermill.NewUUID(), payload)))
	}

	publish(store.StatusAnalyzing)
	require.Eventually(t, func() bool {
		m, _ := cooldowns.Get(ctx, "abc")
		return m != nil && m.Phase == entity.CooldownRunning
	}, time.Second, 5*time.Millisecond)

	publish(store.StatusCompleted)
	require.Eventually(t, func() bool {
		m, _ := cooldowns.Get(ctx, "abc")
		return m == nil
	}, time.Second, 5*time.Millisecond)
}
