package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"property-insight-be/internal/config"
	"property-insight-be/internal/dto"
	"property-insight-be/internal/entity"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/repository/memory"
	"property-insight-be/pkg/dedup"
	"property-insight-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completedDoc = `{"sessionId":"abc","status":"completed","completedSteps":5,"totalSteps":5,"report":{"valuation":{"estimate":1}}}`

func testTriggerConfig() config.TriggerConfig {
	return config.TriggerConfig{
		NegativeRatio:      0.6,
		MinSectionSamples:  3,
		RatingFloor:        2.5,
		MinRatings:         3,
		CooldownMax:        30 * time.Minute,
		MaxPerMinute:       30,
		AggregateIdleAfter: time.Hour,
	}
}

type feedbackFixture struct {
	db         *fakeDB
	engine     *fakeEngine
	events     *nopEvents
	cooldowns  *memory.CooldownStore
	aggregator *feedbackAggregator
	triggers   *triggerService
	feedback   IFeedbackService
	consumer   *cooldownReleaseConsumer
}

func newFeedbackFixture(t *testing.T, cfg config.TriggerConfig) *feedbackFixture {
	t.Helper()
	f := &feedbackFixture{
		db:        newFakeDB(),
		engine:    newFakeEngine(),
		events:    &nopEvents{},
		cooldowns: memory.NewCooldownStore(),
	}
	f.engine.set("abc", completedDoc)

	log := logger.NewNopLogger()
	factory := &fakeFactory{db: f.db}
	sessions := NewSessionService(
		memory.NewSessionCacheStore(5*time.Minute),
		f.engine,
		dedup.New[*store.Session](time.Second),
		factory,
		nil,
		log,
	)
	f.aggregator = NewFeedbackAggregator(factory, log).(*feedbackAggregator)
	f.triggers = NewTriggerService(cfg, time.Second, f.aggregator, sessions, f.cooldowns, factory, f.engine, f.events, nil, log).(*triggerService)
	f.feedback = NewFeedbackService(f.aggregator, f.triggers, factory, f.events, log)
	f.consumer = NewCooldownReleaseConsumer(nil, SnapshotObservedTopic, f.cooldowns, log).(*cooldownReleaseConsumer)
	return f
}

func (f *feedbackFixture) negative(t *testing.T, section string) *dto.SectionFeedbackResponse {
	t.Helper()
	res, err := f.feedback.SubmitSectionFeedback(context.Background(), &dto.SectionFeedbackRequest{
		SessionId: "abc",
		SectionId: section,
		Feedback:  "negative",
	}, nil)
	require.NoError(t, err)
	return res
}

func TestValuationScenarioTriggersOnceThenCoolsDown(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())

	assert.False(t, f.negative(t, "valuation").TriggerActivated)
	assert.False(t, f.negative(t, "valuation").TriggerActivated)

	third := f.negative(t, "valuation")
	assert.True(t, third.TriggerActivated)
	assert.Equal(t, "valuation", third.TriggerDetails["sectionId"])
	assert.Equal(t, "negative_section_ratio", third.TriggerDetails["reason"])

	fourth := f.negative(t, "valuation")
	assert.False(t, fourth.TriggerActivated)
	assert.Equal(t, TriggerSkipCooldown, fourth.TriggerDetails["reason"])

	assert.Equal(t, 1, f.db.triggerCount("abc"))
	assert.Equal(t, int32(1), f.engine.starts.Load())
	assert.Equal(t, int32(1), f.events.retriggered.Load())
	assert.Equal(t, 4, f.db.sectionCount())
}

func TestConcurrentCrossingsCreateSingleTrigger(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())
	for i := 0; i < 3; i++ {
		f.db.sections = append(f.db.sections, entity.NewSectionFeedback("abc", "valuation", entity.PolarityNegative, time.Now(), nil))
	}

	const submitters = 30
	var activated atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.feedback.SubmitSectionFeedback(context.Background(), &dto.SectionFeedbackRequest{
				SessionId: "abc", SectionId: "valuation", Feedback: "negative",
			}, nil)
			assert.NoError(t, err)
			if res != nil && res.TriggerActivated {
				activated.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), activated.Load())
	assert.Equal(t, 1, f.db.triggerCount("abc"))
	assert.Equal(t, int32(1), f.engine.starts.Load())
}

func TestEngineRejectionReleasesCooldown(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())
	f.engine.startErr = errors.New("engine: 503")

	f.negative(t, "valuation")
	f.negative(t, "valuation")
	res := f.negative(t, "valuation")

	assert.False(t, res.TriggerActivated)
	assert.Equal(t, TriggerSkipEngine, res.TriggerDetails["reason"])
	assert.Equal(t, 0, f.db.triggerCount("abc"), "trigger record rolled back")
	assert.Equal(t, int32(1), f.events.failed.Load())

	marker, err := f.cooldowns.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, marker)

	f.engine.mu.Lock()
	f.engine.startErr = nil
	f.engine.mu.Unlock()

	assert.True(t, f.negative(t, "valuation").TriggerActivated, "next crossing retries")
	assert.Equal(t, 1, f.db.triggerCount("abc"))
}

func TestNoTriggerWhileSessionRunning(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())
	f.engine.set("abc", `{"sessionId":"abc","status":"analyzing","completedSteps":1,"totalSteps":5}`)

	f.negative(t, "valuation")
	f.negative(t, "valuation")
	res := f.negative(t, "valuation")

	assert.False(t, res.TriggerActivated)
	assert.Equal(t, TriggerSkipNotTerminal, res.TriggerDetails["reason"])
	marker, _ := f.cooldowns.Get(context.Background(), "abc")
	assert.Nil(t, marker)
}

func (f *feedbackFixture) submit(t *testing.T, section, polarity string) *dto.SectionFeedbackResponse {
	t.Helper()
	res, err := f.feedback.SubmitSectionFeedback(context.Background(), &dto.SectionFeedbackRequest{
		SessionId: "abc",
		SectionId: section,
		Feedback:  polarity,
	}, nil)
	require.NoError(t, err)
	return res
}

func (f *feedbackFixture) finishRerun(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.consumer.Observe(ctx, dto.SessionSnapshotObservedMessage{SessionId: "abc", Status: store.StatusAnalyzing}))
	require.NoError(t, f.consumer.Observe(ctx, dto.SessionSnapshotObservedMessage{SessionId: "abc", Status: store.StatusCompleted, ObservedAt: time.Now()}))
	marker, err := f.cooldowns.Get(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, marker)
}

func TestCooldownClearsWhenRerunFinishes(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())
	ctx := context.Background()

	f.negative(t, "valuation")
	f.negative(t, "valuation")
	require.True(t, f.negative(t, "valuation").TriggerActivated)

	// The finished previous run is still visible: ignored while armed.
	require.NoError(t, f.consumer.Observe(ctx, dto.SessionSnapshotObservedMessage{SessionId: "abc", Status: store.StatusCompleted}))
	marker, _ := f.cooldowns.Get(ctx, "abc")
	require.NotNil(t, marker)
	assert.Equal(t, entity.CooldownArmed, marker.Phase)

	require.NoError(t, f.consumer.Observe(ctx, dto.SessionSnapshotObservedMessage{SessionId: "abc", Status: store.StatusAnalyzing}))
	marker, _ = f.cooldowns.Get(ctx, "abc")
	require.NotNil(t, marker)
	assert.Equal(t, entity.CooldownRunning, marker.Phase)

	fourth := f.negative(t, "valuation")
	assert.False(t, fourth.TriggerActivated)
	assert.Equal(t, TriggerSkipCooldown, fourth.TriggerDetails["reason"])

	require.NoError(t, f.consumer.Observe(ctx, dto.SessionSnapshotObservedMessage{SessionId: "abc", Status: store.StatusCompleted, ObservedAt: time.Now()}))
	marker, _ = f.cooldowns.Get(ctx, "abc")
	assert.Nil(t, marker)

	// Feedback that caused the first trigger does not count again.
	assert.False(t, f.submit(t, "location", "positive").TriggerActivated)
	assert.False(t, f.negative(t, "valuation").TriggerActivated)
	assert.Equal(t, 1, f.db.triggerCount("abc"))

	third := f.negative(t, "valuation")
	assert.True(t, third.TriggerActivated, "three new negatives cross again")
	assert.Equal(t, 3, third.TriggerDetails["sampleCount"])
	assert.Equal(t, 2, f.db.triggerCount("abc"))
	assert.Equal(t, int32(2), f.engine.starts.Load())
}

func TestStaleFeedbackNeverRetriggers(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())

	f.negative(t, "valuation")
	f.negative(t, "valuation")
	require.True(t, f.negative(t, "valuation").TriggerActivated)

	for i := 0; i < 3; i++ {
		f.finishRerun(t)
		assert.False(t, f.submit(t, "location", "positive").TriggerActivated)
	}
	assert.Equal(t, 1, f.db.triggerCount("abc"))
	assert.Equal(t, int32(1), f.engine.starts.Load())
}

func TestFeedbackWindowSurvivesEviction(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())

	f.negative(t, "valuation")
	f.negative(t, "valuation")
	require.True(t, f.negative(t, "valuation").TriggerActivated)

	records, err := f.triggers.ListTriggers(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Baseline)
	assert.Equal(t, entity.SectionTally{Negative: 3}, records[0].Baseline.Sections["valuation"])

	f.aggregator.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.Equal(t, 1, f.aggregator.EvictIdle(time.Hour))
	f.finishRerun(t)

	res := f.submit(t, "location", "positive")
	assert.False(t, res.TriggerActivated)

	agg, err := f.aggregator.Aggregate(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Sections["valuation"].Negative, "history is kept")
	assert.Empty(t, agg.Window().Sections["valuation"])
}

func TestNegativeRatioAtThresholdDoesNotTrigger(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())

	f.submit(t, "valuation", "positive")
	f.submit(t, "valuation", "positive")
	f.negative(t, "valuation")
	f.negative(t, "valuation")
	res := f.negative(t, "valuation")

	assert.False(t, res.TriggerActivated, "3 of 5 does not exceed 0.6")
	assert.Equal(t, 0, f.db.triggerCount("abc"))

	assert.True(t, f.negative(t, "valuation").TriggerActivated)
}

func TestTriggerRateLimit(t *testing.T) {
	cfg := testTriggerConfig()
	cfg.MaxPerMinute = 1
	f := newFeedbackFixture(t, cfg)
	f.engine.set("def", `{"sessionId":"def","status":"degraded","report":{}}`)
	ctx := context.Background()

	for _, id := range []string{"abc", "def"} {
		for i := 0; i < 2; i++ {
			_, err := f.feedback.SubmitStarRating(ctx, &dto.StarRatingRequest{SessionId: id, OverallRating: 1}, nil)
			require.NoError(t, err)
		}
	}
	first, err := f.feedback.SubmitStarRating(ctx, &dto.StarRatingRequest{SessionId: "abc", OverallRating: 1}, nil)
	require.NoError(t, err)
	assert.True(t, first.TriggerActivated)
	assert.Equal(t, "low_average_rating", first.TriggerDetails["reason"])

	second, err := f.feedback.SubmitStarRating(ctx, &dto.StarRatingRequest{SessionId: "def", OverallRating: 1}, nil)
	require.NoError(t, err)
	assert.False(t, second.TriggerActivated)
	assert.Equal(t, TriggerSkipRateLimited, second.TriggerDetails["reason"])

	marker, _ := f.cooldowns.Get(ctx, "def")
	assert.Nil(t, marker, "throttled trigger does not hold a cooldown")
}

func TestInvalidFeedbackIsNotRecorded(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())

	_, err := f.feedback.SubmitSectionFeedback(context.Background(), &dto.SectionFeedbackRequest{
		SessionId: "abc", SectionId: "valuation", Feedback: "maybe",
	}, nil)

	var verr *entity.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "feedback", verr.Field)
	assert.Equal(t, 0, f.db.sectionCount())
	assert.Equal(t, int32(0), f.events.recorded.Load())

	_, err = f.feedback.SubmitStarRating(context.Background(), &dto.StarRatingRequest{
		SessionId: "abc", OverallRating: 3, Timestamp: "yesterday",
	}, nil)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "timestamp", verr.Field)
}

func TestCallerIdentityFillsMissingUser(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())
	caller := "user-42"

	_, err := f.feedback.SubmitSectionFeedback(context.Background(), &dto.SectionFeedbackRequest{
		SessionId: "abc", SectionId: "location", Feedback: "positive", Timestamp: "2026-05-04T10:00:00.123Z",
	}, &caller)
	require.NoError(t, err)

	require.Len(t, f.db.sections, 1)
	require.NotNil(t, f.db.sections[0].UserId)
	assert.Equal(t, "user-42", *f.db.sections[0].UserId)
	assert.True(t, time.Date(2026, 5, 4, 10, 0, 0, 123000000, time.UTC).Equal(f.db.sections[0].Timestamp))
}

func TestFeedbackStats(t *testing.T) {
	f := newFeedbackFixture(t, testTriggerConfig())
	ctx := context.Background()
	submit := func(section, polarity string) {
		_, err := f.feedback.SubmitSectionFeedback(ctx, &dto.SectionFeedbackRequest{SessionId: "abc", SectionId: section, Feedback: polarity}, nil)
		require.NoError(t, err)
	}
	submit("location", "positive")
	submit("location", "positive")
	submit("location", "negative")
	submit("valuation", "positive")

	stats, err := f.feedback.GetSectionFeedbackStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.Positive)
	assert.InDelta(t, 75.0, stats.PositivePercentage, 0.001)
	require.Len(t, stats.Sections, 2)
	assert.Equal(t, "location", stats.Sections[0].SectionId)
	assert.Equal(t, int64(3), stats.Sections[0].Total)

	list, err := f.feedback.ListSectionFeedback(ctx, "abc", "location")
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Count)
	assert.Len(t, list.Feedback, 3)

	agg, err := f.feedback.GetAggregate(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Sections["location"].Positive)
	assert.Nil(t, agg.Cooldown)
}
