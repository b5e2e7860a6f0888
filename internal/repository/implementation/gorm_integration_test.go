package implementation_test

import (
	"context"
	"os"
	"testing"
	"time"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/model"
	"property-insight-be/internal/repository/specification"
	"property-insight-be/internal/repository/unitofwork"
	"property-insight-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGormRepositories(t *testing.T) {
	_ = godotenv.Load("../../../.env")

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, database.DefaultPoolConfig())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SectionFeedback{}, &model.StarRating{}, &model.TriggerRecord{}, &model.AnalysisSession{}))

	ctx := context.Background()
	factory := unitofwork.NewRepositoryFactory(db)
	sessionID := "it-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("section feedback breakdown", func(t *testing.T) {
		repo := factory.NewUnitOfWork(ctx).FeedbackRepository()
		for _, p := range []entity.Polarity{entity.PolarityNegative, entity.PolarityNegative, entity.PolarityPositive} {
			require.NoError(t, repo.CreateSectionFeedback(ctx, entity.NewSectionFeedback(sessionID, "valuation", p, now, nil)))
		}

		stats, err := repo.SectionBreakdown(ctx, specification.BySessionID{SessionID: sessionID})
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, int64(1), stats[0].Positive)
		assert.Equal(t, int64(2), stats[0].Negative)

		count, err := repo.CountSectionFeedback(ctx, specification.BySessionID{SessionID: sessionID}, specification.ByPolarity{Polarity: "negative"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("ratings", func(t *testing.T) {
		repo := factory.NewUnitOfWork(ctx).FeedbackRepository()
		require.NoError(t, repo.CreateRating(ctx, entity.NewStarRating(sessionID, 2, now, nil)))

		ratings, err := repo.FindRatings(ctx, specification.BySessionID{SessionID: sessionID})
		require.NoError(t, err)
		require.Len(t, ratings, 1)
		assert.Equal(t, 2, ratings[0].Rating)
	})

	t.Run("trigger record rollback", func(t *testing.T) {
		uow := factory.NewUnitOfWork(ctx)
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.TriggerRecordRepository().Create(ctx, &entity.TriggerRecord{
			Id:          uuid.New(),
			SessionId:   sessionID,
			TriggeredAt: now,
			Reason:      entity.TriggerReasonNegativeSection,
			Details:     map[string]interface{}{"sectionId": "valuation"},
		}))
		require.NoError(t, uow.Rollback())

		count, err := factory.NewUnitOfWork(ctx).TriggerRecordRepository().Count(ctx, specification.BySessionID{SessionID: sessionID})
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("trigger record baseline", func(t *testing.T) {
		repo := factory.NewUnitOfWork(ctx).TriggerRecordRepository()
		require.NoError(t, repo.Create(ctx, &entity.TriggerRecord{
			Id:          uuid.New(),
			SessionId:   sessionID,
			TriggeredAt: now,
			Reason:      entity.TriggerReasonNegativeSection,
			Baseline: &entity.FeedbackBaseline{
				Sections:    map[string]entity.SectionTally{"valuation": {Negative: 3}},
				RatingCount: 1,
				RatingSum:   2,
			},
		}))

		records, err := repo.FindAll(ctx,
			specification.BySessionID{SessionID: sessionID},
			specification.OrderBy{Field: "triggered_at", Desc: true},
			specification.Pagination{Limit: 1},
		)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.NotNil(t, records[0].Baseline)
		assert.Equal(t, entity.SectionTally{Negative: 3}, records[0].Baseline.Sections["valuation"])
		assert.Equal(t, 2, records[0].Baseline.RatingSum)
	})

	t.Run("session archive", func(t *testing.T) {
		require.NoError(t, db.Create(&model.AnalysisSession{
			SessionId: sessionID,
			Status:    "completed",
			Snapshot:  datatypes.JSON(`{"sessionId":"` + sessionID + `","status":"completed","report":{}}`),
		}).Error)

		repo := factory.NewUnitOfWork(ctx).SessionArchiveRepository()
		s, err := repo.FindBySessionID(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.True(t, s.HasReport)

		missing, err := repo.FindBySessionID(ctx, "missing-"+sessionID)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}
