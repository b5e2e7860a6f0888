package bootstrap

import (
	"context"
	"log"
	"time"

	"property-insight-be/internal/config"
	"property-insight-be/internal/controller"
	"property-insight-be/internal/handler"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/pkg/mailer"
	"property-insight-be/internal/repository/contract"
	"property-insight-be/internal/repository/memory"
	"property-insight-be/internal/repository/rediscache"
	"property-insight-be/internal/repository/unitofwork"
	"property-insight-be/internal/service"
	"property-insight-be/internal/websocket"
	"property-insight-be/pkg/dedup"
	"property-insight-be/pkg/engine"
	insightEvents "property-insight-be/pkg/insight/events"
	pktNats "property-insight-be/pkg/nats"
	"property-insight-be/pkg/poller"
	"property-insight-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	cooldownSweepEvery  = time.Minute
	aggregateEvictEvery = 10 * time.Minute
)

type Container struct {
	// Controllers
	SessionController  controller.ISessionController
	FeedbackController controller.IFeedbackController

	// WebSockets
	SessionStreamHandler *handler.SessionStreamHandler
	SessionHub           *websocket.Hub

	// Background Services (Exposed for main.go to run)
	CooldownConsumer service.ICooldownReleaseConsumer
	Maintenance      service.IMaintenanceService

	Logger logger.ILogger

	closers []func() error
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	c := &Container{}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c.Logger = sysLogger

	var emailService mailer.IEmailService
	if cfg.SMTP.Host != "" {
		emailService = mailer.NewEmailService(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.SenderName,
			sysLogger,
		)
	} else {
		log.Printf("[INFO] SMTP_HOST not set, trigger alert emails disabled")
	}

	// 2. Event Bus (in-process)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)
	c.closers = append(c.closers, pubSub.Close)

	// 3. Infrastructure
	// NATS
	var sink insightEvents.EventSink
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v (domain events disabled)", err)
	} else {
		sink = natsPub
		c.closers = append(c.closers, func() error { natsPub.Close(); return nil })
	}
	domainEvents := insightEvents.NewNatsPublisher(sink, sysLogger)

	// Session cache & cooldowns
	cacheStore, cooldowns := newStores(cfg, c)

	// 4. Services
	engineClient := engine.NewHTTPClient(cfg.Engine.BaseURL, cfg.Engine.Timeout)
	fetches := dedup.New[*store.Session](cfg.Engine.Timeout)

	sessionService := service.NewSessionService(cacheStore, engineClient, fetches, uowFactory, pubSub, sysLogger)
	aggregator := service.NewFeedbackAggregator(uowFactory, sysLogger)
	triggerService := service.NewTriggerService(
		cfg.Trigger,
		cfg.Engine.Timeout,
		aggregator,
		sessionService,
		cooldowns,
		uowFactory,
		engineClient,
		domainEvents,
		emailService,
		sysLogger,
	)
	feedbackService := service.NewFeedbackService(aggregator, triggerService, uowFactory, domainEvents, sysLogger)

	c.CooldownConsumer = service.NewCooldownReleaseConsumer(pubSub, service.SnapshotObservedTopic, cooldowns, sysLogger)
	c.Maintenance = service.NewMaintenanceService(
		service.MaintenanceSchedule{
			CacheSweepInterval:  cfg.Cache.SweepInterval,
			CooldownSweepEvery:  cooldownSweepEvery,
			AggregateEvictEvery: aggregateEvictEvery,
			AggregateIdleAfter:  cfg.Trigger.AggregateIdleAfter,
		},
		sessionService,
		cooldowns,
		aggregator,
		sysLogger,
	)

	// 5. Session stream
	streamLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	c.SessionHub = websocket.NewHub(sessionFetcher(sessionService), streamLogger)
	c.SessionStreamHandler = handler.NewSessionStreamHandler(c.SessionHub, streamLogger)

	// 6. Controllers
	c.SessionController = controller.NewSessionController(sessionService)
	c.FeedbackController = controller.NewFeedbackController(feedbackService)

	return c
}

// newStores picks the cache and cooldown backends. Redis is used only when
// configured and reachable.
func newStores(cfg *config.Config, c *Container) (contract.SessionCacheStore, contract.CooldownStore) {
	if cfg.Cache.Backend == "redis" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v (falling back to in-memory cache)", err)
			_ = rdb.Close()
		} else {
			log.Printf("[INFO] Using Redis session cache and cooldowns")
			c.closers = append(c.closers, rdb.Close)
			return rediscache.NewSessionCacheStore(rdb, cfg.Cache.MaxAge), rediscache.NewCooldownStore(rdb)
		}
	}

	log.Printf("[INFO] Using in-memory session cache and cooldowns")
	return memory.NewSessionCacheStore(cfg.Cache.MaxAge), memory.NewCooldownStore()
}

// sessionFetcher serves stream pollers from the session cache rather than
// the engine directly.
func sessionFetcher(sessions service.ISessionService) poller.Fetcher {
	return poller.FetcherFunc(func(ctx context.Context, sessionID string) (*store.Session, error) {
		res, err := sessions.Get(ctx, sessionID, service.GetOptions{})
		if err != nil {
			return nil, err
		}
		return res.Session, nil
	})
}

// Close releases infrastructure connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("[WARN] Close error: %v", err)
		}
	}
	_ = c.Logger.Sync()
}
