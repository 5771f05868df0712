// Package main provides the entry point for the leadflow CRM service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cantalab/leadflow/app/handlers"
	"github.com/cantalab/leadflow/app/router"
	"github.com/cantalab/leadflow/app/scheduler"
	"github.com/cantalab/leadflow/app/services"
	businessflow "github.com/cantalab/leadflow/business_flow"
	"github.com/cantalab/leadflow/config"
	"github.com/cantalab/leadflow/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *logrus.Logger
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger, err := services.NewLogger(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize logger")
	}

	sentryEnabled, err := services.InitSentry(cfg.Sentry, cfg.Deployment.Version)
	if err != nil {
		logger.WithError(err).Warn("sentry disabled")
	}
	if sentryEnabled {
		logger.AddHook(services.NewSentryHook())
		defer services.FlushSentry(2 * time.Second)
	}

	logger.WithFields(logrus.Fields{
		"version":     cfg.Deployment.Version,
		"environment": cfg.Deployment.Environment,
	}).Info("starting leadflow")

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize application")
	}

	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	<-sigChan
	logger.Info("shutting down gracefully")

	// Stop background workers in reverse start order
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.WithError(err).Error("error during shutdown")
	}

	logger.Info("server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("database connection established")

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// It returns nil when the cache is disabled.
func initializeCache(cfg config.CacheConfig, logger *logrus.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("db", cfg.RedisDB).Info("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *logrus.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.WithError(err).Warn("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication wires repositories, services, flows, handlers and the scheduler
func initializeApplication(cfg *config.ProductionConfig, logger *logrus.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	var lease services.Lease = services.NoopLease{}
	if rc != nil {
		lease = services.NewRedisLease(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, logger))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	} else {
		logger.Warn("redis disabled; scheduler passes are guarded in-process only")
	}

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db)
	messageRepo := repository.NewLeadMessageRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	lyricRepo := repository.NewLyricRequestRepository(db)
	appConfigRepo := repository.NewAppConfigRepository(db)

	// Initialize services
	mediaStorage := services.NewLocalMediaStorage(cfg.Media)
	generator := services.NewOpenAIService(cfg.OpenAI)
	whatsapp := services.NewWhatsAppService(
		cfg.WhatsApp,
		cfg.Database.DSN(),
		cfg.Media.MaxBytes,
		logger.WithField("component", "whatsapp"),
	)

	sched := scheduler.NewScheduler(
		cfg.Scheduler,
		cfg.Lyrics,
		cfg.WhatsApp.SendTimeout,
		scheduler.Dependencies{
			Leads:     leadRepo,
			Messages:  messageRepo,
			Sequences: sequenceRepo,
			Lyrics:    lyricRepo,
			Sender:    whatsapp,
			Generator: generator,
			Lease:     lease,
		},
		services.NewComponentLogger(logger, "scheduler", cfg.Scheduler.LogFilePath, cfg.Logging),
	)

	// Initialize flows
	inboundFlow := businessflow.NewInboundMessageFlow(
		leadRepo,
		messageRepo,
		appConfigRepo,
		mediaStorage,
		logger.WithField("component", "inbound"),
	)
	whatsappFlow := businessflow.NewWhatsAppFlow(
		whatsapp,
		leadRepo,
		messageRepo,
		cfg.WhatsApp.SendTimeout,
		logger.WithField("component", "whatsapp_flow"),
	)
	leadFlow := businessflow.NewLeadFlow(leadRepo, messageRepo, sequenceRepo, sched, logger.WithField("component", "leads"))
	sequenceFlow := businessflow.NewSequenceFlow(sequenceRepo, logger.WithField("component", "sequences"))
	lyricFlow := businessflow.NewLyricRequestFlow(lyricRepo, leadRepo, logger.WithField("component", "lyric_requests"))
	appConfigFlow := businessflow.NewAppConfigFlow(appConfigRepo, logger.WithField("component", "app_config"))

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	seeded, err := sequenceFlow.SeedFromFile(seedCtx, cfg.Sequences.SeedFile)
	seedCancel()
	if err != nil {
		return nil, fmt.Errorf("failed to seed sequences: %w", err)
	}
	if seeded != nil {
		logger.WithField("triggers", seeded.Triggers).Info("sequences seeded")
	}

	if cfg.WhatsApp.Enabled {
		whatsapp.OnMessage(inboundFlow.Handler())
		if err := whatsapp.Connect(context.Background()); err != nil {
			return nil, err
		}
		stopFuncs = append(stopFuncs, func() {
			if err := whatsapp.Close(); err != nil {
				logger.WithError(err).Warn("failed to close whatsapp connection")
			}
		})
	} else {
		logger.Warn("whatsapp disabled; sends will fail with not connected")
	}

	// Start the periodic passes
	stopFuncs = append(stopFuncs, sched.Start(context.Background()))

	appRouter := router.NewFiberRouter(
		router.Handlers{
			WhatsApp:     handlers.NewWhatsAppHandler(whatsappFlow),
			Leads:        handlers.NewLeadHandler(leadFlow),
			Sequences:    handlers.NewSequenceHandler(sequenceFlow),
			LyricRequest: handlers.NewLyricRequestHandler(lyricFlow),
			AppConfig:    handlers.NewAppConfigHandler(appConfigFlow),
			Media:        handlers.NewMediaHandler(mediaStorage),
		},
		cfg,
		logger.WithField("component", "http"),
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
