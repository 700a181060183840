package setup

import (
	"context"
	"log"

	"github.com/talkline/counters/internal/counter"
	"github.com/talkline/counters/internal/database"
	"github.com/talkline/counters/internal/redis"
	"github.com/talkline/counters/internal/setup/config"
	"github.com/talkline/counters/internal/setup/telemetry"
	"go.uber.org/zap"
)

// App bundles all core dependencies needed by the service. Each field is a
// process-wide resource initialized once on startup and drained on shutdown.
type App struct {
	Config       *config.Config   // Application configuration
	Logger       *zap.Logger      // Main application logger
	DBLogger     *zap.Logger      // Database-specific logger
	DB           database.Client  // Primary database pool, used for writes
	RODB         database.Client  // Read-only pool; the primary when no replica is configured
	RedisManager *redis.Manager   // Redis connection manager
	CounterCache *counter.Cache   // Unread counter cache
	Service      *counter.Service // Counter read/write protocol
	pprofServer  *pprofServer
	stopTracing  func(context.Context) error
}

// InitializeApp bootstraps all application dependencies in the correct
// order, ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, dbLogger, err := telemetry.NewLoggers(&cfg.Debug)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("configDir", configDir))

	stopTracing := telemetry.InitTracing(&cfg.Tracing, logger)

	// Primary pool runs migrations; the read-only pool never does
	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, dbLogger, true)
	if err != nil {
		return nil, err
	}

	rodb := db
	if cfg.PostgreSQLRO.Host != cfg.PostgreSQL.Host || cfg.PostgreSQLRO.User != cfg.PostgreSQL.User {
		rodb, err = database.NewConnection(ctx, &cfg.PostgreSQLRO, dbLogger.Named("ro"), false)
		if err != nil {
			return nil, err
		}
	}

	redisManager := redis.NewManager(&cfg.Redis, logger)

	// The cache is best-effort: a missing Redis only costs performance
	var counterCache *counter.Cache

	if cfg.Redis.Host != "" {
		client, err := redisManager.GetClient(redis.CounterDBIndex)
		if err != nil {
			logger.Warn("Failed to create counter cache client, serving without cache", zap.Error(err))
		} else {
			counterCache = counter.NewCache(client, logger)
		}
	} else {
		logger.Warn("Redis not configured, serving without cache")
	}

	service := counter.NewService(
		db.Model().Counter(),
		rodb.Model().Counter(),
		counterCache,
		logger,
	)

	var pprofSrv *pprofServer

	if cfg.Debug.EnablePprof {
		srv, err := startPprofServer(cfg.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			pprofSrv = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RODB:         rodb,
		RedisManager: redisManager,
		CounterCache: counterCache,
		Service:      service,
		pprofServer:  pprofSrv,
		stopTracing:  stopTracing,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse
// initialization order. Logs but does not fail on cleanup errors so every
// component gets a cleanup attempt.
func (a *App) Cleanup(ctx context.Context) {
	if a.pprofServer != nil {
		if err := a.pprofServer.srv.Shutdown(ctx); err != nil {
			a.Logger.Error("Failed to shutdown pprof server", zap.Error(err))
		}
	}

	if err := a.stopTracing(ctx); err != nil {
		a.Logger.Error("Failed to stop tracing", zap.Error(err))
	}

	if a.RODB != a.DB {
		if err := a.RODB.Close(); err != nil {
			log.Printf("Failed to close read-only database connection: %v", err)
		}
	}

	if err := a.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	a.RedisManager.Close()

	// Sync buffered logs last so shutdown itself is captured
	if err := a.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := a.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}
}
