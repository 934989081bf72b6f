// Package main - точка входа для API-сервера Classroom Olympics.
//
// Сервер обслуживает REST API движка прогрессии:
// - Начисление наград (одиночных и массовых) с идемпотентностью
// - Ходы по игровому полю с броском кубика на станциях
// - Лидерборд и состояние игроков
// - Журнал активности и снапшоты с контрольными суммами
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/olympus-hub/classroom-olympics/config"
	"github.com/olympus-hub/classroom-olympics/internal/application/command"
	"github.com/olympus-hub/classroom-olympics/internal/application/eventhandler"
	"github.com/olympus-hub/classroom-olympics/internal/application/query"
	"github.com/olympus-hub/classroom-olympics/internal/application/saga"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	httpapi "github.com/olympus-hub/classroom-olympics/internal/interface/http"
	"github.com/olympus-hub/classroom-olympics/internal/interface/http/handlers"
	"github.com/olympus-hub/classroom-olympics/pkg/logger"

	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/messaging"
	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/persistence/postgres"
	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/persistence/redis"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Classroom Olympics API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (индекс рейтинга)
	// ─────────────────────────────────────────────────────────────────────────
	var rankCache player.RankCache
	var redisCache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			// Рейтинг - производные данные; без Redis запросы падают
			// обратно на хранилище, поэтому это не фатально.
			log.Warn("failed to connect to Redis, rank index disabled", logger.Err(err))
		} else {
			defer redisCache.Close()
			rankCache = redis.NewGuardedRankCache(redis.NewRankCache(redisCache), nil)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	playerRepo := postgres.NewPlayerRepository(dbConn)
	awardLogRepo := postgres.NewAwardLogRepository(dbConn)
	stationRepo := postgres.NewStationRepository(dbConn)
	rollHistoryRepo := postgres.NewRollHistoryRepository(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn)
	progressStore := postgres.NewProgressStore(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS И ДИСПЕТЧЕРА СОБЫТИЙ
	// При живом Redis события уходят и на другие инстансы через Pub/Sub;
	// без него шина работает только внутри процесса.
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	var eventBus shared.EventBus
	var closeBus func() error

	if redisCache != nil {
		redisBus, busErr := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewEventBridge(redisCache),
			ChannelName:    redis.ChannelEvents,
			LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
		})
		if busErr != nil {
			log.Warn("failed to start Redis event bus, falling back to in-memory", logger.Err(busErr))
		} else {
			eventBus = redisBus
			closeBus = redisBus.Close
			log.Info("Redis event bus started", logger.String("channel", redis.ChannelEvents))
		}
	}
	if eventBus == nil {
		memBus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
		eventBus = memBus
		closeBus = memBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(eventBus))
	dispatcher.Use(messaging.RecoveryMiddleware(slog.Default()))
	dispatcher.Use(messaging.LoggingMiddleware(slog.Default()))

	if rankCache != nil {
		if err := dispatcher.Register(shared.EventXPGained, eventhandler.NewOnXPGainedHandler(rankCache, nil)); err != nil {
			return fmt.Errorf("failed to register xp handler: %w", err)
		}
	}
	if err := dispatcher.Register(shared.EventLevelUp, eventhandler.NewOnLevelUpHandler(nil)); err != nil {
		return fmt.Errorf("failed to register level-up handler: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}
	defer func() { _ = dispatcher.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ КОМАНД И ЗАПРОСОВ (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing command and query handlers...")

	locks := command.NewPlayerLocks()

	defaultQuests := make([]player.QuestID, len(cfg.Game.Quests))
	for i, q := range cfg.Game.Quests {
		defaultQuests[i] = player.QuestID(q)
	}

	applyAward := command.NewApplyAwardHandler(playerRepo, awardLogRepo, progressStore, eventBus, locks,
		command.ApplyAwardHandlerConfig{AmountCeiling: cfg.Game.AwardCeiling})
	bulkAward := command.NewBulkAwardHandler(applyAward, eventBus, command.DefaultBulkAwardHandlerConfig())
	movePlayer := command.NewMovePlayerHandler(playerRepo, stationRepo, progressStore, eventBus, locks)
	registerPlayer := command.NewRegisterPlayerHandler(playerRepo, defaultQuests)
	enrollment := saga.NewEnrollmentSaga(playerRepo, registerPlayer, applyAward, eventBus, saga.DefaultEnrollmentConfig())
	createSnapshot := command.NewCreateSnapshotHandler(playerRepo, snapshotRepo, eventBus,
		command.CreateSnapshotHandlerConfig{
			Retention:      cfg.Snapshot.Retention,
			AcademicPeriod: cfg.Game.AcademicPeriod,
		})

	getPlayer := query.NewGetPlayerHandler(playerRepo, rankCache)
	getLeaderboard := query.NewGetLeaderboardHandler(playerRepo, rankCache)
	getActivityLog := query.NewGetActivityLogHandler(awardLogRepo)
	getRollHistory := query.NewGetRollHistoryHandler(rollHistoryRepo)
	listSnapshots := query.NewListSnapshotsHandler(snapshotRepo)
	exportSnapshot := query.NewExportSnapshotHandler(snapshotRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.APIKeys = cfg.HTTP.APIKeys

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		EnrollmentSaga:        enrollment,
		ApplyAwardHandler:     applyAward,
		BulkAwardHandler:      bulkAward,
		MovePlayerHandler:     movePlayer,
		CreateSnapshotHandler: createSnapshot,

		GetPlayerHandler:      getPlayer,
		GetLeaderboardHandler: getLeaderboard,
		GetActivityLogHandler: getActivityLog,
		GetRollHistoryHandler: getRollHistory,
		ListSnapshotsHandler:  listSnapshots,
		ExportSnapshotHandler: exportSnapshot,

		Logger:        log,
		HealthChecker: healthChecker,
	})

	errCh := server.StartAsync()
	log.Info("Classroom Olympics API server is running",
		logger.String("address", server.Address()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование приложения.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}
