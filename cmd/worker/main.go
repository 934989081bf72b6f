// Package main - точка входа для фоновых процессов (Worker) Classroom Olympics.
//
// Worker отвечает за периодические задачи:
// - Ночные снапшоты прогресса с контрольными суммами
// - Корректирующая пересборка индекса рейтинга из хранилища
//
// Снапшот - это доказательство для разбора споров: он создаётся каждую
// ночь, даже если за день ничего не изменилось.
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
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"

	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/messaging"
	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/persistence/postgres"
	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/persistence/redis"
	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/scheduler"
	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/scheduler/jobs"
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
	log.Info("starting Classroom Olympics Worker",
		"env", string(cfg.App.Environment),
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
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
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
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

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, rank rebuild disabled", "error", err)
		} else {
			defer redisCache.Close()
			rankCache = redis.NewGuardedRankCache(redis.NewRankCache(redisCache), log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	playerRepo := postgres.NewPlayerRepository(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn)

	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	if rankCache != nil {
		if err := eventBus.Subscribe(shared.EventXPGained, eventhandler.NewOnXPGainedHandler(rankCache, log)); err != nil {
			return fmt.Errorf("failed to subscribe xp handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. РЕГИСТРАЦИЯ ЗАДАЧ В ПЛАНИРОВЩИКЕ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedCfg)

	snapshotHandler := command.NewCreateSnapshotHandler(playerRepo, snapshotRepo, eventBus,
		command.CreateSnapshotHandlerConfig{
			Retention:      cfg.Snapshot.Retention,
			AcademicPeriod: cfg.Game.AcademicPeriod,
		})

	snapshotCron, err := scheduler.ParseCronExpression(cfg.Snapshot.CronSpec)
	if err != nil {
		return fmt.Errorf("invalid SNAPSHOT_CRON %q: %w", cfg.Snapshot.CronSpec, err)
	}

	snapshotJob := jobs.NewNightlySnapshotJob(snapshotHandler, log, jobs.NightlySnapshotConfig{
		Timeout: cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(snapshotJob, snapshotCron); err != nil {
		return fmt.Errorf("failed to register snapshot job: %w", err)
	}

	if rankCache != nil {
		rebuildCfg := jobs.DefaultRebuildRanksConfig()
		rebuildCfg.Timeout = cfg.Scheduler.JobTimeout
		rebuildJob := jobs.NewRebuildRanksJob(playerRepo, rankCache, log, rebuildCfg)

		interval := scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildRanksInterval)
		if err := sched.Register(rebuildJob, interval); err != nil {
			return fmt.Errorf("failed to register rank rebuild job: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК ПЛАНИРОВЩИКА
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, worker will idle")
	} else {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	log.Info("Classroom Olympics Worker is running",
		"timezone", cfg.App.Timezone,
		"snapshot_cron", cfg.Snapshot.CronSpec,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	if cfg.Scheduler.Enabled {
		if err := sched.Stop(); err != nil {
			log.Error("scheduler stop failed", "error", err)
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
