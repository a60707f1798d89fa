// Package main - точка входа для фонового процесса (Worker) Bonus Hub.
//
// Worker отвечает за периодические задачи:
// - Загрузка редакционных таблиц (челленджи, товары, статистика)
// - Обновление статистики студентов с платформы статистики
// - Начисление бонусов за выполненные челленджи
// - Пересчёт достижений
//
// Философия: студент видит результат своей учёбы в бонусах и
// достижениях, а Worker следит за тем, чтобы эти данные всегда
// были актуальными.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skypro-hub/bonus-hub/config"
	"github.com/skypro-hub/bonus-hub/internal/application/command"
	"github.com/skypro-hub/bonus-hub/internal/domain/achievement"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/export"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/external/sheets"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/external/statsapi"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/feed"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/persistence/postgres"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/persistence/redis"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/scheduler"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/scheduler/jobs"
	"github.com/skypro-hub/bonus-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
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
	appLog, slogger := setupLoggers(cfg)
	appLog.Info("starting Bonus Hub Worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	appLog.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		appLog.Info("closing database connection...")
		dbConn.Close()
	}()

	// Проверяем соединение
	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	appLog.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	appLog.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	appLog.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var recorder jobs.SyncRecorder

	if !cfg.Redis.Disabled {
		appLog.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MinIdleConns > 0 {
			redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		}

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			// Redis хранит только снапшоты, без него можно работать
			appLog.Warn("failed to connect to Redis, snapshot recording disabled", logger.Err(err))
		} else {
			defer redisCache.Close()
			recorder = redis.NewStatsCache(redisCache)
			appLog.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	appLog.Info("initializing repositories...")
	studentRepo := postgres.NewStudentRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	productRepo := postgres.NewProductRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)

	// In-memory снапшот статистики из редакционной таблицы
	statsSnapshot := feed.NewCache()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	appLog.Info("initializing external clients...")

	sheetsCfg := sheets.DefaultClientConfig(cfg.Sheets.SpreadsheetID, cfg.Sheets.Token)
	if cfg.Sheets.BaseURL != "" {
		sheetsCfg.BaseURL = cfg.Sheets.BaseURL
	}
	sheetsCfg.ReportSheet = cfg.Sheets.PurchasesSheet
	sheetsCfg.Timeout = cfg.Sheets.RequestTimeout
	sheetsCfg.Logger = slogger
	sheetsClient := sheets.NewClient(sheetsCfg)

	statsCfg := statsapi.DefaultClientConfig(cfg.StatsAPI.BaseURL, cfg.StatsAPI.Token)
	statsCfg.Timeout = cfg.StatsAPI.RequestTimeout
	statsCfg.Logger = slogger
	statsCfg.Debug = cfg.App.Debug
	statsClient := statsapi.NewClient(statsCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ОЧЕРЕДЬ ЭКСПОРТА ПОКУПОК
	// ─────────────────────────────────────────────────────────────────────────
	exportQueue := export.NewQueue(sheetsClient, appLog.With(logger.Component("export")), export.QueueConfig{
		RetryInterval:  cfg.Export.RetryInterval,
		RetryBatchSize: cfg.Export.RetryBatchSize,
	})
	purchaseExporter := export.NewPurchaseExporter(ctx, exportQueue)
	defer func() {
		appLog.Info("closing export queue...")
		exportQueue.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. КОМАНДЫ ПРИЛОЖЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	engine := achievement.NewEngine(nil)

	reconcileHandler := command.NewReconcileChallengesHandler(
		challengeRepo,
		appLog.With(logger.Component("reconcile_challenges")),
	)
	awardHandler := command.NewAwardChallengesHandler(
		studentRepo,
		challengeRepo,
		appLog.With(logger.Component("award_challenges")),
	)
	achievementsHandler := command.NewRefreshAchievementsHandler(
		studentRepo,
		achievementRepo,
		engine,
		appLog.With(logger.Component("refresh_achievements")),
	)
	purchaseHandler := command.NewProcessPurchaseHandler(
		studentRepo,
		productRepo,
		purchaseExporter,
		appLog.With(logger.Component("process_purchase")),
	)

	// Покупки инициирует внешний транспорт (бот), он живёт в другом процессе
	_ = purchaseHandler

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	syncJob := jobs.NewSyncBonusesJob(
		studentRepo,
		productRepo,
		sheetsClient,
		statsClient,
		statsSnapshot,
		reconcileHandler,
		awardHandler,
		achievementsHandler,
		recorder,
		appLog.With(logger.Component("sync_bonuses")),
		jobs.SyncBonusesConfig{
			StatsSheet:      cfg.Sheets.StatsSheet,
			ChallengesSheet: cfg.Sheets.ChallengesSheet,
			ProductsSheet:   cfg.Sheets.ProductsSheet,
			BatchSize:       cfg.Scheduler.SyncBatchSize,
			BatchPause:      cfg.Scheduler.SyncBatchPause,
			SnapshotTTL:     redis.TTLStatsCache,
			Timeout:         cfg.Scheduler.JobTimeout,
		},
	)

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = slogger
	schedCfg.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedCfg)

	if err := sched.Register(syncJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SyncInterval)); err != nil {
		return fmt.Errorf("failed to register sync job: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		// Первый прогон сразу при старте, не дожидаясь интервала
		go func() {
			if _, err := sched.RunNow(ctx, syncJob.Name()); err != nil {
				appLog.Error("initial sync failed", logger.Err(err))
			}
		}()
	} else {
		appLog.Warn("scheduler is disabled, worker will stay idle")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	appLog.Info("Bonus Hub Worker is running",
		logger.String("sync_interval", cfg.Scheduler.SyncInterval.String()),
		logger.String("timezone", cfg.App.Timezone),
	)

	// Ожидаем сигнал завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	appLog.Info("received shutdown signal", logger.String("signal", sig.String()))

	// Начинаем graceful shutdown
	appLog.Info("starting graceful shutdown...",
		logger.String("timeout", cfg.App.ShutdownTimeout.String()))

	if cfg.Scheduler.Enabled {
		if err := sched.Stop(); err != nil {
			appLog.Warn("scheduler stop failed", logger.Err(err))
		}
	}

	appLog.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLoggers настраивает структурированное логирование: основной логгер
// приложения и slog для инфраструктурных компонентов (планировщик,
// HTTP-клиенты).
func setupLoggers(cfg *config.Config) (*logger.Logger, *slog.Logger) {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}

	opts := logger.DefaultOptions()
	opts.Level = level
	appLog := logger.New(opts)

	slogOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		slogOpts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, slogOpts)
	} else {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, slogOpts)
	}

	slogger := slog.New(handler)
	slog.SetDefault(slogger)

	return appLog, slogger
}
