package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/config"
	"github.com/noah-isme/gema-training-api/internal/database"
	"github.com/noah-isme/gema-training-api/internal/handler"
	"github.com/noah-isme/gema-training-api/internal/lifecycle"
	"github.com/noah-isme/gema-training-api/internal/middleware"
	"github.com/noah-isme/gema-training-api/internal/repository"
	"github.com/noah-isme/gema-training-api/internal/router"
	"github.com/noah-isme/gema-training-api/internal/scheduler"
	"github.com/noah-isme/gema-training-api/internal/seed"
	"github.com/noah-isme/gema-training-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.RedisDialTimeout)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, cfg.RealtimeChannel, natsConn, logger)
	notificationService.Start(rootCtx)

	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)

	certificateService := service.NewCertificateService(store, redisClient, cfg.RenewalHistoryCacheTTL, service.CertificatePolicy{
		ValidFor:            cfg.CertificateValidity,
		RequireVerification: cfg.CertificateRequireVerification,
		WarningWindow:       cfg.CertificateWarningWindow,
		RenewalWindow:       cfg.CertificateRenewalWindow,
		RenewalGrace:        cfg.CertificateRenewalGrace,
	}, notificationService, activityService, logger)

	progressService := service.NewProgressService(store, notificationService, activityService, service.AsyncCertificateGeneration(certificateService, logger), logger)
	approvalService := service.NewApprovalService(store, validate, notificationService, activityService, logger)
	gradeService := service.NewGradeService(store, validate, lifecycle.GradingPolicy{
		ParticipationWeight: cfg.GradingParticipationWeight,
		AssignmentWeight:    cfg.GradingAssignmentWeight,
		PracticalWeight:     cfg.GradingPracticalWeight,
		FinalExamWeight:     cfg.GradingFinalExamWeight,
	}, certificateService, activityService, logger)
	decisionService := service.NewDecisionService(store, validate, activityService, logger)

	loader, err := seed.NewLoader(db, logger)
	if err != nil {
		log.Fatalf("failed to prepare seed loader: %v", err)
	}
	seedService := service.NewSeedService(loader, cfg.SeedEnabled, cfg.SeedToken, logger)

	var locker scheduler.Locker
	if redisClient != nil {
		locker = scheduler.NewRedisLocker(redisClient)
	} else {
		locker = scheduler.NewLocalLocker()
	}
	sweeps := scheduler.New(locker, cfg.SweepLockTTL, logger)
	if err := sweeps.RegisterSweeps(cfg.ProgressSweepSchedule, cfg.CertificateSweepSchedule, progressService, certificateService); err != nil {
		log.Fatalf("failed to register sweeps: %v", err)
	}
	if cfg.SchedulerEnabled {
		sweeps.Start()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})

	adminHandler := handler.NewAdminHandler(sweeps, progressService, activityService, logger)
	if redisClient != nil {
		adminHandler.WithRateLimitStorage(middleware.NewRedisStorage(redisClient))
	}

	router.Register(app, cfg, router.Dependencies{
		ApprovalHandler:     handler.NewApprovalHandler(approvalService, validate, logger),
		ProgressHandler:     handler.NewProgressHandler(progressService, validate, logger),
		GradeHandler:        handler.NewGradeHandler(gradeService, validate, logger),
		CertificateHandler:  handler.NewCertificateHandler(certificateService, validate, logger),
		DecisionHandler:     handler.NewDecisionHandler(decisionService, validate, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, 15*time.Second),
		AdminHandler:        adminHandler,
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		HealthChecks:        dependencyChecks(db, redisClient, natsConn),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, sweeps, cancelRoot)
}

func dependencyChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		checks = append(checks, handler.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if natsConn != nil {
		checks = append(checks, handler.DependencyCheck{
			Name: "nats",
			Check: func(ctx context.Context) error {
				if !natsConn.IsConnected() {
					return fmt.Errorf("nats connection is %s", natsConn.Status())
				}
				return nil
			},
		})
	}
	return checks
}

func waitForShutdown(app *fiber.App, sweeps *scheduler.Scheduler, cancelRoot context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if err := sweeps.Stop(ctx); err != nil {
		log.Printf("scheduler shutdown failed: %v", err)
	}
	cancelRoot()

	log.Println("server stopped")
}
