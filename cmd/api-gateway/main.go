package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/vertragio/clm-api/api/swagger"
	"github.com/vertragio/clm-api/internal/handler"
	"github.com/vertragio/clm-api/internal/middleware"
	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/internal/repository"
	"github.com/vertragio/clm-api/internal/service"
	"github.com/vertragio/clm-api/pkg/cache"
	"github.com/vertragio/clm-api/pkg/config"
	"github.com/vertragio/clm-api/pkg/database"
	"github.com/vertragio/clm-api/pkg/jobs"
	"github.com/vertragio/clm-api/pkg/logger"
	corsmiddleware "github.com/vertragio/clm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vertragio/clm-api/pkg/middleware/requestid"
)

// @title Contract Lifecycle API
// @version 1.0.0
// @description Multi-tenant contract workflow, validation, retention and metrics backend
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, metrics caching disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	contractRepo := repository.NewContractRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	ruleRepo := repository.NewValidationRuleRepository(db)
	duplicateRepo := repository.NewDuplicateRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	deletionRepo := repository.NewDeletionRepository(db)

	// Services.
	validate := validator.New()
	telemetry := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "clm-api",
	})
	validationService := service.NewValidationService(ruleRepo, contractRepo, logr)
	ruleService := service.NewRuleService(ruleRepo, validate, logr)
	contractService := service.NewContractService(contractRepo, validationService, logr)
	workflowService := service.NewWorkflowService(workflowRepo, contractRepo, validationService, cacheRepo, telemetry, logr)
	aggregationService := service.NewAggregationService(metricsRepo, contractRepo, workflowRepo, tenantRepo, cacheRepo, cfg.Aggregation.CacheTTL, logr)
	archiveService := service.NewArchiveService(archiveRepo, contractRepo, cfg.Retention, logr)
	duplicateService := service.NewDuplicateService(duplicateRepo, contractRepo, archiveService, cfg.Duplicates, logr)
	deletionService := service.NewDeletionService(deletionRepo, contractRepo, archiveRepo, workflowRepo, archiveService, logr)
	tenantService := service.NewTenantService(tenantRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(telemetry))

	metricsHandler := handler.NewMetricsHandler(telemetry)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Contracts:   handler.NewContractHandler(contractService),
		Workflow:    handler.NewWorkflowHandler(workflowService),
		Rules:       handler.NewRuleHandler(ruleService),
		Duplicates:  handler.NewDuplicateHandler(duplicateService),
		Aggregation: handler.NewAggregationHandler(aggregationService),
		Archive:     handler.NewArchiveHandler(archiveService),
		Deletion:    handler.NewDeletionHandler(deletionService),
		Tenants:     handler.NewTenantHandler(tenantService),
		Metrics:     metricsHandler,
	}, authService)

	// Background jobs share one queue; tickers below feed it.
	queue := jobs.NewQueue("maintenance", func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case "aggregation":
			return aggregationService.RunDailyForAllScopes(ctx)
		case "retention":
			_, err := archiveService.ArchiveAged(ctx, models.GlobalScope(), cfg.Retention.Days)
			return err
		case "deletion":
			for {
				processed, err := deletionService.ProcessNext(ctx, "deletion-worker")
				if err != nil || !processed {
					return err
				}
			}
		default:
			return fmt.Errorf("unknown job type %s", job.Type)
		}
	}, jobs.QueueConfig{Workers: 2, MaxRetries: cfg.Workflow.MaxRetries, Logger: logr})
	queue.Start(ctx)
	defer queue.Stop()

	startTicker(ctx, queue, "aggregation", cfg.Aggregation.Interval, cfg.Aggregation.Enabled, logr)
	startTicker(ctx, queue, "retention", cfg.Retention.SweepInterval, cfg.Retention.Enabled, logr)
	startTicker(ctx, queue, "deletion", cfg.Deletion.PollInterval, cfg.Deletion.Enabled, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// startTicker periodically enqueues a maintenance job until ctx ends.
func startTicker(ctx context.Context, queue *jobs.Queue, jobType string, interval time.Duration, enabled bool, logr *zap.Logger) {
	if !enabled || interval <= 0 {
		logr.Sugar().Infow("background job disabled", "job", jobType)
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job := jobs.Job{ID: uuid.NewString(), Type: jobType}
				if err := queue.Enqueue(job); err != nil {
					logr.Sugar().Warnw("failed to enqueue job", "job", jobType, "error", err)
				}
			}
		}
	}()
}
