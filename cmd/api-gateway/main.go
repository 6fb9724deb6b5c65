package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/opl-api/api/swagger"
	"github.com/noah-isme/opl-api/internal/handler"
	"github.com/noah-isme/opl-api/internal/middleware"
	"github.com/noah-isme/opl-api/internal/repository"
	"github.com/noah-isme/opl-api/internal/service"
	"github.com/noah-isme/opl-api/pkg/cache"
	"github.com/noah-isme/opl-api/pkg/config"
	"github.com/noah-isme/opl-api/pkg/database"
	"github.com/noah-isme/opl-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/opl-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/opl-api/pkg/middleware/requestid"
)

// @title One-Point Lesson API
// @version 0.1.0
// @description Lifecycle engine for escrow-backed piano feedback requests
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	requestRepo := repository.NewRequestRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	notifier := service.NewRedisNotifier(redisClient, cfg.Notifier.Channel, logr)
	authSvc := service.NewAuthService(cfg.JWT, logr)

	requestSvc := service.NewRequestService(requestRepo, ledgerRepo, notifier, metricsSvc, logr, service.RequestServiceConfig{
		AcceptWindow:  cfg.Lifecycle.AcceptWindow,
		SubmitWindow:  cfg.Lifecycle.SubmitWindow,
		ReviewWindow:  cfg.Lifecycle.ReviewWindow,
		LedgerTimeout: cfg.Ledger.Timeout,
	})
	disputeSvc := service.NewDisputeService(requestRepo, requestSvc, logr)
	settlementSvc := service.NewSettlementService(requestRepo, logr)
	statsSvc := service.NewStatsService(requestRepo, ledgerRepo, cacheRepo, metricsSvc, logr, cfg.Stats.CacheTTL)

	scheduler := service.NewSchedulerService(requestRepo, requestSvc, metricsSvc, logr, service.SchedulerServiceConfig{
		Interval:  cfg.Sweep.Interval,
		Workers:   cfg.Sweep.Workers,
		BatchSize: cfg.Sweep.BatchSize,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:     authSvc,
		Requests: handler.NewRequestHandler(requestSvc),
		Admin:    handler.NewAdminHandler(requestSvc, disputeSvc, settlementSvc, statsSvc),
		Metrics:  handler.NewMetricsHandler(metricsSvc),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sweep.Enabled {
		scheduler.Start(rootCtx)
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
		os.Exit(1)
	}
}
