package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/audit"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/cache"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/config"
	cronrunner "github.com/cylendralabs-blip/cylendra.com-sub004/internal/cron"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/db"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/executor"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/handler"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/logger"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/replicator"
	gormrepository "github.com/cylendralabs-blip/cylendra.com-sub004/internal/repository/gorm"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/risk"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/scheduler"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/stream"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/subscription"
)

func main() {
	cfgPath := os.Getenv("CT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	// The cache and scheduler are the process's single shared instances,
	// owned here and injected everywhere they are needed.
	stateCache := cache.New(cfg.Cache.DefaultTTL)
	batchScheduler := scheduler.New(cfg.Scheduler, logger)

	sidecar := audit.NewClient(cfg.Sidecar, logger)

	var tradeExecutor executor.Executor
	if cfg.Engine.DryRun {
		logger.Info("executor running in dry-run mode")
		tradeExecutor = &executor.Paper{Logger: logger}
	} else {
		// Live exchange connectivity ships separately; paper fills keep the
		// engine runnable until then.
		logger.Warn("live execution not wired, falling back to paper fills")
		tradeExecutor = &executor.Paper{Logger: logger}
	}

	engine := &replicator.Engine{
		Repo:      store,
		Executor:  tradeExecutor,
		Gate:      &risk.Gate{Config: cfg.Risk, Logger: logger},
		Cache:     stateCache,
		Scheduler: batchScheduler,
		Audit:     sidecar,
		Notifier:  sidecar,
		Logger:    logger,
		CacheTTL:  cfg.Cache,
	}

	subscriptionSvc := &subscription.Service{
		Repo:   store,
		Cache:  stateCache,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(router)
	triggerHandler := &handler.TriggerHandler{Engine: engine, Scheduler: batchScheduler}
	triggerHandler.Register(router)
	subscriptionHandler := &handler.SubscriptionHandler{Service: subscriptionSvc}
	subscriptionHandler.Register(router)
	attemptHandler := &handler.AttemptHandler{Repo: store}
	attemptHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.CacheSweep, func(ctx context.Context) {
			if removed := stateCache.ClearExpired(); removed > 0 {
				logger.Debug("cache sweep", zap.Int("removed", removed))
			}
		})
		if err != nil {
			logger.Fatal("register cache sweep failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.StaleAttemptScan, func(ctx context.Context) {
			cutoff := time.Now().Add(-cfg.Engine.StalePendingAfter)
			marked, err := store.MarkStalePendingAttempts(ctx, cutoff, "attempt stuck in PENDING past recovery cutoff")
			if err != nil {
				logger.Warn("stale attempt scan failed", zap.Error(err))
				return
			}
			if marked > 0 {
				logger.Warn("stale attempts failed over", zap.Int64("marked", marked))
			}
		})
		if err != nil {
			logger.Fatal("register stale attempt scan failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if cfg.Stream.Enabled {
		listener := stream.NewListener(cfg.Stream, engine, logger)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("stream listener stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
