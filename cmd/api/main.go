package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/refgrid/affiliate-engine/internal/config"
	"github.com/refgrid/affiliate-engine/internal/handler"
	"github.com/refgrid/affiliate-engine/internal/middleware"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"github.com/refgrid/affiliate-engine/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := repository.RunMigrations(cfg.DB, cfg.App.MigrationsPath); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("Database migrations applied")

	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	clickRepo := repository.NewClickRepository(db)
	revenueRepo := repository.NewRevenueRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)

	revenueService := service.NewRevenueService(revenueRepo, affiliateRepo, campaignRepo, cacheRepo, logger)
	conversionService := service.NewConversionService(clickRepo, revenueRepo, affiliateRepo, campaignRepo, cacheRepo, logger)
	payoutService := service.NewPayoutService(payoutRepo, affiliateRepo, logger)

	clickProcessor := service.NewClickProcessor(clickRepo, logger)
	clickProcessor.Start()
	defer clickProcessor.Stop()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(cfg.Auth.APIKeys)
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	router := handler.NewRouter(revenueService, conversionService, payoutService, clickProcessor, rateLimiter, apiKeyMiddleware, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
