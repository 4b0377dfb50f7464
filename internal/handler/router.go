package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/refgrid/affiliate-engine/internal/middleware"
	"github.com/refgrid/affiliate-engine/internal/service"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func NewRouter(
	revenueService service.RevenueService,
	conversionService service.ConversionService,
	payoutService service.PayoutService,
	clickProcessor service.ClickProcessor,
	rateLimiter *middleware.RateLimiter,
	apiKeyMiddleware gin.HandlerFunc,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	router.Use(rateLimiter.Middleware())

	webhookHandler := NewWebhookHandler(revenueService, logger)
	clickHandler := NewClickHandler(clickProcessor, logger)
	conversionHandler := NewConversionHandler(conversionService, logger)
	payoutHandler := NewPayoutHandler(payoutService, logger)

	// Provider webhooks are signed by the provider, not API-key guarded.
	router.POST("/webhooks/payments", webhookHandler.HandlePaymentEvent)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		if apiKeyMiddleware != nil {
			v1.Use(apiKeyMiddleware)
		}

		v1.POST("/clicks", clickHandler.TrackClick)
		v1.GET("/affiliates/:id/clicks/stats", clickHandler.GetStats)
		v1.GET("/affiliates/:id/clicks/stats/daily", clickHandler.GetDailyStats)
		v1.GET("/affiliates/:id/balance", payoutHandler.GetBalance)
		v1.POST("/conversions", conversionHandler.RecordConversion)
		v1.POST("/payouts", payoutHandler.RequestPayout)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
