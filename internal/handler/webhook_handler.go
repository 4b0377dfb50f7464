package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/refgrid/affiliate-engine/internal/metrics"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/service"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	revenue service.RevenueService
	logger  *zap.Logger
}

func NewWebhookHandler(revenue service.RevenueService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		revenue: revenue,
		logger:  logger,
	}
}

// HandlePaymentEvent receives provider webhook deliveries. Processing
// failures are logged and still acknowledged with 200: a non-2xx would
// trigger provider redelivery storms for events we cannot process anyway.
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warn("Malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_payload",
			Message: "Malformed event payload",
		})
		return
	}

	if err := h.revenue.HandleEvent(c.Request.Context(), &event); err != nil {
		metrics.WebhookEvents.WithLabelValues(event.Type, "failed").Inc()
		h.logger.Error("Webhook event processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	} else {
		metrics.WebhookEvents.WithLabelValues(event.Type, "processed").Inc()
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
