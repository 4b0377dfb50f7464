package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/refgrid/affiliate-engine/internal/botfilter"
	"github.com/refgrid/affiliate-engine/internal/metrics"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/service"
	"go.uber.org/zap"
)

type ClickHandler struct {
	clickProcessor service.ClickProcessor
	logger         *zap.Logger
}

func NewClickHandler(clickProcessor service.ClickProcessor, logger *zap.Logger) *ClickHandler {
	return &ClickHandler{
		clickProcessor: clickProcessor,
		logger:         logger,
	}
}

type TrackClickRequest struct {
	AffiliateID string  `json:"affiliate_id" binding:"required"`
	CampaignID  *string `json:"campaign_id,omitempty"`
	Referrer    string  `json:"referrer"`
	Hostname    string  `json:"hostname"`
	WebDriver   bool    `json:"webdriver"`
	NoLanguages bool    `json:"no_languages"`
	NoPlugins   bool    `json:"no_plugins"`
}

type TrackClickResponse struct {
	ClickID  string `json:"click_id"`
	Filtered bool   `json:"filtered"`
}

// TrackClick classifies and enqueues a click. The response returns
// immediately with the generated click id; the ledger write is async.
// Filtered clicks are recorded too, flagged for audit.
func (h *ClickHandler) TrackClick(c *gin.Context) {
	var req TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid click request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	result := botfilter.Classify(botfilter.Signals{
		UserAgent:   c.Request.UserAgent(),
		Referrer:    req.Referrer,
		Hostname:    req.Hostname,
		WebDriver:   req.WebDriver,
		NoLanguages: req.NoLanguages,
		NoPlugins:   req.NoPlugins,
	})
	if result.Filtered {
		for _, reason := range strings.Split(result.Reason, ",") {
			metrics.ClicksFiltered.WithLabelValues(reason).Inc()
		}
	}

	event := &models.ClickEvent{
		ClickID:     uuid.NewString(),
		AffiliateID: req.AffiliateID,
		CampaignID:  req.CampaignID,
		IPAddress:   c.ClientIP(),
		Referrer:    req.Referrer,
		UserAgent:   c.Request.UserAgent(),
		Filtered:    result.Filtered,
		BotReason:   result.Reason,
	}

	if err := h.clickProcessor.RecordClick(c.Request.Context(), event); err != nil {
		h.logger.Debug("Failed to enqueue click (non-blocking)", zap.Error(err))
	}

	c.JSON(http.StatusAccepted, TrackClickResponse{
		ClickID:  event.ClickID,
		Filtered: event.Filtered,
	})
}

// GetStats returns cumulative click counts for an affiliate.
func (h *ClickHandler) GetStats(c *gin.Context) {
	affiliateID := c.Param("id")

	stats, err := h.clickProcessor.GetStats(c.Request.Context(), affiliateID)
	if err != nil {
		h.logger.Warn("Failed to get click stats", zap.String("affiliate_id", affiliateID), zap.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Affiliate not found",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetDailyStats returns a daily series of unfiltered clicks.
func (h *ClickHandler) GetDailyStats(c *gin.Context) {
	affiliateID := c.Param("id")
	days := 7
	if d := c.Query("days"); d != "" {
		if _, err := fmt.Sscanf(d, "%d", &days); err != nil || days < 1 || days > 90 {
			days = 7
		}
	}

	stats, err := h.clickProcessor.GetDailyStats(c.Request.Context(), affiliateID, days)
	if err != nil {
		h.logger.Warn("Failed to get daily stats", zap.String("affiliate_id", affiliateID), zap.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Affiliate not found",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
