package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"github.com/refgrid/affiliate-engine/internal/service"
	"go.uber.org/zap"
)

type PayoutHandler struct {
	payouts service.PayoutService
	logger  *zap.Logger
}

func NewPayoutHandler(payouts service.PayoutService, logger *zap.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts: payouts,
		logger:  logger,
	}
}

// RequestPayout debits the affiliate's pending balance and records the
// payout.
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	var input models.PayoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	payout, err := h.payouts.RequestPayout(c.Request.Context(), &input)
	if err != nil {
		h.logger.Warn("Payout request failed",
			zap.String("affiliate_id", input.AffiliateID),
			zap.Error(err),
		)

		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_amount",
				Message: "Amount must be positive",
			})
		case errors.Is(err, repository.ErrAffiliateNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "affiliate_not_found",
				Message: "Affiliate not found",
			})
		case errors.Is(err, repository.ErrInsufficientBalance):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "insufficient_balance",
				Message: "Payout amount exceeds pending balance",
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to process payout",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, payout)
}

// GetBalance returns the affiliate's earnings/pending/paid snapshot for
// the dashboard and payout eligibility checks.
func (h *PayoutHandler) GetBalance(c *gin.Context) {
	affiliateID := c.Param("id")

	profile, err := h.payouts.GetBalance(c.Request.Context(), affiliateID)
	if err != nil {
		h.logger.Warn("Failed to get balance", zap.String("affiliate_id", affiliateID), zap.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "affiliate_not_found",
			Message: "Affiliate not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"affiliate_id":    profile.UserID,
		"total_earnings":  profile.TotalEarnings,
		"pending_payouts": profile.PendingPayouts,
		"total_paid":      profile.TotalPaid,
	})
}
