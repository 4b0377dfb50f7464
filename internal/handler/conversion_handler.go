package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"github.com/refgrid/affiliate-engine/internal/service"
	"go.uber.org/zap"
)

type ConversionHandler struct {
	conversions service.ConversionService
	logger      *zap.Logger
}

func NewConversionHandler(conversions service.ConversionService, logger *zap.Logger) *ConversionHandler {
	return &ConversionHandler{
		conversions: conversions,
		logger:      logger,
	}
}

// RecordConversion is the manual, API-driven conversion path: it links a
// transaction to a previously tracked click.
func (h *ConversionHandler) RecordConversion(c *gin.Context) {
	var input service.ConversionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	record, err := h.conversions.RecordConversion(c.Request.Context(), &input)
	if err != nil {
		h.logger.Warn("Failed to record conversion",
			zap.String("click_id", input.ClickID),
			zap.Error(err),
		)

		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_amount",
				Message: "Amount must be positive",
			})
		case errors.Is(err, service.ErrMissingTransactionID):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "missing_transaction_id",
				Message: "Transaction id is required",
			})
		case errors.Is(err, service.ErrFilteredClick):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "filtered_click",
				Message: "Click was filtered as bot traffic",
			})
		case errors.Is(err, repository.ErrClickNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "click_not_found",
				Message: "Click not found",
			})
		case errors.Is(err, repository.ErrDuplicateTransaction):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_transaction",
				Message: "Transaction already recorded",
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to record conversion",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, record)
}
