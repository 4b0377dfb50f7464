package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service-level validation errors surfaced as 4xx by the API handlers.
var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrMissingTransactionID = errors.New("transaction id is required")
	ErrFilteredClick        = errors.New("click was filtered as bot traffic")
)

// ConversionInput is a manually reported conversion tied to a tracked
// click. Amount is in major units.
type ConversionInput struct {
	ClickID       string          `json:"click_id" binding:"required"`
	TransactionID string          `json:"transaction_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency"`
}

// ConversionService is the secondary, API-driven ingestion path: it
// validates the click exists and creates a revenue record carrying the
// click's affiliate and campaign.
type ConversionService interface {
	RecordConversion(ctx context.Context, input *ConversionInput) (*models.RevenueRecord, error)
}

type conversionService struct {
	clickRepo     repository.ClickRepository
	revenueRepo   repository.RevenueRepository
	affiliateRepo repository.AffiliateRepository
	campaignRepo  repository.CampaignRepository
	cacheRepo     repository.CacheRepository
	logger        *zap.Logger
}

func NewConversionService(
	clickRepo repository.ClickRepository,
	revenueRepo repository.RevenueRepository,
	affiliateRepo repository.AffiliateRepository,
	campaignRepo repository.CampaignRepository,
	cacheRepo repository.CacheRepository,
	logger *zap.Logger,
) ConversionService {
	return &conversionService{
		clickRepo:     clickRepo,
		revenueRepo:   revenueRepo,
		affiliateRepo: affiliateRepo,
		campaignRepo:  campaignRepo,
		cacheRepo:     cacheRepo,
		logger:        logger,
	}
}

func (s *conversionService) RecordConversion(ctx context.Context, input *ConversionInput) (*models.RevenueRecord, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if input.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}

	click, err := s.clickRepo.GetByID(ctx, input.ClickID)
	if err != nil {
		return nil, err
	}
	if click.Filtered {
		return nil, ErrFilteredClick
	}

	campaign := s.conversionCampaign(ctx, click.CampaignID)
	var profile *models.AffiliateProfile
	if p, err := s.affiliateRepo.GetByUserID(ctx, click.AffiliateID); err == nil {
		profile = p
	}

	commission := CalculateCommission(input.Amount, campaign, profile)

	now := time.Now()
	record := &models.RevenueRecord{
		TransactionID:    input.TransactionID,
		Amount:           input.Amount,
		Currency:         input.Currency,
		Status:           models.StatusSucceeded,
		AffiliateID:      &click.AffiliateID,
		CampaignID:       click.CampaignID,
		ClickID:          &click.ClickID,
		CommissionAmount: commission,
		ConvertedAt:      &now,
	}

	created, err := s.revenueRepo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("conversion %s: %w", input.TransactionID, err)
	}
	if !created {
		return nil, repository.ErrDuplicateTransaction
	}

	s.logger.Info("Manual conversion recorded",
		zap.String("transaction_id", record.TransactionID),
		zap.String("click_id", click.ClickID),
		zap.String("commission", commission.String()),
	)
	return record, nil
}

func (s *conversionService) conversionCampaign(ctx context.Context, campaignID *string) *models.Campaign {
	if campaignID == nil || *campaignID == "" {
		return nil
	}
	if campaign, err := s.cacheRepo.GetCampaign(ctx, *campaignID); err == nil {
		return campaign
	}
	campaign, err := s.campaignRepo.GetByID(ctx, *campaignID)
	if err != nil {
		return nil
	}
	if err := s.cacheRepo.SetCampaign(ctx, campaign, campaignCacheTTL); err != nil {
		s.logger.Debug("Failed to cache campaign", zap.Error(err))
	}
	return campaign
}
