package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultPayoutMethod = "bank_transfer"

// PayoutService validates payout requests and debits the affiliate's
// pending balance atomically with the payout record creation.
type PayoutService interface {
	RequestPayout(ctx context.Context, input *models.PayoutInput) (*models.Payout, error)
	GetBalance(ctx context.Context, affiliateID string) (*models.AffiliateProfile, error)
}

type payoutService struct {
	payoutRepo    repository.PayoutRepository
	affiliateRepo repository.AffiliateRepository
	logger        *zap.Logger
}

func NewPayoutService(
	payoutRepo repository.PayoutRepository,
	affiliateRepo repository.AffiliateRepository,
	logger *zap.Logger,
) PayoutService {
	return &payoutService{
		payoutRepo:    payoutRepo,
		affiliateRepo: affiliateRepo,
		logger:        logger,
	}
}

func (s *payoutService) RequestPayout(ctx context.Context, input *models.PayoutInput) (*models.Payout, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	method := input.Method
	if method == "" {
		method = defaultPayoutMethod
	}

	payout := &models.Payout{
		AffiliateID:   input.AffiliateID,
		Amount:        input.Amount.Round(2),
		Method:        method,
		TransactionID: uuid.NewString(),
		Status:        "completed",
	}

	if err := s.payoutRepo.Process(ctx, payout); err != nil {
		return nil, fmt.Errorf("payout for %s: %w", input.AffiliateID, err)
	}

	s.logger.Info("Payout processed",
		zap.String("affiliate_id", payout.AffiliateID),
		zap.String("amount", payout.Amount.String()),
		zap.String("transaction_id", payout.TransactionID),
	)
	return payout, nil
}

func (s *payoutService) GetBalance(ctx context.Context, affiliateID string) (*models.AffiliateProfile, error) {
	return s.affiliateRepo.GetByUserID(ctx, affiliateID)
}
