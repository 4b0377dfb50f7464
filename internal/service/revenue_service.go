package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/refgrid/affiliate-engine/internal/metrics"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const campaignCacheTTL = 5 * time.Minute

// RevenueService runs the revenue ledger state machine over provider
// webhook events: attribution, commission, record lifecycle and affiliate
// balance reconciliation.
type RevenueService interface {
	HandleEvent(ctx context.Context, event *models.WebhookEvent) error
}

type revenueService struct {
	revenueRepo   repository.RevenueRepository
	affiliateRepo repository.AffiliateRepository
	campaignRepo  repository.CampaignRepository
	cacheRepo     repository.CacheRepository
	logger        *zap.Logger
}

func NewRevenueService(
	revenueRepo repository.RevenueRepository,
	affiliateRepo repository.AffiliateRepository,
	campaignRepo repository.CampaignRepository,
	cacheRepo repository.CacheRepository,
	logger *zap.Logger,
) RevenueService {
	return &revenueService{
		revenueRepo:   revenueRepo,
		affiliateRepo: affiliateRepo,
		campaignRepo:  campaignRepo,
		cacheRepo:     cacheRepo,
		logger:        logger,
	}
}

// HandleEvent dispatches one provider event. Unknown event types are
// skipped. Errors returned here are logged by the webhook handler and
// never fail the HTTP response: the provider contract is always-acknowledge.
func (s *revenueService) HandleEvent(ctx context.Context, event *models.WebhookEvent) error {
	var obj models.PaymentObject
	if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
		return fmt.Errorf("failed to parse event object: %w", err)
	}

	switch event.Type {
	case models.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, &obj)
	case models.EventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, &obj)
	case models.EventChargeRefunded:
		return s.handleRefund(ctx, &obj)
	case models.EventDisputeCreated:
		return s.handleDispute(ctx, &obj)
	case models.EventInvoicePaid:
		return s.handleInvoicePaid(ctx, &obj)
	default:
		s.logger.Debug("Ignoring unhandled event type", zap.String("type", event.Type))
		return nil
	}
}

// handleCheckoutCompleted creates the revenue record for a completed
// checkout: resolve attribution, compute commission, persist and credit
// the affiliate balance in one transaction. Duplicate deliveries no-op on
// the transaction id uniqueness.
func (s *revenueService) handleCheckoutCompleted(ctx context.Context, obj *models.PaymentObject) error {
	attr := ResolveAttribution(obj)
	amount := minorToMajor(obj.AmountTotal)

	campaign := s.lookupCampaign(ctx, attr.CampaignID)
	profile := s.lookupProfile(ctx, attr.AffiliateID)

	commission := CalculateCommission(amount, campaign, profile)

	status := models.StatusPending
	if obj.PaymentStatus == "paid" {
		status = models.StatusSucceeded
	}

	now := time.Now()
	record := &models.RevenueRecord{
		TransactionID:    obj.TransactionID(),
		SessionID:        obj.ID,
		SubscriptionID:   nonEmpty(obj.Subscription),
		Amount:           amount,
		Currency:         obj.Currency,
		Status:           status,
		AffiliateID:      attr.AffiliateID,
		CampaignID:       attr.CampaignID,
		ClickID:          attr.ClickID,
		CommissionAmount: commission,
		ConvertedAt:      &now,
	}

	created, err := s.revenueRepo.Create(ctx, record)
	if err != nil {
		return fmt.Errorf("checkout %s: %w", record.TransactionID, err)
	}
	if !created {
		s.logger.Info("Duplicate checkout event, skipping",
			zap.String("transaction_id", record.TransactionID),
		)
		return nil
	}

	if record.AffiliateID != nil {
		metrics.CommissionComputed.Add(commission.InexactFloat64())
	}

	s.logger.Info("Revenue record created",
		zap.String("transaction_id", record.TransactionID),
		zap.String("amount", amount.String()),
		zap.String("commission", commission.String()),
		zap.Bool("attributed", record.AffiliateID != nil),
	)
	return nil
}

// handlePaymentSucceeded is the secondary confirmation: it only moves
// pending -> succeeded. Commission was fixed and the balance credited at
// checkout time, so neither is touched here.
func (s *revenueService) handlePaymentSucceeded(ctx context.Context, obj *models.PaymentObject) error {
	transactionID := obj.TransactionID()

	updated, err := s.revenueRepo.MarkSucceeded(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("payment confirmation %s: %w", transactionID, err)
	}
	if !updated {
		s.logger.Debug("Payment confirmation without pending record, skipping",
			zap.String("transaction_id", transactionID),
		)
	}
	return nil
}

// handleRefund deducts the refunded share of the commission. The provider
// reports the cumulative amount refunded; only the delta above what was
// already stored is deducted, so replays no-op and incremental partial
// refunds never deduct more than the original commission in total.
func (s *revenueService) handleRefund(ctx context.Context, obj *models.PaymentObject) error {
	transactionID := obj.TransactionID()

	record, err := s.revenueRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			s.logger.Warn("Refund for unknown transaction, nothing to reverse",
				zap.String("transaction_id", transactionID),
			)
			return nil
		}
		return fmt.Errorf("refund %s: %w", transactionID, err)
	}

	refundTotal := minorToMajor(obj.AmountRefunded)
	// Anomalous cumulative totals above the charge amount are clamped, so
	// lifetime deductions across deliveries never exceed the commission.
	if refundTotal.GreaterThan(record.Amount) {
		refundTotal = record.Amount
	}
	if refundTotal.LessThanOrEqual(record.RefundAmount) {
		s.logger.Info("Refund already applied, skipping",
			zap.String("transaction_id", transactionID),
			zap.String("refund_amount", record.RefundAmount.String()),
		)
		return nil
	}

	newStatus := models.StatusPartiallyRefunded
	if refundTotal.GreaterThanOrEqual(record.Amount) {
		newStatus = models.StatusRefunded
	}
	if !record.Status.CanTransition(newStatus) {
		s.logger.Warn("Invalid refund transition, skipping",
			zap.String("transaction_id", transactionID),
			zap.String("from", string(record.Status)),
			zap.String("to", string(newStatus)),
		)
		return nil
	}

	refundDelta := refundTotal.Sub(record.RefundAmount)
	deduct := decimal.Zero
	if record.Amount.IsPositive() {
		deduct = record.CommissionAmount.Mul(refundDelta).Div(record.Amount).Round(2)
	}
	// Rounding never pushes a single deduction above the commission.
	if deduct.GreaterThan(record.CommissionAmount) {
		deduct = record.CommissionAmount
	}

	applied, err := s.revenueRepo.ApplyRefund(ctx, transactionID, newStatus, refundTotal, record.RefundAmount, record.AffiliateID, deduct)
	if err != nil {
		return fmt.Errorf("refund %s: %w", transactionID, err)
	}
	if !applied {
		s.logger.Info("Refund lost conditional update to concurrent delivery, skipping",
			zap.String("transaction_id", transactionID),
		)
		return nil
	}

	s.logger.Info("Refund applied",
		zap.String("transaction_id", transactionID),
		zap.String("status", string(newStatus)),
		zap.String("commission_deducted", deduct.String()),
	)
	return nil
}

// handleDispute marks the record disputed and deducts the entire
// commission. This intentionally ignores any prior partial-refund
// deduction, matching observed provider-side accounting: a dispute after a
// partial refund over-deducts. Duplicate dispute events no-op because
// disputed is terminal.
func (s *revenueService) handleDispute(ctx context.Context, obj *models.PaymentObject) error {
	transactionID := obj.TransactionID()

	record, err := s.revenueRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			s.logger.Warn("Dispute for unknown transaction, skipping",
				zap.String("transaction_id", transactionID),
			)
			return nil
		}
		return fmt.Errorf("dispute %s: %w", transactionID, err)
	}

	if !record.Status.CanTransition(models.StatusDisputed) {
		s.logger.Info("Record already terminal, dispute skipped",
			zap.String("transaction_id", transactionID),
			zap.String("status", string(record.Status)),
		)
		return nil
	}

	applied, err := s.revenueRepo.MarkDisputed(ctx, transactionID, record.AffiliateID, record.CommissionAmount)
	if err != nil {
		return fmt.Errorf("dispute %s: %w", transactionID, err)
	}
	if !applied {
		s.logger.Info("Dispute lost conditional update, skipping",
			zap.String("transaction_id", transactionID),
		)
		return nil
	}

	s.logger.Info("Dispute recorded, commission reversed",
		zap.String("transaction_id", transactionID),
		zap.String("commission_deducted", record.CommissionAmount.String()),
	)
	return nil
}

// handleInvoicePaid processes recurring renewals. Attribution is recovered
// from the original revenue record of the same subscription, never from
// invoice metadata; a renewal without a traceable origin produces no
// commission and no record.
func (s *revenueService) handleInvoicePaid(ctx context.Context, obj *models.PaymentObject) error {
	if obj.BillingReason != models.BillingReasonSubscriptionCycle {
		// First invoices are covered by the checkout event.
		return nil
	}
	if obj.Subscription == "" {
		s.logger.Debug("Renewal invoice without subscription id, skipping")
		return nil
	}

	original, err := s.revenueRepo.FindBySubscriptionID(ctx, obj.Subscription)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			s.logger.Info("Renewal without original record, dropping",
				zap.String("subscription_id", obj.Subscription),
			)
			return nil
		}
		return fmt.Errorf("renewal %s: %w", obj.Subscription, err)
	}

	amount := minorToMajor(obj.AmountPaid)

	// Renewals use the affiliate's current rate, never campaign rules.
	profile := s.lookupProfile(ctx, original.AffiliateID)
	commission := CalculateCommission(amount, nil, profile)

	now := time.Now()
	record := &models.RevenueRecord{
		TransactionID:    obj.TransactionID(),
		SessionID:        obj.ID,
		SubscriptionID:   nonEmpty(obj.Subscription),
		Amount:           amount,
		Currency:         obj.Currency,
		Status:           models.StatusSucceeded,
		AffiliateID:      original.AffiliateID,
		CampaignID:       original.CampaignID,
		ClickID:          original.ClickID,
		CommissionAmount: commission,
		ConvertedAt:      &now,
	}

	created, err := s.revenueRepo.Create(ctx, record)
	if err != nil {
		return fmt.Errorf("renewal %s: %w", record.TransactionID, err)
	}
	if !created {
		s.logger.Info("Duplicate renewal invoice, skipping",
			zap.String("transaction_id", record.TransactionID),
		)
		return nil
	}

	if record.AffiliateID != nil {
		metrics.CommissionComputed.Add(commission.InexactFloat64())
	}

	s.logger.Info("Renewal commission recorded",
		zap.String("transaction_id", record.TransactionID),
		zap.String("subscription_id", obj.Subscription),
		zap.String("commission", commission.String()),
	)
	return nil
}

// lookupCampaign reads a campaign through the cache. A missing or
// unreadable campaign is an attribution gap, not an error.
func (s *revenueService) lookupCampaign(ctx context.Context, campaignID *string) *models.Campaign {
	if campaignID == nil || *campaignID == "" {
		return nil
	}

	if campaign, err := s.cacheRepo.GetCampaign(ctx, *campaignID); err == nil {
		return campaign
	}

	campaign, err := s.campaignRepo.GetByID(ctx, *campaignID)
	if err != nil {
		if !errors.Is(err, repository.ErrCampaignNotFound) {
			s.logger.Warn("Campaign lookup failed", zap.String("campaign_id", *campaignID), zap.Error(err))
		}
		return nil
	}

	if err := s.cacheRepo.SetCampaign(ctx, campaign, campaignCacheTTL); err != nil {
		s.logger.Debug("Failed to cache campaign", zap.Error(err))
	}

	return campaign
}

func (s *revenueService) lookupProfile(ctx context.Context, affiliateID *string) *models.AffiliateProfile {
	if affiliateID == nil || *affiliateID == "" {
		return nil
	}

	profile, err := s.affiliateRepo.GetByUserID(ctx, *affiliateID)
	if err != nil {
		if !errors.Is(err, repository.ErrAffiliateNotFound) {
			s.logger.Warn("Affiliate lookup failed", zap.String("affiliate_id", *affiliateID), zap.Error(err))
		}
		return nil
	}
	return profile
}

// minorToMajor converts a provider minor-unit amount to major units.
func minorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
