package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/shopspring/decimal"
)

// RevenueRepository persists attributed transactions. Writes that move
// money (create, refund, dispute) update the revenue record and the
// affiliate balance inside a single database transaction, so the ledger and
// the balance cannot diverge on a crash between the two.
type RevenueRepository interface {
	// Create inserts a new record and credits the affiliate balance with the
	// commission. Returns false without error when the transaction id is
	// already recorded (duplicate webhook delivery).
	Create(ctx context.Context, record *models.RevenueRecord) (bool, error)

	GetByTransactionID(ctx context.Context, transactionID string) (*models.RevenueRecord, error)

	// FindBySubscriptionID returns the earliest attributed record for a
	// subscription, used to recover attribution on renewal invoices.
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.RevenueRecord, error)

	// MarkSucceeded moves pending -> succeeded. Returns false when the record
	// is not in pending (no-op confirmation).
	MarkSucceeded(ctx context.Context, transactionID string) (bool, error)

	// ApplyRefund stores the new cumulative refund amount and status and
	// debits the affiliate balance by deduct. Guarded on the previously read
	// refund amount so a concurrent or replayed delivery no-ops.
	ApplyRefund(ctx context.Context, transactionID string, status models.RevenueStatus, refundTotal, prevRefundTotal decimal.Decimal, affiliateID *string, deduct decimal.Decimal) (bool, error)

	// MarkDisputed moves the record to disputed and debits the affiliate
	// balance by deduct. Returns false when the record is already terminal.
	MarkDisputed(ctx context.Context, transactionID string, affiliateID *string, deduct decimal.Decimal) (bool, error)
}

type revenueRepository struct {
	db *PostgresDB
}

func NewRevenueRepository(db *PostgresDB) RevenueRepository {
	return &revenueRepository{db: db}
}

// applyDeltaTx applies a signed commission delta to an affiliate balance
// within an open transaction.
func applyDeltaTx(ctx context.Context, tx pgx.Tx, affiliateID string, amount decimal.Decimal) error {
	query := `
		UPDATE affiliate_profiles
		SET total_earnings = total_earnings + $2,
			pending_payouts = pending_payouts + $2,
			last_earning_date = NOW()
		WHERE user_id = $1
	`

	if _, err := tx.Exec(ctx, query, affiliateID, amount); err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return nil
}

func (r *revenueRepository) Create(ctx context.Context, record *models.RevenueRecord) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO revenue_records
			(transaction_id, session_id, subscription_id, amount, currency, status,
			 affiliate_id, campaign_id, click_id, commission_amount, refund_amount, converted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, NOW())
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING id, created_at
	`

	err = tx.QueryRow(ctx, query,
		record.TransactionID,
		record.SessionID,
		record.SubscriptionID,
		record.Amount,
		record.Currency,
		record.Status,
		record.AffiliateID,
		record.CampaignID,
		record.ClickID,
		record.CommissionAmount,
		record.ConvertedAt,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Unique transaction_id already present: duplicate delivery.
			return false, nil
		}
		return false, fmt.Errorf("failed to create revenue record: %w", err)
	}

	if record.AffiliateID != nil && record.CommissionAmount.IsPositive() {
		if err := applyDeltaTx(ctx, tx, *record.AffiliateID, record.CommissionAmount); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit revenue record: %w", err)
	}

	return true, nil
}

const revenueColumns = `
	id, transaction_id, session_id, subscription_id, amount, currency, status,
	affiliate_id, campaign_id, click_id, commission_amount, refund_amount,
	refunded_at, disputed_at, converted_at, created_at`

func scanRevenueRecord(row pgx.Row) (*models.RevenueRecord, error) {
	record := &models.RevenueRecord{}
	err := row.Scan(
		&record.ID,
		&record.TransactionID,
		&record.SessionID,
		&record.SubscriptionID,
		&record.Amount,
		&record.Currency,
		&record.Status,
		&record.AffiliateID,
		&record.CampaignID,
		&record.ClickID,
		&record.CommissionAmount,
		&record.RefundAmount,
		&record.RefundedAt,
		&record.DisputedAt,
		&record.ConvertedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *revenueRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.RevenueRecord, error) {
	query := `SELECT` + revenueColumns + ` FROM revenue_records WHERE transaction_id = $1`

	record, err := scanRevenueRecord(r.db.Pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get revenue record: %w", err)
	}

	return record, nil
}

func (r *revenueRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.RevenueRecord, error) {
	query := `SELECT` + revenueColumns + `
		FROM revenue_records
		WHERE subscription_id = $1 AND affiliate_id IS NOT NULL
		ORDER BY created_at ASC
		LIMIT 1`

	record, err := scanRevenueRecord(r.db.Pool.QueryRow(ctx, query, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find subscription record: %w", err)
	}

	return record, nil
}

func (r *revenueRepository) MarkSucceeded(ctx context.Context, transactionID string) (bool, error) {
	query := `
		UPDATE revenue_records
		SET status = $2
		WHERE transaction_id = $1 AND status = $3
	`

	result, err := r.db.Pool.Exec(ctx, query, transactionID, models.StatusSucceeded, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark record succeeded: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *revenueRepository) ApplyRefund(ctx context.Context, transactionID string, status models.RevenueStatus, refundTotal, prevRefundTotal decimal.Decimal, affiliateID *string, deduct decimal.Decimal) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// refund_amount guard makes a replayed or concurrent delivery lose the
	// conditional update and no-op.
	query := `
		UPDATE revenue_records
		SET status = $2, refund_amount = $3, refunded_at = $4
		WHERE transaction_id = $1
			AND refund_amount = $5
			AND status IN ($6, $7, $8)
	`

	result, err := tx.Exec(ctx, query,
		transactionID,
		status,
		refundTotal,
		time.Now(),
		prevRefundTotal,
		models.StatusPending,
		models.StatusSucceeded,
		models.StatusPartiallyRefunded,
	)
	if err != nil {
		return false, fmt.Errorf("failed to apply refund: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	if affiliateID != nil && deduct.IsPositive() {
		if err := applyDeltaTx(ctx, tx, *affiliateID, deduct.Neg()); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit refund: %w", err)
	}

	return true, nil
}

func (r *revenueRepository) MarkDisputed(ctx context.Context, transactionID string, affiliateID *string, deduct decimal.Decimal) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE revenue_records
		SET status = $2, disputed_at = $3
		WHERE transaction_id = $1 AND status IN ($4, $5, $6)
	`

	result, err := tx.Exec(ctx, query,
		transactionID,
		models.StatusDisputed,
		time.Now(),
		models.StatusPending,
		models.StatusSucceeded,
		models.StatusPartiallyRefunded,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark record disputed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	if affiliateID != nil && deduct.IsPositive() {
		if err := applyDeltaTx(ctx, tx, *affiliateID, deduct.Neg()); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit dispute: %w", err)
	}

	return true, nil
}
