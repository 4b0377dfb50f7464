package repository

import (
	"context"
	"fmt"

	"github.com/refgrid/affiliate-engine/internal/models"
)

type PayoutRepository interface {
	// Process debits the affiliate's pending balance and records the payout
	// in one transaction. The debit is a single conditional update
	// (decrement-if-sufficient), so two concurrent requests cannot both pass
	// the balance check.
	Process(ctx context.Context, payout *models.Payout) error
}

type payoutRepository struct {
	db *PostgresDB
}

func NewPayoutRepository(db *PostgresDB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Process(ctx context.Context, payout *models.Payout) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	debit := `
		UPDATE affiliate_profiles
		SET pending_payouts = pending_payouts - $2,
			total_paid = total_paid + $2,
			last_payout_date = NOW()
		WHERE user_id = $1 AND pending_payouts >= $2
	`

	result, err := tx.Exec(ctx, debit, payout.AffiliateID, payout.Amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing affiliate from an insufficient balance.
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM affiliate_profiles WHERE user_id = $1)`, payout.AffiliateID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check affiliate: %w", err)
		}
		if !exists {
			return ErrAffiliateNotFound
		}
		return ErrInsufficientBalance
	}

	insert := `
		INSERT INTO payouts (affiliate_id, amount, method, transaction_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err = tx.QueryRow(ctx, insert,
		payout.AffiliateID,
		payout.Amount,
		payout.Method,
		payout.TransactionID,
		payout.Status,
	).Scan(&payout.ID, &payout.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payout record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payout: %w", err)
	}

	return nil
}
