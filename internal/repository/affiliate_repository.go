package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/shopspring/decimal"
)

type AffiliateRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.AffiliateProfile, error)

	// ApplyDelta applies a signed commission delta to the running balances
	// as a single atomic increment. Negative deltas may drive the balances
	// below zero; payouts are the only lower-bounded operation.
	ApplyDelta(ctx context.Context, userID string, amount decimal.Decimal) error
}

type affiliateRepository struct {
	db *PostgresDB
}

func NewAffiliateRepository(db *PostgresDB) AffiliateRepository {
	return &affiliateRepository{db: db}
}

func (r *affiliateRepository) GetByUserID(ctx context.Context, userID string) (*models.AffiliateProfile, error) {
	query := `
		SELECT user_id, commission_rate, commission_tiers, status,
			total_earnings, pending_payouts, total_paid,
			last_earning_date, last_payout_date
		FROM affiliate_profiles
		WHERE user_id = $1
	`

	profile := &models.AffiliateProfile{}
	var tiersRaw []byte
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.CommissionRate,
		&tiersRaw,
		&profile.Status,
		&profile.TotalEarnings,
		&profile.PendingPayouts,
		&profile.TotalPaid,
		&profile.LastEarningDate,
		&profile.LastPayoutDate,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAffiliateNotFound
		}
		return nil, fmt.Errorf("failed to get affiliate profile: %w", err)
	}

	if len(tiersRaw) > 0 {
		if err := json.Unmarshal(tiersRaw, &profile.CommissionTiers); err != nil {
			return nil, fmt.Errorf("failed to parse commission tiers: %w", err)
		}
	}

	return profile, nil
}

func (r *affiliateRepository) ApplyDelta(ctx context.Context, userID string, amount decimal.Decimal) error {
	query := `
		UPDATE affiliate_profiles
		SET total_earnings = total_earnings + $2,
			pending_payouts = pending_payouts + $2,
			last_earning_date = NOW()
		WHERE user_id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAffiliateNotFound
	}

	return nil
}
