package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/refgrid/affiliate-engine/internal/models"
)

// CampaignRepository is read-only: campaigns are managed by the admin
// surface, this subsystem only consults payout rules.
type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
}

type campaignRepository struct {
	db *PostgresDB
}

func NewCampaignRepository(db *PostgresDB) CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `
		SELECT id, name, payout_rules, status, created_at
		FROM campaigns
		WHERE id = $1
	`

	campaign := &models.Campaign{}
	var rulesRaw []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&campaign.ID,
		&campaign.Name,
		&rulesRaw,
		&campaign.Status,
		&campaign.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	campaign.PayoutRules = models.ParsePayoutRules(rulesRaw)

	return campaign, nil
}
