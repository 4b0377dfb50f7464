package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/refgrid/affiliate-engine/internal/models"
)

type ClickRepository interface {
	RecordClick(ctx context.Context, click *models.Click) error
	GetByID(ctx context.Context, clickID string) (*models.Click, error)
	GetStats(ctx context.Context, affiliateID string) (*models.ClickStats, error)
	GetDailyStats(ctx context.Context, affiliateID string, days int) ([]models.DailyClickStats, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	query := `
		INSERT INTO clicks (click_id, affiliate_id, campaign_id, ip_address, referrer, user_agent, filtered, bot_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		click.ClickID,
		click.AffiliateID,
		click.CampaignID,
		click.IPAddress,
		click.Referrer,
		click.UserAgent,
		click.Filtered,
		click.BotReason,
		click.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickRepository) GetByID(ctx context.Context, clickID string) (*models.Click, error) {
	query := `
		SELECT click_id, affiliate_id, campaign_id, ip_address, referrer, user_agent, filtered, bot_reason, created_at
		FROM clicks
		WHERE click_id = $1
	`

	click := &models.Click{}
	err := r.db.Pool.QueryRow(ctx, query, clickID).Scan(
		&click.ClickID,
		&click.AffiliateID,
		&click.CampaignID,
		&click.IPAddress,
		&click.Referrer,
		&click.UserAgent,
		&click.Filtered,
		&click.BotReason,
		&click.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClickNotFound
		}
		return nil, fmt.Errorf("failed to get click: %w", err)
	}

	return click, nil
}

func (r *clickRepository) GetStats(ctx context.Context, affiliateID string) (*models.ClickStats, error) {
	query := `
		SELECT
			COUNT(*) as total_clicks,
			COUNT(DISTINCT ip_address) as unique_clicks,
			COUNT(*) FILTER (WHERE filtered) as filtered_clicks
		FROM clicks
		WHERE affiliate_id = $1
	`

	stats := &models.ClickStats{
		AffiliateID: affiliateID,
	}

	err := r.db.Pool.QueryRow(ctx, query, affiliateID).Scan(
		&stats.TotalClicks,
		&stats.UniqueClicks,
		&stats.FilteredClicks,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get click stats: %w", err)
	}

	return stats, nil
}

func (r *clickRepository) GetDailyStats(ctx context.Context, affiliateID string, days int) ([]models.DailyClickStats, error) {
	query := `
		SELECT
			DATE(created_at) as date,
			COUNT(*) as clicks
		FROM clicks
		WHERE affiliate_id = $1
			AND created_at >= NOW() - INTERVAL '1 day' * $2
			AND NOT filtered
		GROUP BY DATE(created_at)
		ORDER BY date DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, affiliateID, days)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []models.DailyClickStats{}, nil
		}
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyClickStats
	for rows.Next() {
		var dailyStat models.DailyClickStats
		if err := rows.Scan(&dailyStat.Date, &dailyStat.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, dailyStat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}
