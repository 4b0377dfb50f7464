package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/refgrid/affiliate-engine/internal/models"
)

// CacheRepository caches campaign snapshots. Campaigns are read-only to the
// revenue pipeline and read on every checkout, so a short TTL is safe.
// Affiliate profiles are deliberately not cached: their balances move on
// every event and a stale total_earnings would resolve the wrong tier.
type CacheRepository interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error
	DeleteCampaign(ctx context.Context, id string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	data, err := r.redis.Client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		return nil, err
	}

	var campaign models.Campaign
	if err := json.Unmarshal(data, &campaign); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign: %w", err)
	}

	return &campaign, nil
}

func (r *cacheRepository) SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error {
	data, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(campaign.ID), data, ttl).Err()
}

func (r *cacheRepository) DeleteCampaign(ctx context.Context, id string) error {
	return r.redis.Client.Del(ctx, r.key(id)).Err()
}

func (r *cacheRepository) key(id string) string {
	return "campaign:" + id
}
