package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"github.com/shopspring/decimal"
)

// MockRevenueRepository implements repository.RevenueRepository for testing.
// It mirrors the production semantics: the balance delta is applied
// together with the record mutation, and conditional updates lose when the
// guard no longer holds.
type MockRevenueRepository struct {
	mu       sync.RWMutex
	records  map[string]*models.RevenueRecord // transaction_id -> record
	nextID   int64
	Balances *MockAffiliateRepository // optional, receives deltas when set
}

func NewMockRevenueRepository(balances *MockAffiliateRepository) *MockRevenueRepository {
	return &MockRevenueRepository{
		records:  make(map[string]*models.RevenueRecord),
		nextID:   1,
		Balances: balances,
	}
}

func (m *MockRevenueRepository) applyDelta(affiliateID *string, amount decimal.Decimal) {
	if m.Balances == nil || affiliateID == nil || amount.IsZero() {
		return
	}
	m.Balances.ApplyDelta(context.Background(), *affiliateID, amount)
}

func (m *MockRevenueRepository) Create(ctx context.Context, record *models.RevenueRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.TransactionID]; exists {
		return false, nil
	}

	record.ID = m.nextID
	m.nextID++
	record.CreatedAt = time.Now()
	stored := *record
	m.records[record.TransactionID] = &stored

	if record.CommissionAmount.IsPositive() {
		m.applyDelta(record.AffiliateID, record.CommissionAmount)
	}
	return true, nil
}

func (m *MockRevenueRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.RevenueRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.records[transactionID]
	if !exists {
		return nil, repository.ErrTransactionNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *MockRevenueRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.RevenueRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var earliest *models.RevenueRecord
	for _, record := range m.records {
		if record.SubscriptionID == nil || *record.SubscriptionID != subscriptionID || record.AffiliateID == nil {
			continue
		}
		if earliest == nil || record.ID < earliest.ID {
			earliest = record
		}
	}
	if earliest == nil {
		return nil, repository.ErrTransactionNotFound
	}
	copied := *earliest
	return &copied, nil
}

func (m *MockRevenueRepository) MarkSucceeded(ctx context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[transactionID]
	if !exists || record.Status != models.StatusPending {
		return false, nil
	}
	record.Status = models.StatusSucceeded
	return true, nil
}

func (m *MockRevenueRepository) ApplyRefund(ctx context.Context, transactionID string, status models.RevenueStatus, refundTotal, prevRefundTotal decimal.Decimal, affiliateID *string, deduct decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[transactionID]
	if !exists || !record.RefundAmount.Equal(prevRefundTotal) {
		return false, nil
	}
	switch record.Status {
	case models.StatusPending, models.StatusSucceeded, models.StatusPartiallyRefunded:
	default:
		return false, nil
	}

	now := time.Now()
	record.Status = status
	record.RefundAmount = refundTotal
	record.RefundedAt = &now

	if deduct.IsPositive() {
		m.applyDelta(affiliateID, deduct.Neg())
	}
	return true, nil
}

func (m *MockRevenueRepository) MarkDisputed(ctx context.Context, transactionID string, affiliateID *string, deduct decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[transactionID]
	if !exists {
		return false, nil
	}
	switch record.Status {
	case models.StatusPending, models.StatusSucceeded, models.StatusPartiallyRefunded:
	default:
		return false, nil
	}

	now := time.Now()
	record.Status = models.StatusDisputed
	record.DisputedAt = &now

	if deduct.IsPositive() {
		m.applyDelta(affiliateID, deduct.Neg())
	}
	return true, nil
}

func (m *MockRevenueRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MockRevenueRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*models.RevenueRecord)
	m.nextID = 1
}

// MockAffiliateRepository implements repository.AffiliateRepository for testing.
type MockAffiliateRepository struct {
	mu       sync.RWMutex
	profiles map[string]*models.AffiliateProfile
}

func NewMockAffiliateRepository() *MockAffiliateRepository {
	return &MockAffiliateRepository{
		profiles: make(map[string]*models.AffiliateProfile),
	}
}

func (m *MockAffiliateRepository) Put(profile *models.AffiliateProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = profile
}

func (m *MockAffiliateRepository) GetByUserID(ctx context.Context, userID string) (*models.AffiliateProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.profiles[userID]
	if !exists {
		return nil, repository.ErrAffiliateNotFound
	}
	copied := *profile
	return &copied, nil
}

func (m *MockAffiliateRepository) ApplyDelta(ctx context.Context, userID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, exists := m.profiles[userID]
	if !exists {
		return repository.ErrAffiliateNotFound
	}
	now := time.Now()
	profile.TotalEarnings = profile.TotalEarnings.Add(amount)
	profile.PendingPayouts = profile.PendingPayouts.Add(amount)
	profile.LastEarningDate = &now
	return nil
}

func (m *MockAffiliateRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = make(map[string]*models.AffiliateProfile)
}

// MockCampaignRepository implements repository.CampaignRepository for testing.
type MockCampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

func NewMockCampaignRepository() *MockCampaignRepository {
	return &MockCampaignRepository{
		campaigns: make(map[string]*models.Campaign),
	}
}

func (m *MockCampaignRepository) Put(campaign *models.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[campaign.ID] = campaign
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	campaign, exists := m.campaigns[id]
	if !exists {
		return nil, repository.ErrCampaignNotFound
	}
	return campaign, nil
}

// MockCacheRepository implements repository.CacheRepository for testing.
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Campaign
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Campaign),
	}
}

func (m *MockCacheRepository) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	campaign, exists := m.cache[id]
	if !exists {
		return nil, repository.ErrCampaignNotFound
	}
	return campaign, nil
}

func (m *MockCacheRepository) SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[campaign.ID] = campaign
	return nil
}

func (m *MockCacheRepository) DeleteCampaign(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, id)
	return nil
}

// MockClickRepository implements repository.ClickRepository for testing.
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks map[string]*models.Click
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{
		clicks: make(map[string]*models.Click),
	}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *click
	m.clicks[click.ClickID] = &stored
	return nil
}

func (m *MockClickRepository) GetByID(ctx context.Context, clickID string) (*models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	click, exists := m.clicks[clickID]
	if !exists {
		return nil, repository.ErrClickNotFound
	}
	copied := *click
	return &copied, nil
}

func (m *MockClickRepository) GetStats(ctx context.Context, affiliateID string) (*models.ClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.ClickStats{AffiliateID: affiliateID}
	uniqueIPs := make(map[string]bool)
	for _, click := range m.clicks {
		if click.AffiliateID != affiliateID {
			continue
		}
		stats.TotalClicks++
		uniqueIPs[click.IPAddress] = true
		if click.Filtered {
			stats.FilteredClicks++
		}
	}
	stats.UniqueClicks = int64(len(uniqueIPs))
	return stats, nil
}

func (m *MockClickRepository) GetDailyStats(ctx context.Context, affiliateID string, days int) ([]models.DailyClickStats, error) {
	return []models.DailyClickStats{}, nil
}

func (m *MockClickRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clicks)
}

// MockPayoutRepository implements repository.PayoutRepository for testing.
type MockPayoutRepository struct {
	mu       sync.Mutex
	Balances *MockAffiliateRepository
	payouts  []*models.Payout
	nextID   int64
}

func NewMockPayoutRepository(balances *MockAffiliateRepository) *MockPayoutRepository {
	return &MockPayoutRepository{
		Balances: balances,
		nextID:   1,
	}
}

func (m *MockPayoutRepository) Process(ctx context.Context, payout *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Balances.mu.Lock()
	defer m.Balances.mu.Unlock()

	profile, exists := m.Balances.profiles[payout.AffiliateID]
	if !exists {
		return repository.ErrAffiliateNotFound
	}
	if profile.PendingPayouts.LessThan(payout.Amount) {
		return repository.ErrInsufficientBalance
	}

	now := time.Now()
	profile.PendingPayouts = profile.PendingPayouts.Sub(payout.Amount)
	profile.TotalPaid = profile.TotalPaid.Add(payout.Amount)
	profile.LastPayoutDate = &now

	payout.ID = m.nextID
	m.nextID++
	payout.CreatedAt = now
	m.payouts = append(m.payouts, payout)
	return nil
}

func (m *MockPayoutRepository) Payouts() []*models.Payout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Payout(nil), m.payouts...)
}
