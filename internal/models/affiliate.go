package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AffiliateStatus string

const (
	AffiliateActive    AffiliateStatus = "active"
	AffiliatePending   AffiliateStatus = "pending"
	AffiliateSuspended AffiliateStatus = "suspended"
)

// CommissionTier maps a cumulative-earnings threshold to a rate.
type CommissionTier struct {
	MinRevenue decimal.Decimal `json:"min_revenue"`
	Rate       decimal.Decimal `json:"rate"`
}

// AffiliateProfile holds per-affiliate commission settings and running
// balances. Balances are mutated only through atomic repository updates,
// never read-modify-write in application code.
type AffiliateProfile struct {
	UserID          string           `json:"user_id"`
	CommissionRate  decimal.Decimal  `json:"commission_rate"`
	CommissionTiers []CommissionTier `json:"commission_tiers,omitempty"`
	Status          AffiliateStatus  `json:"status"`
	TotalEarnings   decimal.Decimal  `json:"total_earnings"`
	PendingPayouts  decimal.Decimal  `json:"pending_payouts"`
	TotalPaid       decimal.Decimal  `json:"total_paid"`
	LastEarningDate *time.Time       `json:"last_earning_date,omitempty"`
	LastPayoutDate  *time.Time       `json:"last_payout_date,omitempty"`
}

// ResolveRate returns the commission rate for the affiliate's current
// cumulative earnings: the highest tier whose threshold has been reached,
// falling back to the flat rate when no tier matches.
func (p *AffiliateProfile) ResolveRate() decimal.Decimal {
	best := p.CommissionRate
	bestMin := decimal.NewFromInt(-1)
	for _, tier := range p.CommissionTiers {
		if tier.MinRevenue.LessThanOrEqual(p.TotalEarnings) && tier.MinRevenue.GreaterThan(bestMin) {
			best = tier.Rate
			bestMin = tier.MinRevenue
		}
	}
	return best
}
