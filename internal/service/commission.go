package service

import (
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/shopspring/decimal"
)

// defaultCommissionRate applies when neither a campaign rule nor an
// affiliate profile is resolvable.
var defaultCommissionRate = decimal.NewFromFloat(0.10)

var oneHundred = decimal.NewFromInt(100)

// CalculateCommission computes the commission owed for a transaction
// amount (major units). Campaign payout rules take strict precedence over
// the affiliate's rate:
//
//  1. campaign revshare percentage of the amount
//  2. campaign cpa/fixed flat amount, independent of the transaction
//  3. affiliate tiered rate (by cumulative earnings) or flat rate
//  4. default flat rate
//
// The result is rounded half-up to 2 decimal places and clamped to be
// non-negative exactly once, after the branch resolves.
func CalculateCommission(amount decimal.Decimal, campaign *models.Campaign, profile *models.AffiliateProfile) decimal.Decimal {
	var commission decimal.Decimal

	switch {
	case campaign != nil && campaign.PayoutRules != nil &&
		campaign.PayoutRules.Type == models.RuleRevShare &&
		campaign.PayoutRules.Percentage != nil:
		commission = amount.Mul(*campaign.PayoutRules.Percentage).Div(oneHundred)

	case campaign != nil && campaign.PayoutRules != nil &&
		(campaign.PayoutRules.Type == models.RuleCPA || campaign.PayoutRules.Type == models.RuleFixed) &&
		campaign.PayoutRules.Amount != nil:
		commission = *campaign.PayoutRules.Amount

	case profile != nil:
		commission = amount.Mul(profile.ResolveRate())

	default:
		commission = amount.Mul(defaultCommissionRate)
	}

	commission = commission.Round(2)
	if commission.IsNegative() {
		return decimal.Zero
	}
	return commission
}
