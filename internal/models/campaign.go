package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutRuleType string

const (
	RuleCPA      PayoutRuleType = "cpa"
	RuleFixed    PayoutRuleType = "fixed"
	RuleRevShare PayoutRuleType = "revshare"
)

// PayoutRules is a campaign's structured payout definition: either a flat
// per-conversion amount (cpa/fixed) or a revenue share percentage.
type PayoutRules struct {
	Type       PayoutRuleType   `json:"type"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

type Campaign struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	PayoutRules *PayoutRules `json:"payout_rules,omitempty"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ParsePayoutRules decodes a campaign's raw payout_rules value. Campaigns
// created through the admin UI may carry free-text rules; those (and any
// otherwise unparseable value) yield nil, meaning "no structured rule".
func ParsePayoutRules(raw []byte) *PayoutRules {
	if len(raw) == 0 {
		return nil
	}
	var rules PayoutRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil
	}
	switch PayoutRuleType(strings.ToLower(string(rules.Type))) {
	case RuleCPA:
		rules.Type = RuleCPA
	case RuleFixed:
		rules.Type = RuleFixed
	case RuleRevShare, "revenue_share", "rev_share":
		rules.Type = RuleRevShare
	default:
		return nil
	}
	return &rules
}
