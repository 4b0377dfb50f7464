package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RevenueStatus is the lifecycle state of an attributed transaction.
type RevenueStatus string

const (
	StatusPending           RevenueStatus = "pending"
	StatusSucceeded         RevenueStatus = "succeeded"
	StatusRefunded          RevenueStatus = "refunded"
	StatusPartiallyRefunded RevenueStatus = "partially_refunded"
	StatusDisputed          RevenueStatus = "disputed"
)

// validTransitions defines the allowed status moves. refunded and disputed
// are terminal: there is no dispute-won reversal in this system.
var validTransitions = map[RevenueStatus][]RevenueStatus{
	StatusPending:           {StatusSucceeded, StatusRefunded, StatusPartiallyRefunded, StatusDisputed},
	StatusSucceeded:         {StatusRefunded, StatusPartiallyRefunded, StatusDisputed},
	StatusPartiallyRefunded: {StatusRefunded, StatusPartiallyRefunded, StatusDisputed},
	StatusRefunded:          {},
	StatusDisputed:          {},
}

// CanTransition reports whether moving from one status to another is allowed.
func (s RevenueStatus) CanTransition(to RevenueStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s RevenueStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// RevenueRecord is one attributed transaction. commission_amount is fixed at
// creation and only ever reduced by refund/dispute deductions, never
// recomputed from a changed rate.
type RevenueRecord struct {
	ID               int64           `json:"id"`
	TransactionID    string          `json:"transaction_id"`
	SessionID        string          `json:"session_id,omitempty"`
	SubscriptionID   *string         `json:"subscription_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           RevenueStatus   `json:"status"`
	AffiliateID      *string         `json:"affiliate_id,omitempty"`
	CampaignID       *string         `json:"campaign_id,omitempty"`
	ClickID          *string         `json:"click_id,omitempty"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	RefundAmount     decimal.Decimal `json:"refund_amount"`
	RefundedAt       *time.Time      `json:"refunded_at,omitempty"`
	DisputedAt       *time.Time      `json:"disputed_at,omitempty"`
	ConvertedAt      *time.Time      `json:"converted_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Attribution is the affiliate/campaign/click triple resolved for a
// transaction. Any of the fields may be empty.
type Attribution struct {
	AffiliateID *string
	CampaignID  *string
	ClickID     *string
}

// HasAffiliate reports whether an owning affiliate was resolved.
func (a Attribution) HasAffiliate() bool {
	return a.AffiliateID != nil && *a.AffiliateID != ""
}
