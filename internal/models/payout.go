package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payout struct {
	ID            int64           `json:"id"`
	AffiliateID   string          `json:"affiliate_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PayoutInput struct {
	AffiliateID string          `json:"affiliate_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Method      string          `json:"method"`
}
