package models

import (
	"encoding/json"
)

// Provider webhook event types handled by the revenue pipeline.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventChargeRefunded    = "charge.refunded"
	EventDisputeCreated    = "charge.dispute.created"
	EventInvoicePaid       = "invoice.payment_succeeded"
)

// BillingReasonSubscriptionCycle marks a recurring renewal invoice as
// opposed to the first invoice of a subscription.
const BillingReasonSubscriptionCycle = "subscription_cycle"

// WebhookEvent is the provider's event envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// PaymentObject is the normalized data.object payload. The provider sends
// different object shapes per event type; this struct carries the union of
// the fields the pipeline reads. Amounts are in minor units.
type PaymentObject struct {
	ID                string            `json:"id"`
	AmountTotal       int64             `json:"amount_total"`
	Amount            int64             `json:"amount"`
	AmountPaid        int64             `json:"amount_paid"`
	AmountRefunded    int64             `json:"amount_refunded"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     string            `json:"payment_intent"`
	Subscription      string            `json:"subscription"`
	BillingReason     string            `json:"billing_reason"`
}

// TransactionID returns the idempotency key for the object: the payment
// intent id when present, else the object's own id.
func (o *PaymentObject) TransactionID() string {
	if o.PaymentIntent != "" {
		return o.PaymentIntent
	}
	return o.ID
}
