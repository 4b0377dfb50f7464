package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/service"
	"github.com/refgrid/affiliate-engine/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type revenueFixture struct {
	service    service.RevenueService
	revenues   *mocks.MockRevenueRepository
	affiliates *mocks.MockAffiliateRepository
	campaigns  *mocks.MockCampaignRepository
	cache      *mocks.MockCacheRepository
}

func newRevenueFixture() *revenueFixture {
	affiliates := mocks.NewMockAffiliateRepository()
	revenues := mocks.NewMockRevenueRepository(affiliates)
	campaigns := mocks.NewMockCampaignRepository()
	cache := mocks.NewMockCacheRepository()

	svc := service.NewRevenueService(revenues, affiliates, campaigns, cache, zap.NewNop())

	return &revenueFixture{
		service:    svc,
		revenues:   revenues,
		affiliates: affiliates,
		campaigns:  campaigns,
		cache:      cache,
	}
}

func (f *revenueFixture) putAffiliate(id, rate string) {
	f.affiliates.Put(&models.AffiliateProfile{
		UserID:         id,
		CommissionRate: dec(rate),
		Status:         models.AffiliateActive,
	})
}

func (f *revenueFixture) balance(t *testing.T, id string) *models.AffiliateProfile {
	t.Helper()
	profile, err := f.affiliates.GetByUserID(context.Background(), id)
	require.NoError(t, err)
	return profile
}

func paymentEvent(t *testing.T, eventType string, obj *models.PaymentObject) *models.WebhookEvent {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)

	event := &models.WebhookEvent{ID: "evt_test", Type: eventType}
	event.Data.Object = raw
	return event
}

func checkoutEvent(t *testing.T, paymentIntent string, amountMinor int64) *models.WebhookEvent {
	t.Helper()
	return paymentEvent(t, models.EventCheckoutCompleted, &models.PaymentObject{
		ID:            "cs_" + paymentIntent,
		AmountTotal:   amountMinor,
		Currency:      "usd",
		PaymentStatus: "paid",
		PaymentIntent: paymentIntent,
		Metadata: map[string]string{
			"affiliate_id": "aff_1",
			"campaign_id":  "camp_1",
		},
	})
}

func TestHandleEvent_CheckoutWithCPACampaign(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")
	flat := dec("100.00")
	f.campaigns.Put(&models.Campaign{
		ID:          "camp_1",
		PayoutRules: &models.PayoutRules{Type: models.RuleCPA, Amount: &flat},
	})

	err := f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_1", 100000))
	require.NoError(t, err)

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, record.Status)
	assert.True(t, dec("1000.00").Equal(record.Amount), "got %s", record.Amount)
	assert.True(t, dec("100.00").Equal(record.CommissionAmount), "got %s", record.CommissionAmount)

	profile := f.balance(t, "aff_1")
	assert.True(t, dec("100.00").Equal(profile.PendingPayouts), "got %s", profile.PendingPayouts)
	assert.True(t, dec("100.00").Equal(profile.TotalEarnings), "got %s", profile.TotalEarnings)
}

func TestHandleEvent_CheckoutUnpaidStaysPending(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	event := paymentEvent(t, models.EventCheckoutCompleted, &models.PaymentObject{
		ID:            "cs_2",
		AmountTotal:   5000,
		Currency:      "usd",
		PaymentStatus: "unpaid",
		PaymentIntent: "pi_2",
		Metadata:      map[string]string{"affiliate_id": "aff_1"},
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), event))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, record.Status)

	// The secondary confirmation moves it to succeeded without touching
	// the balance again.
	before := f.balance(t, "aff_1").PendingPayouts
	confirm := paymentEvent(t, models.EventPaymentSucceeded, &models.PaymentObject{ID: "pi_2"})
	require.NoError(t, f.service.HandleEvent(context.Background(), confirm))

	record, err = f.revenues.GetByTransactionID(context.Background(), "pi_2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, record.Status)
	assert.True(t, before.Equal(f.balance(t, "aff_1").PendingPayouts))
}

func TestHandleEvent_CheckoutUnattributed(t *testing.T) {
	f := newRevenueFixture()

	event := paymentEvent(t, models.EventCheckoutCompleted, &models.PaymentObject{
		ID:            "cs_3",
		AmountTotal:   10000,
		Currency:      "usd",
		PaymentStatus: "paid",
		PaymentIntent: "pi_3",
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), event))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_3")
	require.NoError(t, err)
	assert.Nil(t, record.AffiliateID)
}

func TestHandleEvent_DuplicateCheckoutCreditsOnce(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	event := checkoutEvent(t, "pi_dup", 100000)
	require.NoError(t, f.service.HandleEvent(context.Background(), event))
	require.NoError(t, f.service.HandleEvent(context.Background(), event))

	assert.Equal(t, 1, f.revenues.Count())
	profile := f.balance(t, "aff_1")
	assert.True(t, dec("100.00").Equal(profile.PendingPayouts), "got %s", profile.PendingPayouts)
}

func TestHandleEvent_PartialRefundDeductsProportionally(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")
	flat := dec("100.00")
	f.campaigns.Put(&models.Campaign{
		ID:          "camp_1",
		PayoutRules: &models.PayoutRules{Type: models.RuleCPA, Amount: &flat},
	})

	require.NoError(t, f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_ref", 100000)))

	// 50% of the purchase refunded: 50% of the commission comes back.
	refund := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		ID:             "ch_1",
		PaymentIntent:  "pi_ref",
		AmountRefunded: 50000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), refund))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_ref")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyRefunded, record.Status)
	assert.True(t, dec("500.00").Equal(record.RefundAmount), "got %s", record.RefundAmount)

	profile := f.balance(t, "aff_1")
	assert.True(t, dec("50.00").Equal(profile.PendingPayouts), "got %s", profile.PendingPayouts)
}

func TestHandleEvent_RefundReplayIsIdempotent(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	require.NoError(t, f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_rep", 100000)))

	refund := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		ID:             "ch_1",
		PaymentIntent:  "pi_rep",
		AmountRefunded: 50000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), refund))
	after := f.balance(t, "aff_1").PendingPayouts

	// The provider redelivers the same cumulative total.
	require.NoError(t, f.service.HandleEvent(context.Background(), refund))
	assert.True(t, after.Equal(f.balance(t, "aff_1").PendingPayouts))
}

func TestHandleEvent_IncrementalRefundsDeductOnlyTheDelta(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	require.NoError(t, f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_inc", 100000)))
	// Commission at the default path: 1000.00 * 0.10 = 100.00.

	first := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_inc", AmountRefunded: 30000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), first))

	second := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_inc", AmountRefunded: 100000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), second))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_inc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, record.Status)

	// Total deducted across both deliveries equals the full commission.
	profile := f.balance(t, "aff_1")
	assert.True(t, profile.PendingPayouts.IsZero(), "got %s", profile.PendingPayouts)
}

func TestHandleEvent_CumulativeRefundAboveChargeIsClamped(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	require.NoError(t, f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_anom", 100000)))
	// Commission 100.00 on a 1000.00 charge.

	first := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_anom", AmountRefunded: 80000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), first))

	// The provider reports a cumulative total above the charge itself.
	// The effective total is clamped to the charge amount, so lifetime
	// deductions stop at the original commission.
	second := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_anom", AmountRefunded: 150000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), second))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_anom")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, record.Status)
	assert.True(t, dec("1000.00").Equal(record.RefundAmount), "got %s", record.RefundAmount)

	profile := f.balance(t, "aff_1")
	assert.True(t, profile.PendingPayouts.IsZero(), "got %s", profile.PendingPayouts)

	// Yet another inflated total deducts nothing more.
	third := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_anom", AmountRefunded: 200000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), third))
	assert.True(t, f.balance(t, "aff_1").PendingPayouts.IsZero())
}

func TestHandleEvent_SingleRefundAboveChargeDeductsCommissionOnly(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	require.NoError(t, f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_ratio", 100000)))

	refund := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_ratio", AmountRefunded: 150000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), refund))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_ratio")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, record.Status)

	profile := f.balance(t, "aff_1")
	assert.True(t, profile.PendingPayouts.IsZero(), "got %s", profile.PendingPayouts)
}

func TestHandleEvent_RefundForUnknownTransaction(t *testing.T) {
	f := newRevenueFixture()

	refund := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_missing", AmountRefunded: 5000,
	})
	assert.NoError(t, f.service.HandleEvent(context.Background(), refund))
	assert.Equal(t, 0, f.revenues.Count())
}

func TestHandleEvent_DisputeReversesFullCommission(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	require.NoError(t, f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_disp", 100000)))

	dispute := paymentEvent(t, models.EventDisputeCreated, &models.PaymentObject{
		PaymentIntent: "pi_disp",
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), dispute))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_disp")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisputed, record.Status)

	profile := f.balance(t, "aff_1")
	assert.True(t, profile.PendingPayouts.IsZero(), "got %s", profile.PendingPayouts)

	// disputed is terminal: a duplicate dispute deducts nothing more.
	require.NoError(t, f.service.HandleEvent(context.Background(), dispute))
	assert.True(t, f.balance(t, "aff_1").PendingPayouts.IsZero())
}

func TestHandleEvent_DisputeAfterPartialRefundOverDeducts(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	require.NoError(t, f.service.HandleEvent(context.Background(), checkoutEvent(t, "pi_both", 100000)))

	refund := paymentEvent(t, models.EventChargeRefunded, &models.PaymentObject{
		PaymentIntent: "pi_both", AmountRefunded: 50000,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), refund))

	dispute := paymentEvent(t, models.EventDisputeCreated, &models.PaymentObject{
		PaymentIntent: "pi_both",
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), dispute))

	// The dispute deducts the full original commission on top of the
	// refund deduction, driving the balance negative. That mirrors the
	// provider's own accounting for disputes on partially refunded
	// charges.
	profile := f.balance(t, "aff_1")
	assert.True(t, dec("-50.00").Equal(profile.PendingPayouts), "got %s", profile.PendingPayouts)
}

func TestHandleEvent_RenewalUsesOriginalAttribution(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	checkout := paymentEvent(t, models.EventCheckoutCompleted, &models.PaymentObject{
		ID:            "cs_sub",
		AmountTotal:   100000,
		Currency:      "usd",
		PaymentStatus: "paid",
		PaymentIntent: "pi_sub_1",
		Subscription:  "sub_1",
		Metadata:      map[string]string{"affiliate_id": "aff_1", "campaign_id": "camp_1"},
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), checkout))

	renewal := paymentEvent(t, models.EventInvoicePaid, &models.PaymentObject{
		ID:            "in_2",
		AmountPaid:    100000,
		Currency:      "usd",
		PaymentIntent: "pi_sub_2",
		Subscription:  "sub_1",
		BillingReason: models.BillingReasonSubscriptionCycle,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), renewal))

	record, err := f.revenues.GetByTransactionID(context.Background(), "pi_sub_2")
	require.NoError(t, err)
	require.NotNil(t, record.AffiliateID)
	assert.Equal(t, "aff_1", *record.AffiliateID)
	require.NotNil(t, record.CampaignID)
	assert.Equal(t, "camp_1", *record.CampaignID)
	// The renewal commission uses the affiliate rate, not campaign rules.
	assert.True(t, dec("100.00").Equal(record.CommissionAmount), "got %s", record.CommissionAmount)
}

func TestHandleEvent_RenewalWithoutOriginalIsDropped(t *testing.T) {
	f := newRevenueFixture()

	renewal := paymentEvent(t, models.EventInvoicePaid, &models.PaymentObject{
		ID:            "in_orphan",
		AmountPaid:    100000,
		PaymentIntent: "pi_orphan",
		Subscription:  "sub_unknown",
		BillingReason: models.BillingReasonSubscriptionCycle,
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), renewal))
	assert.Equal(t, 0, f.revenues.Count())
}

func TestHandleEvent_FirstInvoiceIsIgnored(t *testing.T) {
	f := newRevenueFixture()

	invoice := paymentEvent(t, models.EventInvoicePaid, &models.PaymentObject{
		ID:            "in_first",
		AmountPaid:    100000,
		PaymentIntent: "pi_first",
		Subscription:  "sub_1",
		BillingReason: "subscription_create",
	})
	require.NoError(t, f.service.HandleEvent(context.Background(), invoice))
	assert.Equal(t, 0, f.revenues.Count())
}

func TestHandleEvent_UnknownEventType(t *testing.T) {
	f := newRevenueFixture()

	event := paymentEvent(t, "customer.created", &models.PaymentObject{ID: "cus_1"})
	assert.NoError(t, f.service.HandleEvent(context.Background(), event))
	assert.Equal(t, 0, f.revenues.Count())
}

func TestHandleEvent_MalformedObject(t *testing.T) {
	f := newRevenueFixture()

	event := &models.WebhookEvent{ID: "evt_bad", Type: models.EventCheckoutCompleted}
	event.Data.Object = []byte(`{"amount_total": "not-a-number"}`)

	assert.Error(t, f.service.HandleEvent(context.Background(), event))
}

func TestHandleEvent_ConcurrentCheckoutsCreditAll(t *testing.T) {
	f := newRevenueFixture()
	f.putAffiliate("aff_1", "0.10")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event := checkoutEvent(t, fmt.Sprintf("pi_c_%d", i), 1000) // 10.00 each
			assert.NoError(t, f.service.HandleEvent(context.Background(), event))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, f.revenues.Count())
	profile := f.balance(t, "aff_1")
	// n * 10.00 * 0.10
	assert.True(t, dec("50.00").Equal(profile.PendingPayouts), "got %s", profile.PendingPayouts)
}
