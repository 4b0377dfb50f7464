package service_test

import (
	"context"
	"testing"

	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"github.com/refgrid/affiliate-engine/internal/service"
	"github.com/refgrid/affiliate-engine/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type conversionFixture struct {
	service    service.ConversionService
	clicks     *mocks.MockClickRepository
	revenues   *mocks.MockRevenueRepository
	affiliates *mocks.MockAffiliateRepository
	campaigns  *mocks.MockCampaignRepository
}

func newConversionFixture() *conversionFixture {
	affiliates := mocks.NewMockAffiliateRepository()
	revenues := mocks.NewMockRevenueRepository(affiliates)
	clicks := mocks.NewMockClickRepository()
	campaigns := mocks.NewMockCampaignRepository()
	cache := mocks.NewMockCacheRepository()

	svc := service.NewConversionService(clicks, revenues, affiliates, campaigns, cache, zap.NewNop())

	return &conversionFixture{
		service:    svc,
		clicks:     clicks,
		revenues:   revenues,
		affiliates: affiliates,
		campaigns:  campaigns,
	}
}

func TestRecordConversion_Success(t *testing.T) {
	f := newConversionFixture()
	f.affiliates.Put(&models.AffiliateProfile{UserID: "aff_1", CommissionRate: dec("0.20")})
	require.NoError(t, f.clicks.RecordClick(context.Background(), &models.Click{
		ClickID:     "click_1",
		AffiliateID: "aff_1",
	}))

	record, err := f.service.RecordConversion(context.Background(), &service.ConversionInput{
		ClickID:       "click_1",
		TransactionID: "order_1",
		Amount:        dec("50.00"),
		Currency:      "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSucceeded, record.Status)
	require.NotNil(t, record.AffiliateID)
	assert.Equal(t, "aff_1", *record.AffiliateID)
	require.NotNil(t, record.ClickID)
	assert.Equal(t, "click_1", *record.ClickID)
	assert.True(t, dec("10.00").Equal(record.CommissionAmount), "got %s", record.CommissionAmount)

	profile, err := f.affiliates.GetByUserID(context.Background(), "aff_1")
	require.NoError(t, err)
	assert.True(t, dec("10.00").Equal(profile.PendingPayouts), "got %s", profile.PendingPayouts)
}

func TestRecordConversion_CampaignRuleApplies(t *testing.T) {
	f := newConversionFixture()
	f.affiliates.Put(&models.AffiliateProfile{UserID: "aff_1", CommissionRate: dec("0.20")})
	flat := dec("5.00")
	f.campaigns.Put(&models.Campaign{
		ID:          "camp_1",
		PayoutRules: &models.PayoutRules{Type: models.RuleCPA, Amount: &flat},
	})
	campaignID := "camp_1"
	require.NoError(t, f.clicks.RecordClick(context.Background(), &models.Click{
		ClickID:     "click_2",
		AffiliateID: "aff_1",
		CampaignID:  &campaignID,
	}))

	record, err := f.service.RecordConversion(context.Background(), &service.ConversionInput{
		ClickID:       "click_2",
		TransactionID: "order_2",
		Amount:        dec("50.00"),
	})
	require.NoError(t, err)
	assert.True(t, dec("5.00").Equal(record.CommissionAmount), "got %s", record.CommissionAmount)
}

func TestRecordConversion_UnknownClick(t *testing.T) {
	f := newConversionFixture()

	_, err := f.service.RecordConversion(context.Background(), &service.ConversionInput{
		ClickID:       "click_missing",
		TransactionID: "order_3",
		Amount:        dec("10.00"),
	})
	assert.ErrorIs(t, err, repository.ErrClickNotFound)
}

func TestRecordConversion_FilteredClickRejected(t *testing.T) {
	f := newConversionFixture()
	require.NoError(t, f.clicks.RecordClick(context.Background(), &models.Click{
		ClickID:     "click_bot",
		AffiliateID: "aff_1",
		Filtered:    true,
		BotReason:   "bot_user_agent",
	}))

	_, err := f.service.RecordConversion(context.Background(), &service.ConversionInput{
		ClickID:       "click_bot",
		TransactionID: "order_4",
		Amount:        dec("10.00"),
	})
	assert.ErrorIs(t, err, service.ErrFilteredClick)
	assert.Equal(t, 0, f.revenues.Count())
}

func TestRecordConversion_DuplicateTransaction(t *testing.T) {
	f := newConversionFixture()
	require.NoError(t, f.clicks.RecordClick(context.Background(), &models.Click{
		ClickID:     "click_3",
		AffiliateID: "aff_1",
	}))

	input := &service.ConversionInput{
		ClickID:       "click_3",
		TransactionID: "order_5",
		Amount:        dec("10.00"),
	}
	_, err := f.service.RecordConversion(context.Background(), input)
	require.NoError(t, err)

	_, err = f.service.RecordConversion(context.Background(), input)
	assert.ErrorIs(t, err, repository.ErrDuplicateTransaction)
	assert.Equal(t, 1, f.revenues.Count())
}

func TestRecordConversion_Validation(t *testing.T) {
	f := newConversionFixture()

	_, err := f.service.RecordConversion(context.Background(), &service.ConversionInput{
		ClickID:       "click_1",
		TransactionID: "order_6",
		Amount:        dec("0"),
	})
	assert.ErrorIs(t, err, service.ErrInvalidAmount)

	_, err = f.service.RecordConversion(context.Background(), &service.ConversionInput{
		ClickID: "click_1",
		Amount:  dec("10.00"),
	})
	assert.ErrorIs(t, err, service.ErrMissingTransactionID)
}
