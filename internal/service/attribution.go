package service

import (
	"encoding/json"

	"github.com/refgrid/affiliate-engine/internal/models"
)

// clientReference is the JSON shape some checkout integrations pack into
// the provider's client_reference_id field.
type clientReference struct {
	AffiliateID string `json:"affiliate_id"`
	CampaignID  string `json:"campaign_id"`
	ClickID     string `json:"click_id"`
}

// ResolveAttribution determines the owning affiliate, campaign and
// originating click for a payment object. Metadata keys are read first;
// a parseable client_reference_id overrides them field by field. The
// result may be partially or fully empty: the resolver trusts provider
// metadata and performs no click-ledger join.
func ResolveAttribution(obj *models.PaymentObject) models.Attribution {
	var attr models.Attribution

	if obj.Metadata != nil {
		attr.AffiliateID = nonEmpty(obj.Metadata["affiliate_id"])
		attr.CampaignID = nonEmpty(obj.Metadata["campaign_id"])
		attr.ClickID = nonEmpty(obj.Metadata["click_id"])
	}

	if obj.ClientReferenceID != "" {
		var ref clientReference
		if err := json.Unmarshal([]byte(obj.ClientReferenceID), &ref); err == nil {
			if ref.AffiliateID != "" {
				attr.AffiliateID = &ref.AffiliateID
			}
			if ref.CampaignID != "" {
				attr.CampaignID = &ref.CampaignID
			}
			if ref.ClickID != "" {
				attr.ClickID = &ref.ClickID
			}
		}
	}

	return attr
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
