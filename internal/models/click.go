package models

import (
	"time"
)

type Click struct {
	ClickID     string    `json:"click_id"`
	AffiliateID string    `json:"affiliate_id"`
	CampaignID  *string   `json:"campaign_id,omitempty"`
	IPAddress   string    `json:"ip_address"`
	Referrer    string    `json:"referrer"`
	UserAgent   string    `json:"user_agent"`
	Filtered    bool      `json:"filtered"`
	BotReason   string    `json:"bot_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClickEvent is the in-flight form handed to the click worker pool
// before the row is persisted.
type ClickEvent struct {
	ClickID     string
	AffiliateID string
	CampaignID  *string
	IPAddress   string
	Referrer    string
	UserAgent   string
	Filtered    bool
	BotReason   string
}

type ClickStats struct {
	AffiliateID    string `json:"affiliate_id"`
	TotalClicks    int64  `json:"total_clicks"`
	UniqueClicks   int64  `json:"unique_clicks"`
	FilteredClicks int64  `json:"filtered_clicks"`
}

type DailyClickStats struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}
