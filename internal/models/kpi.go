package models

import "time"

type FunnelStage struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type DropOff struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Absolute int64   `json:"absolute"`
	Percent  float64 `json:"percent"`
}

// FunnelSummary holds clamped stage counts: Signups <= Views and
// Purchases <= Signups always.
type FunnelSummary struct {
	Views              int64         `json:"views"`
	Signups            int64         `json:"signups"`
	Purchases          int64         `json:"purchases"`
	SignupViewRate     float64       `json:"signup_view_rate"`
	PurchaseSignupRate float64       `json:"purchase_signup_rate"`
	OverallConversion  float64       `json:"overall_conversion_rate"`
	Stages             []FunnelStage `json:"stages"`
	DropOffs           []DropOff     `json:"drop_offs"`
	Clamped            bool          `json:"clamped"`
}

type CampaignMetric struct {
	CampaignID         string  `json:"campaign"`
	Channel            string  `json:"channel"`
	Views              int64   `json:"views"`
	Signups            int64   `json:"signups"`
	Purchases          int64   `json:"purchases"`
	SignupViewRate     float64 `json:"signup_view_rate"`
	PurchaseSignupRate float64 `json:"purchase_signup_rate"`
	CTR                float64 `json:"ctr"`
	TotalCost          Measure `json:"total_cost"`
	TotalRevenue       Measure `json:"total_revenue"`
	CAC                Measure `json:"cac"`
	ROI                Measure `json:"roi"`
	CostMatched        bool    `json:"cost_matched"`
}

func (m CampaignMetric) Key() GroupKey { return GroupKey{CampaignID: m.CampaignID, Channel: m.Channel} }

type ChannelMetric struct {
	Channel            string  `json:"channel"`
	Campaigns          int     `json:"campaigns"`
	Views              int64   `json:"views"`
	Signups            int64   `json:"signups"`
	Purchases          int64   `json:"purchases"`
	SignupViewRate     float64 `json:"signup_view_rate"`
	PurchaseSignupRate float64 `json:"purchase_signup_rate"`
	CTR                float64 `json:"ctr"`
	TotalCost          Measure `json:"total_cost"`
	TotalRevenue       Measure `json:"total_revenue"`
	CAC                Measure `json:"cac"`
	ROI                Measure `json:"roi"`
}

// SegmentMetric rolls events up by one descriptive column: campaign type,
// target audience or company.
type SegmentMetric struct {
	Segment            string  `json:"segment"`
	Campaigns          int     `json:"campaigns"`
	Views              int64   `json:"views"`
	Signups            int64   `json:"signups"`
	Purchases          int64   `json:"purchases"`
	SignupViewRate     float64 `json:"signup_view_rate"`
	PurchaseSignupRate float64 `json:"purchase_signup_rate"`
	CTR                float64 `json:"ctr"`
	TotalCost          Measure `json:"total_cost"`
	CAC                Measure `json:"cac"`
	ROI                Measure `json:"roi"`
}

type RankBy string

const (
	RankByRate RankBy = "purchase_signup_rate"
	RankByROI  RankBy = "roi"
)

// RankedCampaign is one entry of a top/bottom campaign list.
type RankedCampaign struct {
	Campaign  string  `json:"campaign"`
	Channel   string  `json:"channel"`
	Rate      float64 `json:"rate"`
	ROI       Measure `json:"roi"`
	Signups   int64   `json:"signups"`
	Purchases int64   `json:"purchases"`
	CAC       Measure `json:"cac"`
}

type RankedChannel struct {
	Channel   string  `json:"channel"`
	Rate      float64 `json:"rate"`
	ROI       Measure `json:"roi"`
	Signups   int64   `json:"signups"`
	Purchases int64   `json:"purchases"`
	CAC       Measure `json:"cac"`
}

type MonthlyMetric struct {
	Month     string  `json:"month"`
	Views     int64   `json:"views"`
	Signups   int64   `json:"signups"`
	Purchases int64   `json:"purchases"`
	CTR       float64 `json:"ctr"`
}

type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

type DataQuality struct {
	TotalCampaigns       int                  `json:"total_campaigns"`
	TotalChannels        int                  `json:"total_channels"`
	DateRange            DateRange            `json:"date_range"`
	TopPerformingChannel string               `json:"top_performing_channel,omitempty"`
	BestCampaignRate     float64              `json:"best_campaign_rate"`
	Events               NormalizationReport  `json:"events"`
	Costs                *NormalizationReport `json:"costs,omitempty"`
}

// KPIResult is the immutable payload handed to the serving layer.
type KPIResult struct {
	ID                 string           `json:"id"`
	Views              int64            `json:"views"`
	Signups            int64            `json:"signups"`
	Purchases          int64            `json:"purchases"`
	SignupViewRate     float64          `json:"signup_view_rate"`
	PurchaseSignupRate float64          `json:"purchase_signup_rate"`
	EstimatedCAC       Measure          `json:"estimated_cac"`
	TotalCost          Measure          `json:"total_cost"`
	ROI                Measure          `json:"roi"`
	RankBy             RankBy           `json:"rank_by"`
	TopCampaigns       []RankedCampaign `json:"top_campaigns"`
	BottomCampaigns    []RankedCampaign `json:"bottom_campaigns"`
	TopChannels        []RankedChannel  `json:"top_channels"`
	BottomChannels     []RankedChannel  `json:"bottom_channels"`
	Funnel             FunnelSummary    `json:"funnel"`
	Campaigns          []CampaignMetric `json:"campaign_performance"`
	Channels           []ChannelMetric  `json:"channel_performance"`
	Monthly            []MonthlyMetric  `json:"monthly_performance"`
	CampaignTypes      []SegmentMetric  `json:"campaign_type_performance"`
	Audiences          []SegmentMetric  `json:"audience_performance"`
	Companies          []SegmentMetric  `json:"company_performance"`
	DataQuality        DataQuality      `json:"data_quality"`
	LastUpdate         time.Time        `json:"last_update"`
}
