package models

import (
	"time"

	"github.com/AngelCh415/mkt-kpi/internal/money"
)

type FileType string

const (
	FileEvents FileType = "events"
	FileCosts  FileType = "costs"
)

func ParseFileType(s string) (FileType, bool) {
	switch FileType(s) {
	case FileEvents, FileCosts:
		return FileType(s), true
	}
	return "", false
}

type EventType string

const (
	EventPageView EventType = "page_view"
	EventSignup   EventType = "signup"
	EventPurchase EventType = "purchase"
)

var AllowedEventTypes = []EventType{EventPageView, EventSignup, EventPurchase}

func IsAllowedEventType(s string) bool {
	for _, t := range AllowedEventTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Canonical column names. Headers are mapped onto these by the table reader.
const (
	ColCampaignID      = "campaign_id"
	ColChannel         = "channel"
	ColEventType       = "event_type"
	ColDate            = "date"
	ColImpressions     = "impressions"
	ColClicks          = "clicks"
	ColConversions     = "conversions"
	ColConversionRate  = "conversion_rate"
	ColAcquisitionCost = "acquisition_cost"
	ColRevenue         = "revenue"
	ColCPC             = "cpc"
	ColCPM             = "cpm"
	ColROI             = "roi"
	ColCompany         = "company"
	ColCampaignType    = "campaign_type"
	ColTargetAudience  = "target_audience"
)

// RawRecord is one parsed row keyed by canonical column name.
type RawRecord map[string]string

// Table is a parsed upload. Headers keeps the spelling found in the file,
// Columns the canonical names, in the same order.
type Table struct {
	Headers []string
	Columns []string
	Rows    []RawRecord
}

func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Header returns the original header text for a canonical column.
func (t Table) Header(col string) string {
	for i, c := range t.Columns {
		if c == col && i < len(t.Headers) {
			return t.Headers[i]
		}
	}
	return col
}

type SchemaVariant string

const (
	VariantEventLog  SchemaVariant = "event_log"
	VariantAggregate SchemaVariant = "aggregate"
)

type GroupKey struct {
	CampaignID string
	Channel    string
}

func (k GroupKey) Less(o GroupKey) bool {
	if k.CampaignID != o.CampaignID {
		return k.CampaignID < o.CampaignID
	}
	return k.Channel < o.Channel
}

type EventRecord struct {
	CampaignID      string    `validate:"required"`
	Channel         string    `validate:"required"`
	EventType       EventType `validate:"omitempty,oneof=page_view signup purchase"`
	Date            time.Time `validate:"required"`
	Views           int64     `validate:"gte=0"`
	Signups         int64     `validate:"gte=0"`
	Purchases       int64     `validate:"gte=0"`
	AcquisitionCost *money.Amount
	Revenue         *money.Amount
	// ROI as reported by the file, in the file's own unit.
	ROI *money.Amount

	Company        string
	CampaignType   string
	TargetAudience string
}

func (r EventRecord) Key() GroupKey { return GroupKey{CampaignID: r.CampaignID, Channel: r.Channel} }

type CostRecord struct {
	CampaignID string `validate:"required"`
	Channel    string `validate:"required"`
	CPC        money.Amount
	CPM        money.Amount
}

func (r CostRecord) Key() GroupKey { return GroupKey{CampaignID: r.CampaignID, Channel: r.Channel} }

type EventDataset struct {
	Variant            SchemaVariant
	Records            []EventRecord
	HasAcquisitionCost bool
	HasRevenue         bool
	HasROI             bool
	Report             NormalizationReport
}

type CostDataset struct {
	Records []CostRecord
	Report  NormalizationReport
}

// ByKey indexes cost rows by group key. Keys are unique after validation.
func (d *CostDataset) ByKey() map[GroupKey]CostRecord {
	out := make(map[GroupKey]CostRecord, len(d.Records))
	for _, r := range d.Records {
		out[r.Key()] = r
	}
	return out
}

type Discard struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

type NormalizationReport struct {
	Total      int       `json:"total"`
	Normalized int       `json:"normalized"`
	Discarded  int       `json:"discarded"`
	Discards   []Discard `json:"discards,omitempty"`
	Warnings   []Discard `json:"warnings,omitempty"`
}

func (r NormalizationReport) DiscardRatio() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Discarded) / float64(r.Total)
}
