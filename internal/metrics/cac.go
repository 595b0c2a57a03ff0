package metrics

import (
	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/money"
)

// CostSource says where spend figures come from.
type CostSource string

const (
	CostNone        CostSource = "none"
	CostTable       CostSource = "costs_file"
	CostAcquisition CostSource = "acquisition_cost"
)

// SelectCostSource prefers a costs file, then per-row acquisition costs.
func SelectCostSource(events *models.EventDataset, costs *models.CostDataset) CostSource {
	if costs != nil {
		return CostTable
	}
	if events != nil && events.HasAcquisitionCost {
		for _, r := range events.Records {
			if r.AcquisitionCost != nil {
				return CostAcquisition
			}
		}
	}
	return CostNone
}

// spend is the cost side of a group: the amount spent, whether any cost
// information backs it, and the acquisitions it is spread over.
type spend struct {
	amount       money.Amount
	known        bool
	acquisitions int64
}

func (s spend) add(o spend) spend {
	return spend{
		amount:       s.amount.Add(o.amount),
		known:        s.known || o.known,
		acquisitions: s.acquisitions + o.acquisitions,
	}
}

// applyCosts attaches spend to every group.
//   - costs file: impressions/1000*cpm + clicks*cpc, zero for groups without
//     a cost row; cost rows without events are ignored.
//   - acquisition_cost: purchase-weighted spend from the event rows.
func applyCosts(groups []group, source CostSource, costs *models.CostDataset) []group {
	var table map[models.GroupKey]models.CostRecord
	if source == CostTable {
		table = costs.ByKey()
	}
	out := make([]group, len(groups))
	for i, g := range groups {
		switch source {
		case CostTable:
			amount := money.Zero()
			if c, ok := table[g.key]; ok {
				g.costMatched = true
				perMille, _ := money.FromInt64(g.views).Div(thousand)
				amount = perMille.Mul(c.CPM).Add(c.CPC.MulInt(g.signups))
			}
			g.spend = spend{amount: amount, known: true, acquisitions: g.purchases}
		case CostAcquisition:
			g.spend = spend{
				amount:       g.acquisitionSpend,
				known:        g.acquisitionRows > 0,
				acquisitions: g.acquisitionWeight,
			}
		}
		out[i] = g
	}
	return out
}

// cac resolves Customer Acquisition Cost for one group or for the total.
// Zero purchases never produce a number: the result is the
// no-acquisitions sentinel whenever any cost source is in play.
func cac(source CostSource, purchases int64, s spend) models.Measure {
	if source == CostNone {
		return models.Undefined(models.ReasonNotAvailable)
	}
	if purchases == 0 {
		return models.Undefined(models.ReasonNoAcquisitions)
	}
	// purchases exist but none of them carried a cost
	if !s.known || s.acquisitions == 0 {
		return models.Undefined(models.ReasonNotAvailable)
	}
	v, ok := s.amount.Div(money.FromInt64(s.acquisitions))
	if !ok {
		return models.Undefined(models.ReasonNoAcquisitions)
	}
	return models.Value(v.Float64(2))
}

func totalCost(source CostSource, s spend) models.Measure {
	if source == CostNone || !s.known {
		return models.Undefined(models.ReasonNotAvailable)
	}
	return models.Value(s.amount.Float64(2))
}

func totalRevenue(t totals) models.Measure {
	if t.revenueRows == 0 {
		return models.Undefined(models.ReasonNotAvailable)
	}
	return models.Value(t.revenue.Float64(2))
}

// roi is (revenue - cost) / cost * 100 when both sides are known, and the
// mean of the reported ROI column otherwise.
func roi(source CostSource, t totals, s spend) models.Measure {
	if source == CostNone || !s.known || t.revenueRows == 0 {
		return meanReportedROI(t)
	}
	if s.amount.IsZero() {
		return models.Undefined(models.ReasonNoCost)
	}
	q, ok := t.revenue.Sub(s.amount).Div(s.amount)
	if !ok {
		return models.Undefined(models.ReasonNoCost)
	}
	return models.Value(q.MulInt(100).Float64(2))
}

func meanReportedROI(t totals) models.Measure {
	if t.reportedRows == 0 {
		return models.Undefined(models.ReasonNotAvailable)
	}
	mean, ok := t.reportedROI.Div(money.FromInt64(int64(t.reportedRows)))
	if !ok {
		return models.Undefined(models.ReasonNotAvailable)
	}
	return models.Value(mean.Float64(2))
}

// CACBreakdown is the cost side of the computation, produced independently
// of the funnel.
type CACBreakdown struct {
	Source    CostSource
	Estimated models.Measure
	TotalCost models.Measure
	ROI       models.Measure
	Campaigns []models.CampaignMetric
	Channels  []models.ChannelMetric

	CampaignTypes []models.SegmentMetric
	Audiences     []models.SegmentMetric
	Companies     []models.SegmentMetric
}

// Aggregate groups events by (campaign_id, channel), by channel and by the
// descriptive segments, and attaches counts, rates, spend, CAC and ROI.
func Aggregate(events *models.EventDataset, costs *models.CostDataset) CACBreakdown {
	source := SelectCostSource(events, costs)
	var records []models.EventRecord
	if events != nil {
		records = events.Records
	}
	groups := applyCosts(groupByKey(records), source, costs)

	b := CACBreakdown{Source: source}
	var all totals
	var allSpend spend
	for _, g := range groups {
		all.merge(g.totals)
		allSpend = allSpend.add(g.spend)
		b.Campaigns = append(b.Campaigns, models.CampaignMetric{
			CampaignID:         g.key.CampaignID,
			Channel:            g.key.Channel,
			Views:              g.views,
			Signups:            g.signups,
			Purchases:          g.purchases,
			SignupViewRate:     percent(g.signups, g.views),
			PurchaseSignupRate: percent(g.purchases, g.signups),
			CTR:                percent(g.signups, g.views),
			TotalCost:          totalCost(source, g.spend),
			TotalRevenue:       totalRevenue(g.totals),
			CAC:                cac(source, g.purchases, g.spend),
			ROI:                roi(source, g.totals, g.spend),
			CostMatched:        g.costMatched,
		})
	}
	for _, c := range rollupChannels(groups) {
		b.Channels = append(b.Channels, models.ChannelMetric{
			Channel:            c.channel,
			Campaigns:          c.campaigns,
			Views:              c.views,
			Signups:            c.signups,
			Purchases:          c.purchases,
			SignupViewRate:     percent(c.signups, c.views),
			PurchaseSignupRate: percent(c.purchases, c.signups),
			CTR:                percent(c.signups, c.views),
			TotalCost:          totalCost(source, c.spend),
			TotalRevenue:       totalRevenue(c.totals),
			CAC:                cac(source, c.purchases, c.spend),
			ROI:                roi(source, c.totals, c.spend),
		})
	}
	b.Estimated = cac(source, all.purchases, allSpend)
	b.TotalCost = totalCost(source, allSpend)
	b.ROI = roi(source, all, allSpend)

	var table map[models.GroupKey]models.CostRecord
	if source == CostTable {
		table = costs.ByKey()
	}
	b.CampaignTypes = segments(records, func(r models.EventRecord) string { return r.CampaignType }, source, table)
	b.Audiences = segments(records, func(r models.EventRecord) string { return r.TargetAudience }, source, table)
	b.Companies = segments(records, func(r models.EventRecord) string { return r.Company }, source, table)
	return b
}
