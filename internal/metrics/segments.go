package metrics

import (
	"sort"

	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/money"
)

var thousand = money.FromInt64(1000)

// recordSpend costs a single event row. Both cost sources are linear in the
// row's counts, so the spend of a set of rows equals the spend of their sum.
func recordSpend(r models.EventRecord, source CostSource, table map[models.GroupKey]models.CostRecord) spend {
	switch source {
	case CostTable:
		amount := money.Zero()
		if c, ok := table[r.Key()]; ok {
			perMille, _ := money.FromInt64(r.Views).Div(thousand)
			amount = perMille.Mul(c.CPM).Add(c.CPC.MulInt(r.Signups))
		}
		return spend{amount: amount, known: true, acquisitions: r.Purchases}
	case CostAcquisition:
		if r.AcquisitionCost != nil {
			return spend{amount: r.AcquisitionCost.MulInt(r.Purchases), known: true, acquisitions: r.Purchases}
		}
	}
	return spend{}
}

type segmentGroup struct {
	campaigns map[string]struct{}
	totals
	spend spend
}

// segments rolls records up by the value of field. Rows with an empty value
// are left out. Results are in segment name order.
func segments(records []models.EventRecord, field func(models.EventRecord) string, source CostSource, table map[models.GroupKey]models.CostRecord) []models.SegmentMetric {
	idx := map[string]*segmentGroup{}
	for _, r := range records {
		name := field(r)
		if name == "" {
			continue
		}
		g, ok := idx[name]
		if !ok {
			g = &segmentGroup{campaigns: map[string]struct{}{}}
			idx[name] = g
		}
		g.campaigns[r.CampaignID] = struct{}{}
		g.addRecord(r)
		g.spend = g.spend.add(recordSpend(r, source, table))
	}
	out := make([]models.SegmentMetric, 0, len(idx))
	for name, g := range idx {
		out = append(out, models.SegmentMetric{
			Segment:            name,
			Campaigns:          len(g.campaigns),
			Views:              g.views,
			Signups:            g.signups,
			Purchases:          g.purchases,
			SignupViewRate:     percent(g.signups, g.views),
			PurchaseSignupRate: percent(g.purchases, g.signups),
			CTR:                percent(g.signups, g.views),
			TotalCost:          totalCost(source, g.spend),
			CAC:                cac(source, g.purchases, g.spend),
			ROI:                roi(source, g.totals, g.spend),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Segment < out[j].Segment })
	return out
}
