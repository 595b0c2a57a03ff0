package metrics

import (
	"sort"

	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/money"
)

// totals is the additive state of one group. Every field is either an
// integer count or an exact decimal, so merging is order-independent.
type totals struct {
	views     int64
	signups   int64
	purchases int64

	revenue     money.Amount
	revenueRows int

	// ROI figures reported per row, averaged when no revenue is known
	reportedROI  money.Amount
	reportedRows int

	// acquisition_cost × purchases, and the purchases that carried a cost
	acquisitionSpend  money.Amount
	acquisitionWeight int64
	acquisitionRows   int
}

func (t *totals) addRecord(r models.EventRecord) {
	t.views += r.Views
	t.signups += r.Signups
	t.purchases += r.Purchases
	if r.Revenue != nil {
		t.revenue = t.revenue.Add(*r.Revenue)
		t.revenueRows++
	}
	if r.ROI != nil {
		t.reportedROI = t.reportedROI.Add(*r.ROI)
		t.reportedRows++
	}
	if r.AcquisitionCost != nil {
		t.acquisitionSpend = t.acquisitionSpend.Add(r.AcquisitionCost.MulInt(r.Purchases))
		t.acquisitionWeight += r.Purchases
		t.acquisitionRows++
	}
}

func (t *totals) merge(o totals) {
	t.views += o.views
	t.signups += o.signups
	t.purchases += o.purchases
	t.revenue = t.revenue.Add(o.revenue)
	t.revenueRows += o.revenueRows
	t.reportedROI = t.reportedROI.Add(o.reportedROI)
	t.reportedRows += o.reportedRows
	t.acquisitionSpend = t.acquisitionSpend.Add(o.acquisitionSpend)
	t.acquisitionWeight += o.acquisitionWeight
	t.acquisitionRows += o.acquisitionRows
}

type group struct {
	key models.GroupKey
	totals
	spend       spend
	costMatched bool
}

// groupByKey folds records into one group per (campaign_id, channel),
// returned in key order.
func groupByKey(records []models.EventRecord) []group {
	idx := map[models.GroupKey]*group{}
	for _, r := range records {
		k := r.Key()
		g, ok := idx[k]
		if !ok {
			g = &group{key: k}
			idx[k] = g
		}
		g.addRecord(r)
	}
	out := make([]group, 0, len(idx))
	for _, g := range idx {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key.Less(out[j].key) })
	return out
}

type channelGroup struct {
	channel   string
	campaigns int
	totals
	spend spend
}

// rollupChannels merges already-costed campaign groups by channel.
func rollupChannels(groups []group) []channelGroup {
	idx := map[string]*channelGroup{}
	for _, g := range groups {
		c, ok := idx[g.key.Channel]
		if !ok {
			c = &channelGroup{channel: g.key.Channel}
			idx[g.key.Channel] = c
		}
		c.campaigns++
		c.merge(g.totals)
		c.spend = c.spend.add(g.spend)
	}
	out := make([]channelGroup, 0, len(idx))
	for _, c := range idx {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].channel < out[j].channel })
	return out
}
