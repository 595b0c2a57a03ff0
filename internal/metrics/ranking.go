package metrics

import (
	"sort"

	"github.com/AngelCh415/mkt-kpi/internal/models"
)

const DefaultTopN = 10

// SelectRankBy ranks on ROI when it can be derived from spend and revenue
// or when the file reports it per row.
func SelectRankBy(source CostSource, events *models.EventDataset) models.RankBy {
	if events == nil {
		return models.RankByRate
	}
	if events.HasROI || (source != CostNone && events.HasRevenue) {
		return models.RankByROI
	}
	return models.RankByRate
}

func rankValue(by models.RankBy, rate float64, roi models.Measure) (float64, bool) {
	if by == models.RankByROI {
		return roi.Get()
	}
	return rate, true
}

// orderBy sorts defined values first (descending for top lists, ascending
// for bottom lists) and leaves undefined ones at the end. Equal values keep
// the order given by less, which must be a total order on group keys.
func orderBy(n int, value func(i int) (float64, bool), less func(i, j int) bool, descending bool) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, okA := value(idx[a])
		vb, okB := value(idx[b])
		if okA != okB {
			return okA
		}
		if okA && va != vb {
			if descending {
				return va > vb
			}
			return va < vb
		}
		return less(idx[a], idx[b])
	})
	return idx
}

func limit(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	return n
}

func firstN(idx []int, n int) []int {
	if len(idx) > n {
		return idx[:n]
	}
	return idx
}

// RankCampaigns returns top-n and bottom-n campaign groups.
func RankCampaigns(campaigns []models.CampaignMetric, by models.RankBy, n int) (top, bottom []models.RankedCampaign) {
	n = limit(n)
	value := func(i int) (float64, bool) {
		return rankValue(by, campaigns[i].PurchaseSignupRate, campaigns[i].ROI)
	}
	less := func(i, j int) bool { return campaigns[i].Key().Less(campaigns[j].Key()) }
	entry := func(i int) models.RankedCampaign {
		c := campaigns[i]
		return models.RankedCampaign{
			Campaign:  c.CampaignID,
			Channel:   c.Channel,
			Rate:      c.PurchaseSignupRate,
			ROI:       c.ROI,
			Signups:   c.Signups,
			Purchases: c.Purchases,
			CAC:       c.CAC,
		}
	}
	top = make([]models.RankedCampaign, 0, n)
	for _, i := range firstN(orderBy(len(campaigns), value, less, true), n) {
		top = append(top, entry(i))
	}
	bottom = make([]models.RankedCampaign, 0, n)
	for _, i := range firstN(orderBy(len(campaigns), value, less, false), n) {
		bottom = append(bottom, entry(i))
	}
	return top, bottom
}

// RankChannels returns top-n and bottom-n channels.
func RankChannels(channels []models.ChannelMetric, by models.RankBy, n int) (top, bottom []models.RankedChannel) {
	n = limit(n)
	value := func(i int) (float64, bool) {
		return rankValue(by, channels[i].PurchaseSignupRate, channels[i].ROI)
	}
	less := func(i, j int) bool { return channels[i].Channel < channels[j].Channel }
	entry := func(i int) models.RankedChannel {
		c := channels[i]
		return models.RankedChannel{
			Channel:   c.Channel,
			Rate:      c.PurchaseSignupRate,
			ROI:       c.ROI,
			Signups:   c.Signups,
			Purchases: c.Purchases,
			CAC:       c.CAC,
		}
	}
	top = make([]models.RankedChannel, 0, n)
	for _, i := range firstN(orderBy(len(channels), value, less, true), n) {
		top = append(top, entry(i))
	}
	bottom = make([]models.RankedChannel, 0, n)
	for _, i := range firstN(orderBy(len(channels), value, less, false), n) {
		bottom = append(bottom, entry(i))
	}
	return top, bottom
}
