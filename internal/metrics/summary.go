package metrics

import (
	"sort"
	"time"

	"github.com/AngelCh415/mkt-kpi/internal/models"
)

// Monthly buckets funnel counts by calendar month of the record date.
func Monthly(records []models.EventRecord) []models.MonthlyMetric {
	idx := map[string]*models.MonthlyMetric{}
	for _, r := range records {
		m := r.Date.Format("2006-01")
		mm, ok := idx[m]
		if !ok {
			mm = &models.MonthlyMetric{Month: m}
			idx[m] = mm
		}
		mm.Views += r.Views
		mm.Signups += r.Signups
		mm.Purchases += r.Purchases
	}
	out := make([]models.MonthlyMetric, 0, len(idx))
	for _, mm := range idx {
		mm.CTR = percent(mm.Signups, mm.Views)
		out = append(out, *mm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func dataQuality(events *models.EventDataset, costs *models.CostDataset, b CACBreakdown) models.DataQuality {
	dq := models.DataQuality{TotalChannels: len(b.Channels)}
	campaigns := map[string]struct{}{}
	var start, end time.Time
	if events != nil {
		dq.Events = events.Report
		for i, r := range events.Records {
			campaigns[r.CampaignID] = struct{}{}
			if i == 0 || r.Date.Before(start) {
				start = r.Date
			}
			if i == 0 || r.Date.After(end) {
				end = r.Date
			}
		}
		if len(events.Records) > 0 {
			dq.DateRange = models.DateRange{Start: &start, End: &end}
		}
	}
	dq.TotalCampaigns = len(campaigns)
	if costs != nil {
		rep := costs.Report
		dq.Costs = &rep
	}

	// channel with the most purchases; ties go to the lexically first name
	var best *models.ChannelMetric
	for i := range b.Channels {
		c := &b.Channels[i]
		if best == nil || c.Purchases > best.Purchases {
			best = c
		}
	}
	if best != nil {
		dq.TopPerformingChannel = best.Channel
	}
	for _, c := range b.Campaigns {
		if c.PurchaseSignupRate > dq.BestCampaignRate {
			dq.BestCampaignRate = c.PurchaseSignupRate
		}
	}
	return dq
}
