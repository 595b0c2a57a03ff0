package metrics

import (
	"math"

	"github.com/AngelCh415/mkt-kpi/internal/models"
)

// Funnel sums the three stages over all records and derives rates and
// drop-offs. Stage counts are clamped so that no stage exceeds the one
// before it, even when the source data says otherwise.
func Funnel(records []models.EventRecord) models.FunnelSummary {
	var views, signups, purchases int64
	for _, r := range records {
		views += r.Views
		signups += r.Signups
		purchases += r.Purchases
	}

	f := models.FunnelSummary{Views: views, Signups: signups, Purchases: purchases}
	if f.Signups > f.Views {
		f.Signups = f.Views
		f.Clamped = true
	}
	if f.Purchases > f.Signups {
		f.Purchases = f.Signups
		f.Clamped = true
	}

	f.SignupViewRate = percent(f.Signups, f.Views)
	f.PurchaseSignupRate = percent(f.Purchases, f.Signups)
	f.OverallConversion = percent(f.Purchases, f.Views)
	f.Stages = []models.FunnelStage{
		{Name: "Views", Value: f.Views},
		{Name: "Signups", Value: f.Signups},
		{Name: "Purchases", Value: f.Purchases},
	}
	for i := 1; i < len(f.Stages); i++ {
		prev, curr := f.Stages[i-1], f.Stages[i]
		f.DropOffs = append(f.DropOffs, models.DropOff{
			From:     prev.Name,
			To:       curr.Name,
			Absolute: prev.Value - curr.Value,
			Percent:  percent(prev.Value-curr.Value, prev.Value),
		})
	}
	return f
}

// percent is num/den*100 rounded to two places; a zero denominator gives 0.
func percent(num, den int64) float64 {
	return round2(safeDivF(float64(num), float64(den)) * 100)
}

func safeDivF(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
