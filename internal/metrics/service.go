package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/mkt-kpi/internal/models"
)

var ErrNoEvents = errors.New("no events dataset")

type Service struct {
	topN int
	log  *slog.Logger
	now  func() time.Time
}

func NewService(topN int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{topN: limit(topN), log: log, now: time.Now}
}

// Compute derives a fresh KPIResult. The funnel and the cost aggregation
// do not depend on each other and run concurrently; ranking waits for both.
func (s *Service) Compute(ctx context.Context, events *models.EventDataset, costs *models.CostDataset) (models.KPIResult, error) {
	if events == nil {
		return models.KPIResult{}, ErrNoEvents
	}
	var (
		funnel    models.FunnelSummary
		breakdown CACBreakdown
		monthly   []models.MonthlyMetric
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		funnel = Funnel(events.Records)
		monthly = Monthly(events.Records)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		breakdown = Aggregate(events, costs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.KPIResult{}, err
	}

	res := Build(funnel, breakdown, SelectRankBy(breakdown.Source, events), s.topN, s.now())
	res.Monthly = monthly
	res.DataQuality = dataQuality(events, costs, breakdown)
	s.log.Debug("kpi computed",
		slog.String("id", res.ID),
		slog.Int64("views", res.Views),
		slog.Int64("purchases", res.Purchases),
		slog.String("cost_source", string(breakdown.Source)),
		slog.Int("groups", len(res.Campaigns)))
	return res, nil
}

// Build shapes already-derived metrics into the payload; it computes
// nothing beyond ordering.
func Build(f models.FunnelSummary, b CACBreakdown, by models.RankBy, topN int, now time.Time) models.KPIResult {
	topC, bottomC := RankCampaigns(b.Campaigns, by, topN)
	topCh, bottomCh := RankChannels(b.Channels, by, topN)
	campaigns := b.Campaigns
	if campaigns == nil {
		campaigns = []models.CampaignMetric{}
	}
	channels := b.Channels
	if channels == nil {
		channels = []models.ChannelMetric{}
	}
	orEmpty := func(s []models.SegmentMetric) []models.SegmentMetric {
		if s == nil {
			return []models.SegmentMetric{}
		}
		return s
	}
	return models.KPIResult{
		ID:                 uuid.NewString(),
		Views:              f.Views,
		Signups:            f.Signups,
		Purchases:          f.Purchases,
		SignupViewRate:     f.SignupViewRate,
		PurchaseSignupRate: f.PurchaseSignupRate,
		EstimatedCAC:       b.Estimated,
		TotalCost:          b.TotalCost,
		ROI:                b.ROI,
		RankBy:             by,
		TopCampaigns:       topC,
		BottomCampaigns:    bottomC,
		TopChannels:        topCh,
		BottomChannels:     bottomCh,
		Funnel:             f,
		Campaigns:          campaigns,
		Channels:           channels,
		Monthly:            []models.MonthlyMetric{},
		CampaignTypes:      orEmpty(b.CampaignTypes),
		Audiences:          orEmpty(b.Audiences),
		Companies:          orEmpty(b.Companies),
		LastUpdate:         now.UTC(),
	}
}
