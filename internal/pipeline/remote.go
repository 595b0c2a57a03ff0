package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/AngelCh415/mkt-kpi/internal/ingest"
	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/store"
	"github.com/AngelCh415/mkt-kpi/internal/utils"
)

type RemoteConfig struct {
	EventsURL  string
	CostsURL   string
	SinkURL    string
	SinkSecret string
	MaxBytes   int64
}

// Remote pulls datasets from configured URLs and pushes the published KPIs
// to a signed sink.
type Remote struct {
	engine  *Engine
	st      *store.MemoryStore
	c       ingest.HTTPClient
	backoff utils.Backoff
	cfg     RemoteConfig
	log     *slog.Logger
}

func NewRemote(engine *Engine, st *store.MemoryStore, c ingest.HTTPClient, cfg RemoteConfig, log *slog.Logger) *Remote {
	if log == nil {
		log = slog.Default()
	}
	return &Remote{
		engine:  engine,
		st:      st,
		c:       c,
		backoff: utils.NewBackoff(200*time.Millisecond, 2),
		cfg:     cfg,
		log:     log,
	}
}

// Run downloads the events file and, when configured, the costs file, and
// publishes them together. Nothing is published unless both load. Without
// a costs URL the costs current at publish time are kept.
func (r *Remote) Run(ctx context.Context) (*store.Snapshot, error) {
	body, err := ingest.FetchWithRetry(ctx, r.c, r.cfg.EventsURL, r.cfg.MaxBytes, r.backoff)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	ev, err := r.engine.LoadEvents(ctx, bytes.NewReader(body), formatOf(r.cfg.EventsURL))
	if err != nil {
		return nil, err
	}
	var snap *store.Snapshot
	if r.cfg.CostsURL == "" {
		snap, err = r.st.PublishEvents(ctx, ev)
	} else {
		var costs *models.CostDataset
		if costs, err = r.loadCosts(ctx); err != nil {
			return nil, err
		}
		snap, err = r.st.Publish(ctx, ev, costs)
	}
	if err != nil {
		return nil, err
	}
	r.log.Info("ingest complete", slog.Uint64("generation", snap.Generation), slog.Int("events", len(ev.Records)))
	return snap, nil
}

func (r *Remote) loadCosts(ctx context.Context) (*models.CostDataset, error) {
	body, err := ingest.FetchWithRetry(ctx, r.c, r.cfg.CostsURL, r.cfg.MaxBytes, r.backoff)
	if err != nil {
		return nil, fmt.Errorf("fetch costs: %w", err)
	}
	return r.engine.LoadCosts(ctx, bytes.NewReader(body), formatOf(r.cfg.CostsURL))
}

// Export posts the current KPIs to the sink. It returns store.ErrNoData
// when nothing has been published yet.
func (r *Remote) Export(ctx context.Context) (int, error) {
	res, err := r.st.Result()
	if err != nil {
		return 0, err
	}
	n, err := ingest.Export(ctx, r.c, r.cfg.SinkURL, r.cfg.SinkSecret, res)
	if err != nil {
		return 0, err
	}
	r.log.Info("export complete", slog.String("id", res.ID), slog.Int("bytes", n))
	return n, nil
}

// formatOf picks the reader from the URL path so query strings do not hide
// the extension.
func formatOf(raw string) ingest.Format {
	if u, err := url.Parse(raw); err == nil {
		return ingest.FormatFromName(u.Path)
	}
	return ingest.FormatFromName(raw)
}
