// Package pipeline turns uploaded bytes into typed, validated datasets.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AngelCh415/mkt-kpi/internal/ingest"
	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/normalize"
	"github.com/AngelCh415/mkt-kpi/internal/telemetry"
	"github.com/AngelCh415/mkt-kpi/internal/validate"
)

type Options struct {
	// MaxDiscardRatio is passed to the normalizer as is; zero rejects a file
	// with any discarded row.
	MaxDiscardRatio float64
}

func DefaultOptions() Options {
	return Options{MaxDiscardRatio: normalize.DefaultMaxDiscardRatio}
}

type Engine struct {
	opts Options
	log  *slog.Logger
	tel  *telemetry.Metrics
}

func NewEngine(opts Options, log *slog.Logger, tel *telemetry.Metrics) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log, tel: tel}
}

// table reads and validates one upload; nothing is normalized unless the
// whole file passes.
func (e *Engine) table(ctx context.Context, r io.Reader, format ingest.Format, ft models.FileType) (models.Table, error) {
	if err := ctx.Err(); err != nil {
		return models.Table{}, err
	}
	t, err := ingest.ReadTable(r, format)
	if err != nil {
		var se *validate.SchemaError
		if errors.As(err, &se) {
			se.FileType = ft
		}
		return models.Table{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Table{}, err
	}
	if err := validate.Validate(t, ft); err != nil {
		return models.Table{}, err
	}
	return t, nil
}

// LoadEvents runs an events upload through reading, validation and
// normalization.
func (e *Engine) LoadEvents(ctx context.Context, r io.Reader, format ingest.Format) (*models.EventDataset, error) {
	t, err := e.table(ctx, r, format, models.FileEvents)
	if err != nil {
		e.rejected(models.FileEvents, err)
		return nil, err
	}
	ds, err := normalize.Events(t, normalize.Options{MaxDiscardRatio: e.opts.MaxDiscardRatio})
	e.normalized(models.FileEvents, ds.Report)
	if err != nil {
		e.rejected(models.FileEvents, err)
		return nil, err
	}
	e.tel.Upload(string(models.FileEvents), "accepted")
	e.log.Info("events loaded",
		slog.String("variant", string(ds.Variant)),
		slog.Int("rows", ds.Report.Total),
		slog.Int("discarded", ds.Report.Discarded),
		slog.Int("warnings", len(ds.Report.Warnings)))
	return &ds, nil
}

// LoadCosts runs a costs upload through reading, validation and
// normalization.
func (e *Engine) LoadCosts(ctx context.Context, r io.Reader, format ingest.Format) (*models.CostDataset, error) {
	t, err := e.table(ctx, r, format, models.FileCosts)
	if err != nil {
		e.rejected(models.FileCosts, err)
		return nil, err
	}
	ds, err := normalize.Costs(t, normalize.Options{MaxDiscardRatio: e.opts.MaxDiscardRatio})
	e.normalized(models.FileCosts, ds.Report)
	if err != nil {
		e.rejected(models.FileCosts, err)
		return nil, err
	}
	e.tel.Upload(string(models.FileCosts), "accepted")
	e.log.Info("costs loaded",
		slog.Int("rows", ds.Report.Total),
		slog.Int("discarded", ds.Report.Discarded))
	return &ds, nil
}

// Load dispatches on the declared file type.
func (e *Engine) Load(ctx context.Context, r io.Reader, format ingest.Format, ft models.FileType) (*models.EventDataset, *models.CostDataset, error) {
	switch ft {
	case models.FileEvents:
		ev, err := e.LoadEvents(ctx, r, format)
		return ev, nil, err
	case models.FileCosts:
		c, err := e.LoadCosts(ctx, r, format)
		return nil, c, err
	}
	return nil, nil, &validate.SchemaError{FileType: ft, Reason: fmt.Sprintf("unknown file type %q", ft)}
}

func (e *Engine) normalized(ft models.FileType, rep models.NormalizationReport) {
	e.tel.Rows(string(ft), rep.Normalized, rep.Discarded)
	for _, d := range rep.Discards {
		e.log.Debug("row discarded", slog.String("file_type", string(ft)), slog.Int("row", d.Row),
			slog.String("column", d.Column), slog.String("reason", d.Reason))
	}
}

func (e *Engine) rejected(ft models.FileType, err error) {
	e.tel.Upload(string(ft), "rejected")
	e.log.Warn("upload rejected", slog.String("file_type", string(ft)), slog.String("err", err.Error()))
}
