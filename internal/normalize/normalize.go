package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/money"
)

const DefaultMaxDiscardRatio = 0.25

var ErrInvalidDiscardRatio = errors.New("max discard ratio must be within [0, 1]")

type Options struct {
	// MaxDiscardRatio is the share of rows that may be dropped before the
	// whole file is rejected. Zero tolerates no discards at all.
	MaxDiscardRatio float64
}

func DefaultOptions() Options { return Options{MaxDiscardRatio: DefaultMaxDiscardRatio} }

func (o Options) Validate() error {
	if o.MaxDiscardRatio < 0 || o.MaxDiscardRatio > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidDiscardRatio, o.MaxDiscardRatio)
	}
	return nil
}

var structs = validator.New()

// rowError is a row-level failure tied to the column that caused it.
type rowError struct {
	column string
	err    error
}

func fail(column string, err error) *rowError { return &rowError{column: column, err: err} }

// collector builds the report. Warnings are held per row and only kept
// once the row itself is kept.
type collector struct {
	t       models.Table
	report  models.NormalizationReport
	pending []models.Discard
}

func (c *collector) keep() {
	c.report.Normalized++
	c.report.Warnings = append(c.report.Warnings, c.pending...)
	c.pending = c.pending[:0]
}

func (c *collector) discard(row int, re *rowError) {
	c.pending = c.pending[:0]
	c.report.Discarded++
	c.report.Discards = append(c.report.Discards, models.Discard{
		Row:    row,
		Column: c.t.Header(re.column),
		Reason: re.err.Error(),
	})
}

func (c *collector) warn(row int, column, reason string) {
	c.pending = append(c.pending, models.Discard{Row: row, Column: c.t.Header(column), Reason: reason})
}

func (c *collector) finish(ft models.FileType, opts Options) error {
	r := c.report
	if r.Total > 0 && (r.Normalized == 0 || r.DiscardRatio() > opts.MaxDiscardRatio) {
		return &NormalizationError{FileType: ft, Threshold: opts.MaxDiscardRatio, Result: r}
	}
	return nil
}

// Events converts a validated events table into typed records.
func Events(t models.Table, opts Options) (models.EventDataset, error) {
	if err := opts.Validate(); err != nil {
		return models.EventDataset{}, err
	}
	ds := models.EventDataset{
		Variant:            models.VariantAggregate,
		HasAcquisitionCost: t.Has(models.ColAcquisitionCost),
		HasRevenue:         t.Has(models.ColRevenue),
		HasROI:             t.Has(models.ColROI),
	}
	if t.Has(models.ColEventType) {
		ds.Variant = models.VariantEventLog
	}
	c := &collector{t: t}
	c.report.Total = len(t.Rows)
	for i, raw := range t.Rows {
		row := i + 1
		rec, re := eventRecord(c, row, raw, ds.Variant)
		if re == nil {
			if err := structs.Struct(rec); err != nil {
				re = fail("", fmt.Errorf("invalid record: %w", err))
			}
		}
		if re != nil {
			c.discard(row, re)
			continue
		}
		ds.Records = append(ds.Records, rec)
		c.keep()
	}
	ds.Report = c.report
	return ds, c.finish(models.FileEvents, opts)
}

func eventRecord(c *collector, row int, raw models.RawRecord, variant models.SchemaVariant) (models.EventRecord, *rowError) {
	rec := models.EventRecord{
		CampaignID:     strings.TrimSpace(raw[models.ColCampaignID]),
		Channel:        strings.TrimSpace(raw[models.ColChannel]),
		Company:        strings.TrimSpace(raw[models.ColCompany]),
		CampaignType:   strings.TrimSpace(raw[models.ColCampaignType]),
		TargetAudience: strings.TrimSpace(raw[models.ColTargetAudience]),
	}
	if rec.CampaignID == "" {
		return rec, fail(models.ColCampaignID, errEmpty)
	}
	if rec.Channel == "" {
		return rec, fail(models.ColChannel, errEmpty)
	}
	d, err := ParseDate(raw[models.ColDate])
	if err != nil {
		return rec, fail(models.ColDate, err)
	}
	rec.Date = d

	if variant == models.VariantEventLog {
		rec.EventType = models.EventType(strings.ToLower(strings.TrimSpace(raw[models.ColEventType])))
		switch rec.EventType {
		case models.EventPageView:
			rec.Views = 1
		case models.EventSignup:
			rec.Signups = 1
		case models.EventPurchase:
			rec.Purchases = 1
		default:
			return rec, fail(models.ColEventType, fmt.Errorf("invalid event type %q", rec.EventType))
		}
	} else {
		if re := aggregateCounts(c, row, raw, &rec); re != nil {
			return rec, re
		}
	}

	if v, ok := raw[models.ColAcquisitionCost]; ok && strings.TrimSpace(v) != "" {
		a, err := parseNonNegativeCurrency(v)
		if err != nil {
			return rec, fail(models.ColAcquisitionCost, err)
		}
		rec.AcquisitionCost = &a
	}
	if v, ok := raw[models.ColRevenue]; ok && strings.TrimSpace(v) != "" {
		a, err := parseNonNegativeCurrency(v)
		if err != nil {
			return rec, fail(models.ColRevenue, err)
		}
		rec.Revenue = &a
	}
	if v, ok := raw[models.ColROI]; ok && strings.TrimSpace(v) != "" {
		a, err := ParseROI(v)
		if err != nil {
			return rec, fail(models.ColROI, err)
		}
		rec.ROI = &a
	}
	return rec, nil
}

// aggregateCounts fills the funnel counts of an aggregate-schema row.
// Purchases come from an explicit conversions column when there is one,
// otherwise from clicks × conversion rate rounded half to even.
func aggregateCounts(c *collector, row int, raw models.RawRecord, rec *models.EventRecord) *rowError {
	count := func(col string) (int64, *rowError) {
		v, ok := raw[col]
		if !ok {
			return 0, nil
		}
		n, clamped, err := ParseCount(v)
		if err != nil {
			return 0, fail(col, err)
		}
		if clamped {
			c.warn(row, col, fmt.Sprintf("negative count %q clamped to 0", v))
		}
		return n, nil
	}
	var re *rowError
	if rec.Views, re = count(models.ColImpressions); re != nil {
		return re
	}
	if rec.Signups, re = count(models.ColClicks); re != nil {
		return re
	}
	if _, ok := raw[models.ColConversions]; ok {
		rec.Purchases, re = count(models.ColConversions)
		return re
	}
	if v, ok := raw[models.ColConversionRate]; ok {
		rate, err := ParseRate(v)
		if err != nil {
			return fail(models.ColConversionRate, err)
		}
		rec.Purchases = money.FromInt64(rec.Signups).Mul(rate).RoundHalfEven()
	}
	return nil
}

// Costs converts a validated costs table into typed records.
func Costs(t models.Table, opts Options) (models.CostDataset, error) {
	if err := opts.Validate(); err != nil {
		return models.CostDataset{}, err
	}
	var ds models.CostDataset
	c := &collector{t: t}
	c.report.Total = len(t.Rows)
	for i, raw := range t.Rows {
		row := i + 1
		rec, re := costRecord(raw)
		if re == nil {
			if err := structs.Struct(rec); err != nil {
				re = fail("", fmt.Errorf("invalid record: %w", err))
			}
		}
		if re != nil {
			c.discard(row, re)
			continue
		}
		ds.Records = append(ds.Records, rec)
		c.keep()
	}
	ds.Report = c.report
	return ds, c.finish(models.FileCosts, opts)
}

func costRecord(raw models.RawRecord) (models.CostRecord, *rowError) {
	rec := models.CostRecord{
		CampaignID: strings.TrimSpace(raw[models.ColCampaignID]),
		Channel:    strings.TrimSpace(raw[models.ColChannel]),
	}
	if rec.CampaignID == "" {
		return rec, fail(models.ColCampaignID, errEmpty)
	}
	if rec.Channel == "" {
		return rec, fail(models.ColChannel, errEmpty)
	}
	var err error
	if rec.CPC, err = parseNonNegativeCurrency(raw[models.ColCPC]); err != nil {
		return rec, fail(models.ColCPC, err)
	}
	if rec.CPM, err = parseNonNegativeCurrency(raw[models.ColCPM]); err != nil {
		return rec, fail(models.ColCPM, err)
	}
	return rec, nil
}
