package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/validate"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the reader from a file name; anything that is not a
// workbook is read as CSV.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX
	}
	return FormatCSV
}

// aliases maps canonical header spellings found in the wild onto the
// pipeline's column names.
var aliases = map[string]string{
	"campaign":         models.ColCampaignID,
	"campaignid":       models.ColCampaignID,
	"campaign_id":      models.ColCampaignID,
	"channel":          models.ColChannel,
	"channel_used":     models.ColChannel,
	"event_type":       models.ColEventType,
	"event":            models.ColEventType,
	"date":             models.ColDate,
	"timestamp":        models.ColDate,
	"impressions":      models.ColImpressions,
	"views":            models.ColImpressions,
	"clicks":           models.ColClicks,
	"signups":          models.ColClicks,
	"conversions":      models.ColConversions,
	"purchases":        models.ColConversions,
	"conversion_rate":  models.ColConversionRate,
	"acquisition_cost": models.ColAcquisitionCost,
	"revenue":          models.ColRevenue,
	"cpc":              models.ColCPC,
	"cpm":              models.ColCPM,
	"roi":              models.ColROI,
	"company":          models.ColCompany,
	"campaign_type":    models.ColCampaignType,
	"target_audience":  models.ColTargetAudience,
	"audience":         models.ColTargetAudience,
}

func canonical(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	if c, ok := aliases[h]; ok {
		return c
	}
	return h
}

// ReadTable parses an upload into a Table. It only fails on unreadable or
// structurally empty input; column and cell checks belong to validate.
func ReadTable(r io.Reader, format Format) (models.Table, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		records, err = readCSV(r)
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return models.Table{}, err
	}
	if err != nil {
		return models.Table{}, &validate.SchemaError{Reason: err.Error()}
	}
	return buildTable(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	var out [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed csv: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unreadable workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unreadable sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func buildTable(records [][]string) (models.Table, error) {
	// skip leading blank lines
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return models.Table{}, &validate.SchemaError{Reason: "empty file"}
	}
	headers := records[0]
	cols := make([]string, len(headers))
	seen := map[string]string{}
	for i, h := range headers {
		c := canonical(h)
		if c == "" {
			continue
		}
		if prev, dup := seen[c]; dup {
			return models.Table{}, &validate.SchemaError{
				Reason: fmt.Sprintf("columns %q and %q both map to %s", prev, strings.TrimSpace(h), c),
			}
		}
		seen[c] = strings.TrimSpace(h)
		cols[i] = c
	}

	t := models.Table{Headers: make([]string, 0, len(headers)), Columns: make([]string, 0, len(headers))}
	for i, c := range cols {
		if c == "" {
			continue
		}
		t.Headers = append(t.Headers, strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff")))
		t.Columns = append(t.Columns, c)
	}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(models.RawRecord, len(t.Columns))
		for i, c := range cols {
			if c == "" {
				continue
			}
			if i < len(rec) {
				row[c] = strings.TrimSpace(rec[i])
			} else {
				row[c] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
