package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/normalize"
)

var (
	eventsRequired = []string{models.ColCampaignID, models.ColChannel, models.ColDate}
	costsRequired  = []string{models.ColCampaignID, models.ColChannel, models.ColCPC, models.ColCPM}

	// an events file needs at least one of these to say what happened
	volumeColumns = []string{
		models.ColEventType,
		models.ColImpressions,
		models.ColClicks,
		models.ColConversions,
		models.ColConversionRate,
	}
)

// Validate checks columns and cell domains of a parsed table. It returns nil,
// a *SchemaError, or a *ValidationError carrying every offending row; it
// never mutates t.
func Validate(t models.Table, ft models.FileType) error {
	switch ft {
	case models.FileEvents:
		return validateEvents(t)
	case models.FileCosts:
		return validateCosts(t)
	}
	return &SchemaError{FileType: ft, Reason: fmt.Sprintf("unknown file type %q", ft)}
}

func missing(t models.Table, cols []string) []string {
	var out []string
	for _, c := range cols {
		if !t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func validateEvents(t models.Table) error {
	miss := missing(t, eventsRequired)
	hasVolume := false
	for _, c := range volumeColumns {
		if t.Has(c) {
			hasVolume = true
			break
		}
	}
	if !hasVolume {
		miss = append(miss, "one of "+strings.Join(volumeColumns, "/"))
	}
	if len(miss) > 0 {
		return &SchemaError{FileType: models.FileEvents, Missing: miss}
	}

	var issues []models.Issue
	checkType := t.Has(models.ColEventType)
	checkRate := t.Has(models.ColConversionRate)
	for i, row := range t.Rows {
		if checkType {
			v := strings.ToLower(strings.TrimSpace(row[models.ColEventType]))
			if !models.IsAllowedEventType(v) {
				issues = append(issues, models.Issue{
					Row:    i + 1,
					Column: t.Header(models.ColEventType),
					Reason: fmt.Sprintf("invalid event type %q; allowed: %s", row[models.ColEventType], allowedList()),
				})
			}
		}
		if checkRate {
			// unparseable rates are left to the normalizer
			if _, err := normalize.ParseRate(row[models.ColConversionRate]); errors.Is(err, normalize.ErrRateOutOfRange) {
				issues = append(issues, models.Issue{
					Row:    i + 1,
					Column: t.Header(models.ColConversionRate),
					Reason: fmt.Sprintf("conversion rate %q outside [0, 1]", strings.TrimSpace(row[models.ColConversionRate])),
				})
			}
		}
	}
	if len(issues) > 0 {
		return &ValidationError{FileType: models.FileEvents, Issues: issues}
	}
	return nil
}

func validateCosts(t models.Table) error {
	if miss := missing(t, costsRequired); len(miss) > 0 {
		return &SchemaError{FileType: models.FileCosts, Missing: miss}
	}
	var issues []models.Issue
	firstSeen := map[models.GroupKey]int{}
	for i, row := range t.Rows {
		k := models.GroupKey{
			CampaignID: strings.TrimSpace(row[models.ColCampaignID]),
			Channel:    strings.TrimSpace(row[models.ColChannel]),
		}
		if k.CampaignID == "" || k.Channel == "" {
			continue
		}
		if first, dup := firstSeen[k]; dup {
			issues = append(issues, models.Issue{
				Row:    i + 1,
				Column: t.Header(models.ColCampaignID),
				Reason: fmt.Sprintf("duplicate cost entry for campaign %q on channel %q (first at row %d)", k.CampaignID, k.Channel, first),
			})
			continue
		}
		firstSeen[k] = i + 1
	}
	if len(issues) > 0 {
		return &ValidationError{FileType: models.FileCosts, Issues: issues}
	}
	return nil
}

func allowedList() string {
	names := make([]string, len(models.AllowedEventTypes))
	for i, t := range models.AllowedEventTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
