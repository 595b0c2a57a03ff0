package normalize

import (
	"fmt"

	"github.com/AngelCh415/mkt-kpi/internal/models"
)

// NormalizationError is raised when too many rows of a file had to be
// discarded for the rest to be trusted.
type NormalizationError struct {
	FileType  models.FileType
	Threshold float64
	Result    models.NormalizationReport
}

func (e *NormalizationError) Error() string {
	if e.Result.Normalized == 0 {
		return fmt.Sprintf("normalization: no usable rows in %s file (%d of %d discarded)",
			e.FileType, e.Result.Discarded, e.Result.Total)
	}
	return fmt.Sprintf("normalization: %d of %d %s rows discarded, above the %.0f%% limit",
		e.Result.Discarded, e.Result.Total, e.FileType, e.Threshold*100)
}

func (e *NormalizationError) Report() models.ErrorReport {
	r := models.ErrorReport{Kind: "normalization_error", Message: e.Error(), FileType: string(e.FileType)}
	for _, d := range e.Result.Discards {
		r.Errors = append(r.Errors, models.Issue{Row: d.Row, Column: d.Column, Reason: d.Reason})
	}
	return r
}
