package validate

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/mkt-kpi/internal/models"
)

// SchemaError rejects a whole file: it is unreadable, empty, or lacks
// required columns.
type SchemaError struct {
	FileType models.FileType
	Missing  []string
	Reason   string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema: missing required columns: %s", strings.Join(e.Missing, ", "))
	}
	return "schema: " + e.Reason
}

func (e *SchemaError) Report() models.ErrorReport {
	r := models.ErrorReport{Kind: "schema_error", Message: e.Error(), FileType: string(e.FileType)}
	for _, c := range e.Missing {
		r.Errors = append(r.Errors, models.Issue{Column: c, Reason: "missing required column"})
	}
	if len(e.Missing) == 0 {
		r.Errors = []models.Issue{{Reason: e.Reason}}
	}
	return r
}

// ValidationError lists every domain-constraint violation found in a file.
type ValidationError struct {
	FileType models.FileType
	Issues   []models.Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	first := e.Issues[0]
	msg := fmt.Sprintf("validation failed: row %d, %s: %s", first.Row, first.Column, first.Reason)
	if n := len(e.Issues) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

func (e *ValidationError) Report() models.ErrorReport {
	return models.ErrorReport{
		Kind:     "validation_error",
		Message:  e.Error(),
		FileType: string(e.FileType),
		Errors:   e.Issues,
	}
}
