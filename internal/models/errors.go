package models

// Issue is one offending cell or row. Row is the 1-based data row index
// (the header is row 0); 0 means the issue concerns the file as a whole.
type Issue struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

// ErrorReport is what the serving layer shows for a rejected upload.
type ErrorReport struct {
	Kind     string  `json:"kind"`
	Message  string  `json:"message"`
	FileType string  `json:"file_type,omitempty"`
	Errors   []Issue `json:"errors"`
}

// Reporter is implemented by fatal pipeline errors that carry a
// user-facing report.
type Reporter interface {
	error
	Report() ErrorReport
}
