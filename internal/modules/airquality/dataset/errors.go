package dataset

import "errors"

var (
	// ErrSourceUnavailable is returned when the file or URL cannot be read.
	ErrSourceUnavailable = errors.New("data source unavailable")

	// ErrSchemaMismatch is returned when required columns are missing, the CSV
	// is malformed, or a row carries date components that do not form a date.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
