package series

import "errors"

// Error taxonomy for the retrieval/imputation pipeline. Handlers map these
// onto HTTP status codes; nothing below is retried internally.
var (
	// ErrInvalidRange means start >= end after normalization.
	ErrInvalidRange = errors.New("invalid range: start must be before end")

	// ErrInvalidFormat means a date string could not be parsed.
	ErrInvalidFormat = errors.New("invalid date format, expected YYYY-MM-DD")

	// ErrNotFound means no raw data exists for the requested range.
	ErrNotFound = errors.New("no raw data found")

	// ErrStorage wraps storage connectivity/query failures.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidMethod means an unrecognized imputation method string.
	ErrInvalidMethod = errors.New("unknown imputation method")

	// ErrInvalidTier means an unrecognized resolution tier override.
	ErrInvalidTier = errors.New("unknown resolution tier")
)
