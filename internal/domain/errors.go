package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidFormat is wrapped by FormatError when a file cannot be imported at all
	ErrInvalidFormat = errors.New("invalid CSV format")

	// ErrCardNotFound is the per-row error when every search strategy came back empty
	ErrCardNotFound = errors.New("Card not found")

	// ErrImportCancelled marks rows that were never processed because the run was cancelled
	ErrImportCancelled = errors.New("import cancelled")

	// ErrSearchFailure is returned when the card search service request fails
	ErrSearchFailure = errors.New("card search request failed")

	// ErrUnsupportedGame is returned for an unknown game selector
	ErrUnsupportedGame = errors.New("unsupported game")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRunNotFound is returned when an import run id is unknown or expired
	ErrRunNotFound = errors.New("import run not found")

	// ErrRunInProgress is returned when a finished run is required
	ErrRunInProgress = errors.New("import run still in progress")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrPersistenceUnavailable is returned when no collection store is configured
	ErrPersistenceUnavailable = errors.New("collection storage unavailable")
)

// FormatError aborts a whole import before any row is processed
type FormatError struct {
	Reason  string
	Headers []string
}

func (e *FormatError) Error() string {
	if len(e.Headers) == 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidFormat, e.Reason)
	}
	return fmt.Sprintf("%s: %s (found headers: %s)", ErrInvalidFormat, e.Reason, strings.Join(e.Headers, ", "))
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}
