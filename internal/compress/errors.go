package compress

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when no Tinify API key is configured.
	ErrMissingAPIKey = errors.New("Tinify API key is not configured")

	// ErrMissingOutputDirectory is returned in directory output mode when
	// no directory is set.
	ErrMissingOutputDirectory = errors.New("output directory is not configured")

	// ErrPayloadTooSmall is returned when the downloaded image is too small
	// to be a real image.
	ErrPayloadTooSmall = errors.New("compressed payload is too small")

	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("input file does not exist")
)

// StatusError is a non-success HTTP status from the Tinify service.
type StatusError struct {
	Op         string // "upload" or "download"
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.StatusCode)
}
