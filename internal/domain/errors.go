package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for domain operations
var (
	// ErrSourceUnavailable indicates both the primary and the fallback source failed
	ErrSourceUnavailable = errors.New("content sources unavailable")

	// ErrMalformedResponse indicates an upstream body could not be decoded
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrTransport matches any *TransportError
	ErrTransport = errors.New("content source request failed")

	// ErrAuthFailed indicates the upstream rejected our credentials
	ErrAuthFailed = errors.New("content source rejected credentials")

	// ErrSuperseded is the cancellation cause of a request replaced by a newer one
	ErrSuperseded = errors.New("request superseded")

	// ErrNotFound indicates the requested item does not exist
	ErrNotFound = errors.New("item not found")

	// ErrListNotFound indicates the requested list does not exist
	ErrListNotFound = errors.New("list not found")

	// ErrUnknownSection indicates a row key that is not configured
	ErrUnknownSection = errors.New("unknown section")
)

// TransportError reports a failed call to one content source.
type TransportError struct {
	Source     string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrAuthFailed:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsAborted reports whether err comes from a cancelled or superseded request.
// Aborted requests are never surfaced as user-facing errors.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded)
}
