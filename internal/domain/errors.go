package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery signals a blank (or whitespace-only) vibe query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrSubmitInFlight signals a submission while the view is still loading.
	ErrSubmitInFlight = errors.New("search already in flight")
	// ErrViewNotFound signals a missing or expired view.
	ErrViewNotFound = errors.New("view not found")
	// ErrInvalidSuggestion signals a suggestion index outside the preset list.
	ErrInvalidSuggestion = errors.New("invalid suggestion")

	// ErrBackend signals a failed call to the search backend.
	ErrBackend = errors.New("search backend error")
	// ErrMalformedResponse signals a backend payload that does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed search response")
	// ErrRateLimited signals that the outbound limiter refused the call.
	ErrRateLimited = errors.New("rate limited")
)

// BackendError carries the backend's HTTP status and its optional error message.
// Message is empty when the backend supplied none (network failure, bare non-2xx).
type BackendError struct {
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", ErrBackend.Error(), e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", ErrBackend.Error(), e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", ErrBackend.Error(), e.Err.Error())
	default:
		return ErrBackend.Error()
	}
}

// Unwrap exposes both ErrBackend and the underlying transport error.
func (e *BackendError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBackend}
	}
	return []error{ErrBackend, e.Err}
}

// BackendMessage returns the collaborator-supplied message carried by err, if any.
func BackendMessage(err error) (string, bool) {
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message, true
	}
	return "", false
}
