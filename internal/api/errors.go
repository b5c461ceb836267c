package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("requested resource not found")
	ErrInvalidVolume = errors.New("volume must be between 0 and 100")
	ErrRequestFailed = errors.New("appliance request failed")
)

// Error describes a non-2xx response from the appliance.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps the status code to a sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrRequestFailed
}
