package spapi

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned before any network call is attempted
// when a required credential is absent. This is a configuration fault and
// is never retried.
var ErrMissingCredentials = errors.New("spapi: missing credentials")

// ErrPollTimeout is returned when the poll attempt budget is exhausted while
// the remote report is still processing. The remote job may still complete
// later; this is a deliberate bounded-wait policy.
var ErrPollTimeout = errors.New("spapi: report not ready after maximum poll attempts")

// AuthError wraps a failed token exchange. Not retried at this layer.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spapi: auth failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("spapi: auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteRequestError is a non-2xx response from the marketplace API. The raw
// body is kept for diagnosis.
type RemoteRequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteRequestError) Error() string {
	return fmt.Sprintf("spapi: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// ReportFailedError is raised when the remote report reaches a terminal
// failure status (FATAL, CANCELLED or ERROR).
type ReportFailedError struct {
	ReportID string
	Status   string
}

func (e *ReportFailedError) Error() string {
	return fmt.Sprintf("spapi: report %s failed with status %s", e.ReportID, e.Status)
}

// DocumentFetchError is a failure retrieving or decompressing a report
// document.
type DocumentFetchError struct {
	DocumentID string
	Reason     string
	Err        error
}

func (e *DocumentFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spapi: fetching document %s: %s: %v", e.DocumentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("spapi: fetching document %s: %s", e.DocumentID, e.Reason)
}

func (e *DocumentFetchError) Unwrap() error { return e.Err }
