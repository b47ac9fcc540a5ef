// Package errs contains the error taxonomy shared by the auth, transport and
// binding layers so callers can branch on the failure class.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels for each failure class. Typed errors below wrap these so that
// errors.Is works on either form.
var (
	// ErrAuth indicates the user must re-authorize: no token, refresh rejected,
	// or a request still unauthorized after one refresh.
	ErrAuth = errors.New("authentication error")

	// ErrTransient indicates the service stayed unavailable or rate limited
	// after all retry attempts.
	ErrTransient = errors.New("transient service error")

	// ErrRequest indicates a non-retryable client error response.
	ErrRequest = errors.New("request error")

	// ErrSchema indicates a record that lacks the fields required to bind it.
	ErrSchema = errors.New("schema error")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// RequestError is a 4xx response (other than 401 and 429) with its body.
type RequestError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("request error (status %d, %s %s): %s", e.StatusCode, e.Method, e.URL, e.Body)
	}
	return fmt.Sprintf("request error (status %d, %s %s)", e.StatusCode, e.Method, e.URL)
}

// Is reports ErrRequest, and ErrNotFound for 404 responses.
func (e *RequestError) Is(target error) bool {
	if target == ErrRequest {
		return true
	}
	return target == ErrNotFound && e.StatusCode == 404
}

// TransientError is returned once retries for 429/5xx or transport failures
// are exhausted. StatusCode is 0 when the last attempt failed in transport.
type TransientError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transient service error after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("transient service error after %d attempts (last status %d)", e.Attempts, e.StatusCode)
}

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

func (e *TransientError) Unwrap() error { return e.Err }

// SchemaError reports a record missing a required field.
type SchemaError struct {
	Kind  string // document, folder, file, ...
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s record missing required field %q", e.Kind, e.Field)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// IsAuth returns true if the error means the user must re-authorize.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsTransient returns true if the error is an exhausted-retry service failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsRequest returns true if the error is a non-retryable client error.
func IsRequest(err error) bool {
	return errors.Is(err, ErrRequest)
}

// IsSchema returns true if the error is a binding failure.
func IsSchema(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatusCode extracts the HTTP status carried by a typed error, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	var trErr *TransientError
	if errors.As(err, &trErr) {
		return trErr.StatusCode
	}
	return 0
}
