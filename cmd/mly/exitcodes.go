package main

import "github.com/matsen/mendeley/internal/errs"

// Exit codes. Each error class gets its own code so scripts can tell a
// re-authorization apart from a flaky service.
const (
	ExitSuccess        = 0 // Success
	ExitError          = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError    = 2 // Missing or invalid configuration
	ExitDataError      = 3 // Malformed input or a record that cannot be bound
	ExitAuthError      = 4 // The user must re-authorize
	ExitTransientError = 5 // Service unavailable or rate limited after retries
	ExitRequestError   = 6 // The API rejected the request
)

// exitCodeFor maps an error to its exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errs.IsAuth(err):
		return ExitAuthError
	case errs.IsTransient(err):
		return ExitTransientError
	case errs.IsSchema(err):
		return ExitDataError
	case errs.IsRequest(err):
		return ExitRequestError
	default:
		return ExitError
	}
}
