// Package core holds the HTTP error vocabulary shared by handlers and services.
package core

import "net/http"

// HTTPError is an error with an HTTP status code and a machine-readable key.
// The key ends up as the "code" field of JSON error bodies.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // e.g. "not_found", "quota_exceeded"
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Key
}

// Status returns the HTTP status code.
func (e HTTPError) Status() int {
	return e.Code
}

// 4xx Client Errors
var (
	ErrBadRequest           = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized         = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden            = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound             = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrMethodNotAllowed     = HTTPError{Code: http.StatusMethodNotAllowed, Key: "method_not_allowed"}
	ErrConflict             = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnsupportedMediaType = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrTooManyRequests      = HTTPError{Code: http.StatusTooManyRequests, Key: "rate_limited"}
)

// Domain-specific client errors
var (
	ErrQuotaExceeded    = HTTPError{Code: http.StatusForbidden, Key: "quota_exceeded"}
	ErrTrialExpired     = HTTPError{Code: http.StatusForbidden, Key: "trial_expired"}
	ErrInvalidPlan      = HTTPError{Code: http.StatusBadRequest, Key: "invalid_plan"}
	ErrInvalidSignature = HTTPError{Code: http.StatusBadRequest, Key: "invalid_signature"}
)

// 5xx Server Errors
var (
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
	ErrBadGateway          = HTTPError{Code: http.StatusBadGateway, Key: "bad_gateway"}
	ErrServiceUnavailable  = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
	ErrGatewayTimeout      = HTTPError{Code: http.StatusGatewayTimeout, Key: "gateway_timeout"}
)
