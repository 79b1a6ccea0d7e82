package paypal

import "fmt"

// AuthenticationError reports a failed token acquisition: the token endpoint
// returned a non-2xx status or a body without an access token. The token
// layer does not retry; the request executor decides whether the overall
// operation is retried.
type AuthenticationError struct {
	// StatusCode is the HTTP status returned by the token endpoint, or zero
	// when the body was malformed.
	StatusCode int
	// Body is the raw token endpoint response, truncated for logging.
	Body string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("paypal: token response malformed: %s", e.Body)
	}
	return fmt.Sprintf("paypal: token request failed with status %d: %s", e.StatusCode, e.Body)
}

// UpstreamStatusError reports a 4xx/5xx response from a reporting endpoint.
// It carries the upstream status and body unchanged so the route layer can
// pass them through to the caller. It is never retried.
type UpstreamStatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("paypal: upstream returned status %d", e.StatusCode)
}

// TransientNetworkError reports a connection or timeout failure that
// persisted through the executor's backoff retries.
type TransientNetworkError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("paypal: request failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *TransientNetworkError) Unwrap() error { return e.Err }

// ValidationError reports malformed caller input, such as an unparseable or
// inverted date range. No network call is made.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return "paypal: " + e.Message }

// RetriesExhaustedError is a defensive fallback for the executor's retry
// loop completing without a terminal outcome. The loop's cases are meant to
// be exhaustive, so seeing this error indicates a bug.
type RetriesExhaustedError struct {
	Attempts int
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("paypal: retries exhausted after %d attempts", e.Attempts)
}
