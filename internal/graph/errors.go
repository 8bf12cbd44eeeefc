package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is the "error" object Graph endpoints return on failure.
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	IsTransient  bool   `json:"is_transient,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
}

// Error is a transport failure: network error, non-2xx status, a Graph
// error object, or a body that is not valid JSON. Body holds a truncated,
// token-free copy of the raw response for diagnostics.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	API        *APIError
	Cause      error
}

func (e *Error) Error() string {
	switch {
	case e.API != nil:
		return fmt.Sprintf("%s %s: Graph API error: %s (type: %s, code: %d, status: %d)",
			e.Method, e.URL, e.API.Message, e.API.Type, e.API.Code, e.StatusCode)
	case e.Cause != nil && e.Body != "":
		return fmt.Sprintf("%s %s: %v (status: %d, body: %s)", e.Method, e.URL, e.Cause, e.StatusCode, e.Body)
	case e.Cause != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
	default:
		return fmt.Sprintf("%s %s: unexpected status %d (body: %s)", e.Method, e.URL, e.StatusCode, e.Body)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRateLimited reports whether err is a Graph "too many calls" response
// (codes 4, 17, 32 and 613, or HTTP 429).
func IsRateLimited(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	if ge.StatusCode == 429 {
		return true
	}
	if ge.API == nil {
		return false
	}
	switch ge.API.Code {
	case 4, 17, 32, 613:
		return true
	}
	return false
}

// IsRetryable reports whether a failed read is worth repeating. Network
// failures, 5xx and 429 statuses, rate limits, errors Graph flags as
// transient (including its generic codes 1 and 2) and malformed 2xx bodies
// are retryable. Other 4xx responses (expired tokens, bad parameters, missing
// objects) are permanent, as is a cancelled context. Errors that are not
// transport failures, such as a response that does not match its schema,
// are retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ge *Error
	if !errors.As(err, &ge) {
		return true
	}
	switch {
	case ge.StatusCode == 0:
		return true
	case IsRateLimited(ge):
		return true
	case ge.StatusCode >= http.StatusInternalServerError:
		return true
	case ge.API != nil && (ge.API.IsTransient || ge.API.Code == 1 || ge.API.Code == 2):
		return true
	case ge.StatusCode >= 200 && ge.StatusCode <= 299:
		return ge.API == nil
	}
	return false
}
