package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrResponseTooLarge is wrapped by DecodeError when a response body exceeds
// the configured limit.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// TransportError represents a network or timeout failure before a response arrived.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// DecodeError means a response body did not match the expected shape.
type DecodeError struct {
	// Field names the offending field when known, e.g. "data[0].energy".
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("unexpected API response format: field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("unexpected API response format: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AuthError represents a missing session or a refresh rejected with 401/403.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication error: %s", e.Reason)
}

// InvalidPathError is returned when a relative API path is unsafe or malformed.
// No request is sent.
type InvalidPathError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid API path %q: %s", e.Path, e.Reason)
}

func (e *InvalidPathError) Unwrap() error {
	return e.Err
}

// Problem is a structured error document returned by the API.
type Problem struct {
	Type     string          `json:"type,omitempty"`
	Title    string          `json:"title,omitempty"`
	Status   FlexInt         `json:"status,omitempty"`
	Detail   string          `json:"detail,omitempty"`
	Instance string          `json:"instance,omitempty"`
	Errors   []ProblemDetail `json:"errors,omitempty"`
}

// ProblemDetail describes one invalid input inside a Problem.
type ProblemDetail struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// APIError represents a non-2xx response carrying a problem document.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Problem    *Problem
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Title
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Problem != nil && len(e.Problem.Errors) > 0 {
		var parts []string
		for _, d := range e.Problem.Errors {
			switch {
			case d.Location != "" && d.Message != "":
				parts = append(parts, d.Location+": "+d.Message)
			case d.Message != "":
				parts = append(parts, d.Message)
			}
		}
		if len(parts) > 0 {
			msg += " (" + strings.Join(parts, "; ") + ")"
		}
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, msg)
}

// OpaqueAPIError represents a non-2xx response whose body was not a problem
// document. The body is never kept.
type OpaqueAPIError struct {
	StatusCode int
	RequestID  string
}

func (e *OpaqueAPIError) Error() string {
	return fmt.Sprintf("API error (status %d): response body redacted", e.StatusCode)
}

// IsAuthError checks if the error is an authentication error.
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsTransportError checks if the error is a network or timeout failure.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsDecodeError checks if the error is a response shape mismatch.
func IsDecodeError(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// IsInvalidPathError checks if the error is a rejected request path.
func IsInvalidPathError(err error) bool {
	var e *InvalidPathError
	return errors.As(err, &e)
}

// StatusCode returns the HTTP status carried by an API error, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var opaque *OpaqueAPIError
	if errors.As(err, &opaque) {
		return opaque.StatusCode
	}
	return 0
}

// IsNotFoundError checks if the error indicates a resource was not found.
func IsNotFoundError(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// isUnauthorizedStatus reports whether err is a 401/403 response or an AuthError.
func isUnauthorizedStatus(err error) bool {
	if IsAuthError(err) {
		return true
	}
	status := StatusCode(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// defaultProblemTitle is used when a problem document has no title.
const defaultProblemTitle = "API Error"

// classifyError maps a non-2xx response to APIError or OpaqueAPIError.
func classifyError(status int, body []byte, header http.Header) error {
	requestID := requestIDFromHeader(header)
	if problem, ok := parseProblem(body); ok {
		title := problem.Title
		if title == "" {
			title = defaultProblemTitle
		}
		return &APIError{
			StatusCode: status,
			Title:      title,
			Detail:     problem.Detail,
			Problem:    problem,
			RequestID:  requestID,
		}
	}
	return &OpaqueAPIError{StatusCode: status, RequestID: requestID}
}

// parseProblem accepts any JSON object whose members fit Problem. Members
// outside Problem are dropped, so nothing else from the body is kept.
func parseProblem(body []byte) (*Problem, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var problem Problem
	if err := json.Unmarshal(trimmed, &problem); err != nil {
		return nil, false
	}
	return &problem, true
}

func requestIDFromHeader(header http.Header) string {
	if header == nil {
		return ""
	}
	return header.Get("X-Request-Id")
}
