package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies adapter failures for retry and exit-code decisions.
type ErrorKind string

const (
	KindAuth           ErrorKind = "auth"
	KindRateLimit      ErrorKind = "rate_limit"
	KindServer         ErrorKind = "server"
	KindRetryable      ErrorKind = "retryable"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindResource       ErrorKind = "resource"
)

// AdapterError is the single error type surfaced by the streaming adapter.
type AdapterError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
}

func (e *AdapterError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the adapter should retry this kind.
func (e *AdapterError) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindServer, KindRetryable:
		return true
	}
	return false
}

// Hint returns a user-facing suggestion for non-retryable failures.
func (e *AdapterError) Hint() string {
	switch e.Kind {
	case KindAuth:
		return "check your API key and endpoint credentials"
	case KindInvalidRequest:
		return "check the model name and message contents"
	case KindResource:
		return "check the endpoint URL and model availability"
	}
	return ""
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusNotFound:
		return KindResource
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case code >= 500:
		return KindServer
	}
	return KindRetryable
}

// classifyErr wraps a transport-level error. An existing AdapterError
// keeps its classification; anything else is treated as a retryable
// network failure.
func classifyErr(err error) *AdapterError {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae
	}
	return &AdapterError{Kind: KindRetryable, Message: err.Error()}
}
