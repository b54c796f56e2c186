package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies API failures.
type ErrorKind string

const (
	Unauthorized ErrorKind = "unauthorized"
	RateLimited  ErrorKind = "rate_limited"
	Transient    ErrorKind = "transient"
	Rejected     ErrorKind = "rejected"
	Network      ErrorKind = "network"
)

// APIError is returned by Client.Request once a request has failed for
// good.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Body       []byte
	// Attempts is the number of requests issued, including retries.
	Attempts int
	Err      error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case RateLimited, Transient, Network:
		return true
	}
	return false
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == Unauthorized
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return Unauthorized
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusRequestTimeout, status >= http.StatusInternalServerError:
		return Transient
	}
	return Rejected
}

func classifyTransport(err error) *APIError {
	kind := Network
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = Transient
	}
	return &APIError{Kind: kind, Err: err}
}

func statusError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}
	msg := strings.TrimSpace(payload.Error)
	if msg == "" {
		msg = strings.TrimSpace(payload.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Kind: classifyStatus(status), StatusCode: status, Message: msg, Body: body}
}
