package api

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEndpoint is returned when a call names no endpoint.
	ErrEmptyEndpoint = errors.New("api: endpoint is required")

	// ErrNotAuthenticated is returned by calls that need a token when none resolves.
	ErrNotAuthenticated = errors.New("api: not authenticated")
)

// ConnectionError means the server could not be reached at all, or the
// connection broke before the response was fully read.
type ConnectionError struct {
	BaseURL string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to backend server at %s (is it running and reachable?): %v", e.BaseURL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QuotaExhaustedError is returned for HTTP 429. It carries the parsed quota
// so callers can show when the allowance resets.
type QuotaExhaustedError struct {
	Info QuotaInfo
}

func (e *QuotaExhaustedError) Error() string {
	if e.Info.Message != "" {
		return e.Info.Message
	}
	return "daily quota exhausted"
}

// ProtocolError is any other non-success response. Body is the raw text.
type ProtocolError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API request failed: %s", e.Status)
	}
	return fmt.Sprintf("API request failed: %s - %s", e.Status, e.Body)
}

// OutcomeKind tags how a call ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeQuotaExhausted
	OutcomeConnectionFailure
	OutcomeProtocolFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeQuotaExhausted:
		return "quota_exhausted"
	case OutcomeConnectionFailure:
		return "connection_failure"
	case OutcomeProtocolFailure:
		return "protocol_failure"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is the terminal state of one call. Only the fields that belong to
// Kind are set.
type Outcome struct {
	Kind       OutcomeKind
	Quota      *QuotaInfo
	StatusCode int
	Body       string
	Reason     string
}

// OutcomeOf classifies the error returned by a Client call.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeCompleted}
	}

	var quotaErr *QuotaExhaustedError
	if errors.As(err, &quotaErr) {
		info := quotaErr.Info
		return Outcome{Kind: OutcomeQuotaExhausted, Quota: &info, StatusCode: 429, Reason: quotaErr.Error()}
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return Outcome{Kind: OutcomeConnectionFailure, Reason: connErr.Error()}
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return Outcome{Kind: OutcomeProtocolFailure, StatusCode: protoErr.StatusCode, Body: protoErr.Body, Reason: protoErr.Error()}
	}

	return Outcome{Kind: OutcomeProtocolFailure, Reason: err.Error()}
}
