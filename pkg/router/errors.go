package router

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedRequestType is returned for request types with no rule-based handler.
	ErrUnsupportedRequestType = errors.New("unsupported request type")
	// ErrBackendUnavailable means no inference backend produced a result.
	ErrBackendUnavailable = errors.New("inference backend unavailable")
	// ErrAllBackendsExhausted is returned in llm_only mode when every backend failed.
	ErrAllBackendsExhausted = fmt.Errorf("all backends exhausted: %w", ErrBackendUnavailable)
	// ErrInvalidOverride rejects malformed override records.
	ErrInvalidOverride = errors.New("invalid override")
	// ErrInvalidRequest rejects nil requests.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidMode rejects unknown routing modes.
	ErrInvalidMode = errors.New("invalid routing mode")
)

// RouteError ties a routing failure to the request that caused it.
type RouteError struct {
	RequestID string
	Op        string
	Err       error
}

func (e *RouteError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}
