// ABOUTME: Error types for the stream transport and submission API.
// ABOUTME: Carries HTTP status and rejection metadata with per-type retryability.

package stream

import (
	"errors"
	"fmt"
)

// ErrConnectionLost is returned by Client.Run once the reconnect budget is
// exhausted. No further automatic retries occur; the caller must resubscribe.
var ErrConnectionLost = errors.New("connection lost after maximum reconnect attempts")

// StatusError is a non-2xx response from the stream or submission endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// IsRetryable reports whether reconnecting could plausibly succeed.
// Auth and client errors won't heal on their own; rate limits and server
// errors might.
func (e *StatusError) IsRetryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// RejectionError is a submission the server explicitly refused. Not
// retryable: the refusal is a decision, not a fault.
type RejectionError struct {
	Reason string
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("submission rejected: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

func (e *RejectionError) IsRetryable() bool { return false }
