package activity

import (
	"fmt"
	"time"
)

// TimeoutError reports that a single attempt exceeded its time bound. It is
// transient: the executor retries until attempts are exhausted.
type TimeoutError struct {
	NodeID  string
	Attempt int
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %q attempt %d timed out after %s", e.NodeID, e.Attempt, e.Limit)
}

// TransportError reports that the channel to the execution service failed or
// returned a malformed response. Transient, retried.
type TransportError struct {
	NodeID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("node %q transport failure: %v", e.NodeID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DomainError reports that the node's own logic failed, as opposed to the
// call reaching it. Retried under the same policy as transport failures; the
// executor does not distinguish the two when deciding to retry.
type DomainError struct {
	NodeID string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("node %q failed: %s", e.NodeID, e.Reason)
}

// ExhaustedError is the terminal failure for one node: its retry budget is
// spent. Last carries the final attempt's error.
type ExhaustedError struct {
	NodeID   string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("node %q failed after %d attempts: %v", e.NodeID, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
