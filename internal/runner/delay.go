package runner

import (
	"context"
	"time"

	"github.com/gridflow/gridflow/internal/activity"
)

// Delay runs a timer node in process: it waits for the node's "durationMs"
// parameter and passes its inputs through as output.
type Delay struct{}

// NewDelay creates a delay runner.
func NewDelay() *Delay {
	return &Delay{}
}

func (d *Delay) Run(ctx context.Context, ec activity.ExecutionContext, _ activity.Attempt) (any, error) {
	ms, ok := millis(ec.Params["durationMs"])
	if !ok || ms < 0 {
		return nil, &activity.DomainError{NodeID: ec.NodeID, Reason: "delay node has no durationMs parameter"}
	}

	timer := time.NewTimer(time.Duration(ms * float64(time.Millisecond)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return ec.Inputs, nil
}

// millis coerces a duration parameter. JSON decoding yields float64, but
// graphs built in Go commonly carry int or time-derived int64 params.
func millis(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
