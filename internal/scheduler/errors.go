package scheduler

import "fmt"

// RunTerminalError ends a run: some node exhausted its retry budget. Outputs
// accumulated before the failure are discarded from the caller's
// perspective; the run as a whole produced no result.
type RunTerminalError struct {
	NodeID string
	Err    error
}

func (e *RunTerminalError) Error() string {
	return fmt.Sprintf("workflow run terminated: node %q: %v", e.NodeID, e.Err)
}

func (e *RunTerminalError) Unwrap() error { return e.Err }
