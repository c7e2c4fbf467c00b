package workflow

import "fmt"

// GraphCycleError reports that the executable subgraph has a dependency
// cycle. It is raised during resolution, before anything is dispatched, and
// is never retried.
type GraphCycleError struct {
	// NodeID is one node implicated in the cycle.
	NodeID string
}

func (e *GraphCycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected involving node %q", e.NodeID)
}
