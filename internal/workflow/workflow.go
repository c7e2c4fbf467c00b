package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Node is a single vertex of the authored graph. Nodes are immutable once
// parsed; the run never mutates them.
type Node struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Edge connects two nodes. TargetHandle names the input slot on the target
// the edge feeds; SourceHandle optionally names the output slot of the
// source it reads.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Workflow is the parsed graph document as authored, before filtering.
type Workflow struct {
	ID    string `json:"id,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Parse decodes a workflow document and validates its structure. Node ids
// must be unique and non-empty, and every edge must reference nodes that
// exist. Handle names are deliberately not validated here, see Filter.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, errors.Wrap(err, "decoding workflow document")
	}
	if err := wf.validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (w *Workflow) validate() error {
	seen := make(map[string]struct{}, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			return errors.New("workflow node with empty id")
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for _, e := range w.Edges {
		if _, ok := seen[e.Source]; !ok {
			return fmt.Errorf("edge references unknown source node %q", e.Source)
		}
		if _, ok := seen[e.Target]; !ok {
			return fmt.Errorf("edge references unknown target node %q", e.Target)
		}
	}
	return nil
}

// Node returns the node with the given id, if present.
func (w *Workflow) Node(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
