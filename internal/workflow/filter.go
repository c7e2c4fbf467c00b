package workflow

import "strings"

// ConfigHandles is the set of target-handle names that mark an edge as
// configuration rather than data flow. Package-level so embedders can extend
// it; unknown handle names are treated as data flow (fail-open), so adding a
// new config handle never requires a graph-format migration.
var ConfigHandles = map[string]struct{}{
	"toolInput":   {},
	"memoryInput": {},
	"modelInput":  {},
}

// AgentTypes names node types that execute independently even when they feed
// a config handle (an agent wired in as another agent's tool still runs as
// its own unit of work).
var AgentTypes = map[string]struct{}{
	"agent": {},
}

// NodeConfig is the folded configuration of one node: bucket name (derived
// from the feeding node's type) to that node's parameters.
type NodeConfig map[string]map[string]any

// ExecutableGraph is the workflow with config nodes and config edges
// removed, plus the per-node folded configuration.
type ExecutableGraph struct {
	Nodes  []Node
	Edges  []Edge
	Config map[string]NodeConfig
}

// Filter strips configuration-only nodes from the workflow and folds their
// parameters into the configuration of every node they feed. Filtering is
// pure: the same workflow always yields the same executable subgraph and the
// same folded configuration.
func Filter(wf *Workflow) *ExecutableGraph {
	byID := make(map[string]Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		byID[n.ID] = n
	}

	g := &ExecutableGraph{Config: make(map[string]NodeConfig)}

	// Nodes that participate in at least one data-flow edge stay
	// executable regardless of what else they feed.
	inData := make(map[string]struct{}, len(wf.Nodes))
	folded := make(map[string]struct{})

	for _, e := range wf.Edges {
		if !isConfigHandle(e.TargetHandle) {
			g.Edges = append(g.Edges, e)
			inData[e.Source] = struct{}{}
			inData[e.Target] = struct{}{}
			continue
		}
		src := byID[e.Source]
		if isAgentType(src.Type) {
			continue
		}
		fold(g.Config, e.Target, src)
		folded[e.Source] = struct{}{}
	}

	for _, n := range wf.Nodes {
		if _, cfg := folded[n.ID]; cfg {
			if _, data := inData[n.ID]; !data {
				continue // config-only node, never scheduled
			}
		}
		g.Nodes = append(g.Nodes, n)
	}
	return g
}

// fold records a config node's parameters under the target's configuration,
// keyed by a stable bucket name derived from the source's type.
func fold(config map[string]NodeConfig, target string, src Node) {
	bucket := ConfigBucket(src.Type)
	nc, ok := config[target]
	if !ok {
		nc = make(NodeConfig)
		config[target] = nc
	}
	params, ok := nc[bucket]
	if !ok {
		params = make(map[string]any, len(src.Params))
		nc[bucket] = params
	}
	for k, v := range src.Params {
		params[k] = v
	}
}

// ConfigBucket derives the configuration bucket name for a node type.
// Consumers such as a tool list or a memory backend look their config up
// under this name.
func ConfigBucket(nodeType string) string {
	return strings.ToLower(nodeType)
}

func isConfigHandle(handle string) bool {
	_, ok := ConfigHandles[handle]
	return ok
}

func isAgentType(nodeType string) bool {
	_, ok := AgentTypes[nodeType]
	return ok
}
