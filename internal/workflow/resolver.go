package workflow

// Plan is the resolved execution plan: the node lookup, each node's
// predecessor set, and the folded configuration carried over from filtering.
// All three are read-only for the duration of a run.
type Plan struct {
	Nodes  map[string]Node
	Deps   map[string]map[string]struct{}
	Config map[string]NodeConfig
}

// Resolve builds the dependency map for an executable graph. Multiple edges
// between the same pair of nodes collapse to a single dependency. A cyclic
// graph fails with *GraphCycleError before any node is dispatched.
func Resolve(g *ExecutableGraph) (*Plan, error) {
	plan := &Plan{
		Nodes:  make(map[string]Node, len(g.Nodes)),
		Deps:   make(map[string]map[string]struct{}, len(g.Nodes)),
		Config: g.Config,
	}
	for _, n := range g.Nodes {
		plan.Nodes[n.ID] = n
		plan.Deps[n.ID] = make(map[string]struct{})
	}
	for _, e := range g.Edges {
		if _, ok := plan.Nodes[e.Target]; !ok {
			continue
		}
		if _, ok := plan.Nodes[e.Source]; !ok {
			continue
		}
		plan.Deps[e.Target][e.Source] = struct{}{}
	}

	if node, cyclic := findCycle(plan.Deps); cyclic {
		return nil, &GraphCycleError{NodeID: node}
	}
	return plan, nil
}

// findCycle runs Kahn's algorithm over the dependency map. If the peel
// stalls before visiting every node, whatever remains is on or downstream of
// a cycle; predecessor links among the unvisited nodes are then walked until
// a node repeats, which pins the report to the cycle proper.
func findCycle(deps map[string]map[string]struct{}) (string, bool) {
	indeg := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))
	for id, preds := range deps {
		indeg[id] = len(preds)
		for p := range preds {
			dependents[p] = append(dependents[p], id)
		}
	}

	queue := make([]string, 0, len(deps))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[id] {
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited == len(deps) {
		return "", false
	}

	for id, d := range indeg {
		if d > 0 {
			return cycleNode(id, deps, indeg), true
		}
	}
	return "", false
}

// cycleNode walks predecessor links from a stalled node, restricted to
// unvisited nodes (residual in-degree > 0). Residual in-degree counts
// exactly the unvisited predecessors, so the walk always has somewhere to
// go, and the finite unvisited set forces a repeat; the repeated node closes
// a loop and therefore sits on the cycle itself, never merely downstream of
// it.
func cycleNode(start string, deps map[string]map[string]struct{}, indeg map[string]int) string {
	seen := make(map[string]struct{})
	cur := start
	for {
		if _, ok := seen[cur]; ok {
			return cur
		}
		seen[cur] = struct{}{}
		next := cur
		for p := range deps[cur] {
			if indeg[p] > 0 {
				next = p
				break
			}
		}
		if next == cur {
			return cur
		}
		cur = next
	}
}
