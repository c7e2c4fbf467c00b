// Package scheduler turns a resolved plan into a concurrently executed run:
// it detects ready nodes, dispatches them together, collects whichever
// completes first, and routes each output to every dependent.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/gridflow/gridflow/internal/activity"
	"github.com/gridflow/gridflow/internal/workflow"
)

// RunInfo carries the run-scoped identifiers threaded into every execution
// context.
type RunInfo struct {
	WorkflowID string
	SessionID  string
}

// Handle is the loop's view of one in-flight node. The loop owns it
// exclusively; completion is observed only through the loop's wait-any.
type Handle struct {
	NodeID    string
	StartedAt time.Time
}

type completion struct {
	nodeID string
	value  any
	err    error
}

// Loop drives one workflow run. The loop itself is a single goroutine, so
// completed/running/outputs need no locking; node work runs in independent
// goroutines that only communicate back over the completion channel.
type Loop struct {
	exec *activity.Executor
	log  *slog.Logger
}

// New creates a scheduler loop. A nil logger falls back to slog.Default.
func New(exec *activity.Executor, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{exec: exec, log: log}
}

// Run executes the plan to completion. Seed entries are outputs of nodes the
// trigger already completed (entry nodes); they are recorded before the loop
// starts and never scheduled. On success the returned map holds one output
// per executable node. On terminal failure the error is a *RunTerminalError
// naming the offending node and no outputs are returned.
func (l *Loop) Run(ctx context.Context, plan *workflow.Plan, run RunInfo, seed map[string]any) (map[string]any, error) {
	outputs := make(map[string]any, len(plan.Nodes)+len(seed))
	completed := make(map[string]struct{}, len(plan.Nodes)+len(seed))
	for id, v := range seed {
		completed[id] = struct{}{}
		outputs[id] = v
	}

	running := make(map[string]*Handle)
	// Buffered to the full node count so branches still running after a
	// terminal failure can finish and send without anyone receiving.
	results := make(chan completion, len(plan.Nodes))

	for {
		for id := range plan.Nodes {
			if !l.ready(plan, id, completed, running) {
				continue
			}
			ec := buildContext(plan, run, id, outputs)
			running[id] = l.dispatch(ctx, ec, results)
			l.log.Debug("dispatched node", "node", id, "type", ec.NodeType, "deps", len(plan.Deps[id]))
		}

		if len(running) == 0 {
			return outputs, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "workflow run cancelled")
		case c := <-results:
			handle := running[c.nodeID]
			delete(running, c.nodeID)
			if c.err != nil {
				l.log.Error("node failed terminally",
					"node", c.nodeID, "duration", time.Since(handle.StartedAt), "error", c.err)
				return nil, &RunTerminalError{NodeID: c.nodeID, Err: c.err}
			}
			completed[c.nodeID] = struct{}{}
			outputs[c.nodeID] = c.value
			l.log.Debug("node completed",
				"node", c.nodeID, "duration", time.Since(handle.StartedAt), "completed", len(completed))
		}
	}
}

// ready reports whether a node can be dispatched now: not already done or in
// flight, and every predecessor has a recorded output.
func (l *Loop) ready(plan *workflow.Plan, id string, completed map[string]struct{}, running map[string]*Handle) bool {
	if _, done := completed[id]; done {
		return false
	}
	if _, inFlight := running[id]; inFlight {
		return false
	}
	for dep := range plan.Deps[id] {
		if _, done := completed[dep]; !done {
			return false
		}
	}
	return true
}

func (l *Loop) dispatch(ctx context.Context, ec activity.ExecutionContext, results chan<- completion) *Handle {
	h := &Handle{NodeID: ec.NodeID, StartedAt: time.Now()}
	go func() {
		v, err := l.exec.Execute(ctx, ec)
		results <- completion{nodeID: ec.NodeID, value: v, err: err}
	}()
	return h
}

// buildContext snapshots a node's activation input. By the time a node is
// ready every predecessor has an entry in outputs, so Inputs is always
// complete. The maps handed out are the plan's own read-only data; nothing
// downstream mutates them.
func buildContext(plan *workflow.Plan, run RunInfo, id string, outputs map[string]any) activity.ExecutionContext {
	node := plan.Nodes[id]
	inputs := make(map[string]any, len(plan.Deps[id]))
	for dep := range plan.Deps[id] {
		inputs[dep] = outputs[dep]
	}
	return activity.ExecutionContext{
		WorkflowID: run.WorkflowID,
		SessionID:  run.SessionID,
		NodeID:     node.ID,
		NodeType:   node.Type,
		Params:     node.Params,
		Config:     plan.Config[id],
		Inputs:     inputs,
	}
}
