package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow/gridflow/internal/activity"
	"github.com/gridflow/gridflow/internal/workflow"
)

// scriptedRunner executes nodes from a per-node script and records every
// invocation it sees.
type scriptedRunner struct {
	mu       sync.Mutex
	scripts  map[string]func(ec activity.ExecutionContext) (any, error)
	invoked  []string
	contexts map[string]activity.ExecutionContext
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		scripts:  make(map[string]func(ec activity.ExecutionContext) (any, error)),
		contexts: make(map[string]activity.ExecutionContext),
	}
}

func (s *scriptedRunner) script(nodeID string, fn func(ec activity.ExecutionContext) (any, error)) {
	s.scripts[nodeID] = fn
}

func (s *scriptedRunner) Run(_ context.Context, ec activity.ExecutionContext, _ activity.Attempt) (any, error) {
	s.mu.Lock()
	s.invoked = append(s.invoked, ec.NodeID)
	s.contexts[ec.NodeID] = ec
	fn := s.scripts[ec.NodeID]
	s.mu.Unlock()

	if fn == nil {
		return ec.NodeID + "-out", nil
	}
	return fn(ec)
}

func (s *scriptedRunner) Lookup(string) activity.Runner { return s }

func (s *scriptedRunner) invocations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.invoked...)
}

func (s *scriptedRunner) contextFor(nodeID string) (activity.ExecutionContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ec, ok := s.contexts[nodeID]
	return ec, ok
}

func newTestLoop(r activity.RunnerResolver) *Loop {
	exec := activity.NewExecutor(r, activity.Options{
		DefaultTimeout:       time.Second,
		MaxAttempts:          3,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
	}, nil)
	return New(exec, nil)
}

// diamondPlan is Trigger -> A -> C, Trigger -> B -> C.
func diamondPlan(t *testing.T) *workflow.Plan {
	t.Helper()
	plan, err := workflow.Resolve(&workflow.ExecutableGraph{
		Nodes: []workflow.Node{
			{ID: "trigger", Type: "trigger"},
			{ID: "a", Type: "http"},
			{ID: "b", Type: "http"},
			{ID: "c", Type: "agent"},
		},
		Edges: []workflow.Edge{
			{Source: "trigger", Target: "a"},
			{Source: "trigger", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "b", Target: "c"},
		},
	})
	require.NoError(t, err)
	return plan
}

func TestRunDiamondFanInWaitsForBothBranches(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("a", func(activity.ExecutionContext) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "a-out", nil
	})
	runner.script("b", func(activity.ExecutionContext) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return "b-out", nil
	})

	loop := newTestLoop(runner)
	seed := map[string]any{"trigger": "event-payload"}
	outputs, err := loop.Run(context.Background(), diamondPlan(t), RunInfo{WorkflowID: "wf-1"}, seed)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"trigger": "event-payload",
		"a":       "a-out",
		"b":       "b-out",
		"c":       "c-out",
	}, outputs)

	// C must see both branch outputs, never a partial set.
	ec, ok := runner.contextFor("c")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": "a-out", "b": "b-out"}, ec.Inputs)

	// C is dispatched last; the seeded trigger is never dispatched at all.
	invoked := runner.invocations()
	require.Len(t, invoked, 3)
	assert.NotContains(t, invoked, "trigger")
	assert.Equal(t, "c", invoked[2])
}

func TestRunTerminalFailureIsFailFast(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("b", func(ec activity.ExecutionContext) (any, error) {
		return nil, &activity.DomainError{NodeID: ec.NodeID, Reason: "broken"}
	})

	loop := newTestLoop(runner)
	outputs, err := loop.Run(context.Background(), diamondPlan(t), RunInfo{}, map[string]any{"trigger": true})
	require.Error(t, err)
	assert.Nil(t, outputs, "a failed run must not deliver partial outputs")

	var terminal *RunTerminalError
	require.True(t, errors.As(err, &terminal))
	assert.Equal(t, "b", terminal.NodeID)

	var exhausted *activity.ExhaustedError
	assert.True(t, errors.As(err, &exhausted))

	// C depends on B, which never completed.
	assert.NotContains(t, runner.invocations(), "c")
}

func TestRunIndependentNodesDispatchTogether(t *testing.T) {
	var mu sync.Mutex
	starts := make(map[string]time.Time)

	runner := newScriptedRunner()
	for _, id := range []string{"a", "b"} {
		id := id
		runner.script(id, func(activity.ExecutionContext) (any, error) {
			mu.Lock()
			starts[id] = time.Now()
			mu.Unlock()
			time.Sleep(40 * time.Millisecond)
			return id, nil
		})
	}

	loop := newTestLoop(runner)
	start := time.Now()
	_, err := loop.Run(context.Background(), diamondPlan(t), RunInfo{}, map[string]any{"trigger": true})
	require.NoError(t, err)

	// Siblings overlap: two 40ms nodes plus C must finish well under the
	// 80ms a serialized schedule would need.
	assert.Less(t, time.Since(start), 80*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, starts, "a")
	require.Contains(t, starts, "b")
}

func TestRunEmptyPlanCompletesImmediately(t *testing.T) {
	plan, err := workflow.Resolve(&workflow.ExecutableGraph{})
	require.NoError(t, err)

	loop := newTestLoop(newScriptedRunner())
	outputs, err := loop.Run(context.Background(), plan, RunInfo{}, nil)
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

func TestRunEveryNodeCompletesExactlyOnce(t *testing.T) {
	runner := newScriptedRunner()
	plan := diamondPlan(t)

	loop := newTestLoop(runner)
	outputs, err := loop.Run(context.Background(), plan, RunInfo{}, map[string]any{"trigger": true})
	require.NoError(t, err)

	assert.Len(t, outputs, len(plan.Nodes))
	invoked := runner.invocations()
	seen := make(map[string]int)
	for _, id := range invoked {
		seen[id]++
	}
	for id, n := range seen {
		assert.Equalf(t, 1, n, "node %s dispatched more than once", id)
	}
}

// recordingHandler collects slog records for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) attrsFor(msg string) []map[string]slog.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []map[string]slog.Value
	for _, r := range h.records {
		if r.Message != msg {
			continue
		}
		attrs := make(map[string]slog.Value)
		r.Attrs(func(a slog.Attr) bool {
			attrs[a.Key] = a.Value
			return true
		})
		out = append(out, attrs)
	}
	return out
}

func TestRunLogsNodeDurations(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("a", func(activity.ExecutionContext) (any, error) {
		time.Sleep(15 * time.Millisecond)
		return "a-out", nil
	})

	handler := &recordingHandler{}
	exec := activity.NewExecutor(runner, activity.Options{
		DefaultTimeout:       time.Second,
		MaxAttempts:          1,
		RetryInitialInterval: time.Millisecond,
	}, nil)
	loop := New(exec, slog.New(handler))

	_, err := loop.Run(context.Background(), diamondPlan(t), RunInfo{}, map[string]any{"trigger": true})
	require.NoError(t, err)

	completions := handler.attrsFor("node completed")
	require.Len(t, completions, 3)
	for _, attrs := range completions {
		require.Contains(t, attrs, "duration")
		if attrs["node"].String() == "a" {
			assert.GreaterOrEqual(t, attrs["duration"].Duration(), 15*time.Millisecond)
		}
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("a", func(activity.ExecutionContext) (any, error) {
		time.Sleep(500 * time.Millisecond)
		return "a-out", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	loop := newTestLoop(runner)
	_, err := loop.Run(ctx, diamondPlan(t), RunInfo{}, map[string]any{"trigger": true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
