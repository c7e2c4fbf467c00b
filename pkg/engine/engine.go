// Package engine is the public entry point: it turns a parsed workflow
// graph into a concurrently executed run and delivers the final output set.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"

	"github.com/gridflow/gridflow/internal/activity"
	"github.com/gridflow/gridflow/internal/runner"
	"github.com/gridflow/gridflow/internal/scheduler"
	"github.com/gridflow/gridflow/internal/transport"
	"github.com/gridflow/gridflow/internal/workflow"
)

// Config is the engine's runtime configuration.
type Config struct {
	// Dial establishes connections to the node-execution service. Nodes
	// of unregistered types are executed remotely through these.
	Dial transport.DialFunc
	// PoolSize bounds concurrent in-flight connections. Zero means 4.
	PoolSize int
	// DefaultTimeout bounds a single node attempt. Zero means 30s.
	DefaultTimeout time.Duration
	// Timeouts overrides the attempt bound per node type.
	Timeouts map[string]time.Duration
	// MaxAttempts is the per-node attempt ceiling. Zero means 3.
	MaxAttempts int
	// RetryInitialInterval and RetryMaxInterval shape retry backoff.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// Model, when set, enables the in-process "agent" node runner.
	Model llms.Model
	// Logger receives structured run logs. Nil means slog.Default.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Trigger is the event that starts a run: the run-scoped identifiers plus
// the outputs of nodes the trigger already completed (entry nodes). Seeded
// nodes are never scheduled.
type Trigger struct {
	WorkflowID string
	SessionID  string
	Seed       map[string]any
}

// Engine wires the graph filter, dependency resolver, scheduler loop,
// activity executor and connection pool into one run pipeline.
type Engine struct {
	cfg      Config
	pool     *transport.Pool
	registry *runner.Registry
	exec     *activity.Executor
	log      *slog.Logger
}

// New creates an engine. The built-in "delay" runner is always registered;
// the "agent" runner is registered when cfg.Model is set. Everything else
// executes remotely via cfg.Dial.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	pool := transport.NewPool(cfg.PoolSize, cfg.Dial)
	registry := runner.NewRegistry(runner.NewRemote(pool))
	if err := registry.Register("delay", runner.NewDelay()); err != nil {
		return nil, err
	}
	if cfg.Model != nil {
		if err := registry.Register("agent", runner.NewAgent(cfg.Model)); err != nil {
			return nil, err
		}
	}

	exec := activity.NewExecutor(registry, activity.Options{
		DefaultTimeout:       cfg.DefaultTimeout,
		Timeouts:             cfg.Timeouts,
		MaxAttempts:          cfg.MaxAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
	}, cfg.Logger)

	return &Engine{
		cfg:      cfg,
		pool:     pool,
		registry: registry,
		exec:     exec,
		log:      cfg.Logger,
	}, nil
}

// Register binds a custom in-process runner to a node type.
func (e *Engine) Register(nodeType string, r activity.Runner) error {
	return e.registry.Register(nodeType, r)
}

// Execute runs a workflow to completion and returns the full output set,
// one entry per executable node. On terminal failure it returns a
// *scheduler.RunTerminalError naming the offending node; partial outputs
// are never returned. A cyclic graph fails with *workflow.GraphCycleError
// before anything is dispatched.
func (e *Engine) Execute(ctx context.Context, wf *workflow.Workflow, trigger Trigger) (map[string]any, error) {
	run := scheduler.RunInfo{
		WorkflowID: trigger.WorkflowID,
		SessionID:  trigger.SessionID,
	}
	if run.WorkflowID == "" {
		run.WorkflowID = runID(wf.ID)
	}
	if run.SessionID == "" {
		run.SessionID = uuid.New().String()
	}

	graph := workflow.Filter(wf)
	plan, err := workflow.Resolve(graph)
	if err != nil {
		return nil, errors.Wrap(err, "resolving workflow graph")
	}

	e.log.Debug("starting workflow run",
		"workflow", run.WorkflowID, "session", run.SessionID,
		"nodes", len(plan.Nodes), "seeded", len(trigger.Seed))

	loop := scheduler.New(e.exec, e.log)
	return loop.Run(ctx, plan, run, trigger.Seed)
}

// Close releases the connection pool.
func (e *Engine) Close() error {
	return e.pool.Close()
}

func runID(name string) string {
	if name == "" {
		name = "workflow"
	}
	name = strings.ReplaceAll(name, " ", "-")
	return fmt.Sprintf("%s-%s", name, uuid.New().String())
}
