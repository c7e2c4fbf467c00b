// Package activity executes one workflow node as an independently
// retryable, timeout-bounded unit of work.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// ExecutionContext is the immutable per-activation input of one node: its
// identity, merged parameters, folded configuration, the outputs of its
// direct predecessors, and the run-scoped identifiers. It is built once per
// activation; every retry attempt sees the same context.
type ExecutionContext struct {
	WorkflowID string
	SessionID  string
	NodeID     string
	NodeType   string
	Params     map[string]any
	Config     map[string]map[string]any
	Inputs     map[string]any
}

// Attempt identifies one try at running a node. ID is unique per attempt and
// correlates the request with its response on the wire.
type Attempt struct {
	ID     string
	Number int
}

// Runner executes a node's domain logic exactly once per attempt. Failures
// are reported as *TransportError or *DomainError; the runner never retries
// on its own.
type Runner interface {
	Run(ctx context.Context, ec ExecutionContext, at Attempt) (any, error)
}

// RunnerResolver maps a node type tag to the Runner that executes it.
type RunnerResolver interface {
	Lookup(nodeType string) Runner
}

// Options bound the executor's retry and timeout behavior.
type Options struct {
	// DefaultTimeout bounds a single attempt. Zero means 30s.
	DefaultTimeout time.Duration
	// Timeouts overrides the attempt bound per node type.
	Timeouts map[string]time.Duration
	// MaxAttempts is the total attempt ceiling per node. Zero means 3.
	MaxAttempts int
	// RetryInitialInterval and RetryMaxInterval shape the exponential
	// backoff between attempts. Zero means 200ms and 5s.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

func (o Options) withDefaults() Options {
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 200 * time.Millisecond
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = 5 * time.Second
	}
	return o
}

// Executor runs execution contexts through their node-type Runner with a
// per-attempt timeout and a bounded retry policy. Timeout, transport and
// domain failures are all retried uniformly until the attempt ceiling.
type Executor struct {
	runners RunnerResolver
	opts    Options
	log     *slog.Logger
}

// NewExecutor creates an executor. A nil logger falls back to slog.Default.
func NewExecutor(runners RunnerResolver, opts Options, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{runners: runners, opts: opts.withDefaults(), log: log}
}

// Execute runs one node to success or terminal failure. On exhaustion the
// returned error is *ExhaustedError carrying the last attempt's error.
func (e *Executor) Execute(ctx context.Context, ec ExecutionContext) (any, error) {
	runner := e.runners.Lookup(ec.NodeType)
	limit := e.timeoutFor(ec.NodeType)

	var out any
	attempt := 0
	op := func() error {
		attempt++
		at := Attempt{ID: uuid.New().String(), Number: attempt}
		actx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		v, err := runner.Run(actx, ec, at)
		if err != nil {
			if actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				err = &TimeoutError{NodeID: ec.NodeID, Attempt: attempt, Limit: limit}
			}
			e.log.Warn("node attempt failed",
				"node", ec.NodeID, "type", ec.NodeType,
				"attempt", attempt, "error", err)
			return err
		}
		out = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.RetryInitialInterval
	bo.MaxInterval = e.opts.RetryMaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(e.opts.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, &ExhaustedError{NodeID: ec.NodeID, Attempts: attempt, Last: err}
	}
	return out, nil
}

func (e *Executor) timeoutFor(nodeType string) time.Duration {
	if t, ok := e.opts.Timeouts[nodeType]; ok && t > 0 {
		return t
	}
	return e.opts.DefaultTimeout
}
