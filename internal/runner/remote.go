package runner

import (
	"context"

	"github.com/gridflow/gridflow/internal/activity"
	"github.com/gridflow/gridflow/internal/transport"
)

// Remote executes a node by calling the execution service over a pooled
// connection. One connection is acquired and released per attempt so a
// stalled attempt cannot starve the pool across retries.
type Remote struct {
	pool *transport.Pool
}

// NewRemote creates a remote runner backed by the given pool.
func NewRemote(pool *transport.Pool) *Remote {
	return &Remote{pool: pool}
}

// Run sends one node-execution request and waits for its response. The
// attempt id doubles as the wire correlation id.
func (r *Remote) Run(ctx context.Context, ec activity.ExecutionContext, at activity.Attempt) (any, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, &activity.TransportError{NodeID: ec.NodeID, Err: err}
	}

	resp, err := conn.Call(ctx, transport.Request{
		CorrelationID: at.ID,
		WorkflowID:    ec.WorkflowID,
		SessionID:     ec.SessionID,
		NodeID:        ec.NodeID,
		NodeType:      ec.NodeType,
		Params:        ec.Params,
		Config:        ec.Config,
		Inputs:        ec.Inputs,
	})
	if err != nil {
		r.pool.Discard(conn)
		return nil, &activity.TransportError{NodeID: ec.NodeID, Err: err}
	}
	r.pool.Release(conn)

	if !resp.OK {
		return nil, &activity.DomainError{NodeID: ec.NodeID, Reason: resp.Error}
	}
	return resp.Value, nil
}
