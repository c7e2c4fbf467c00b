// Package transport carries node-execution calls to the remote execution
// service over pooled bidirectional channels.
package transport

import (
	"context"
)

// Request is a single node-execution call. CorrelationID is unique per
// attempt so a stale response from an abandoned attempt can never be
// mistaken for the current one.
type Request struct {
	CorrelationID string                    `json:"correlationId"`
	WorkflowID    string                    `json:"workflowId"`
	SessionID     string                    `json:"sessionId"`
	NodeID        string                    `json:"nodeId"`
	NodeType      string                    `json:"nodeType"`
	Params        map[string]any            `json:"params,omitempty"`
	Config        map[string]map[string]any `json:"config,omitempty"`
	Inputs        map[string]any            `json:"inputs,omitempty"`
}

// Response is the execution service's answer to one Request.
type Response struct {
	CorrelationID string `json:"correlationId"`
	OK            bool   `json:"ok"`
	Value         any    `json:"value,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Conn is one exclusive bidirectional channel to the execution service. A
// Conn is held by at most one in-flight attempt at a time; exclusivity is
// enforced by the Pool, not by the Conn itself.
type Conn interface {
	// Call sends the request and blocks for the matching response.
	Call(ctx context.Context, req Request) (Response, error)
	Close() error
}

// DialFunc establishes a new Conn. The Pool dials lazily, on first use of a
// slot and again after a broken channel is discarded.
type DialFunc func(ctx context.Context) (Conn, error)
