// Command fanout runs a diamond-shaped workflow against an in-process fake
// execution service and prints the final output set.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gridflow/gridflow/internal/transport"
	"github.com/gridflow/gridflow/internal/workflow"
	"github.com/gridflow/gridflow/pkg/engine"
)

// echoConn pretends to be the remote execution service.
type echoConn struct{}

func (echoConn) Call(_ context.Context, req transport.Request) (transport.Response, error) {
	time.Sleep(25 * time.Millisecond)
	return transport.Response{
		CorrelationID: req.CorrelationID,
		OK:            true,
		Value:         fmt.Sprintf("%s executed with %d inputs", req.NodeID, len(req.Inputs)),
	}, nil
}

func (echoConn) Close() error { return nil }

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	eng, err := engine.New(engine.Config{
		Dial:     func(context.Context) (transport.Conn, error) { return echoConn{}, nil },
		PoolSize: 2,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("creating engine: %v", err)
	}
	defer eng.Close()

	wf := &workflow.Workflow{
		ID: "fanout-demo",
		Nodes: []workflow.Node{
			{ID: "trigger", Type: "trigger"},
			{ID: "fetch-users", Type: "http", Params: map[string]any{"url": "https://example.com/users"}},
			{ID: "fetch-orders", Type: "http", Params: map[string]any{"url": "https://example.com/orders"}},
			{ID: "wait", Type: "delay", Params: map[string]any{"durationMs": 50.0}},
			{ID: "join", Type: "http", Params: map[string]any{"url": "https://example.com/report"}},
		},
		Edges: []workflow.Edge{
			{Source: "trigger", Target: "fetch-users"},
			{Source: "trigger", Target: "fetch-orders"},
			{Source: "trigger", Target: "wait"},
			{Source: "fetch-users", Target: "join"},
			{Source: "fetch-orders", Target: "join"},
			{Source: "wait", Target: "join"},
		},
	}

	outputs, err := eng.Execute(context.Background(), wf, engine.Trigger{
		Seed: map[string]any{"trigger": map[string]any{"event": "manual"}},
	})
	if err != nil {
		log.Fatalf("workflow failed: %v", err)
	}

	fmt.Println("workflow completed:")
	for id, out := range outputs {
		fmt.Printf("  %s: %v\n", id, out)
	}
}
