package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/gridflow/gridflow/internal/activity"
)

// Agent runs an AI-agent node in process against an llms.Model. The node's
// "prompt" parameter is the instruction; predecessor outputs are appended as
// context, keyed by the node that produced them. Model settings folded in
// from a config node are picked up from the "model" bucket.
type Agent struct {
	model llms.Model
}

// NewAgent creates an agent runner on the given model.
func NewAgent(model llms.Model) *Agent {
	return &Agent{model: model}
}

func (a *Agent) Run(ctx context.Context, ec activity.ExecutionContext, _ activity.Attempt) (any, error) {
	prompt, _ := ec.Params["prompt"].(string)
	if prompt == "" {
		return nil, &activity.DomainError{NodeID: ec.NodeID, Reason: "agent node has no prompt parameter"}
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	if len(ec.Inputs) > 0 {
		sb.WriteString("\n\nContext:\n")
		keys := make([]string, 0, len(ec.Inputs))
		for k := range ec.Inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %v\n", k, ec.Inputs[k])
		}
	}

	var opts []llms.CallOption
	if model, ok := ec.Config["model"]; ok {
		if t, ok := model["temperature"].(float64); ok {
			opts = append(opts, llms.WithTemperature(t))
		}
		if m, ok := model["maxTokens"].(float64); ok {
			opts = append(opts, llms.WithMaxTokens(int(m)))
		}
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, a.model, sb.String(), opts...)
	if err != nil {
		return nil, &activity.TransportError{NodeID: ec.NodeID, Err: err}
	}
	return text, nil
}
