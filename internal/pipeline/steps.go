package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/dompet/internal/agents"
	"github.com/dvloznov/dompet/internal/llm"
)

// PipelineStep represents a single step in an analysis run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Context  string
	Results  []AgentResult
	OnResult func(AgentResult) error
}

// Execute runs steps sequentially and stops at the first failure.
func Execute(ctx context.Context, state *PipelineState, steps ...PipelineStep) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// AgentStep asks the backend for one agent's reply.
type AgentStep struct {
	Agent   agents.Agent
	Backend llm.Backend
	Options llm.Options

	prompt func(agents.Agent, string) string
}

func (s *AgentStep) Execute(ctx context.Context, state *PipelineState) error {
	user := state.Context
	if s.prompt != nil {
		user = s.prompt(s.Agent, state.Context)
	}

	text, err := s.Backend.Chat(ctx, s.Agent.SystemPrompt, user, s.Options)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Agent.Key, err)
	}

	result := AgentResult{AgentKey: s.Agent.Key, Content: text}
	state.Results = append(state.Results, result)
	if state.OnResult != nil {
		if err := state.OnResult(result); err != nil {
			return fmt.Errorf("%s: handle result: %w", s.Agent.Key, err)
		}
	}
	return nil
}
