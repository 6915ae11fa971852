// Package pipeline composes the shared prompt context for a run and drives
// each registered agent against a reasoning backend in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/dompet/internal/agents"
	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/llm"
)

// ErrNoTransactions is returned when a pipeline is built with no input.
var ErrNoTransactions = errors.New("no transactions available for analysis")

const goalInstruction = "Incorporate the stated goals directly in your plan."

// AgentResult is one agent's reply within a run.
type AgentResult struct {
	AgentKey string `json:"agent_key"`
	Content  string `json:"content"`
}

// Pipeline holds the inputs of a single run.
type Pipeline struct {
	transactions []domain.Transaction
	personaNotes string
	goalContext  string
	registry     *agents.Registry
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithRegistry replaces the default agent registry.
func WithRegistry(r *agents.Registry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

// New validates the inputs. Transactions are rendered in the order given,
// which callers keep most recent first.
func New(txs []domain.Transaction, personaNotes, goalContext string, opts ...Option) (*Pipeline, error) {
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	p := &Pipeline{
		transactions: append([]domain.Transaction(nil), txs...),
		personaNotes: strings.TrimSpace(personaNotes),
		goalContext:  strings.TrimSpace(goalContext),
		registry:     agents.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Transactions returns the rows the context is built from.
func (p *Pipeline) Transactions() []domain.Transaction {
	return append([]domain.Transaction(nil), p.transactions...)
}

// BuildContext renders the transaction table and, when present, the
// behaviour notes and goals blocks. The output depends only on the inputs.
func (p *Pipeline) BuildContext() string {
	var rows strings.Builder
	for i, tx := range p.transactions {
		if i > 0 {
			rows.WriteByte('\n')
		}
		rows.WriteString(tx.PromptRow())
	}

	blocks := []string{
		fmt.Sprintf("Latest %d transactions:\ndate | description | amount\n%s", len(p.transactions), rows.String()),
	}
	if p.personaNotes != "" {
		blocks = append(blocks, "User behaviour notes: "+p.personaNotes)
	}
	if p.goalContext != "" {
		blocks = append(blocks, "Active goals: "+p.goalContext)
	}
	return strings.Join(blocks, "\n\n")
}

// AgentPrompt builds the user prompt sent to one agent.
func (p *Pipeline) AgentPrompt(agent agents.Agent, promptContext string) string {
	parts := []string{promptContext, "Focus task: " + agent.Description}
	if p.personaNotes != "" {
		parts = append(parts, "Remember the user prefers personalised coaching: "+p.personaNotes)
	}
	if agent.Key == agents.GoalArchitect && p.goalContext != "" {
		parts = append(parts, goalInstruction)
	}
	return strings.Join(parts, "\n\n")
}

// Steps returns one AgentStep per registered agent, in registry order.
func (p *Pipeline) Steps(backend llm.Backend, opts llm.Options) []PipelineStep {
	all := p.registry.All()
	steps := make([]PipelineStep, 0, len(all))
	for _, a := range all {
		steps = append(steps, &AgentStep{Agent: a, Backend: backend, Options: opts, prompt: p.AgentPrompt})
	}
	return steps
}

// Run drives every agent against backend using promptContext. fn, when not
// nil, sees each result as soon as it arrives; an error from fn or the
// backend stops the run. Results gathered before the failure are returned
// alongside the error.
func (p *Pipeline) Run(ctx context.Context, backend llm.Backend, opts llm.Options, promptContext string, fn func(AgentResult) error) ([]AgentResult, error) {
	state := &PipelineState{Context: promptContext, OnResult: fn}
	err := Execute(ctx, state, p.Steps(backend, opts)...)
	return state.Results, err
}
