// Package agents holds the fixed, ordered set of reasoning tasks run for
// every analysis.
package agents

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Agent keys in execution order.
const (
	ExpenseCategorizer = "ExpenseCategorizer"
	CashflowAnalyzer   = "CashflowAnalyzer"
	SavingsPlanner     = "SavingsPlanner"
	BudgetAuditor      = "BudgetAuditor"
	GoalArchitect      = "GoalArchitect"
)

// Suggestion types recorded for suggestion-producing agents.
const (
	SuggestionSavingsTip    = "savings_tip"
	SuggestionSpendingAlert = "spending_alert"
	SuggestionGoalPlan      = "goal_plan"
)

var suggestionTypes = map[string]string{
	SavingsPlanner: SuggestionSavingsTip,
	BudgetAuditor:  SuggestionSpendingAlert,
	GoalArchitect:  SuggestionGoalPlan,
}

// SuggestionType reports the suggestion category for an agent, or false when
// the agent's output is stored as analysis only.
func SuggestionType(agentKey string) (string, bool) {
	t, ok := suggestionTypes[agentKey]
	return t, ok
}

// Agent is one named reasoning task.
type Agent struct {
	Key          string
	Description  string
	SystemPrompt string
}

// Registry is an immutable ordered list of agents.
type Registry struct {
	agents []Agent
}

// Default returns the standard five-agent registry.
func Default() *Registry {
	return &Registry{agents: []Agent{
		{
			Key:          ExpenseCategorizer,
			Description:  "Sorts transactions into Food, Transport, Bills, Investment, or Others.",
			SystemPrompt: withContext(categorizerPrompt),
		},
		{
			Key:          CashflowAnalyzer,
			Description:  "Detects cash surplus/deficit and highlights trends.",
			SystemPrompt: withContext(cashflowPrompt),
		},
		{
			Key:          SavingsPlanner,
			Description:  "Projects savings ideas based on current cash flow.",
			SystemPrompt: withContext(savingsPrompt),
		},
		{
			Key:          BudgetAuditor,
			Description:  "Flags irregular or high spending patterns.",
			SystemPrompt: withContext(auditorPrompt),
		},
		{
			Key:          GoalArchitect,
			Description:  "Designs step-by-step plans for Malaysian financial goals.",
			SystemPrompt: withContext(goalPrompt),
		},
	}}
}

func withContext(prompt string) string {
	return malaysianContext + "\n\n" + prompt
}

// All returns a copy of the agents in execution order.
func (r *Registry) All() []Agent {
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Keys returns agent keys in execution order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.agents))
	for i, a := range r.agents {
		keys[i] = a.Key
	}
	return keys
}

// Get looks up an agent by key.
func (r *Registry) Get(key string) (Agent, bool) {
	for _, a := range r.agents {
		if a.Key == key {
			return a, true
		}
	}
	return Agent{}, false
}

// Override replaces the wording of one agent. Empty fields keep the current text.
type Override struct {
	Description  string `yaml:"description"`
	SystemPrompt string `yaml:"system_prompt"`
}

type overrideFile struct {
	Agents map[string]Override `yaml:"agents"`
}

// LoadOverrides parses a YAML document of the form
//
//	agents:
//	  SavingsPlanner:
//	    description: ...
//	    system_prompt: ...
func LoadOverrides(r io.Reader) (map[string]Override, error) {
	var f overrideFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return map[string]Override{}, nil
		}
		return nil, fmt.Errorf("LoadOverrides: decode: %w", err)
	}
	return f.Agents, nil
}

// WithOverrides returns a new registry with prompt text replaced. Keys not in
// the registry are rejected; order is unchanged. Overridden system prompts
// still get the Malaysian context block.
func (r *Registry) WithOverrides(overrides map[string]Override) (*Registry, error) {
	for key := range overrides {
		if _, ok := r.Get(key); !ok {
			return nil, fmt.Errorf("WithOverrides: unknown agent %q", key)
		}
	}

	out := r.All()
	for i, a := range out {
		o, ok := overrides[a.Key]
		if !ok {
			continue
		}
		if o.Description != "" {
			out[i].Description = o.Description
		}
		if o.SystemPrompt != "" {
			out[i].SystemPrompt = withContext(o.SystemPrompt)
		}
	}
	return &Registry{agents: out}, nil
}

// FromFile returns the default registry with overrides read from path.
// An empty path yields Default().
func FromFile(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("FromFile: %w", err)
	}
	defer f.Close()

	overrides, err := LoadOverrides(f)
	if err != nil {
		return nil, fmt.Errorf("FromFile: %s: %w", path, err)
	}
	return Default().WithOverrides(overrides)
}
