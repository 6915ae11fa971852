package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/dvloznov/dompet/internal/agents"
	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/llm"
	"github.com/shopspring/decimal"
)

// MockBackend is a hand-written llm.Backend for tests.
type MockBackend struct {
	ChatFunc func(ctx context.Context, system, user string, opts llm.Options) (string, error)
	calls    []string
}

func (m *MockBackend) Chat(ctx context.Context, system, user string, opts llm.Options) (string, error) {
	m.calls = append(m.calls, user)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, system, user, opts)
	}
	return "ok", nil
}

func (m *MockBackend) HealthCheck(ctx context.Context) bool { return true }
func (m *MockBackend) Name() string                         { return "mock" }

func sampleTransactions() []domain.Transaction {
	return []domain.Transaction{
		{Date: "2024-05-03", Description: "GrabFood", Amount: decimal.RequireFromString("-42.75")},
		{Date: "2024-05-01", Description: "Salary", Amount: decimal.NewFromInt(5000)},
	}
}

func TestNew_EmptyTransactions(t *testing.T) {
	_, err := New(nil, "notes", "goals")
	if !errors.Is(err, ErrNoTransactions) {
		t.Errorf("New() error = %v, want ErrNoTransactions", err)
	}
}

func TestBuildContext(t *testing.T) {
	tests := []struct {
		name    string
		persona string
		goals   string
		want    string
	}{
		{
			name: "transactions only",
			want: "Latest 2 transactions:\ndate | description | amount\n" +
				"2024-05-03 | GrabFood | -RM42.75\n" +
				"2024-05-01 | Salary | RM5,000.00",
		},
		{
			name:    "with notes and goals",
			persona: "  Risk tolerance: balanced.  ",
			goals:   "Rumah deposit: RM0.00 of RM30,000.00",
			want: "Latest 2 transactions:\ndate | description | amount\n" +
				"2024-05-03 | GrabFood | -RM42.75\n" +
				"2024-05-01 | Salary | RM5,000.00\n\n" +
				"User behaviour notes: Risk tolerance: balanced.\n\n" +
				"Active goals: Rumah deposit: RM0.00 of RM30,000.00",
		},
		{
			name:  "goals without notes",
			goals: "Emergency fund",
			want: "Latest 2 transactions:\ndate | description | amount\n" +
				"2024-05-03 | GrabFood | -RM42.75\n" +
				"2024-05-01 | Salary | RM5,000.00\n\n" +
				"Active goals: Emergency fund",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(sampleTransactions(), tt.persona, tt.goals)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got := p.BuildContext()
			if got != tt.want {
				t.Errorf("BuildContext() =\n%s\nwant\n%s", got, tt.want)
			}
			if again := p.BuildContext(); again != got {
				t.Error("BuildContext() is not deterministic")
			}
		})
	}
}

func TestBuildContext_SameInputsSameText(t *testing.T) {
	a, _ := New(sampleTransactions(), "notes", "goals")
	b, _ := New(sampleTransactions(), "notes", "goals")
	if a.BuildContext() != b.BuildContext() {
		t.Error("contexts differ for identical inputs")
	}
}

func TestAgentPrompt(t *testing.T) {
	reg := agents.Default()
	goal, _ := reg.Get(agents.GoalArchitect)
	savings, _ := reg.Get(agents.SavingsPlanner)

	withAll, _ := New(sampleTransactions(), "likes automation", "Rumah deposit")
	bare, _ := New(sampleTransactions(), "", "")

	tests := []struct {
		name        string
		p           *Pipeline
		agent       agents.Agent
		wantNotes   bool
		wantGoalMsg bool
	}{
		{"goal architect with goals", withAll, goal, true, true},
		{"savings planner with goals", withAll, savings, true, false},
		{"goal architect without goals", bare, goal, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.p.AgentPrompt(tt.agent, "CTX")
			if !strings.HasPrefix(got, "CTX\n\nFocus task: "+tt.agent.Description) {
				t.Errorf("AgentPrompt() = %q", got)
			}
			if has := strings.Contains(got, "Remember the user prefers personalised coaching: likes automation"); has != tt.wantNotes {
				t.Errorf("reminder present = %v, want %v", has, tt.wantNotes)
			}
			if has := strings.HasSuffix(got, goalInstruction); has != tt.wantGoalMsg {
				t.Errorf("goal instruction present = %v, want %v", has, tt.wantGoalMsg)
			}
		})
	}
}

func TestRun_Order(t *testing.T) {
	backend := &MockBackend{
		ChatFunc: func(ctx context.Context, system, user string, opts llm.Options) (string, error) {
			if opts.MaxTokens != 256 {
				t.Errorf("MaxTokens = %d, want 256", opts.MaxTokens)
			}
			return "reply", nil
		},
	}
	p, _ := New(sampleTransactions(), "", "")

	var seen []string
	results, err := p.Run(context.Background(), backend, llm.Options{MaxTokens: 256}, p.BuildContext(), func(r AgentResult) error {
		seen = append(seen, r.AgentKey)
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := agents.Default().Keys()
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("callback order = %v, want %v", seen, want)
	}
	if len(results) != len(want) {
		t.Errorf("Run() returned %d results, want %d", len(results), len(want))
	}
	if len(backend.calls) != len(want) {
		t.Errorf("backend called %d times, want %d", len(backend.calls), len(want))
	}
}

func TestRun_FailFast(t *testing.T) {
	backend := &MockBackend{}
	backend.ChatFunc = func(ctx context.Context, system, user string, opts llm.Options) (string, error) {
		if len(backend.calls) == 3 {
			return "", fmt.Errorf("%w: connection refused", llm.ErrBackend)
		}
		return "reply", nil
	}
	p, _ := New(sampleTransactions(), "", "")

	results, err := p.Run(context.Background(), backend, llm.Options{}, p.BuildContext(), nil)
	if !errors.Is(err, llm.ErrBackend) {
		t.Fatalf("Run() error = %v, want ErrBackend", err)
	}
	if !strings.Contains(err.Error(), "pipeline step 3 failed") || !strings.Contains(err.Error(), agents.SavingsPlanner) {
		t.Errorf("Run() error = %q", err)
	}
	if len(results) != 2 {
		t.Errorf("Run() kept %d results, want 2", len(results))
	}
	if len(backend.calls) != 3 {
		t.Errorf("backend called %d times, want 3", len(backend.calls))
	}
}

func TestRun_CallbackErrorStops(t *testing.T) {
	backend := &MockBackend{}
	p, _ := New(sampleTransactions(), "", "")
	stop := errors.New("disk full")

	_, err := p.Run(context.Background(), backend, llm.Options{}, "ctx", func(AgentResult) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("Run() error = %v, want %v", err, stop)
	}
	if len(backend.calls) != 1 {
		t.Errorf("backend called %d times, want 1", len(backend.calls))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	backend := &MockBackend{}
	p, _ := New(sampleTransactions(), "", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx, backend, llm.Options{}, "ctx", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(backend.calls) != 0 {
		t.Errorf("backend called %d times, want 0", len(backend.calls))
	}
}

func TestWithRegistry(t *testing.T) {
	reg, err := agents.Default().WithOverrides(map[string]agents.Override{
		agents.ExpenseCategorizer: {Description: "Custom task"},
	})
	if err != nil {
		t.Fatalf("WithOverrides() error = %v", err)
	}
	backend := &MockBackend{}
	p, _ := New(sampleTransactions(), "", "", WithRegistry(reg))

	if _, err := p.Run(context.Background(), backend, llm.Options{}, "ctx", nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(backend.calls[0], "Focus task: Custom task") {
		t.Errorf("first prompt = %q", backend.calls[0])
	}
}
