package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/dompet/internal/agents"
	bq "github.com/dvloznov/dompet/internal/bigquery"
	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/infra/sqlite"
	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/dvloznov/dompet/internal/llm"
	"github.com/dvloznov/dompet/internal/pipeline"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockBackend is a mock implementation of llm.Backend for testing.
type MockBackend struct {
	ChatFunc        func(ctx context.Context, system, user string, opts llm.Options) (string, error)
	HealthCheckFunc func(ctx context.Context) bool

	mu    sync.Mutex
	users []string
}

func (m *MockBackend) Chat(ctx context.Context, system, user string, opts llm.Options) (string, error) {
	m.mu.Lock()
	m.users = append(m.users, user)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, system, user, opts)
	}
	return "- Pack lunch twice a week\n- Cancel unused streaming plan", nil
}

func (m *MockBackend) HealthCheck(ctx context.Context) bool {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return true
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.users...)
}

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.ExportRunJob) error
	published   []*jobs.ExportRunJob
}

func (m *MockPublisher) PublishExportRun(ctx context.Context, job *jobs.ExportRunJob) error {
	m.published = append(m.published, job)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, job)
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

type MockExporter struct {
	ExportRunFunc func(ctx context.Context, run *bq.RunExport) error
}

func (m *MockExporter) ExportRun(ctx context.Context, run *bq.RunExport) error {
	return m.ExportRunFunc(ctx, run)
}

type MockMirror struct {
	MirrorFunc func(ctx context.Context, userID string, records []session.SuggestionRecord) error
}

func (m *MockMirror) MirrorSuggestions(ctx context.Context, userID string, records []session.SuggestionRecord) error {
	return m.MirrorFunc(ctx, userID, records)
}

func newTestService(t *testing.T, backend llm.Backend, opts ...Option) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "dompet.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, backend, opts...), store
}

func seed(t *testing.T, svc *Service, userID string) {
	t.Helper()
	n, err := svc.Ingest(context.Background(), userID, "test", []domain.Transaction{
		{Date: "2024-05-01", Description: "Salary", Amount: decimal.NewFromInt(5000)},
		{Date: "2024-05-03", Description: "GrabFood", Amount: decimal.RequireFromString("-42.75")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAnalyze_NoTransactions(t *testing.T) {
	svc, _ := newTestService(t, &MockBackend{})

	_, err := svc.Analyze(context.Background(), "u1", 0)
	assert.ErrorIs(t, err, pipeline.ErrNoTransactions)
}

func TestAnalyze_PersistsRunAndSuggestions(t *testing.T) {
	pub := &MockPublisher{}
	fixed := time.Date(2024, 5, 4, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, &MockBackend{}, WithPublisher(pub), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	seed(t, svc, "u1")

	run, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)

	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, fixed, run.RunAt)
	assert.True(t, strings.HasPrefix(run.Context, "Latest 2 transactions:\ndate | description | amount\n2024-05-03 | GrabFood | -RM42.75"))

	var keys []string
	for _, r := range run.Results {
		keys = append(keys, r.AgentKey)
	}
	assert.Equal(t, agents.Default().Keys(), keys)

	// Three suggestion-producing agents, two bullets each.
	require.Len(t, run.Suggestions, 6)
	assert.Equal(t, agents.SuggestionSavingsTip, run.Suggestions[0].SuggestionType)
	assert.Equal(t, "Pack lunch twice a week", run.Suggestions[0].Suggestion)
	assert.Equal(t, session.OutcomeNone, run.Suggestions[0].LatestOutcome)

	latest, err := svc.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, run.RunID, latest.RunID)
	assert.Equal(t, run.Context, latest.Context)
	assert.Len(t, latest.Results, 5)
	assert.Len(t, latest.Suggestions, 6)
	assertGroupedByAgent(t, run)
	assertGroupedByAgent(t, latest)

	require.Len(t, pub.published, 1)
	assert.Equal(t, run.RunID, pub.published[0].RunID)
	assert.Equal(t, "u1", pub.published[0].UserID)
}

func TestAnalyze_PersonaAndGoalsReachPrompts(t *testing.T) {
	backend := &MockBackend{}
	svc, store := newTestService(t, backend)
	ctx := context.Background()
	seed(t, svc, "u1")

	notes := "Automated savings worked well"
	_, err := store.UpdateProfile(ctx, "u1", session.ProfileUpdate{SuccessNotes: &notes})
	require.NoError(t, err)

	progress := decimal.NewFromInt(1000)
	_, err = store.UpsertGoal(ctx, "u1", session.GoalInput{
		Name:            "Emergency fund",
		TargetAmount:    decimal.NewFromInt(10000),
		TargetDate:      "2025-12-31",
		CurrentProgress: &progress,
	})
	require.NoError(t, err)
	abandoned := session.GoalAbandoned
	_, err = store.UpsertGoal(ctx, "u1", session.GoalInput{Name: "Car", TargetAmount: decimal.NewFromInt(50000), Status: &abandoned})
	require.NoError(t, err)

	run, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)

	assert.Contains(t, run.Context, "User behaviour notes: Risk tolerance: balanced. Response style: supportive. Success notes: Automated savings worked well")
	assert.Contains(t, run.Context, "Active goals: Emergency fund: RM1,000.00 of RM10,000.00 by 2025-12-31")
	assert.NotContains(t, run.Context, "Car")

	prompts := backend.prompts()
	require.Len(t, prompts, 5)
	assert.Contains(t, prompts[0], "Remember the user prefers personalised coaching: Risk tolerance: balanced")
	assert.NotContains(t, prompts[0], "Incorporate the stated goals")
	assert.Contains(t, prompts[4], "Incorporate the stated goals directly in your plan.")
}

func TestAnalyze_BackendFailureKeepsEarlierRecords(t *testing.T) {
	calls := 0
	backend := &MockBackend{
		ChatFunc: func(ctx context.Context, system, user string, opts llm.Options) (string, error) {
			calls++
			if calls == 3 {
				return "", fmt.Errorf("%w: mock: chat: connection refused", llm.ErrBackend)
			}
			return "fine", nil
		},
	}
	pub := &MockPublisher{}
	svc, _ := newTestService(t, backend, WithPublisher(pub))
	ctx := context.Background()
	seed(t, svc, "u1")

	_, err := svc.Analyze(ctx, "u1", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBackend)
	assert.Equal(t, 3, calls)
	assert.Empty(t, pub.published)

	latest, err := svc.Latest(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, latest.Results, 2)
	assert.Equal(t, agents.CashflowAnalyzer, latest.Results[0].AgentKey)
	assert.Equal(t, agents.ExpenseCategorizer, latest.Results[1].AgentKey)
}

func assertGroupedByAgent(t *testing.T, run *AnalysisRun) {
	t.Helper()
	for _, res := range run.Results {
		if _, ok := agents.SuggestionType(res.AgentKey); !ok {
			assert.NotNil(t, res.Suggestions, res.AgentKey)
			assert.Empty(t, res.Suggestions, res.AgentKey)
			continue
		}
		require.Len(t, res.Suggestions, 2, res.AgentKey)
		for _, sug := range res.Suggestions {
			assert.Equal(t, res.AgentKey, sug.AgentKey)
		}
	}
}

func TestAnalyze_PublishFailureDoesNotFailRun(t *testing.T) {
	pub := &MockPublisher{PublishFunc: func(ctx context.Context, job *jobs.ExportRunJob) error {
		return errors.New("queue is closed")
	}}
	svc, _ := newTestService(t, &MockBackend{}, WithPublisher(pub))
	seed(t, svc, "u1")

	_, err := svc.Analyze(context.Background(), "u1", 0)
	assert.NoError(t, err)
}

func TestRecordOutcome(t *testing.T) {
	backend := &MockBackend{}
	svc, _ := newTestService(t, backend)
	ctx := context.Background()
	seed(t, svc, "u1")

	run, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)
	first := run.Suggestions[0]

	impact := decimal.NewFromInt(150)
	snap, err := svc.RecordOutcome(ctx, "u1", first.ID, session.OutcomeInput{Status: session.OutcomeActed, Impact: &impact})
	require.NoError(t, err)
	assert.Equal(t, 6, snap.TotalSuggestions)
	assert.Equal(t, 1, snap.ActedUpon)
	assert.True(t, snap.EstimatedSavings.Equal(impact))
	assert.NotNil(t, snap.LastActionAt)

	_, err = svc.RecordOutcome(ctx, "u2", first.ID, session.OutcomeInput{Status: session.OutcomeIgnored})
	assert.ErrorIs(t, err, session.ErrForbidden)

	_, err = svc.RecordOutcome(ctx, "u1", 9999, session.OutcomeInput{Status: session.OutcomeIgnored})
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = svc.RecordOutcome(ctx, "u1", first.ID, session.OutcomeInput{Status: "maybe"})
	assert.ErrorIs(t, err, session.ErrInvalidInput)

	// The acted suggestion feeds the next run's behaviour notes.
	next, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Contains(t, next.Context, "Recently acted on: Pack lunch twice a week")
}

func TestLatest_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &MockBackend{})

	_, err := svc.Latest(context.Background(), "nobody")
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = svc.Run(context.Background(), "nobody", "run-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestHistory(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 5, 4, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 5, 8, 0, 0, 0, time.UTC),
	}
	i := 0
	clock := func() time.Time {
		t := times[i]
		i++
		return t
	}
	svc, _ := newTestService(t, &MockBackend{}, WithClock(clock))
	ctx := context.Background()
	seed(t, svc, "u1")

	first, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)
	second, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)

	runs, err := svc.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, first.RunID, runs[1].RunID)
	assert.Len(t, runs[1].Suggestions, 6)
}

func TestHealth(t *testing.T) {
	up := true
	backend := &MockBackend{HealthCheckFunc: func(ctx context.Context) bool { return up }}
	svc, _ := newTestService(t, backend)

	assert.Equal(t, HealthStatus{Status: "ok", Backend: true, Store: true}, svc.Health(context.Background()))

	up = false
	assert.Equal(t, HealthStatus{Status: "degraded", Backend: false, Store: true}, svc.Health(context.Background()))
}

func TestExportHandler(t *testing.T) {
	svc, _ := newTestService(t, &MockBackend{})
	ctx := context.Background()
	seed(t, svc, "u1")
	run, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)

	var exported *bq.RunExport
	var mirrored []session.SuggestionRecord
	exporter := &MockExporter{ExportRunFunc: func(ctx context.Context, r *bq.RunExport) error {
		exported = r
		return nil
	}}
	mirror := &MockMirror{MirrorFunc: func(ctx context.Context, userID string, recs []session.SuggestionRecord) error {
		assert.Equal(t, "u1", userID)
		mirrored = recs
		return nil
	}}

	handler := svc.ExportHandler(exporter, mirror)
	require.NoError(t, handler(ctx, &jobs.ExportRunJob{JobID: "j1", UserID: "u1", RunID: run.RunID}))

	require.NotNil(t, exported)
	assert.Equal(t, run.RunID, exported.RunID)
	assert.Len(t, exported.Analyses, 5)
	assert.Len(t, exported.Suggestions, 6)
	assert.Len(t, mirrored, 6)

	err = handler(ctx, &jobs.ExportRunJob{JobID: "j2", UserID: "u1", RunID: "missing"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestExportHandler_ExporterErrorIsRetryable(t *testing.T) {
	svc, _ := newTestService(t, &MockBackend{})
	ctx := context.Background()
	seed(t, svc, "u1")
	run, err := svc.Analyze(ctx, "u1", 0)
	require.NoError(t, err)

	boom := errors.New("quota exceeded")
	exporter := &MockExporter{ExportRunFunc: func(ctx context.Context, r *bq.RunExport) error { return boom }}

	err = svc.ExportHandler(exporter, nil)(ctx, &jobs.ExportRunJob{UserID: "u1", RunID: run.RunID})
	assert.ErrorIs(t, err, boom)
}

type otherJob struct{}

func (otherJob) GetID() string             { return "x" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestExportHandler_UnexpectedJobType(t *testing.T) {
	svc, _ := newTestService(t, &MockBackend{})
	err := svc.ExportHandler(nil, nil)(context.Background(), otherJob{})
	assert.Error(t, err)
}
