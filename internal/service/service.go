// Package service wires the session store, the agent pipeline and the
// reasoning backend into the operations exposed over HTTP and the CLI.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/dompet/internal/agents"
	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/dvloznov/dompet/internal/llm"
	"github.com/dvloznov/dompet/internal/pipeline"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/dvloznov/dompet/internal/suggest"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultAnalyzeLimit is the number of recent transactions fed to a run.
	DefaultAnalyzeLimit = 30
	// DefaultHistoryLimit is the number of runs returned by History.
	DefaultHistoryLimit = 5

	recentOutcomeLimit = 5
)

// AnalysisRun is one pipeline execution with its extracted suggestions.
// Suggestions repeats every result's suggestions in creation order.
type AnalysisRun struct {
	RunID       string                     `json:"run_id"`
	UserID      string                     `json:"user_id"`
	RunAt       time.Time                  `json:"run_at"`
	Context     string                     `json:"context"`
	Results     []AgentOutput              `json:"results"`
	Suggestions []session.SuggestionRecord `json:"suggestions"`
}

// AgentOutput is one agent's reply with the suggestions extracted from it.
type AgentOutput struct {
	pipeline.AgentResult
	Suggestions []session.SuggestionRecord `json:"suggestions"`
}

// HealthStatus reports backend and store reachability.
type HealthStatus struct {
	Status  string `json:"status"`
	Backend bool   `json:"backend"`
	Store   bool   `json:"store"`
}

// Service runs analyses and records their outcomes.
type Service struct {
	store     session.Store
	backend   llm.Backend
	registry  *agents.Registry
	opts      llm.Options
	publisher jobs.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRegistry replaces the default agent registry.
func WithRegistry(r *agents.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithLLMOptions sets the sampling options sent with every agent call.
func WithLLMOptions(opts llm.Options) Option {
	return func(s *Service) { s.opts = opts }
}

// WithPublisher enables the export job published after each run.
func WithPublisher(p jobs.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the run timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service.
func New(store session.Store, backend llm.Backend, opts ...Option) *Service {
	s := &Service{
		store:    store,
		backend:  backend,
		registry: agents.Default(),
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying session store.
func (s *Service) Store() session.Store {
	return s.store
}

// Ingest stores txs for the user and returns how many were new.
func (s *Service) Ingest(ctx context.Context, userID, source string, txs []domain.Transaction) (int, error) {
	if source == "" {
		source = "api"
	}
	n, err := s.store.AddTransactions(ctx, userID, txs, source)
	if err != nil {
		return 0, fmt.Errorf("Ingest: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("source", source).
		Int("received", len(txs)).Int("ingested", n).Msg("Transactions ingested")
	return n, nil
}

// Analyze runs every agent over the user's latest transactions. Each result
// is committed as soon as it arrives, so a backend failure part way through
// leaves the earlier records in place.
func (s *Service) Analyze(ctx context.Context, userID string, limit int) (*AnalysisRun, error) {
	if limit <= 0 {
		limit = DefaultAnalyzeLimit
	}

	txs, err := s.store.FetchRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Analyze: fetch transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("Analyze: %w", pipeline.ErrNoTransactions)
	}

	persona, err := s.personaNotes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Analyze: %w", err)
	}
	goals, err := s.goalContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Analyze: %w", err)
	}

	p, err := pipeline.New(txs, persona, goals, pipeline.WithRegistry(s.registry))
	if err != nil {
		return nil, fmt.Errorf("Analyze: %w", err)
	}

	run := &AnalysisRun{
		RunID:       uuid.NewString(),
		UserID:      userID,
		RunAt:       s.now().UTC(),
		Context:     p.BuildContext(),
		Results:     []AgentOutput{},
		Suggestions: []session.SuggestionRecord{},
	}
	log := s.log.With().Str("user_id", userID).Str("run_id", run.RunID).Logger()
	log.Info().Int("transactions", len(txs)).Msg("Starting analysis run")

	_, err = p.Run(ctx, s.backend, s.opts, run.Context, func(res pipeline.AgentResult) error {
		return s.recordResult(ctx, run, res)
	})
	if err != nil {
		log.Error().Err(err).Int("completed", len(run.Results)).Msg("Analysis run failed")
		return nil, fmt.Errorf("Analyze: %w", err)
	}

	log.Info().Int("suggestions", len(run.Suggestions)).Msg("Analysis run completed")
	s.publishExport(ctx, run)
	return run, nil
}

func (s *Service) recordResult(ctx context.Context, run *AnalysisRun, res pipeline.AgentResult) error {
	err := s.store.RecordAnalysis(ctx, session.AnalysisRecord{
		RunID:    run.RunID,
		UserID:   run.UserID,
		AgentKey: res.AgentKey,
		Content:  res.Content,
		Context:  run.Context,
		RunAt:    run.RunAt,
	})
	if err != nil {
		return err
	}
	out := AgentOutput{AgentResult: res, Suggestions: []session.SuggestionRecord{}}

	if suggestionType, ok := agents.SuggestionType(res.AgentKey); ok {
		recs, err := s.store.RecordSuggestions(ctx, run.UserID, run.RunID, res.AgentKey, suggestionType, suggest.Extract(res.Content))
		if err != nil {
			return err
		}
		out.Suggestions = append(out.Suggestions, recs...)
		run.Suggestions = append(run.Suggestions, recs...)
	}
	run.Results = append(run.Results, out)
	return nil
}

func (s *Service) publishExport(ctx context.Context, run *AnalysisRun) {
	if s.publisher == nil {
		return
	}
	job := &jobs.ExportRunJob{UserID: run.UserID, RunID: run.RunID}
	if err := s.publisher.PublishExportRun(ctx, job); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to enqueue run export")
		return
	}
	s.log.Debug().Str("job_id", job.JobID).Str("run_id", run.RunID).Msg("Run export enqueued")
}

// personaNotes summarises the profile and recent outcomes for the prompt.
func (s *Service) personaNotes(ctx context.Context, userID string) (string, error) {
	profile, err := s.store.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}

	notes := []string{
		"Risk tolerance: " + profile.RiskTolerance,
		"Response style: " + profile.ResponseStyle,
	}
	if strings.TrimSpace(profile.SuccessNotes) != "" {
		notes = append(notes, "Success notes: "+strings.TrimSpace(profile.SuccessNotes))
	}

	outcomes, err := s.store.RecentOutcomes(ctx, userID, recentOutcomeLimit)
	if err != nil {
		return "", fmt.Errorf("load outcomes: %w", err)
	}
	var acted, failed []string
	for _, o := range outcomes {
		switch o.LatestOutcome {
		case session.OutcomeActed:
			acted = append(acted, o.Suggestion)
		case session.OutcomeFailed:
			failed = append(failed, o.Suggestion)
		}
	}
	if len(acted) > 0 {
		notes = append(notes, "Recently acted on: "+strings.Join(acted, "; "))
	}
	if len(failed) > 0 {
		notes = append(notes, "Struggled with: "+strings.Join(failed, "; "))
	}
	return strings.Join(notes, ". "), nil
}

// goalContext lists active goals with their progress.
func (s *Service) goalContext(ctx context.Context, userID string) (string, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load goals: %w", err)
	}

	var parts []string
	for _, g := range goals {
		if g.Status != session.GoalActive {
			continue
		}
		line := fmt.Sprintf("%s: RM%s of RM%s", g.Name, domain.FormatRM(g.CurrentProgress), domain.FormatRM(g.TargetAmount))
		if g.TargetDate != "" {
			line += " by " + g.TargetDate
		}
		if g.Notes != "" {
			line += " (" + g.Notes + ")"
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "; "), nil
}

// Latest returns the user's most recent run.
func (s *Service) Latest(ctx context.Context, userID string) (*AnalysisRun, error) {
	recs, err := s.store.LatestAnalysis(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("Latest: no analyses recorded: %w", session.ErrNotFound)
	}
	run, err := s.assemble(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	return run, nil
}

// Run returns one run by id.
func (s *Service) Run(ctx context.Context, userID, runID string) (*AnalysisRun, error) {
	recs, err := s.store.GetRun(ctx, userID, runID)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("Run: run %s: %w", runID, session.ErrNotFound)
	}
	run, err := s.assemble(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}
	return run, nil
}

// History returns up to limit runs, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	history, err := s.store.AnalysisHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}

	runs := make([]*AnalysisRun, 0, len(history))
	for _, recs := range history {
		run, err := s.assemble(ctx, recs)
		if err != nil {
			return nil, fmt.Errorf("History: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *Service) assemble(ctx context.Context, recs []session.AnalysisRecord) (*AnalysisRun, error) {
	first := recs[0]
	run := &AnalysisRun{
		RunID:   first.RunID,
		UserID:  first.UserID,
		RunAt:   first.RunAt,
		Context: first.Context,
		Results: make([]AgentOutput, 0, len(recs)),
	}

	suggestions, err := s.store.GetSuggestionsForRun(ctx, first.UserID, first.RunID)
	if err != nil {
		return nil, fmt.Errorf("load suggestions: %w", err)
	}
	byAgent := make(map[string][]session.SuggestionRecord, len(recs))
	for _, sug := range suggestions {
		byAgent[sug.AgentKey] = append(byAgent[sug.AgentKey], sug)
	}

	for _, r := range recs {
		out := AgentOutput{
			AgentResult: pipeline.AgentResult{AgentKey: r.AgentKey, Content: r.Content},
			Suggestions: []session.SuggestionRecord{},
		}
		out.Suggestions = append(out.Suggestions, byAgent[r.AgentKey]...)
		run.Results = append(run.Results, out)
	}
	run.Suggestions = append([]session.SuggestionRecord{}, suggestions...)
	return run, nil
}

// RecordOutcome records a decision on one of the user's suggestions and
// returns the refreshed impact snapshot.
func (s *Service) RecordOutcome(ctx context.Context, userID string, suggestionID int64, in session.OutcomeInput) (*session.ImpactSnapshot, error) {
	if _, err := s.store.RecordSuggestionOutcome(ctx, suggestionID, userID, in); err != nil {
		return nil, fmt.Errorf("RecordOutcome: %w", err)
	}
	s.log.Info().Str("user_id", userID).Int64("suggestion_id", suggestionID).
		Str("outcome", in.Status).Msg("Suggestion outcome recorded")

	snap, err := s.store.GetImpactSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("RecordOutcome: %w", err)
	}
	return snap, nil
}

// Health checks the backend and the store.
func (s *Service) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{
		Backend: s.backend != nil && s.backend.HealthCheck(ctx),
		Store:   s.store.Ping(ctx) == nil,
	}
	h.Status = "ok"
	if !h.Backend || !h.Store {
		h.Status = "degraded"
	}
	return h
}
