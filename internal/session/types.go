// Package session defines the durable per-user state kept between runs:
// transactions, profile, goals, analyses and suggestion outcomes.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/dompet/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned for unknown suggestions and missing analyses.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a record belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned for invalid goals, outcomes and profile updates.
	ErrInvalidInput = errors.New("invalid input")
)

// Profile defaults applied on first access.
const (
	DefaultRiskTolerance = "balanced"
	DefaultResponseStyle = "supportive"
)

// Goal statuses.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalAbandoned = "abandoned"
)

// Outcome statuses. OutcomeNone marks a suggestion with no recorded decision.
const (
	OutcomeActed   = "acted"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
	OutcomeNone    = "none"
)

// ValidGoalStatus reports whether s is a known goal status.
func ValidGoalStatus(s string) bool {
	switch s {
	case GoalActive, GoalCompleted, GoalAbandoned:
		return true
	}
	return false
}

// ValidOutcomeStatus reports whether s can be recorded as an outcome.
func ValidOutcomeStatus(s string) bool {
	switch s {
	case OutcomeActed, OutcomeIgnored, OutcomeFailed:
		return true
	}
	return false
}

// SuccessMetrics are counters kept on the profile as outcomes are recorded.
type SuccessMetrics struct {
	Acted            int             `json:"acted"`
	Ignored          int             `json:"ignored"`
	Failed           int             `json:"failed"`
	EstimatedSavings decimal.Decimal `json:"estimated_savings"`
}

// UserProfile is the behavioural profile of one user.
type UserProfile struct {
	UserID         string         `json:"user_id"`
	RiskTolerance  string         `json:"risk_tolerance"`
	ResponseStyle  string         `json:"response_style"`
	SuccessNotes   string         `json:"success_notes"`
	SuccessMetrics SuccessMetrics `json:"success_metrics"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	RiskTolerance *string
	ResponseStyle *string
	SuccessNotes  *string
}

// Goal is a savings target.
type Goal struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	TargetDate      string          `json:"target_date,omitempty"`
	CurrentProgress decimal.Decimal `json:"current_progress"`
	Notes           string          `json:"notes"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// GoalInput creates or updates a goal keyed by name. Nil optional fields keep
// their stored value on update.
type GoalInput struct {
	Name            string
	TargetAmount    decimal.Decimal
	TargetDate      string
	Notes           string
	CurrentProgress *decimal.Decimal
	Status          *string
}

// AnalysisRecord is one agent's output within a run.
type AnalysisRecord struct {
	RunID    string    `json:"run_id"`
	UserID   string    `json:"user_id"`
	AgentKey string    `json:"agent_key"`
	Content  string    `json:"content"`
	Context  string    `json:"context"`
	RunAt    time.Time `json:"run_at"`
}

// SuggestionRecord is one extracted suggestion and its latest outcome.
type SuggestionRecord struct {
	ID             int64            `json:"id"`
	UserID         string           `json:"user_id"`
	RunID          string           `json:"run_id"`
	AgentKey       string           `json:"agent_key"`
	SuggestionType string           `json:"suggestion_type"`
	Suggestion     string           `json:"suggestion"`
	CreatedAt      time.Time        `json:"created_at"`
	LatestOutcome  string           `json:"latest_outcome"`
	LatestImpact   *decimal.Decimal `json:"latest_impact,omitempty"`
	OutcomeNotes   string           `json:"outcome_notes,omitempty"`
	OutcomeAt      *time.Time       `json:"outcome_at,omitempty"`
}

// OutcomeInput records a decision on a suggestion.
type OutcomeInput struct {
	Status string
	Impact *decimal.Decimal
	Notes  string
}

// OutcomeEvent is one entry in a suggestion's outcome log.
type OutcomeEvent struct {
	ID           int64            `json:"id"`
	SuggestionID int64            `json:"suggestion_id"`
	Status       string           `json:"outcome_status"`
	Impact       *decimal.Decimal `json:"impact,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	RecordedAt   time.Time        `json:"recorded_at"`
}

// ImpactSnapshot aggregates a user's suggestion outcomes.
type ImpactSnapshot struct {
	TotalSuggestions int             `json:"total_suggestions"`
	ActedUpon        int             `json:"acted_upon"`
	Failed           int             `json:"failed"`
	Ignored          int             `json:"ignored"`
	EstimatedSavings decimal.Decimal `json:"estimated_savings"`
	LastActionAt     *time.Time      `json:"last_action_at"`
}

// StoredTransaction is a ledger row with its ingestion metadata.
type StoredTransaction struct {
	ID          int64              `json:"id"`
	Transaction domain.Transaction `json:"transaction"`
	Source      string             `json:"source"`
	IngestedAt  time.Time          `json:"ingested_at"`
}

// Store is the durable session state. Every mutating call is committed before
// it returns.
type Store interface {
	AddTransactions(ctx context.Context, userID string, txs []domain.Transaction, source string) (int, error)
	FetchRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]StoredTransaction, error)

	GetOrCreateProfile(ctx context.Context, userID string) (*UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*UserProfile, error)

	UpsertGoal(ctx context.Context, userID string, in GoalInput) (*Goal, error)
	ListGoals(ctx context.Context, userID string) ([]Goal, error)

	RecordAnalysis(ctx context.Context, rec AnalysisRecord) error
	LatestAnalysis(ctx context.Context, userID string) ([]AnalysisRecord, error)
	AnalysisHistory(ctx context.Context, userID string, limit int) ([][]AnalysisRecord, error)
	GetRun(ctx context.Context, userID, runID string) ([]AnalysisRecord, error)

	RecordSuggestions(ctx context.Context, userID, runID, agentKey, suggestionType string, texts []string) ([]SuggestionRecord, error)
	GetSuggestionsForRun(ctx context.Context, userID, runID string) ([]SuggestionRecord, error)
	RecentOutcomes(ctx context.Context, userID string, limit int) ([]SuggestionRecord, error)
	RecordSuggestionOutcome(ctx context.Context, suggestionID int64, expectedUserID string, in OutcomeInput) (string, error)
	OutcomeHistory(ctx context.Context, suggestionID int64) ([]OutcomeEvent, error)
	GetImpactSnapshot(ctx context.Context, userID string) (*ImpactSnapshot, error)

	Ping(ctx context.Context) error
	Close() error
}
