package bigquery

import (
	"context"
	"errors"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/dompet/internal/session"
)

// ErrEmptyRun is returned when a run has no analysis records to export.
var ErrEmptyRun = errors.New("run has no analysis records")

// RunExportRepository writes finished analysis runs to the warehouse.
type RunExportRepository interface {
	// RunExported reports whether rows for runID already exist.
	RunExported(ctx context.Context, runID string) (bool, error)

	// ExportRun inserts the run's analysis and suggestion rows. A run that
	// was already exported is left untouched.
	ExportRun(ctx context.Context, run *RunExport) error
}

// RunExport is one run ready to be written.
type RunExport struct {
	UserID      string
	RunID       string
	RunAt       time.Time
	Analyses    []*AnalysisRow
	Suggestions []*SuggestionRow
}

// AnalysisRow represents one agent output in BigQuery.
type AnalysisRow struct {
	RunID    string `bigquery:"run_id"`
	UserID   string `bigquery:"user_id"`
	AgentKey string `bigquery:"agent_key"`

	Content string `bigquery:"content"`
	Context string `bigquery:"context"`

	RunDate civil.Date `bigquery:"run_date"`
	RunTS   time.Time  `bigquery:"run_ts"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// SuggestionRow represents one extracted suggestion in BigQuery.
type SuggestionRow struct {
	SuggestionID int64  `bigquery:"suggestion_id"`
	RunID        string `bigquery:"run_id"`
	UserID       string `bigquery:"user_id"`
	AgentKey     string `bigquery:"agent_key"`

	SuggestionType string `bigquery:"suggestion_type"`
	Suggestion     string `bigquery:"suggestion"`

	LatestOutcome bigquery.NullString    `bigquery:"latest_outcome"`
	LatestImpact  *big.Rat               `bigquery:"latest_impact"`
	OutcomeTS     bigquery.NullTimestamp `bigquery:"outcome_ts"`

	CreatedTS  time.Time `bigquery:"created_ts"`
	ExportedTS time.Time `bigquery:"exported_ts"`
}

// NewRunExport converts one run's stored records into warehouse rows.
func NewRunExport(records []session.AnalysisRecord, suggestions []session.SuggestionRecord, exportedAt time.Time) (*RunExport, error) {
	if len(records) == 0 {
		return nil, ErrEmptyRun
	}

	first := records[0]
	run := &RunExport{
		UserID: first.UserID,
		RunID:  first.RunID,
		RunAt:  first.RunAt,
	}

	for _, rec := range records {
		run.Analyses = append(run.Analyses, &AnalysisRow{
			RunID:      rec.RunID,
			UserID:     rec.UserID,
			AgentKey:   rec.AgentKey,
			Content:    rec.Content,
			Context:    rec.Context,
			RunDate:    civil.DateOf(rec.RunAt.UTC()),
			RunTS:      rec.RunAt,
			ExportedTS: exportedAt,
		})
	}

	for _, s := range suggestions {
		row := &SuggestionRow{
			SuggestionID:   s.ID,
			RunID:          s.RunID,
			UserID:         s.UserID,
			AgentKey:       s.AgentKey,
			SuggestionType: s.SuggestionType,
			Suggestion:     s.Suggestion,
			CreatedTS:      s.CreatedAt,
			ExportedTS:     exportedAt,
		}
		if s.LatestOutcome != "" && s.LatestOutcome != session.OutcomeNone {
			row.LatestOutcome = bigquery.NullString{StringVal: s.LatestOutcome, Valid: true}
		}
		if s.LatestImpact != nil {
			row.LatestImpact = s.LatestImpact.Rat()
		}
		if s.OutcomeAt != nil {
			row.OutcomeTS = bigquery.NullTimestamp{Timestamp: *s.OutcomeAt, Valid: true}
		}
		run.Suggestions = append(run.Suggestions, row)
	}

	return run, nil
}
