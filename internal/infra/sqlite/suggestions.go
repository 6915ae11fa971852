package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/dompet/internal/session"
	"github.com/shopspring/decimal"
)

const suggestionColumns = `id, user_id, run_id, agent_key, suggestion_type, suggestion, created_at,
	latest_outcome, latest_impact, outcome_notes, outcome_at`

// RecordSuggestions inserts one record per text for the run and returns them
// with no outcome set.
func (s *Store) RecordSuggestions(ctx context.Context, userID, runID, agentKey, suggestionType string, texts []string) ([]session.SuggestionRecord, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var ids []any
	err := s.write(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO suggestions (user_id, run_id, agent_key, suggestion_type, suggestion, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		now := s.timestamp()
		for _, text := range texts {
			res, err := stmt.ExecContext(ctx, userID, runID, agentKey, suggestionType, text, now)
			if err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("RecordSuggestions: %w", err)
	}

	recs, err := s.querySuggestions(ctx, `WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id ASC`, ids...)
	if err != nil {
		return nil, fmt.Errorf("RecordSuggestions: %w", err)
	}
	return recs, nil
}

// GetSuggestionsForRun returns the user's suggestions for runID in creation order.
func (s *Store) GetSuggestionsForRun(ctx context.Context, userID, runID string) ([]session.SuggestionRecord, error) {
	recs, err := s.querySuggestions(ctx, `WHERE user_id = ? AND run_id = ? ORDER BY id ASC`, userID, runID)
	if err != nil {
		return nil, fmt.Errorf("GetSuggestionsForRun: %w", err)
	}
	return recs, nil
}

// RecentOutcomes returns up to limit suggestions with a recorded outcome,
// most recent decision first.
func (s *Store) RecentOutcomes(ctx context.Context, userID string, limit int) ([]session.SuggestionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	recs, err := s.querySuggestions(ctx,
		`WHERE user_id = ? AND latest_outcome != ? ORDER BY outcome_at DESC, id DESC LIMIT ?`,
		userID, session.OutcomeNone, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentOutcomes: %w", err)
	}
	return recs, nil
}

// RecordSuggestionOutcome appends an outcome event, updates the suggestion's
// latest fields and the owner's success counters, and returns the owner.
// When expectedUserID is set and does not own the suggestion nothing is
// written and ErrForbidden is returned.
func (s *Store) RecordSuggestionOutcome(ctx context.Context, suggestionID int64, expectedUserID string, in session.OutcomeInput) (string, error) {
	if !session.ValidOutcomeStatus(in.Status) {
		return "", fmt.Errorf("RecordSuggestionOutcome: %w: outcome_status must be one of acted, ignored, failed; got %q",
			session.ErrInvalidInput, in.Status)
	}

	var owner string
	err := s.write(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM suggestions WHERE id = ?`, suggestionID).Scan(&owner)
		if isNoRows(err) {
			return fmt.Errorf("suggestion %d: %w", suggestionID, session.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load suggestion: %w", err)
		}
		if expectedUserID != "" && owner != expectedUserID {
			return fmt.Errorf("suggestion %d: %w", suggestionID, session.ErrForbidden)
		}

		now := s.timestamp()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO suggestion_outcomes (suggestion_id, user_id, outcome_status, impact, notes, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			suggestionID, owner, in.Status, nullDecimal(in.Impact), in.Notes, now,
		); err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE suggestions
			SET latest_outcome = ?, latest_impact = ?, outcome_notes = ?, outcome_at = ?
			WHERE id = ?`,
			in.Status, nullDecimal(in.Impact), in.Notes, now, suggestionID,
		); err != nil {
			return fmt.Errorf("update suggestion: %w", err)
		}

		return bumpSuccessMetrics(ctx, tx, owner, in, now)
	})
	if err != nil {
		return "", fmt.Errorf("RecordSuggestionOutcome: %w", err)
	}
	return owner, nil
}

// OutcomeHistory returns every outcome recorded for a suggestion, oldest first.
func (s *Store) OutcomeHistory(ctx context.Context, suggestionID int64) ([]session.OutcomeEvent, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM suggestions WHERE id = ?`, suggestionID).Scan(&exists)
	if isNoRows(err) {
		return nil, fmt.Errorf("OutcomeHistory: suggestion %d: %w", suggestionID, session.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("OutcomeHistory: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suggestion_id, outcome_status, impact, notes, recorded_at
		FROM suggestion_outcomes
		WHERE suggestion_id = ?
		ORDER BY id ASC`, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("OutcomeHistory: query: %w", err)
	}
	defer rows.Close()

	var out []session.OutcomeEvent
	for rows.Next() {
		var (
			ev         session.OutcomeEvent
			impact     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&ev.ID, &ev.SuggestionID, &ev.Status, &impact, &ev.Notes, &recordedAt); err != nil {
			return nil, fmt.Errorf("OutcomeHistory: scan: %w", err)
		}
		if ev.Impact, err = parseNullDecimal(impact); err != nil {
			return nil, fmt.Errorf("OutcomeHistory: event %d impact: %w", ev.ID, err)
		}
		ev.RecordedAt = parseTime(recordedAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetImpactSnapshot aggregates the user's suggestions as they are now.
func (s *Store) GetImpactSnapshot(ctx context.Context, userID string) (*session.ImpactSnapshot, error) {
	recs, err := s.querySuggestions(ctx, `WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("GetImpactSnapshot: %w", err)
	}

	snap := &session.ImpactSnapshot{
		TotalSuggestions: len(recs),
		EstimatedSavings: decimal.Zero,
	}
	for _, r := range recs {
		switch r.LatestOutcome {
		case session.OutcomeActed:
			snap.ActedUpon++
			if r.LatestImpact != nil {
				snap.EstimatedSavings = snap.EstimatedSavings.Add(*r.LatestImpact)
			}
		case session.OutcomeFailed:
			snap.Failed++
		case session.OutcomeIgnored:
			snap.Ignored++
		}
		if r.OutcomeAt != nil && (snap.LastActionAt == nil || r.OutcomeAt.After(*snap.LastActionAt)) {
			t := *r.OutcomeAt
			snap.LastActionAt = &t
		}
	}
	return snap, nil
}

func (s *Store) querySuggestions(ctx context.Context, clause string, args ...any) ([]session.SuggestionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	var out []session.SuggestionRecord
	for rows.Next() {
		var (
			r                 session.SuggestionRecord
			createdAt         string
			impact, outcomeAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.RunID, &r.AgentKey, &r.SuggestionType, &r.Suggestion, &createdAt,
			&r.LatestOutcome, &impact, &r.OutcomeNotes, &outcomeAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if r.LatestImpact, err = parseNullDecimal(impact); err != nil {
			return nil, fmt.Errorf("suggestion %d impact: %w", r.ID, err)
		}
		r.CreatedAt = parseTime(createdAt)
		r.OutcomeAt = parseNullTime(outcomeAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
