package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/dompet/internal/session"
)

// RecordAnalysis appends one agent output. A zero RunAt is stamped with now.
func (s *Store) RecordAnalysis(ctx context.Context, rec session.AnalysisRecord) error {
	runAt := s.timestamp()
	if !rec.RunAt.IsZero() {
		runAt = formatTime(rec.RunAt)
	}

	err := s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO analyses (user_id, run_id, agent_key, content, context, run_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.UserID, rec.RunID, rec.AgentKey, rec.Content, rec.Context, runAt)
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("RecordAnalysis: %w", err)
	}
	return nil
}

// LatestAnalysis returns the records of the user's most recent run ordered by
// agent key, or nil when there are none.
func (s *Store) LatestAnalysis(ctx context.Context, userID string) ([]session.AnalysisRecord, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM analyses
		WHERE user_id = ?
		ORDER BY run_at DESC, id DESC
		LIMIT 1`, userID).Scan(&runID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestAnalysis: latest run: %w", err)
	}

	recs, err := s.runRecords(ctx, userID, runID)
	if err != nil {
		return nil, fmt.Errorf("LatestAnalysis: %w", err)
	}
	return recs, nil
}

// AnalysisHistory returns up to limit runs, newest first, each ordered by
// agent key.
func (s *Store) AnalysisHistory(ctx context.Context, userID string, limit int) ([][]session.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM analyses
		WHERE user_id = ?
		GROUP BY run_id
		ORDER BY MAX(run_at) DESC, MAX(id) DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("AnalysisHistory: query runs: %w", err)
	}

	var runIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("AnalysisHistory: scan: %w", err)
		}
		runIDs = append(runIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AnalysisHistory: %w", err)
	}

	history := make([][]session.AnalysisRecord, 0, len(runIDs))
	for _, id := range runIDs {
		recs, err := s.runRecords(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("AnalysisHistory: %w", err)
		}
		history = append(history, recs)
	}
	return history, nil
}

// GetRun returns the records of one run ordered by agent key, or nil when
// the user has no such run.
func (s *Store) GetRun(ctx context.Context, userID, runID string) ([]session.AnalysisRecord, error) {
	recs, err := s.runRecords(ctx, userID, runID)
	if err != nil {
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	return recs, nil
}

func (s *Store) runRecords(ctx context.Context, userID, runID string) ([]session.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, user_id, agent_key, content, context, run_at
		FROM analyses
		WHERE user_id = ? AND run_id = ?
		ORDER BY agent_key ASC`, userID, runID)
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []session.AnalysisRecord
	for rows.Next() {
		var (
			rec   session.AnalysisRecord
			runAt string
		)
		if err := rows.Scan(&rec.RunID, &rec.UserID, &rec.AgentKey, &rec.Content, &rec.Context, &runAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec.RunAt = parseTime(runAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
