package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/dompet/internal/session"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetOrCreateProfile returns the user's profile, creating it with defaults
// on first access.
func (s *Store) GetOrCreateProfile(ctx context.Context, userID string) (*session.UserProfile, error) {
	p, err := getProfile(ctx, s.db, userID)
	if err == nil {
		return p, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("GetOrCreateProfile: %w", err)
	}

	err = s.write(ctx, func(tx *sql.Tx) error {
		return ensureProfile(ctx, tx, userID, s.timestamp())
	})
	if err != nil {
		return nil, fmt.Errorf("GetOrCreateProfile: create: %w", err)
	}

	p, err = getProfile(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreateProfile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields of update and refreshes updated_at.
func (s *Store) UpdateProfile(ctx context.Context, userID string, update session.ProfileUpdate) (*session.UserProfile, error) {
	err := s.write(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := ensureProfile(ctx, tx, userID, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE user_profiles
			SET risk_tolerance = COALESCE(?, risk_tolerance),
			    response_style = COALESCE(?, response_style),
			    success_notes  = COALESCE(?, success_notes),
			    updated_at     = ?
			WHERE user_id = ?`,
			optional(update.RiskTolerance), optional(update.ResponseStyle), optional(update.SuccessNotes), now, userID)
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("UpdateProfile: %w", err)
	}

	p, err := getProfile(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("UpdateProfile: %w", err)
	}
	return p, nil
}

func ensureProfile(ctx context.Context, tx *sql.Tx, userID, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_profiles
		(user_id, risk_tolerance, response_style, success_notes, success_metrics, created_at, updated_at)
		VALUES (?, ?, ?, '', '{}', ?, ?)`,
		userID, session.DefaultRiskTolerance, session.DefaultResponseStyle, now, now)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

func getProfile(ctx context.Context, q queryer, userID string) (*session.UserProfile, error) {
	var (
		p                    session.UserProfile
		metrics              string
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT user_id, risk_tolerance, response_style, success_notes, success_metrics, created_at, updated_at
		FROM user_profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.RiskTolerance, &p.ResponseStyle, &p.SuccessNotes, &metrics, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metrics), &p.SuccessMetrics); err != nil {
		return nil, fmt.Errorf("decode success_metrics: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func bumpSuccessMetrics(ctx context.Context, tx *sql.Tx, userID string, in session.OutcomeInput, now string) error {
	if err := ensureProfile(ctx, tx, userID, now); err != nil {
		return err
	}
	p, err := getProfile(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	m := p.SuccessMetrics
	switch in.Status {
	case session.OutcomeActed:
		m.Acted++
		if in.Impact != nil {
			m.EstimatedSavings = m.EstimatedSavings.Add(*in.Impact)
		}
	case session.OutcomeIgnored:
		m.Ignored++
	case session.OutcomeFailed:
		m.Failed++
	}

	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode success_metrics: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_profiles SET success_metrics = ?, updated_at = ? WHERE user_id = ?`,
		string(encoded), now, userID,
	); err != nil {
		return fmt.Errorf("update success_metrics: %w", err)
	}
	return nil
}

func optional(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
