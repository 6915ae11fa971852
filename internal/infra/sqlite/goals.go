package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/shopspring/decimal"
)

// UpsertGoal creates the goal or updates the one with the same name. Status
// starts as active and is only changed when in.Status is set.
func (s *Store) UpsertGoal(ctx context.Context, userID string, in session.GoalInput) (*session.Goal, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateGoal(&in); err != nil {
		return nil, fmt.Errorf("UpsertGoal: %w", err)
	}

	progress := decimal.Zero
	if in.CurrentProgress != nil {
		progress = *in.CurrentProgress
	}
	status := session.GoalActive
	if in.Status != nil {
		status = *in.Status
	}

	var id int64
	err := s.write(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		err := tx.QueryRowContext(ctx, `
			INSERT INTO goals (user_id, name, target_amount, target_date, current_progress, notes, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, name) DO UPDATE SET
				target_amount    = excluded.target_amount,
				target_date      = excluded.target_date,
				notes            = excluded.notes,
				current_progress = CASE WHEN ? THEN excluded.current_progress ELSE goals.current_progress END,
				status           = CASE WHEN ? THEN excluded.status ELSE goals.status END,
				updated_at       = excluded.updated_at
			RETURNING id`,
			userID, in.Name, in.TargetAmount.String(), nullString(in.TargetDate), progress.String(), in.Notes, status, now, now,
			in.CurrentProgress != nil, in.Status != nil,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("UpsertGoal: %w", err)
	}

	goals, err := s.queryGoals(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("UpsertGoal: %w", err)
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("UpsertGoal: goal %d: %w", id, session.ErrNotFound)
	}
	return &goals[0], nil
}

// ListGoals returns the user's goals in creation order.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]session.Goal, error) {
	goals, err := s.queryGoals(ctx, `WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListGoals: %w", err)
	}
	return goals, nil
}

func validateGoal(in *session.GoalInput) error {
	if in.Name == "" {
		return fmt.Errorf("%w: goal name is required", session.ErrInvalidInput)
	}
	if !in.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: target_amount must be greater than zero", session.ErrInvalidInput)
	}
	if in.CurrentProgress != nil && in.CurrentProgress.IsNegative() {
		return fmt.Errorf("%w: current_progress cannot be negative", session.ErrInvalidInput)
	}
	if in.Status != nil && !session.ValidGoalStatus(*in.Status) {
		return fmt.Errorf("%w: unknown goal status %q", session.ErrInvalidInput, *in.Status)
	}
	if in.TargetDate != "" {
		d, err := domain.NormalizeDate(in.TargetDate)
		if err != nil {
			return fmt.Errorf("%w: target_date %q", session.ErrInvalidInput, in.TargetDate)
		}
		in.TargetDate = d
	}
	return nil
}

func (s *Store) queryGoals(ctx context.Context, where string, args ...any) ([]session.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, target_amount, target_date, current_progress, notes, status, created_at, updated_at
		FROM goals `+where+`
		ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []session.Goal
	for rows.Next() {
		var (
			g                    session.Goal
			target, progress     string
			targetDate           sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &target, &targetDate, &progress, &g.Notes, &g.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("goal %d target_amount: %w", g.ID, err)
		}
		if g.CurrentProgress, err = decimal.NewFromString(progress); err != nil {
			return nil, fmt.Errorf("goal %d current_progress: %w", g.ID, err)
		}
		g.TargetDate = targetDate.String
		g.CreatedAt = parseTime(createdAt)
		g.UpdatedAt = parseTime(updatedAt)
		out = append(out, g)
	}
	return out, rows.Err()
}
