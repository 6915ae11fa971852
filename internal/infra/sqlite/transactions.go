package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/shopspring/decimal"
)

// AddTransactions inserts txs, skipping rows identical to one already stored
// for the user, and returns how many were new.
func (s *Store) AddTransactions(ctx context.Context, userID string, txs []domain.Transaction, source string) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.write(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (user_id, date, description, amount, source, ingested_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		now := s.timestamp()
		for _, t := range txs {
			res, err := stmt.ExecContext(ctx, userID, t.Date, t.Description, t.Amount.String(), source, now)
			if err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("AddTransactions: %w", err)
	}
	return inserted, nil
}

// FetchRecent returns up to limit transactions, newest date first and most
// recently inserted first within a date.
func (s *Store) FetchRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	stored, err := s.listTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("FetchRecent: %w", err)
	}
	out := make([]domain.Transaction, len(stored))
	for i, st := range stored {
		out[i] = st.Transaction
	}
	return out, nil
}

// ListTransactions is FetchRecent with ingestion metadata.
func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]session.StoredTransaction, error) {
	stored, err := s.listTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return stored, nil
}

func (s *Store) listTransactions(ctx context.Context, userID string, limit int) ([]session.StoredTransaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, description, amount, source, ingested_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []session.StoredTransaction
	for rows.Next() {
		var (
			st         session.StoredTransaction
			amount     string
			ingestedAt string
		)
		if err := rows.Scan(&st.ID, &st.Transaction.Date, &st.Transaction.Description, &amount, &st.Source, &ingestedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		st.Transaction.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %d amount %q: %w", st.ID, amount, err)
		}
		st.IngestedAt = parseTime(ingestedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}
