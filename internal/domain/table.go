package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultPreviewRows is how many recent transactions a CSV load keeps by default.
const DefaultPreviewRows = 20

var requiredColumns = []string{"date", "description", "amount"}

// LoadTable reads a CSV with a header row containing date, description and
// amount columns (any case). Rows come back sorted by date descending and,
// when limit > 0, truncated to the limit most recent. Any invalid date or
// unparsable amount fails the whole load.
func LoadTable(r io.Reader, limit int) ([]Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("LoadTable: %w: empty table", ErrInvalidInput)
		}
		return nil, fmt.Errorf("LoadTable: reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("LoadTable: %w: table must contain columns date, description, amount (case insensitive); missing %s",
			ErrInvalidInput, strings.Join(missing, ", "))
	}

	var txs []Transaction
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("LoadTable: reading row %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		date, err := NormalizeDate(field(record, index["date"]))
		if err != nil {
			return nil, fmt.Errorf("LoadTable: row %d: %w", line, err)
		}
		amount, err := ParseAmount(field(record, index["amount"]))
		if err != nil {
			return nil, fmt.Errorf("LoadTable: row %d: %w", line, err)
		}

		txs = append(txs, Transaction{
			Date:        date,
			Description: field(record, index["description"]),
			Amount:      amount,
		})
	}

	SortByDateDesc(txs)
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
