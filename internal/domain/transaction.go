package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks malformed transaction input: unparsable amounts,
// missing columns, bad dates.
var ErrInvalidInput = errors.New("invalid transaction input")

var currencyMarker = regexp.MustCompile(`(?i)rm`)

// Transaction is one ledger line. Amount is in RM, positive for income and
// negative for expenses.
type Transaction struct {
	Date        string // ISO-8601 calendar date
	Description string
	Amount      decimal.Decimal
}

// FromMapping builds a Transaction from a loosely typed row. Keys are matched
// case-insensitively; an exact lowercase key is preferred, then the first
// matching key in sorted order. A missing or blank amount normalizes to zero.
func FromMapping(m map[string]any) (Transaction, error) {
	tx := Transaction{
		Date:        strings.TrimSpace(stringValue(lookup(m, "date"))),
		Description: strings.TrimSpace(stringValue(lookup(m, "description"))),
		Amount:      decimal.Zero,
	}

	raw := lookup(m, "amount")
	if raw == nil {
		return tx, nil
	}
	if str, ok := raw.(string); ok && strings.TrimSpace(str) == "" {
		return tx, nil
	}

	amount, err := amountValue(raw)
	if err != nil {
		return Transaction{}, fmt.Errorf("FromMapping: %w", err)
	}
	tx.Amount = amount
	return tx, nil
}

// ParseAmount strips the RM marker and thousands separators, then parses.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := currencyMarker.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount %q", ErrInvalidInput, s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, s, err)
	}
	return d, nil
}

// NormalizeDate validates an ISO-8601 calendar date and returns it zero
// padded (2024-2-1 becomes 2024-02-01), so dates order correctly as text.
func NormalizeDate(s string) (string, error) {
	t, err := time.Parse("2006-1-2", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return civil.DateOf(t).String(), nil
}

// PromptRow renders the transaction as "date | description | -RM1,234.50".
func (t Transaction) PromptRow() string {
	sign := ""
	if t.Amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s | %s | %sRM%s", t.Date, t.Description, sign, FormatRM(t.Amount.Abs()))
}

// Equal compares amounts numerically, so 5000 equals 5000.00.
func (t Transaction) Equal(other Transaction) bool {
	return t.Date == other.Date &&
		t.Description == other.Description &&
		t.Amount.Equal(other.Amount)
}

// MarshalJSON renders the amount as a JSON number.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date        string      `json:"date"`
		Description string      `json:"description"`
		Amount      json.Number `json:"amount"`
	}{t.Date, t.Description, json.Number(t.Amount.String())})
}

// FormatRM formats d with two decimals and comma thousands separators.
func FormatRM(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// SortByDateDesc orders transactions most recent first, keeping input order
// for equal dates.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date > txs[j].Date
	})
}

func lookup(m map[string]any, name string) any {
	if v, ok := m[name]; ok && v != nil {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(strings.TrimSpace(k), name) && m[k] != nil {
			return m[k]
		}
	}
	return nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func amountValue(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		return ParseAmount(x)
	case json.Number:
		return ParseAmount(x.String())
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported amount type %T", ErrInvalidInput, v)
	}
}
