package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/dompet/internal/pipeline"
	"github.com/dvloznov/dompet/internal/service"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTransactions_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "may.csv")
	csv := "Date,Description,Amount\n2024-05-01,GrabFood,-32.50\n2024-05-03,Salary,\"RM5,000.00\"\n2024-05-02,TNB,-120\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	txs, err := readTransactions(context.Background(), path, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "2024-05-03", txs[0].Date)
	assert.Equal(t, "TNB", txs[1].Description)
}

func TestReadTransactions_MissingFile(t *testing.T) {
	_, err := readTransactions(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), 0)
	assert.Error(t, err)
}

func TestPrintRun(t *testing.T) {
	run := &service.AnalysisRun{
		RunID:  "run-1",
		UserID: "u1",
		RunAt:  time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
		Results: []service.AgentOutput{
			{AgentResult: pipeline.AgentResult{AgentKey: "SavingsPlanner", Content: "  - Automate RM300 transfer\n"}},
		},
		Suggestions: []session.SuggestionRecord{
			{ID: 7, SuggestionType: "savings_tip", LatestOutcome: "none", Suggestion: "Automate RM300 transfer"},
		},
	}

	var buf bytes.Buffer
	printRun(&buf, run)
	out := buf.String()

	assert.Contains(t, out, "Run run-1 for u1 at 2024-05-10T08:00:00Z")
	assert.Contains(t, out, "=== SavingsPlanner ===\n- Automate RM300 transfer\n")
	assert.Contains(t, out, "=== Suggestions (1) ===")
	assert.Contains(t, out, "[7] savings_tip")
}

func TestPrintImpact(t *testing.T) {
	var buf bytes.Buffer
	printImpact(&buf, &session.ImpactSnapshot{
		TotalSuggestions: 4,
		ActedUpon:        2,
		EstimatedSavings: decimal.RequireFromString("1234.5"),
	})
	out := buf.String()

	assert.Contains(t, out, "Acted upon:        2")
	assert.Contains(t, out, "Estimated savings: RM1,234.50")
	assert.NotContains(t, out, "Last action")
}

func TestPrintOutcomeLog(t *testing.T) {
	var buf bytes.Buffer
	printOutcomeLog(&buf, nil)
	assert.Equal(t, "No outcomes recorded.\n", buf.String())

	buf.Reset()
	impact := decimal.RequireFromString("50")
	printOutcomeLog(&buf, []session.OutcomeEvent{
		{Status: "acted", Impact: &impact, Notes: "moved to ASB", RecordedAt: time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)},
		{Status: "failed", RecordedAt: time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "RM50.00")
	assert.Contains(t, lines[0], "moved to ASB")
	assert.Contains(t, lines[1], "failed")
}
