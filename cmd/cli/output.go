package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/gcsuploader"
	"github.com/dvloznov/dompet/internal/pipeline"
	"github.com/dvloznov/dompet/internal/service"
	"github.com/dvloznov/dompet/internal/session"
)

// readTransactions loads a CSV from a local path or a gs:// URI.
func readTransactions(ctx context.Context, source string, limit int) ([]domain.Transaction, error) {
	if !gcsuploader.IsGCSURI(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return domain.LoadTable(f, limit)
	}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		return nil, err
	}
	defer storage.Close()

	data, err := storage.Download(ctx, source)
	if err != nil {
		return nil, err
	}
	return domain.LoadTable(bytes.NewReader(data), limit)
}

func printResult(w io.Writer, res pipeline.AgentResult) {
	fmt.Fprintf(w, "\n=== %s ===\n%s\n", res.AgentKey, strings.TrimSpace(res.Content))
}

func printRun(w io.Writer, run *service.AnalysisRun) {
	fmt.Fprintf(w, "Run %s for %s at %s\n", run.RunID, run.UserID, run.RunAt.Format(time.RFC3339))
	for _, res := range run.Results {
		printResult(w, res.AgentResult)
	}
	if len(run.Suggestions) == 0 {
		return
	}
	fmt.Fprintf(w, "\n=== Suggestions (%d) ===\n", len(run.Suggestions))
	for _, s := range run.Suggestions {
		fmt.Fprintf(w, "[%d] %-14s %-8s %s\n", s.ID, s.SuggestionType, s.LatestOutcome, s.Suggestion)
	}
}

func printHistory(w io.Writer, runs []*service.AnalysisRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No analyses recorded.")
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %d agents  %d suggestions\n",
			run.RunAt.Format(time.RFC3339), run.RunID, len(run.Results), len(run.Suggestions))
	}
}

func printImpact(w io.Writer, snap *session.ImpactSnapshot) {
	fmt.Fprintf(w, "Suggestions:       %d\n", snap.TotalSuggestions)
	fmt.Fprintf(w, "Acted upon:        %d\n", snap.ActedUpon)
	fmt.Fprintf(w, "Ignored:           %d\n", snap.Ignored)
	fmt.Fprintf(w, "Failed:            %d\n", snap.Failed)
	fmt.Fprintf(w, "Estimated savings: RM%s\n", domain.FormatRM(snap.EstimatedSavings))
	if snap.LastActionAt != nil {
		fmt.Fprintf(w, "Last action:       %s\n", snap.LastActionAt.Format(time.RFC3339))
	}
}

func printOutcomeLog(w io.Writer, events []session.OutcomeEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No outcomes recorded.")
		return
	}
	for _, e := range events {
		impact := "-"
		if e.Impact != nil {
			impact = "RM" + domain.FormatRM(*e.Impact)
		}
		fmt.Fprintf(w, "%s  %-8s %10s  %s\n", e.RecordedAt.Format(time.RFC3339), e.Status, impact, e.Notes)
	}
}
