package service

import (
	"context"
	"fmt"

	bq "github.com/dvloznov/dompet/internal/bigquery"
	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/dvloznov/dompet/internal/session"
)

// RunExporter writes a finished run to the analytics warehouse.
type RunExporter interface {
	ExportRun(ctx context.Context, run *bq.RunExport) error
}

// SuggestionMirror copies a run's suggestions to an external workspace.
type SuggestionMirror interface {
	MirrorSuggestions(ctx context.Context, userID string, records []session.SuggestionRecord) error
}

// ExportRun sends one stored run to the exporter and the mirror. Either may
// be nil.
func (s *Service) ExportRun(ctx context.Context, userID, runID string, exporter RunExporter, mirror SuggestionMirror) error {
	recs, err := s.store.GetRun(ctx, userID, runID)
	if err != nil {
		return fmt.Errorf("ExportRun: %w", err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("ExportRun: run %s: %w", runID, session.ErrNotFound)
	}
	suggestions, err := s.store.GetSuggestionsForRun(ctx, userID, runID)
	if err != nil {
		return fmt.Errorf("ExportRun: load suggestions: %w", err)
	}

	if exporter != nil {
		export, err := bq.NewRunExport(recs, suggestions, s.now().UTC())
		if err != nil {
			return fmt.Errorf("ExportRun: %w", err)
		}
		if err := exporter.ExportRun(ctx, export); err != nil {
			return fmt.Errorf("ExportRun: warehouse: %w", err)
		}
	}

	if mirror != nil && len(suggestions) > 0 {
		if err := mirror.MirrorSuggestions(ctx, userID, suggestions); err != nil {
			return fmt.Errorf("ExportRun: mirror: %w", err)
		}
	}

	s.log.Info().Str("user_id", userID).Str("run_id", runID).
		Int("analyses", len(recs)).Int("suggestions", len(suggestions)).Msg("Run exported")
	return nil
}

// ExportHandler returns a job handler that exports ExportRunJobs.
func (s *Service) ExportHandler(exporter RunExporter, mirror SuggestionMirror) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		export, ok := job.(*jobs.ExportRunJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		s.log.Info().
			Str("job_id", export.JobID).
			Str("run_id", export.RunID).
			Int("retry", export.RetryCount).
			Msg("Processing export job")

		return s.ExportRun(ctx, export.UserID, export.RunID, exporter, mirror)
	}
}
