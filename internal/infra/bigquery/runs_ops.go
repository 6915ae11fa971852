package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// RunExported reports whether analysis rows for runID already exist.
func (e *RunExporter) RunExported(ctx context.Context, runID string) (bool, error) {
	q := e.client.Query(runExportedQuery(e.project, e.dataset))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("RunExported: reading query: %w", err)
	}

	var row struct {
		Count int64 `bigquery:"n"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("RunExported: iterating: %w", err)
	}
	return row.Count > 0, nil
}

func runExportedQuery(project, dataset string) string {
	return fmt.Sprintf(`
		SELECT COUNT(1) AS n
		FROM `+"`%s.%s.%s`"+`
		WHERE run_id = @run_id
	`, project, dataset, analysesTable)
}

// ExportRun inserts the run's rows unless the run was exported before.
// Suggestions go first so a partial failure is retried as a whole.
func (e *RunExporter) ExportRun(ctx context.Context, run *RunExport) error {
	exported, err := e.RunExported(ctx, run.RunID)
	if err != nil {
		return fmt.Errorf("ExportRun: %w", err)
	}
	if exported {
		e.log.Info().Str("run_id", run.RunID).Msg("Run already exported, skipping")
		return nil
	}

	if len(run.Suggestions) > 0 {
		if err := e.table(suggestionsTable).Inserter().Put(ctx, run.Suggestions); err != nil {
			return fmt.Errorf("ExportRun: inserting suggestions: %w", err)
		}
	}
	if err := e.table(analysesTable).Inserter().Put(ctx, run.Analyses); err != nil {
		return fmt.Errorf("ExportRun: inserting analyses: %w", err)
	}

	e.log.Info().
		Str("run_id", run.RunID).
		Int("analyses", len(run.Analyses)).
		Int("suggestions", len(run.Suggestions)).
		Msg("Run exported to BigQuery")
	return nil
}

// EnsureTables creates the export tables when missing. Analyses are
// partitioned by run_date.
func (e *RunExporter) EnsureTables(ctx context.Context) error {
	specs, err := tableSpecs()
	if err != nil {
		return fmt.Errorf("EnsureTables: %w", err)
	}
	for name, meta := range specs {
		err := e.table(name).Create(ctx, meta)
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			continue
		}
		if err != nil {
			return fmt.Errorf("EnsureTables: creating %s: %w", name, err)
		}
		e.log.Info().Str("table", name).Msg("Created BigQuery table")
	}
	return nil
}

func tableSpecs() (map[string]*bigquery.TableMetadata, error) {
	analysisSchema, err := bigquery.InferSchema(AnalysisRow{})
	if err != nil {
		return nil, fmt.Errorf("infer %s schema: %w", analysesTable, err)
	}
	suggestionSchema, err := bigquery.InferSchema(SuggestionRow{})
	if err != nil {
		return nil, fmt.Errorf("infer %s schema: %w", suggestionsTable, err)
	}

	return map[string]*bigquery.TableMetadata{
		analysesTable: {
			Schema:           analysisSchema,
			TimePartitioning: &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: "run_date"},
			Clustering:       &bigquery.Clustering{Fields: []string{"user_id"}},
		},
		suggestionsTable: {
			Schema:     suggestionSchema,
			Clustering: &bigquery.Clustering{Fields: []string{"user_id", "run_id"}},
		},
	}, nil
}
