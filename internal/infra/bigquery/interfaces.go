package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/dompet/internal/bigquery"
	"github.com/rs/zerolog"
)

// Re-export types from shared package for callers of this package
type RunExport = bq.RunExport
type AnalysisRow = bq.AnalysisRow
type SuggestionRow = bq.SuggestionRow

const (
	analysesTable    = "analysis_runs"
	suggestionsTable = "suggestions"
)

// RunExporter is the BigQuery implementation of RunExportRepository. It
// holds a shared client for its lifetime.
type RunExporter struct {
	client  *bigquery.Client
	project string
	dataset string
	log     zerolog.Logger
}

// NewRunExporter creates a RunExporter writing to project.dataset.
func NewRunExporter(ctx context.Context, project, dataset string, log zerolog.Logger) (*RunExporter, error) {
	if project == "" || dataset == "" {
		return nil, fmt.Errorf("NewRunExporter: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRunExporter: creating client: %w", err)
	}
	return &RunExporter{
		client:  client,
		project: project,
		dataset: dataset,
		log:     log,
	}, nil
}

// Close closes the BigQuery client connection.
func (e *RunExporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *RunExporter) table(name string) *bigquery.Table {
	return e.client.DatasetInProject(e.project, e.dataset).Table(name)
}

var _ bq.RunExportRepository = (*RunExporter)(nil)
