package bigquery

import (
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
)

func TestTableSpecs(t *testing.T) {
	specs, err := tableSpecs()
	if err != nil {
		t.Fatalf("tableSpecs() error = %v", err)
	}

	fieldTypes := func(s bigquery.Schema) map[string]bigquery.FieldType {
		out := make(map[string]bigquery.FieldType)
		for _, f := range s {
			out[f.Name] = f.Type
		}
		return out
	}

	analyses := fieldTypes(specs[analysesTable].Schema)
	wantAnalyses := map[string]bigquery.FieldType{
		"run_id":      bigquery.StringFieldType,
		"run_date":    bigquery.DateFieldType,
		"run_ts":      bigquery.TimestampFieldType,
		"exported_ts": bigquery.TimestampFieldType,
	}
	for name, want := range wantAnalyses {
		if got := analyses[name]; got != want {
			t.Errorf("analysis_runs.%s type = %v, want %v", name, got, want)
		}
	}
	if p := specs[analysesTable].TimePartitioning; p == nil || p.Field != "run_date" {
		t.Errorf("analysis_runs partitioning = %+v, want run_date", p)
	}

	suggestions := fieldTypes(specs[suggestionsTable].Schema)
	wantSuggestions := map[string]bigquery.FieldType{
		"suggestion_id":  bigquery.IntegerFieldType,
		"latest_outcome": bigquery.StringFieldType,
		"latest_impact":  bigquery.NumericFieldType,
		"outcome_ts":     bigquery.TimestampFieldType,
	}
	for name, want := range wantSuggestions {
		if got := suggestions[name]; got != want {
			t.Errorf("suggestions.%s type = %v, want %v", name, got, want)
		}
	}
}

func TestRunExportedQuery(t *testing.T) {
	q := runExportedQuery("proj", "dompet")
	if !strings.Contains(q, "`proj.dompet.analysis_runs`") {
		t.Errorf("query does not target the analyses table: %s", q)
	}
	if !strings.Contains(q, "@run_id") {
		t.Errorf("query is not parameterised: %s", q)
	}
}
