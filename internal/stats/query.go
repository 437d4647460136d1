// Package stats appends per-table storage statistics for every dataset of a
// project into the stats table.
package stats

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"bqstats/internal/schema"
	"bqstats/internal/warehouse"
	"bqstats/pkg/errors"
)

// ProcessingTimeParam is the query parameter carrying the run timestamp
const ProcessingTimeParam = "processing_time"

// tableTypeTable is the __TABLES__ type code for native tables; views are 2
// and external tables 3.
const tableTypeTable = 1

// ParseTableID splits project.dataset.table. The project part may itself
// contain dots when it is domain-scoped ("example.com:proj").
func ParseTableID(id string) (project, dataset, table string, err error) {
	lastDot := strings.LastIndex(id, ".")
	if lastDot <= 0 {
		return "", "", "", errors.ValidationError("destination", id, "expected project.dataset.table")
	}
	table = id[lastDot+1:]
	rest := id[:lastDot]

	midDot := strings.LastIndex(rest, ".")
	if midDot <= 0 {
		return "", "", "", errors.ValidationError("destination", id, "expected project.dataset.table")
	}
	project, dataset = rest[:midDot], rest[midDot+1:]

	if err := warehouse.ValidateProjectID(project); err != nil {
		return "", "", "", err
	}
	if err := warehouse.ValidateDatasetID(dataset); err != nil {
		return "", "", "", err
	}
	if err := warehouse.ValidateTableID(table); err != nil {
		return "", "", "", err
	}
	return project, dataset, table, nil
}

// BuildQuery returns the INSERT ... SELECT that copies one dataset's
// __TABLES__ rows into destination, stamped with processingTime. Every
// identifier is validated and quoted; the timestamp travels as a parameter.
func BuildQuery(destination string, ds warehouse.Dataset, processingTime time.Time) (warehouse.QueryRequest, error) {
	destProject, destDataset, destTable, err := ParseTableID(destination)
	if err != nil {
		return warehouse.QueryRequest{}, err
	}
	if err := warehouse.ValidateProjectID(ds.ProjectID); err != nil {
		return warehouse.QueryRequest{}, err
	}
	if err := warehouse.ValidateDatasetID(ds.DatasetID); err != nil {
		return warehouse.QueryRequest{}, err
	}

	columns := schema.ColumnNames()
	selects := make([]string, len(columns))
	for i, c := range columns {
		if c == ProcessingTimeParam {
			selects[i] = fmt.Sprintf("@%s AS %s", ProcessingTimeParam, c)
			continue
		}
		selects[i] = c
	}

	sql := fmt.Sprintf("INSERT %s (%s) SELECT %s FROM %s WHERE type = %d",
		warehouse.QuotePath(destProject, destDataset, destTable),
		strings.Join(columns, ", "),
		strings.Join(selects, ", "),
		warehouse.QuotePath(ds.ProjectID, ds.DatasetID, "__TABLES__"),
		tableTypeTable,
	)

	return warehouse.QueryRequest{
		SQL: sql,
		Parameters: []bigquery.QueryParameter{
			{Name: ProcessingTimeParam, Value: processingTime.UTC()},
		},
	}, nil
}
