package schema

import (
	"cloud.google.com/go/bigquery"
)

// Column describes one column of the stats table
type Column struct {
	Name        string
	Type        bigquery.FieldType
	Required    bool
	Description string
}

// StatsColumns is the fixed layout of the stats table, in insert order
var StatsColumns = []Column{
	{Name: "processing_time", Type: bigquery.TimestampFieldType, Required: true, Description: "Time the collection run started"},
	{Name: "project_id", Type: bigquery.StringFieldType, Required: true, Description: "Project owning the table"},
	{Name: "dataset_id", Type: bigquery.StringFieldType, Required: true, Description: "Dataset owning the table"},
	{Name: "table_id", Type: bigquery.StringFieldType, Required: true, Description: "Table name"},
	{Name: "creation_time", Type: bigquery.IntegerFieldType, Required: true, Description: "Creation time in epoch milliseconds"},
	{Name: "last_modified_time", Type: bigquery.IntegerFieldType, Required: true, Description: "Last modification time in epoch milliseconds"},
	{Name: "row_count", Type: bigquery.IntegerFieldType, Required: true, Description: "Number of rows"},
	{Name: "size_bytes", Type: bigquery.IntegerFieldType, Required: true, Description: "Logical size in bytes"},
}

// ColumnNames returns the stats column names in insert order
func ColumnNames() []string {
	names := make([]string, len(StatsColumns))
	for i, c := range StatsColumns {
		names[i] = c.Name
	}
	return names
}

// StatsSchema returns the BigQuery schema of the stats table
func StatsSchema() bigquery.Schema {
	schema := make(bigquery.Schema, len(StatsColumns))
	for i, c := range StatsColumns {
		schema[i] = &bigquery.FieldSchema{
			Name:        c.Name,
			Type:        c.Type,
			Required:    c.Required,
			Description: c.Description,
		}
	}
	return schema
}

// TableMetadata returns the metadata used to create the stats table
func TableMetadata(labels map[string]string) *bigquery.TableMetadata {
	return &bigquery.TableMetadata{
		Name:        "Daily storage stats",
		Description: "Per-table storage statistics appended once per collection run",
		Schema:      StatsSchema(),
		Labels:      labels,
	}
}

// DiffType represents the type of schema difference
type DiffType string

const (
	DiffTypeAdded    DiffType = "ADDED"
	DiffTypeRemoved  DiffType = "REMOVED"
	DiffTypeModified DiffType = "MODIFIED"
)

// Difference is one column-level deviation of a live table from the expected schema
type Difference struct {
	Column      string
	DiffType    DiffType
	Expected    *Column
	Actual      *Column
	Description string
}
