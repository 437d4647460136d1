package schema

import (
	"bytes"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsSchema(t *testing.T) {
	s := StatsSchema()
	require.Len(t, s, 8)

	assert.Equal(t, []string{
		"processing_time", "project_id", "dataset_id", "table_id",
		"creation_time", "last_modified_time", "row_count", "size_bytes",
	}, ColumnNames())

	assert.Equal(t, bigquery.TimestampFieldType, s[0].Type)
	assert.Equal(t, bigquery.StringFieldType, s[3].Type)
	assert.Equal(t, bigquery.IntegerFieldType, s[7].Type)
	for _, f := range s {
		assert.True(t, f.Required, "column %s must be REQUIRED", f.Name)
	}

	// Each call returns an independent copy.
	s[0].Name = "mutated"
	assert.Equal(t, "processing_time", StatsSchema()[0].Name)
}

func TestTableMetadata(t *testing.T) {
	md := TableMetadata(map[string]string{"owner": "data"})
	assert.Equal(t, "data", md.Labels["owner"])
	assert.True(t, Equal(StatsSchema(), md.Schema))
}

func TestCompare(t *testing.T) {
	withField := func(mutate func(bigquery.Schema) bigquery.Schema) bigquery.Schema {
		return mutate(StatsSchema())
	}

	tests := []struct {
		name          string
		actual        bigquery.Schema
		expectedTypes []DiffType
		expectedCols  []string
	}{
		{
			name:   "identical",
			actual: StatsSchema(),
		},
		{
			name: "descriptions and case are ignored",
			actual: withField(func(s bigquery.Schema) bigquery.Schema {
				s[1].Description = "changed"
				s[2].Name = "DATASET_ID"
				return s
			}),
		},
		{
			name: "missing column",
			actual: withField(func(s bigquery.Schema) bigquery.Schema {
				return s[:7]
			}),
			expectedTypes: []DiffType{DiffTypeRemoved},
			expectedCols:  []string{"size_bytes"},
		},
		{
			name: "extra column",
			actual: withField(func(s bigquery.Schema) bigquery.Schema {
				return append(s, &bigquery.FieldSchema{Name: "note", Type: bigquery.StringFieldType})
			}),
			expectedTypes: []DiffType{DiffTypeAdded},
			expectedCols:  []string{"note"},
		},
		{
			name: "type and mode changed",
			actual: withField(func(s bigquery.Schema) bigquery.Schema {
				s[0].Type = bigquery.DateTimeFieldType
				s[6].Required = false
				return s
			}),
			expectedTypes: []DiffType{DiffTypeModified, DiffTypeModified},
			expectedCols:  []string{"processing_time", "row_count"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diffs := Compare(StatsSchema(), tt.actual)
			require.Len(t, diffs, len(tt.expectedTypes))
			for i, d := range diffs {
				assert.Equal(t, tt.expectedTypes[i], d.DiffType)
				assert.Equal(t, tt.expectedCols[i], d.Column)
			}
		})
	}
}

func TestCompareDescription(t *testing.T) {
	actual := StatsSchema()
	actual[0].Type = bigquery.DateTimeFieldType
	actual[0].Required = false

	diffs := Compare(StatsSchema(), actual)
	require.Len(t, diffs, 1)
	assert.Equal(t, "column processing_time has type DATETIME, expected TIMESTAMP; mode NULLABLE, expected REQUIRED", diffs[0].Description)
	assert.Equal(t, bigquery.TimestampFieldType, diffs[0].Expected.Type)
	assert.Equal(t, bigquery.DateTimeFieldType, diffs[0].Actual.Type)
}

func TestCompareKeepsColumnPerDifference(t *testing.T) {
	extra := bigquery.Schema{
		{Name: "owner", Type: bigquery.StringFieldType},
		{Name: "region", Type: bigquery.StringFieldType},
	}

	diffs := Compare(StatsSchema(), extra)
	require.Len(t, diffs, len(StatsColumns)+len(extra))

	for _, d := range diffs {
		switch d.DiffType {
		case DiffTypeRemoved:
			require.NotNil(t, d.Expected)
			assert.Equal(t, d.Column, d.Expected.Name)
		case DiffTypeAdded:
			require.NotNil(t, d.Actual)
			assert.Equal(t, d.Column, d.Actual.Name)
		}
	}
	assert.NotSame(t, diffs[0].Expected, diffs[1].Expected)
}

func TestVisualizer_RenderSchema(t *testing.T) {
	var buf bytes.Buffer
	NewVisualizer(false).RenderSchema(&buf, StatsSchema())

	out := buf.String()
	assert.Contains(t, out, "COLUMN")
	assert.Contains(t, out, "processing_time")
	assert.Contains(t, out, "last_modified_time")
	assert.Contains(t, out, "TIMESTAMP")
	assert.Contains(t, out, "REQUIRED")
}

func TestVisualizer_RenderDifferences(t *testing.T) {
	v := NewVisualizer(false)

	var buf bytes.Buffer
	v.RenderDifferences(&buf, nil)
	assert.Equal(t, "Schema matches the expected layout.\n", buf.String())

	buf.Reset()
	v.RenderDifferences(&buf, Compare(StatsSchema(), StatsSchema()[:7]))
	assert.Contains(t, buf.String(), "size_bytes")
	assert.Contains(t, buf.String(), "REMOVED")
}
