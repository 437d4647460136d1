package schema

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// columnComparer ignores descriptions; only the shape of a column counts as drift
var columnComparer = cmpopts.IgnoreFields(Column{}, "Description")

// Compare reports how actual deviates from expected. Column names match
// case-insensitively, as they do in BigQuery. Nested fields are not inspected.
// Differences follow the expected column order, then columns only present in
// actual.
func Compare(expected, actual bigquery.Schema) []Difference {
	expectedCols := columns(expected)
	actualCols := columns(actual)

	actualByName := make(map[string]Column, len(actualCols))
	for _, c := range actualCols {
		actualByName[strings.ToLower(c.Name)] = c
	}

	var diffs []Difference
	seen := make(map[string]bool, len(expectedCols))

	for _, exp := range expectedCols {
		key := strings.ToLower(exp.Name)
		seen[key] = true

		act, ok := actualByName[key]
		if !ok {
			diffs = append(diffs, Difference{
				Column:      exp.Name,
				DiffType:    DiffTypeRemoved,
				Expected:    &exp,
				Description: fmt.Sprintf("column %s is missing", exp.Name),
			})
			continue
		}

		if delta := cmp.Diff(exp, act, columnComparer, cmpopts.IgnoreFields(Column{}, "Name")); delta != "" {
			diffs = append(diffs, Difference{
				Column:      exp.Name,
				DiffType:    DiffTypeModified,
				Expected:    &exp,
				Actual:      &act,
				Description: describe(exp, act),
			})
		}
	}

	for _, act := range actualCols {
		if seen[strings.ToLower(act.Name)] {
			continue
		}
		diffs = append(diffs, Difference{
			Column:      act.Name,
			DiffType:    DiffTypeAdded,
			Actual:      &act,
			Description: fmt.Sprintf("unexpected column %s %s", act.Name, act.Type),
		})
	}

	return diffs
}

// Equal reports whether two schemas have the same columns in the same order
func Equal(a, b bigquery.Schema) bool {
	return cmp.Equal(columns(a), columns(b), columnComparer)
}

func columns(s bigquery.Schema) []Column {
	out := make([]Column, 0, len(s))
	for _, f := range s {
		if f == nil {
			continue
		}
		out = append(out, Column{
			Name:        f.Name,
			Type:        f.Type,
			Required:    f.Required,
			Description: f.Description,
		})
	}
	return out
}

func describe(exp, act Column) string {
	var parts []string
	if exp.Type != act.Type {
		parts = append(parts, fmt.Sprintf("type %s, expected %s", act.Type, exp.Type))
	}
	if exp.Required != act.Required {
		parts = append(parts, fmt.Sprintf("mode %s, expected %s", mode(act), mode(exp)))
	}
	return fmt.Sprintf("column %s has %s", exp.Name, strings.Join(parts, "; "))
}

func mode(c Column) string {
	if c.Required {
		return "REQUIRED"
	}
	return "NULLABLE"
}
