package schema

import (
	"fmt"
	"io"

	"cloud.google.com/go/bigquery"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Visualizer renders schemas and schema drift as terminal tables
type Visualizer struct {
	useColor bool
}

// NewVisualizer creates a new visualizer
func NewVisualizer(useColor bool) *Visualizer {
	return &Visualizer{useColor: useColor}
}

// RenderSchema writes one row per column
func (v *Visualizer) RenderSchema(w io.Writer, schema bigquery.Schema) {
	table := newTable(w, []string{"#", "Column", "Type", "Mode", "Description"})

	for i, c := range columns(schema) {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			c.Name,
			string(c.Type),
			mode(c),
			c.Description,
		})
	}

	table.Render()
}

// RenderDifferences writes one row per difference, or a single line when
// the schemas match.
func (v *Visualizer) RenderDifferences(w io.Writer, diffs []Difference) {
	if len(diffs) == 0 {
		msg := "Schema matches the expected layout."
		if v.useColor {
			msg = color.GreenString(msg)
		}
		fmt.Fprintln(w, msg)
		return
	}

	table := newTable(w, []string{"#", "Column", "Status", "Details"})

	for i, diff := range diffs {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			diff.Column,
			v.status(diff.DiffType),
			diff.Description,
		})
	}

	table.Render()
}

func (v *Visualizer) status(t DiffType) string {
	if !v.useColor {
		return string(t)
	}
	switch t {
	case DiffTypeAdded:
		return color.GreenString("+ADDED")
	case DiffTypeRemoved:
		return color.RedString("-REMOVED")
	case DiffTypeModified:
		return color.YellowString("~MODIFIED")
	}
	return string(t)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}
