package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/olekukonko/tablewriter"

	apperrors "bqstats/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	output io.Writer = os.Stdout

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// SetOutput redirects all printers and returns the previous writer
func SetOutput(w io.Writer) io.Writer {
	prev := output
	output = w
	return prev
}

// ColorEnabled reports whether printers emit ANSI colors
func ColorEnabled() bool {
	return supportsColor
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	padding := (width - len(title) - 2) / 2
	if padding < 0 {
		padding = 0
	}
	right := width - 2 - padding - len(title)
	if right < 0 {
		right = 0
	}

	fmt.Fprintln(output, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(output, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", right),
	)
	fmt.Fprintln(output, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError displays a formatted error message
func ShowError(err error) {
	fmt.Fprintf(output, "\n%s\n", ColorError("ERROR:"))

	// Parse error message for better formatting
	message := err.Error()
	lines := strings.Split(message, "\n")

	for i, line := range lines {
		if i == 0 {
			fmt.Fprintf(output, "  %s\n", line)
		} else {
			fmt.Fprintf(output, "  %s\n", ColorDim(line))
		}
	}

	// Add helpful suggestions if applicable
	if suggestion := getSuggestion(err); suggestion != "" {
		fmt.Fprintf(output, "\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(suggestion))
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Fprintf(output, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Fprintf(output, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Fprintf(output, "%s %s\n", ColorInfo("INFO:"), message)
}

// Table buffers rows and renders them with tablewriter
type Table struct {
	table *tablewriter.Table
}

// NewTable creates a new table
func NewTable() *Table {
	t := tablewriter.NewWriter(output)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return &Table{table: t}
}

// AddHeader sets the header row
func (t *Table) AddHeader(columns ...string) {
	t.table.SetHeader(columns)
}

// AddRow adds a data row to the table
func (t *Table) AddRow(values ...string) {
	t.table.Append(values)
}

// Render displays the table
func (t *Table) Render() {
	t.table.Render()
}

// getSuggestion returns a hint for errors that carry no suggestions of their own
func getSuggestion(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && len(appErr.Suggestions) > 0 {
		return ""
	}

	switch apperrors.GetErrorCode(err) {
	case apperrors.ErrCodeConfigMissing, apperrors.ErrCodeConfigInvalid:
		return "Run 'bqstats --help' for the list of flags, or 'bqstats init' to write a config file"
	case apperrors.ErrCodeCredentialsNotFound, apperrors.ErrCodeCredentialsInvalid, apperrors.ErrCodeAuthenticationFailed:
		return "Check the --service_account_file path and that the key belongs to an active service account"
	case apperrors.ErrCodePermissionDenied:
		return "Ensure the service account has BigQuery Data Editor and Job User on the project"
	case apperrors.ErrCodeTimeout:
		return "Increase --timeout or check network connectivity to BigQuery"
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "access denied"), strings.Contains(lower, "permission"):
		return "Ensure the service account has BigQuery Data Editor and Job User on the project"
	case strings.Contains(lower, "not found"):
		return "Verify the project id and that the BigQuery API is enabled"
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return "Verify network connectivity to bigquery.googleapis.com"
	default:
		return ""
	}
}
