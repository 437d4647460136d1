package warehouse

import (
	"regexp"
	"strings"

	"bqstats/pkg/errors"
)

// https://cloud.google.com/resource-manager/docs/creating-managing-projects
// plus the legacy domain-scoped form "example.com:my-project".
var projectIDPattern = regexp.MustCompile(`^([a-z0-9][a-z0-9.-]*[a-z0-9]:)?[a-z][a-z0-9-]{4,28}[a-z0-9]$`)

// maxNameLength bounds dataset ids and table names (bytes, UTF-8 for tables)
const maxNameLength = 1024

var datasetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Table names may contain letters, marks, numbers, connectors, dashes and spaces.
var tableIDPattern = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\p{Pc}\p{Pd} ]+$`)

// ValidateProjectID checks a project id against BigQuery naming rules
func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) {
		return errors.ValidationError("project_id", id, "not a valid Google Cloud project id")
	}
	return nil
}

// ValidateDatasetID checks a dataset id against BigQuery naming rules
func ValidateDatasetID(id string) error {
	if len(id) > maxNameLength || !datasetIDPattern.MatchString(id) {
		return errors.ValidationError("dataset_id", id, "dataset ids may contain only letters, digits and underscores")
	}
	return nil
}

// ValidateTableID checks a table id against BigQuery naming rules
func ValidateTableID(id string) error {
	if len(id) > maxNameLength || !tableIDPattern.MatchString(id) {
		return errors.ValidationError("table_id", id, "not a valid BigQuery table name")
	}
	return nil
}

// QuotePath joins already-validated path components and wraps them in
// backticks, e.g. `project.dataset.table`.
func QuotePath(parts ...string) string {
	return "`" + strings.Join(parts, ".") + "`"
}

// TableID returns the fully qualified project.dataset.table string
func TableID(projectID, datasetID, tableID string) string {
	return strings.Join([]string{projectID, datasetID, tableID}, ".")
}
