// Package auth turns a service-account key file into a BigQuery client
// bound to one project.
package auth

import (
	"context"
	"os"

	"cloud.google.com/go/bigquery"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"bqstats/internal/common"
	"bqstats/internal/warehouse"
	"bqstats/pkg/errors"
)

// CloudPlatformScope covers BigQuery data read, data edit and job execution
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Options configures Authenticate
type Options struct {
	ProjectID       string
	CredentialsFile string
	// Scopes defaults to CloudPlatformScope
	Scopes []string
	// Config carries location and timeout through to the warehouse service
	Config warehouse.Config
	// ClientOptions are appended after the credentials option
	ClientOptions []option.ClientOption
}

// LoadCredentials reads and parses a service-account key file
func LoadCredentials(ctx context.Context, path string, scopes ...string) (*google.Credentials, error) {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.AuthError(errors.ErrCodeCredentialsNotFound, "Invalid credentials file path", path, err)
	}

	info, err := os.Stat(cleaned)
	if err != nil {
		return nil, errors.AuthError(errors.ErrCodeCredentialsNotFound, "Credentials file not found", cleaned, err)
	}
	if info.IsDir() {
		return nil, errors.AuthError(errors.ErrCodeCredentialsNotFound, "Credentials path is a directory", cleaned, nil)
	}

	data, err := os.ReadFile(cleaned) // #nosec G304 - path is cleaned
	if err != nil {
		return nil, errors.AuthError(errors.ErrCodeCredentialsNotFound, "Failed to read credentials file", cleaned, err)
	}

	if len(scopes) == 0 {
		scopes = []string{CloudPlatformScope}
	}

	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, errors.AuthError(errors.ErrCodeCredentialsInvalid, "Malformed credentials file", cleaned, err)
	}

	return creds, nil
}

// Authenticate builds a warehouse service bound to opts.ProjectID using the
// credentials in opts.CredentialsFile. Every failure is fatal for the run.
func Authenticate(ctx context.Context, opts Options) (*warehouse.Service, error) {
	if opts.ProjectID == "" {
		return nil, errors.MissingConfigError("project_id")
	}
	if err := warehouse.ValidateProjectID(opts.ProjectID); err != nil {
		return nil, err
	}
	if opts.CredentialsFile == "" {
		return nil, errors.MissingConfigError("service_account_file")
	}

	creds, err := LoadCredentials(ctx, opts.CredentialsFile, opts.Scopes...)
	if err != nil {
		return nil, err
	}

	clientOpts := append([]option.ClientOption{option.WithCredentials(creds)}, opts.ClientOptions...)
	client, err := bigquery.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, errors.AuthError(errors.ErrCodeAuthenticationFailed, "Failed to create BigQuery client", opts.CredentialsFile, err).
			WithContext("project", opts.ProjectID)
	}

	config := opts.Config
	config.ProjectID = opts.ProjectID

	return warehouse.NewService(client, config), nil
}
