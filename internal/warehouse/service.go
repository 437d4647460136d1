package warehouse

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"bqstats/pkg/errors"
)

// Dataset identifies one dataset returned by the enumerator
type Dataset struct {
	ProjectID string
	DatasetID string
}

// FullID returns project.dataset
func (d Dataset) FullID() string {
	return d.ProjectID + "." + d.DatasetID
}

// DatasetIterator is a lazy, single-pass sequence of datasets. Next returns
// iterator.Done once the sequence is exhausted.
type DatasetIterator interface {
	Next() (Dataset, error)
}

// RowIterator yields result rows; Next returns iterator.Done at the end.
// *bigquery.RowIterator satisfies it.
type RowIterator interface {
	Next(dst interface{}) error
}

// QueryRequest is one SQL statement plus its named parameters
type QueryRequest struct {
	SQL        string
	Parameters []bigquery.QueryParameter
	Labels     map[string]string
	DryRun     bool
}

// QueryResult is a finished query job
type QueryResult struct {
	JobID          string
	BytesProcessed int64
	Rows           RowIterator
}

// Client is the subset of BigQuery the scan needs
type Client interface {
	ProjectID() string
	DatasetMetadata(ctx context.Context, datasetID string) (*bigquery.DatasetMetadata, error)
	CreateDataset(ctx context.Context, datasetID string, md *bigquery.DatasetMetadata) error
	TableMetadata(ctx context.Context, datasetID, tableID string) (*bigquery.TableMetadata, error)
	CreateTable(ctx context.Context, datasetID, tableID string, md *bigquery.TableMetadata) error
	Datasets(ctx context.Context) DatasetIterator
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
	Close() error
}

// Config holds BigQuery client settings
type Config struct {
	ProjectID string
	// Location applies to created datasets and submitted jobs; empty means provider default
	Location string
	// Timeout bounds each metadata call; zero means no limit
	Timeout time.Duration
}

// Service provides BigQuery operations for one project
type Service struct {
	client *bigquery.Client
	config Config
}

var _ Client = (*Service)(nil)

// NewService wraps an authenticated BigQuery client
func NewService(client *bigquery.Client, config Config) *Service {
	if config.ProjectID == "" {
		config.ProjectID = client.Project()
	}
	return &Service{
		client: client,
		config: config,
	}
}

// ProjectID returns the project all operations are scoped to
func (s *Service) ProjectID() string {
	return s.config.ProjectID
}

// Location returns the configured location
func (s *Service) Location() string {
	return s.config.Location
}

// DatasetMetadata fetches dataset metadata. A missing dataset yields an
// error with ErrCodeNotFound.
func (s *Service) DatasetMetadata(ctx context.Context, datasetID string) (*bigquery.DatasetMetadata, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	md, err := s.client.DatasetInProject(s.config.ProjectID, datasetID).Metadata(ctx)
	if err != nil {
		return nil, classify(err, "get dataset metadata").
			WithContext("project", s.config.ProjectID).
			WithContext("dataset", datasetID)
	}
	return md, nil
}

// CreateDataset creates a dataset in the bound project
func (s *Service) CreateDataset(ctx context.Context, datasetID string, md *bigquery.DatasetMetadata) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	if md == nil {
		md = &bigquery.DatasetMetadata{}
	}
	if md.Location == "" {
		md.Location = s.config.Location
	}

	if err := s.client.DatasetInProject(s.config.ProjectID, datasetID).Create(ctx, md); err != nil {
		return classify(err, "create dataset").
			WithContext("project", s.config.ProjectID).
			WithContext("dataset", datasetID)
	}
	return nil
}

// TableMetadata fetches table metadata. A missing table yields an error
// with ErrCodeNotFound.
func (s *Service) TableMetadata(ctx context.Context, datasetID, tableID string) (*bigquery.TableMetadata, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	md, err := s.client.DatasetInProject(s.config.ProjectID, datasetID).Table(tableID).Metadata(ctx)
	if err != nil {
		return nil, classify(err, "get table metadata").
			WithContext("project", s.config.ProjectID).
			WithContext("dataset", datasetID).
			WithContext("table", tableID)
	}
	return md, nil
}

// CreateTable creates a table in the bound project
func (s *Service) CreateTable(ctx context.Context, datasetID, tableID string, md *bigquery.TableMetadata) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	if err := s.client.DatasetInProject(s.config.ProjectID, datasetID).Table(tableID).Create(ctx, md); err != nil {
		return classify(err, "create table").
			WithContext("project", s.config.ProjectID).
			WithContext("dataset", datasetID).
			WithContext("table", tableID)
	}
	return nil
}

// Datasets lists every dataset in the project. Paging is handled by the
// BigQuery client; the iterator cannot be restarted.
func (s *Service) Datasets(ctx context.Context) DatasetIterator {
	it := s.client.Datasets(ctx)
	it.ProjectID = s.config.ProjectID
	return &datasetIterator{it: it}
}

type datasetIterator struct {
	it *bigquery.DatasetIterator
}

func (d *datasetIterator) Next() (Dataset, error) {
	ds, err := d.it.Next()
	if err == iterator.Done {
		return Dataset{}, iterator.Done
	}
	if err != nil {
		return Dataset{}, classify(err, "list datasets")
	}
	return Dataset{ProjectID: ds.ProjectID, DatasetID: ds.DatasetID}, nil
}

// Query submits a job and waits for it to finish. The returned rows are
// read lazily, so ctx must stay alive until the caller is done iterating.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	q := s.client.Query(req.SQL)
	q.Parameters = req.Parameters
	q.Labels = req.Labels
	q.DryRun = req.DryRun
	if s.config.Location != "" {
		q.Location = s.config.Location
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, classify(err, "submit query")
	}

	if req.DryRun {
		status := job.LastStatus()
		if status == nil {
			return &QueryResult{Rows: emptyRows{}}, nil
		}
		if err := status.Err(); err != nil {
			return nil, classify(err, "dry run query")
		}
		return &QueryResult{
			BytesProcessed: bytesProcessed(status),
			Rows:           emptyRows{},
		}, nil
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, classify(err, "wait for query").WithContext("job_id", job.ID())
	}
	if err := status.Err(); err != nil {
		return nil, classify(err, "query job failed").WithContext("job_id", job.ID())
	}

	rows, err := job.Read(ctx)
	if err != nil {
		return nil, classify(err, "read query results").WithContext("job_id", job.ID())
	}

	return &QueryResult{
		JobID:          job.ID(),
		BytesProcessed: bytesProcessed(status),
		Rows:           rows,
	}, nil
}

// Close releases the underlying client
func (s *Service) Close() error {
	if err := s.client.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to close BigQuery client")
	}
	return nil
}

func (s *Service) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.config.Timeout)
}

func bytesProcessed(status *bigquery.JobStatus) int64 {
	if status == nil || status.Statistics == nil {
		return 0
	}
	return status.Statistics.TotalBytesProcessed
}

type emptyRows struct{}

func (emptyRows) Next(interface{}) error { return iterator.Done }
