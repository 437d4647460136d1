package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"bqstats/internal/observability"
	"bqstats/internal/warehouse"
	"bqstats/pkg/errors"
)

// Config controls how datasets are recorded
type Config struct {
	// Destination is project.dataset.table of the stats table
	Destination string
	// ContinueOnError attempts every dataset and reports all failures at
	// the end instead of stopping at the first one.
	ContinueOnError bool
	// Concurrency above 1 is honoured only together with ContinueOnError
	Concurrency int
	// DryRun validates each query without inserting anything
	DryRun bool
	// Timeout bounds each dataset's query; zero means no limit
	Timeout time.Duration
	// Labels are attached to every query job in addition to run_id and tool
	Labels map[string]string
}

// Summary describes one Run
type Summary struct {
	RunID          string
	ProcessingTime time.Time
	Datasets       int
	Succeeded      int
	Failed         int
	BytesProcessed int64
	Duration       time.Duration
}

// Recorder submits one stats query per dataset
type Recorder struct {
	client warehouse.Client
	config Config
	logger observability.Observer
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	summary *Summary
}

// NewRecorder creates a recorder
func NewRecorder(client warehouse.Client, config Config, logger observability.Observer) *Recorder {
	if logger == nil {
		logger = observability.Nop{}
	}
	if config.Concurrency < 1 || !config.ContinueOnError {
		config.Concurrency = 1
	}
	return &Recorder{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock replaces the time source
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// WithRunID replaces the run id generator
func (r *Recorder) WithRunID(newID func() string) *Recorder {
	r.newID = newID
	return r
}

// Run records every dataset it yields. The processing timestamp is taken once
// so all rows written by one run share it. A listing failure always ends the
// run; query failures end it unless ContinueOnError is set.
func (r *Recorder) Run(ctx context.Context, it warehouse.DatasetIterator) (*Summary, error) {
	start := r.now()
	r.summary = &Summary{
		RunID:          r.newID(),
		ProcessingTime: start.UTC(),
	}

	var err error
	if r.config.ContinueOnError {
		err = r.runIsolated(ctx, it)
	} else {
		err = r.runFailFast(ctx, it)
	}

	r.summary.Duration = r.now().Sub(start)
	r.logger.InfoWithFields("Stats run finished", map[string]interface{}{
		"run_id":          r.summary.RunID,
		"datasets":        r.summary.Datasets,
		"succeeded":       r.summary.Succeeded,
		"failed":          r.summary.Failed,
		"bytes_processed": r.summary.BytesProcessed,
		"dry_run":         r.config.DryRun,
	})

	return r.summary, err
}

func (r *Recorder) runFailFast(ctx context.Context, it warehouse.DatasetIterator) error {
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return listError(err)
		}
		if err := r.record(ctx, ds); err != nil {
			return err
		}
	}
}

func (r *Recorder) runIsolated(ctx context.Context, it warehouse.DatasetIterator) error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		result *multierror.Error
	)
	g.SetLimit(r.config.Concurrency)

	collect := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		result = multierror.Append(result, err)
	}

	var listErr error
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			listErr = listError(err)
			break
		}
		if ctx.Err() != nil {
			listErr = errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "Stats run cancelled")
			break
		}

		g.Go(func() error {
			if err := r.record(ctx, ds); err != nil {
				collect(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if listErr != nil {
		if r.summary.Failed == 0 {
			return listErr
		}
		result = multierror.Append(result, listErr)
	}
	if result == nil {
		return nil
	}

	return errors.Wrap(result.ErrorOrNil(), errors.ErrCodeQueryExecution,
		fmt.Sprintf("%d of %d datasets failed", r.summary.Failed, r.summary.Datasets)).
		WithContext("run_id", r.summary.RunID)
}

// record submits and drains one dataset's query
func (r *Recorder) record(ctx context.Context, ds warehouse.Dataset) error {
	r.update(func(s *Summary) { s.Datasets++ })

	bytes, err := r.submit(ctx, ds)
	if err != nil {
		r.update(func(s *Summary) { s.Failed++ })
		r.logger.ErrorWithFields("Failed to update stats", map[string]interface{}{
			"dataset": ds.FullID(),
			"error":   err.Error(),
		})
		return err
	}

	r.update(func(s *Summary) {
		s.Succeeded++
		s.BytesProcessed += bytes
	})
	return nil
}

func (r *Recorder) submit(ctx context.Context, ds warehouse.Dataset) (int64, error) {
	req, err := BuildQuery(r.config.Destination, ds, r.summary.ProcessingTime)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return 0, appErr.WithContext("dataset", ds.FullID())
		}
		return 0, err
	}
	req.Labels = r.labels()
	req.DryRun = r.config.DryRun

	r.logger.Infof("Updating stats for : %s", ds.FullID())

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	res, err := r.client.Query(ctx, req)
	if err != nil {
		return 0, errors.QueryError(fmt.Sprintf("Failed to update stats for %s", ds.FullID()), req.SQL, err).
			WithContext("dataset", ds.FullID())
	}

	if r.config.DryRun {
		r.logger.Debugf("Dry run for %s would process %d bytes", ds.FullID(), res.BytesProcessed)
	}

	// An INSERT returns no rows; anything else is logged as-is.
	for {
		var row map[string]bigquery.Value
		err := res.Rows.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, errors.QueryError(fmt.Sprintf("Failed to read result for %s", ds.FullID()), req.SQL, err).
				WithContext("dataset", ds.FullID()).
				WithContext("job_id", res.JobID)
		}
		r.logger.Infof("%v", row)
	}

	return res.BytesProcessed, nil
}

func (r *Recorder) labels() map[string]string {
	labels := make(map[string]string, len(r.config.Labels)+2)
	for k, v := range r.config.Labels {
		labels[k] = v
	}
	labels["run_id"] = r.summary.RunID
	labels["tool"] = "bqstats"
	return labels
}

func (r *Recorder) update(fn func(*Summary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.summary)
}

func listError(err error) error {
	if _, ok := err.(*errors.AppError); ok {
		return errors.Wrap(err, errors.GetErrorCode(err), "Failed to list datasets").
			WithSeverity(errors.SeverityCritical)
	}
	return errors.Wrap(err, errors.ErrCodeWarehouse, "Failed to list datasets").
		WithSeverity(errors.SeverityCritical)
}
