package provision

import (
	"context"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bqstats/internal/schema"
	"bqstats/internal/testutil"
	"bqstats/pkg/errors"
)

func newProvisioner(mock *testutil.MockWarehouse, obs *testutil.MemoryObserver) *Provisioner {
	return NewProvisioner(mock, Config{Location: "EU", Labels: map[string]string{"tool": "bqstats"}}, obs)
}

func TestEnsureDataset_Idempotent(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	obs := &testutil.MemoryObserver{}
	p := newProvisioner(mock, obs)

	require.NoError(t, p.EnsureDataset(context.Background()))
	require.NoError(t, p.EnsureDataset(context.Background()))

	assert.Equal(t, 1, mock.DatasetCount("utils"))
	assert.Equal(t, 1, mock.DatasetCreates)
	assert.Equal(t, "EU", mock.DatasetMeta["utils"].Location)
	assert.Equal(t, "bqstats", mock.DatasetMeta["utils"].Labels["tool"])
	assert.Equal(t, []string{"Dataset utils created.", "Dataset utils already exists."}, obs.Messages("INFO"))
}

func TestEnsureTable_Idempotent(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	obs := &testutil.MemoryObserver{}
	p := newProvisioner(mock, obs)
	ctx := context.Background()

	require.NoError(t, p.EnsureDataset(ctx))
	first, err := p.EnsureTable(ctx)
	require.NoError(t, err)
	second, err := p.EnsureTable(ctx)
	require.NoError(t, err)

	assert.Equal(t, "test-project.utils.daily_storage_stats", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.TableCreates)
	assert.True(t, schema.Equal(schema.StatsSchema(), mock.TableMeta["utils.daily_storage_stats"].Schema))
	assert.Empty(t, obs.Messages("WARN"))
}

func TestEnsure(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	p := NewProvisioner(mock, Config{DatasetID: "bookkeeping", TableID: "sizes"}, nil)

	id, err := p.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-project.bookkeeping.sizes", id)
	assert.Equal(t, 1, mock.DatasetCount("bookkeeping"))
}

func TestEnsureDataset_OtherErrorsDoNotCreate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{name: "permission denied", err: errors.New(errors.ErrCodePermissionDenied, "Access Denied"), code: errors.ErrCodePermissionDenied},
		{name: "service unavailable", err: errors.New(errors.ErrCodeServiceUnavailable, "backendError"), code: errors.ErrCodeServiceUnavailable},
		{name: "untyped", err: assert.AnError, code: errors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockWarehouse("test-project")
			mock.DatasetGetError = tt.err

			err := newProvisioner(mock, &testutil.MemoryObserver{}).EnsureDataset(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetErrorCode(err))
			assert.False(t, errors.IsNotFound(err))
			assert.Zero(t, mock.DatasetCreates)
		})
	}
}

func TestEnsureTable_OtherErrorsDoNotCreate(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	mock.AddDataset("utils")
	mock.TableGetError = errors.New(errors.ErrCodePermissionDenied, "Access Denied")

	_, err := newProvisioner(mock, &testutil.MemoryObserver{}).EnsureTable(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePermissionDenied))
	assert.Zero(t, mock.TableCreates)
}

// racingWarehouse reports objects as missing even when they exist, so every
// create collides with a concurrent writer.
type racingWarehouse struct {
	*testutil.MockWarehouse
}

func (r racingWarehouse) DatasetMetadata(ctx context.Context, datasetID string) (*bigquery.DatasetMetadata, error) {
	return nil, errors.New(errors.ErrCodeNotFound, "Not found")
}

func (r racingWarehouse) TableMetadata(ctx context.Context, datasetID, tableID string) (*bigquery.TableMetadata, error) {
	return nil, errors.New(errors.ErrCodeNotFound, "Not found")
}

func TestEnsure_ConcurrentCreateCountsAsSuccess(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	mock.AddDataset("utils")
	mock.TableMeta["utils.daily_storage_stats"] = schema.TableMetadata(nil)

	obs := &testutil.MemoryObserver{}
	p := NewProvisioner(racingWarehouse{mock}, Config{}, obs)

	id, err := p.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-project.utils.daily_storage_stats", id)
	assert.Zero(t, mock.DatasetCreates)
	assert.Zero(t, mock.TableCreates)
	assert.Equal(t, []string{
		"Dataset utils already exists.",
		"Table test-project.utils.daily_storage_stats already exists.",
	}, obs.Messages("INFO"))
}

func TestEnsureTable_ReportsDrift(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	mock.AddDataset("utils")
	drifted := schema.TableMetadata(nil)
	drifted.Schema = drifted.Schema[:7]
	mock.TableMeta["utils.daily_storage_stats"] = drifted

	obs := &testutil.MemoryObserver{}
	_, err := newProvisioner(mock, obs).EnsureTable(context.Background())
	require.NoError(t, err)

	warnings := obs.Messages("WARN")
	require.Len(t, warnings, 1)
	assert.Equal(t, "size_bytes", obs.Records[len(obs.Records)-1].Fields["column"])
	assert.Len(t, mock.TableMeta["utils.daily_storage_stats"].Schema, 7, "existing table must not be migrated")
}

func TestDrift(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	p := newProvisioner(mock, &testutil.MemoryObserver{})

	_, err := p.Drift(context.Background())
	assert.True(t, errors.IsNotFound(err))

	_, err = p.Ensure(context.Background())
	require.NoError(t, err)
	diffs, err := p.Drift(context.Background())
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestInvalidNamesAreRejected(t *testing.T) {
	mock := testutil.NewMockWarehouse("test-project")
	p := NewProvisioner(mock, Config{DatasetID: "bad-name"}, nil)

	err := p.EnsureDataset(context.Background())
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
	assert.Zero(t, mock.DatasetCreates)
}
