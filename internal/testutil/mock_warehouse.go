package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"bqstats/internal/warehouse"
	"bqstats/pkg/errors"
)

// MockWarehouse is an in-memory warehouse.Client. Datasets and tables live
// in maps; queries are recorded and answered from QueryErrors / QueryRows.
type MockWarehouse struct {
	mu sync.Mutex

	Project string

	// State
	DatasetMeta map[string]*bigquery.DatasetMetadata
	TableMeta   map[string]*bigquery.TableMetadata
	// ListOrder is the order Datasets returns; defaults to insertion order
	ListOrder []string

	// Call tracking
	ExecutedQueries []ExecutedQuery
	DatasetCreates  int
	TableCreates    int
	ListCalls       int
	Closed          bool

	// Behaviour
	DatasetGetError    error
	TableGetError      error
	DatasetCreateError error
	TableCreateError   error
	ListError          error
	// ListErrorAfter makes Datasets fail after yielding this many items (0 = first call)
	ListErrorAfter int
	// QueryErrors maps a dataset id to the error its query returns
	QueryErrors map[string]error
	// QueryRows maps a dataset id to rows its query unexpectedly returns
	QueryRows map[string][]map[string]bigquery.Value
	// QueryDelay is slept inside Query
	QueryDelay time.Duration
}

// ExecutedQuery represents a query that was submitted
type ExecutedQuery struct {
	DatasetID string
	Request   warehouse.QueryRequest
	Timestamp time.Time
}

// NewMockWarehouse creates a mock bound to project
func NewMockWarehouse(project string) *MockWarehouse {
	return &MockWarehouse{
		Project:     project,
		DatasetMeta: make(map[string]*bigquery.DatasetMetadata),
		TableMeta:   make(map[string]*bigquery.TableMetadata),
		QueryErrors: make(map[string]error),
		QueryRows:   make(map[string][]map[string]bigquery.Value),
	}
}

// AddDataset registers an existing dataset
func (m *MockWarehouse) AddDataset(datasetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDatasetLocked(datasetID, &bigquery.DatasetMetadata{})
}

func (m *MockWarehouse) addDatasetLocked(datasetID string, md *bigquery.DatasetMetadata) {
	if _, ok := m.DatasetMeta[datasetID]; !ok {
		m.ListOrder = append(m.ListOrder, datasetID)
	}
	m.DatasetMeta[datasetID] = md
}

// DatasetCount returns how many datasets with the id exist (0 or 1)
func (m *MockWarehouse) DatasetCount(datasetID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.ListOrder {
		if id == datasetID {
			n++
		}
	}
	return n
}

// Queries returns a copy of the executed queries
func (m *MockWarehouse) Queries() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExecutedQuery, len(m.ExecutedQueries))
	copy(out, m.ExecutedQueries)
	return out
}

func (m *MockWarehouse) ProjectID() string {
	return m.Project
}

func (m *MockWarehouse) DatasetMetadata(ctx context.Context, datasetID string) (*bigquery.DatasetMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DatasetGetError != nil {
		return nil, m.DatasetGetError
	}
	md, ok := m.DatasetMeta[datasetID]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, fmt.Sprintf("Not found: Dataset %s:%s", m.Project, datasetID))
	}
	return md, nil
}

func (m *MockWarehouse) CreateDataset(ctx context.Context, datasetID string, md *bigquery.DatasetMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DatasetCreateError != nil {
		return m.DatasetCreateError
	}
	if _, ok := m.DatasetMeta[datasetID]; ok {
		return errors.New(errors.ErrCodeAlreadyExists, fmt.Sprintf("Already Exists: Dataset %s:%s", m.Project, datasetID))
	}
	if md == nil {
		md = &bigquery.DatasetMetadata{}
	}
	m.DatasetCreates++
	m.addDatasetLocked(datasetID, md)
	return nil
}

func (m *MockWarehouse) TableMetadata(ctx context.Context, datasetID, tableID string) (*bigquery.TableMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TableGetError != nil {
		return nil, m.TableGetError
	}
	md, ok := m.TableMeta[datasetID+"."+tableID]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, fmt.Sprintf("Not found: Table %s:%s.%s", m.Project, datasetID, tableID))
	}
	return md, nil
}

func (m *MockWarehouse) CreateTable(ctx context.Context, datasetID, tableID string, md *bigquery.TableMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TableCreateError != nil {
		return m.TableCreateError
	}
	if _, ok := m.DatasetMeta[datasetID]; !ok {
		return errors.New(errors.ErrCodeNotFound, fmt.Sprintf("Not found: Dataset %s:%s", m.Project, datasetID))
	}
	key := datasetID + "." + tableID
	if _, ok := m.TableMeta[key]; ok {
		return errors.New(errors.ErrCodeAlreadyExists, fmt.Sprintf("Already Exists: Table %s:%s", m.Project, key))
	}
	m.TableCreates++
	m.TableMeta[key] = md
	return nil
}

func (m *MockWarehouse) Datasets(ctx context.Context) warehouse.DatasetIterator {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++
	ids := make([]string, len(m.ListOrder))
	copy(ids, m.ListOrder)
	return &mockDatasetIterator{
		project:  m.Project,
		ids:      ids,
		err:      m.ListError,
		errAfter: m.ListErrorAfter,
	}
}

func (m *MockWarehouse) Query(ctx context.Context, req warehouse.QueryRequest) (*warehouse.QueryResult, error) {
	if m.QueryDelay > 0 {
		select {
		case <-time.After(m.QueryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	datasetID := DatasetFromQuery(req.SQL)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExecutedQueries = append(m.ExecutedQueries, ExecutedQuery{
		DatasetID: datasetID,
		Request:   req,
		Timestamp: time.Now(),
	})

	if err, ok := m.QueryErrors[datasetID]; ok {
		return nil, err
	}

	return &warehouse.QueryResult{
		JobID:          fmt.Sprintf("job_%d", len(m.ExecutedQueries)),
		BytesProcessed: 1024,
		Rows:           &SliceRows{Rows: m.QueryRows[datasetID]},
	}, nil
}

func (m *MockWarehouse) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ warehouse.Client = (*MockWarehouse)(nil)

type mockDatasetIterator struct {
	project  string
	ids      []string
	pos      int
	err      error
	errAfter int
}

func (it *mockDatasetIterator) Next() (warehouse.Dataset, error) {
	if it.err != nil && it.pos >= it.errAfter {
		return warehouse.Dataset{}, it.err
	}
	if it.pos >= len(it.ids) {
		return warehouse.Dataset{}, iterator.Done
	}
	id := it.ids[it.pos]
	it.pos++
	return warehouse.Dataset{ProjectID: it.project, DatasetID: id}, nil
}

// SliceRows is a RowIterator over fixed rows
type SliceRows struct {
	Rows []map[string]bigquery.Value
	pos  int
}

// Next copies the next row into dst, which must be *map[string]bigquery.Value
func (s *SliceRows) Next(dst interface{}) error {
	if s.pos >= len(s.Rows) {
		return iterator.Done
	}
	out, ok := dst.(*map[string]bigquery.Value)
	if !ok {
		return fmt.Errorf("unsupported destination %T", dst)
	}
	*out = s.Rows[s.pos]
	s.pos++
	return nil
}
