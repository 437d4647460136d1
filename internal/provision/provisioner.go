// Package provision makes sure the bookkeeping dataset and stats table exist.
package provision

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"bqstats/internal/observability"
	"bqstats/internal/schema"
	"bqstats/internal/warehouse"
	"bqstats/pkg/errors"
)

const (
	DefaultDatasetID = "utils"
	DefaultTableID   = "daily_storage_stats"
)

// Config names the objects to provision
type Config struct {
	DatasetID string
	TableID   string
	// Location for a newly created dataset; empty uses the client's location
	Location string
	// Labels are attached to newly created objects only
	Labels map[string]string
}

// Provisioner creates the dataset and table when they are missing. It never
// alters objects that already exist.
type Provisioner struct {
	client warehouse.Client
	config Config
	logger observability.Observer
}

// NewProvisioner creates a provisioner, filling in default names
func NewProvisioner(client warehouse.Client, config Config, logger observability.Observer) *Provisioner {
	if config.DatasetID == "" {
		config.DatasetID = DefaultDatasetID
	}
	if config.TableID == "" {
		config.TableID = DefaultTableID
	}
	if logger == nil {
		logger = observability.Nop{}
	}
	return &Provisioner{client: client, config: config, logger: logger}
}

// Validate checks the configured names before anything is sent
func (p *Provisioner) Validate() error {
	if err := warehouse.ValidateDatasetID(p.config.DatasetID); err != nil {
		return err
	}
	return warehouse.ValidateTableID(p.config.TableID)
}

// Ensure provisions the dataset then the table and returns the table id
func (p *Provisioner) Ensure(ctx context.Context) (string, error) {
	if err := p.EnsureDataset(ctx); err != nil {
		return "", err
	}
	return p.EnsureTable(ctx)
}

// EnsureDataset creates the dataset only if the warehouse reports it missing.
// Any other lookup failure is returned unchanged.
func (p *Provisioner) EnsureDataset(ctx context.Context) error {
	if err := warehouse.ValidateDatasetID(p.config.DatasetID); err != nil {
		return err
	}

	_, err := p.client.DatasetMetadata(ctx, p.config.DatasetID)
	switch {
	case err == nil:
		p.logger.Infof("Dataset %s already exists.", p.config.DatasetID)
		return nil
	case !errors.IsNotFound(err):
		return errors.Wrap(err, errors.GetErrorCode(err), fmt.Sprintf("Failed to look up dataset %s", p.config.DatasetID)).
			WithSeverity(errors.SeverityCritical)
	}

	md := &bigquery.DatasetMetadata{
		Description: "Bookkeeping tables maintained by bqstats",
		Location:    p.config.Location,
		Labels:      p.config.Labels,
	}
	if err := p.client.CreateDataset(ctx, p.config.DatasetID, md); err != nil {
		if errors.HasCode(err, errors.ErrCodeAlreadyExists) {
			p.logger.Infof("Dataset %s already exists.", p.config.DatasetID)
			return nil
		}
		return errors.Wrap(err, errors.GetErrorCode(err), fmt.Sprintf("Failed to create dataset %s", p.config.DatasetID)).
			WithSeverity(errors.SeverityCritical)
	}

	p.logger.Infof("Dataset %s created.", p.config.DatasetID)
	return nil
}

// EnsureTable creates the stats table only if the warehouse reports it
// missing and returns project.dataset.table either way. An existing table
// whose schema has drifted is reported but left alone.
func (p *Provisioner) EnsureTable(ctx context.Context) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	tableID := warehouse.TableID(p.client.ProjectID(), p.config.DatasetID, p.config.TableID)

	md, err := p.client.TableMetadata(ctx, p.config.DatasetID, p.config.TableID)
	switch {
	case err == nil:
		p.logger.Infof("Table %s already exists.", tableID)
		p.reportDrift(tableID, md)
		return tableID, nil
	case !errors.IsNotFound(err):
		return "", errors.Wrap(err, errors.GetErrorCode(err), fmt.Sprintf("Failed to look up table %s", tableID)).
			WithSeverity(errors.SeverityCritical)
	}

	if err := p.client.CreateTable(ctx, p.config.DatasetID, p.config.TableID, schema.TableMetadata(p.config.Labels)); err != nil {
		if errors.HasCode(err, errors.ErrCodeAlreadyExists) {
			p.logger.Infof("Table %s already exists.", tableID)
			return tableID, nil
		}
		return "", errors.Wrap(err, errors.GetErrorCode(err), fmt.Sprintf("Failed to create table %s", tableID)).
			WithSeverity(errors.SeverityCritical)
	}

	p.logger.Infof("Table %s created.", tableID)
	return tableID, nil
}

// Drift compares the live table schema with the expected one
func (p *Provisioner) Drift(ctx context.Context) ([]schema.Difference, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	md, err := p.client.TableMetadata(ctx, p.config.DatasetID, p.config.TableID)
	if err != nil {
		return nil, err
	}
	return schema.Compare(schema.StatsSchema(), md.Schema), nil
}

func (p *Provisioner) reportDrift(tableID string, md *bigquery.TableMetadata) {
	if md == nil {
		return
	}
	for _, d := range schema.Compare(schema.StatsSchema(), md.Schema) {
		p.logger.WarnWithFields("Stats table schema differs from the expected layout", map[string]interface{}{
			"table":  tableID,
			"column": d.Column,
			"change": string(d.DiffType),
			"detail": d.Description,
		})
	}
}
