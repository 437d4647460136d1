// Package collector runs one statistics collection: authenticate, provision,
// enumerate datasets and record their table stats.
package collector

import (
	"context"

	"bqstats/internal/auth"
	"bqstats/internal/observability"
	"bqstats/internal/provision"
	"bqstats/internal/schema"
	"bqstats/internal/stats"
	"bqstats/internal/warehouse"
)

// ClientFactory opens a warehouse client
type ClientFactory func(ctx context.Context, opts auth.Options) (warehouse.Client, error)

// Config is everything one run needs
type Config struct {
	Auth      auth.Options
	Provision provision.Config
	// Stats.Destination is filled in from the provisioned table
	Stats stats.Config
}

// Collector wires the run steps together
type Collector struct {
	config  Config
	logger  observability.Observer
	connect ClientFactory
}

// New creates a collector that authenticates with a service-account key
func New(config Config, logger observability.Observer) *Collector {
	if logger == nil {
		logger = observability.Nop{}
	}
	return &Collector{
		config:  config,
		logger:  logger,
		connect: authenticate,
	}
}

// WithClientFactory replaces how the warehouse client is opened
func (c *Collector) WithClientFactory(f ClientFactory) *Collector {
	c.connect = f
	return c
}

// Run performs one collection. Steps run strictly in order and any
// authentication or provisioning failure stops the run before a dataset is
// listed.
func (c *Collector) Run(ctx context.Context) (*stats.Summary, error) {
	client, err := c.connect(ctx, c.config.Auth)
	if err != nil {
		return nil, err
	}
	defer c.close(client)

	destination, err := provision.NewProvisioner(client, c.config.Provision, c.logger).Ensure(ctx)
	if err != nil {
		return nil, err
	}

	config := c.config.Stats
	config.Destination = destination
	recorder := stats.NewRecorder(client, config, c.logger)

	return recorder.Run(ctx, client.Datasets(ctx))
}

// Drift compares the live stats table with the expected schema
func (c *Collector) Drift(ctx context.Context) ([]schema.Difference, error) {
	client, err := c.connect(ctx, c.config.Auth)
	if err != nil {
		return nil, err
	}
	defer c.close(client)

	return provision.NewProvisioner(client, c.config.Provision, c.logger).Drift(ctx)
}

func (c *Collector) close(client warehouse.Client) {
	if err := client.Close(); err != nil {
		c.logger.Warnf("Failed to close BigQuery client: %v", err)
	}
}

func authenticate(ctx context.Context, opts auth.Options) (warehouse.Client, error) {
	service, err := auth.Authenticate(ctx, opts)
	if err != nil {
		return nil, err
	}
	return service, nil
}
