// Package lifecycle is the model use case shared by the HTTP server, the
// MCP server and the CLI: train, predict, inspect and remove models.
package lifecycle

import (
	"github.com/m-mizutani/modelhub/pkg/adapter"
	"github.com/m-mizutani/modelhub/pkg/catalog"
	"github.com/m-mizutani/modelhub/pkg/policy"
	"github.com/m-mizutani/modelhub/pkg/usecase/registry"
)

// UseCase provides model lifecycle operations
type UseCase struct {
	registry *registry.Registry
	catalog  *catalog.Catalog
	policy   *policy.Engine
	bigquery adapter.BigQuery
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithPolicy sets the training admission policy
func WithPolicy(p *policy.Engine) Option {
	return func(uc *UseCase) {
		uc.policy = p
	}
}

// WithBigQuery enables named BigQuery datasets
func WithBigQuery(bq adapter.BigQuery) Option {
	return func(uc *UseCase) {
		uc.bigquery = bq
	}
}

// New creates a new lifecycle UseCase instance
func New(
	reg *registry.Registry,
	cat *catalog.Catalog,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		registry: reg,
		catalog:  cat,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
