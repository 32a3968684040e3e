package registry

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/metrics"
	"github.com/m-mizutani/modelhub/pkg/model"
)

// List returns up to limit metadata documents in store order
func (r *Registry) List(ctx context.Context, limit int) (_ []*model.Metadata, err error) {
	defer func(started time.Time) { metrics.ObserveRegistry("list", started, err) }(time.Now())

	if limit <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "limit must be positive", goerr.V("limit", limit))
	}

	models, err := r.docs.List(ctx, r.collection, limit)
	if err != nil {
		return nil, goerr.Wrap(model.StoreFailure(err), "failed to list metadata", goerr.V("limit", limit))
	}
	return models, nil
}
