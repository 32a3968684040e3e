package registry

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/codec"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/metrics"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/training"
)

// Get returns the metadata of id
func (r *Registry) Get(ctx context.Context, id model.ModelID) (_ *model.Metadata, err error) {
	defer func(started time.Time) { metrics.ObserveRegistry("get", started, err) }(time.Now())
	return r.getMetadata(ctx, id)
}

func (r *Registry) getMetadata(ctx context.Context, id model.ModelID) (*model.Metadata, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	meta, err := r.docs.FindByID(ctx, r.collection, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrDocumentNotFound) {
			return nil, goerr.Wrap(model.ErrNotFound, "no metadata for model", goerr.V("id", id))
		}
		return nil, goerr.Wrap(model.StoreFailure(err), "failed to read metadata", goerr.V("id", id))
	}
	return meta, nil
}

// Load reconstructs a fitted, predict-only session for id
func (r *Registry) Load(ctx context.Context, id model.ModelID) (_ *training.Session, _ *model.Metadata, err error) {
	defer func(started time.Time) { metrics.ObserveRegistry("load", started, err) }(time.Now())

	meta, err := r.getMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := r.blobs.Get(ctx, meta.BlobBucket, meta.BlobPath)
	if err != nil {
		if errors.Is(err, interfaces.ErrObjectNotFound) {
			return nil, nil, goerr.Wrap(model.ErrArtifactMissing, "metadata exists but artifact is absent",
				goerr.V("id", id), goerr.V("bucket", meta.BlobBucket), goerr.V("path", meta.BlobPath))
		}
		return nil, nil, goerr.Wrap(model.StoreFailure(err), "failed to read artifact",
			goerr.V("id", id), goerr.V("bucket", meta.BlobBucket), goerr.V("path", meta.BlobPath))
	}

	pipeline, err := codec.Decode(data)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to decode artifact", goerr.V("id", id))
	}
	if kind := pipeline.Estimator.Kind(); kind != meta.ModelType {
		return nil, nil, goerr.Wrap(model.ErrCorruptArtifact, "artifact model type differs from metadata",
			goerr.V("id", id), goerr.V("artifact", kind), goerr.V("metadata", meta.ModelType))
	}

	return training.Restore(pipeline, meta), meta, nil
}
