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
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
)

// Save persists a fitted session. An empty id creates a new model; a
// non-empty id is upserted whether or not it exists yet.
//
// The artifact is written before metadata is touched, so a failure in
// between leaves an unreferenced blob and never metadata pointing at a
// missing artifact.
func (r *Registry) Save(
	ctx context.Context,
	session *training.Session,
	id model.ModelID,
	trainScore, testScore *float64,
) (_ model.ModelID, err error) {
	defer func(started time.Time) { metrics.ObserveRegistry("save", started, err) }(time.Now())

	if session == nil || !session.Fitted() {
		return "", goerr.Wrap(model.ErrNotFitted, "only fitted sessions can be saved")
	}

	if id == "" {
		id = r.newID()
	} else if err := id.Validate(); err != nil {
		return "", err
	}

	entry, err := r.catalog.Lookup(session.ModelType())
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve model type", goerr.V("id", id))
	}
	bucket, path := entry.Bucket, entry.BlobPath(id)

	data, err := codec.Encode(session.Pipeline())
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode model", goerr.V("id", id))
	}

	if err := r.blobs.Put(ctx, bucket, path, data); err != nil {
		return "", goerr.Wrap(model.StoreFailure(err), "failed to write artifact",
			goerr.V("id", id), goerr.V("bucket", bucket), goerr.V("path", path))
	}

	prior, err := r.docs.FindByID(ctx, r.collection, id)
	if err != nil && !errors.Is(err, interfaces.ErrDocumentNotFound) {
		return "", goerr.Wrap(model.StoreFailure(err), "failed to read prior metadata", goerr.V("id", id))
	}

	now := r.timestamp()
	createdAt := now
	if prior != nil {
		createdAt = prior.CreatedAt
		if !now.After(prior.UpdatedAt) {
			now = prior.UpdatedAt.Add(time.Microsecond)
		}
	}

	meta := &model.Metadata{
		ID:              id,
		BlobBucket:      bucket,
		BlobPath:        path,
		ModelType:       session.ModelType(),
		Vectorizer:      string(session.VectorizerKind()),
		Hyperparameters: session.Hyperparameters(),
		CreatedAt:       createdAt,
		UpdatedAt:       now,
		TrainScore:      trainScore,
		TestScore:       testScore,
	}

	result, err := r.docs.Upsert(ctx, r.collection, id, meta)
	if err != nil {
		return "", goerr.Wrap(model.StoreFailure(err), "failed to upsert metadata", goerr.V("id", id))
	}
	if result == interfaces.UpsertNone {
		return "", goerr.Wrap(model.ErrRegistryWrite, "metadata upsert reported no effect",
			goerr.V("id", id), goerr.V("collection", r.collection))
	}

	logger := logging.From(ctx)
	if prior != nil && (prior.BlobBucket != bucket || prior.BlobPath != path) {
		// The model type or path template changed; the old artifact is now
		// unreferenced.
		if err := r.blobs.Delete(ctx, prior.BlobBucket, prior.BlobPath); err != nil && !errors.Is(err, interfaces.ErrObjectNotFound) {
			logger.Warn("failed to delete replaced artifact",
				"id", id, "bucket", prior.BlobBucket, "path", prior.BlobPath, "error", err)
		}
	}

	logger.Info("model saved",
		"id", id,
		"model_type", meta.ModelType,
		"result", result.String(),
		"bucket", bucket,
		"path", path,
	)

	return id, nil
}
