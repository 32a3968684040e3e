package registry

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/metrics"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
)

// Remove deletes the artifact and then the metadata of id. If the artifact
// cannot be deleted nothing else is touched. If the metadata cannot be
// deleted afterwards, the error carries model.ErrOrphanedMetadata.
func (r *Registry) Remove(ctx context.Context, id model.ModelID) (err error) {
	defer func(started time.Time) { metrics.ObserveRegistry("remove", started, err) }(time.Now())

	meta, err := r.getMetadata(ctx, id)
	if err != nil {
		return err
	}

	logger := logging.From(ctx)
	if err := r.blobs.Delete(ctx, meta.BlobBucket, meta.BlobPath); err != nil {
		if !errors.Is(err, interfaces.ErrObjectNotFound) {
			return goerr.Wrap(model.StoreFailure(err), "failed to delete artifact",
				goerr.V("id", id), goerr.V("bucket", meta.BlobBucket), goerr.V("path", meta.BlobPath))
		}
		logger.Warn("artifact already absent", "id", id, "bucket", meta.BlobBucket, "path", meta.BlobPath)
	}

	if err := r.docs.DeleteByID(ctx, r.collection, id); err != nil {
		logger.Warn("metadata orphaned after artifact deletion", "id", id, "error", err)
		return goerr.Wrap(model.Mark(model.ErrOrphanedMetadata, model.StoreFailure(err)),
			"artifact deleted but metadata remains", goerr.V("id", id))
	}

	logger.Info("model removed", "id", id, "model_type", meta.ModelType)
	return nil
}
