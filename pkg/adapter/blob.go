package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
)

// ensureBuckets creates every missing bucket. Blob store constructors call it
// so that buckets exist on first use.
func ensureBuckets(ctx context.Context, store interfaces.BlobStore, buckets []string) error {
	for _, bucket := range buckets {
		ok, err := store.Exists(ctx, bucket)
		if err != nil {
			return goerr.Wrap(err, "failed to check bucket", goerr.V("bucket", bucket))
		}
		if ok {
			continue
		}
		if err := store.CreateBucket(ctx, bucket); err != nil {
			return goerr.Wrap(err, "failed to create bucket", goerr.V("bucket", bucket))
		}
		logging.From(ctx).Info("bucket created", "bucket", bucket)
	}
	return nil
}
