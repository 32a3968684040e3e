package adapter_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/modelhub/pkg/adapter"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
)

func TestStorage(t *testing.T) {
	projectID := os.Getenv("TEST_STORAGE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_STORAGE_PROJECT_ID is not set")
	}
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	store, err := adapter.NewStorage(ctx, projectID, bucket)
	gt.NoError(t, err)
	defer store.Close()

	path := "modelhub-test/" + uuid.New().String()
	gt.NoError(t, store.Put(ctx, bucket, path, []byte("artifact")))

	data, err := store.Get(ctx, bucket, path)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "artifact")

	gt.NoError(t, store.Delete(ctx, bucket, path))
	_, err = store.Get(ctx, bucket, path)
	gt.True(t, errors.Is(err, interfaces.ErrObjectNotFound))

	ok, err := store.Exists(ctx, bucket)
	gt.NoError(t, err)
	gt.True(t, ok)
}
