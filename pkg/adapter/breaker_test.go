package adapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/modelhub/pkg/adapter"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
)

type flakyBlobStore struct {
	interfaces.BlobStore
	calls int
	err   error
	delay time.Duration
}

func (f *flakyBlobStore) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.BlobStore.Get(ctx, bucket, path)
}

func TestBreakerOpens(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyBlobStore{BlobStore: newBadger(t, "b"), err: errors.New("connection reset")}
	store := adapter.NewBreakerBlobStore(flaky, adapter.BreakerConfig{
		Name:             "test-open",
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, err := store.Get(ctx, "b", "x")
		gt.Error(t, err)
		gt.False(t, errors.Is(err, model.ErrStoreUnavailable))
	}

	_, err := store.Get(ctx, "b", "x")
	gt.True(t, errors.Is(err, model.ErrStoreUnavailable))
	gt.Equal(t, flaky.calls, 2)
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyBlobStore{BlobStore: newBadger(t, "b")}
	store := adapter.NewBreakerBlobStore(flaky, adapter.BreakerConfig{
		Name:             "test-not-found",
		FailureThreshold: 1,
	})

	for i := 0; i < 3; i++ {
		_, err := store.Get(ctx, "b", "missing")
		gt.True(t, errors.Is(err, interfaces.ErrObjectNotFound))
	}
	gt.Equal(t, flaky.calls, 3)
}

func TestBreakerTimeout(t *testing.T) {
	ctx := context.Background()
	db := newBadger(t, "b")
	gt.NoError(t, db.Put(ctx, "b", "x", []byte("data")))

	flaky := &flakyBlobStore{BlobStore: db, delay: time.Second}
	store := adapter.NewBreakerBlobStore(flaky, adapter.BreakerConfig{
		Name:     "test-timeout",
		Timeout:  10 * time.Millisecond,
		Disabled: true,
	})

	_, err := store.Get(ctx, "b", "x")
	gt.True(t, errors.Is(err, model.ErrStoreUnavailable))
}

func TestBreakerPassThrough(t *testing.T) {
	ctx := context.Background()
	db := newBadger(t)
	docs := adapter.NewBreakerDocumentStore(db, adapter.BreakerConfig{Name: "test-docs", Timeout: time.Second})

	res, err := docs.Upsert(ctx, "models", "m1", &model.Metadata{ID: "m1"})
	gt.NoError(t, err)
	gt.Equal(t, res, interfaces.UpsertInserted)

	got, err := docs.FindByID(ctx, "models", "m1")
	gt.NoError(t, err)
	gt.Equal(t, got.ID, model.ModelID("m1"))

	list, err := docs.List(ctx, "models", 5)
	gt.NoError(t, err)
	gt.A(t, list).Length(1)

	gt.NoError(t, docs.DeleteByID(ctx, "models", "m1"))
}
