package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/metrics"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a store guard. A zero Timeout disables the
// per-call deadline; Disabled skips the circuit breaker but keeps the
// deadline.
type BreakerConfig struct {
	Name             string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Disabled         bool
}

type guard struct {
	name    string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]
}

func newGuard(cfg BreakerConfig) *guard {
	g := &guard{name: cfg.Name, timeout: cfg.Timeout}
	if cfg.Disabled {
		return g
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	metrics.StoreBreakerState.WithLabelValues(cfg.Name).Set(0)
	g.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Default().Warn("store circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
			metrics.StoreBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// Absent objects are answers, not backend failures
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, interfaces.ErrObjectNotFound) ||
				errors.Is(err, interfaces.ErrDocumentNotFound)
		},
	})
	return g
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func guarded[T any](ctx context.Context, g *guard, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	run := func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		v, err := fn(callCtx)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return v, goerr.Wrap(model.StoreFailure(err), "store call timed out",
				goerr.V("store", g.name), goerr.V("op", op), goerr.V("timeout", g.timeout))
		}
		return v, err
	}

	var (
		result any
		err    error
	)
	if g.cb == nil {
		result, err = run()
	} else {
		result, err = g.cb.Execute(run)
	}

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, goerr.Wrap(model.StoreFailure(err), "store circuit is open",
				goerr.V("store", g.name), goerr.V("op", op))
		}
		return zero, err
	}
	if v, ok := result.(T); ok {
		return v, nil
	}
	return zero, nil
}

type breakerBlobStore struct {
	store interfaces.BlobStore
	g     *guard
}

// NewBreakerBlobStore wraps store with a deadline and circuit breaker
func NewBreakerBlobStore(store interfaces.BlobStore, cfg BreakerConfig) interfaces.BlobStore {
	return &breakerBlobStore{store: store, g: newGuard(cfg)}
}

func (b *breakerBlobStore) Put(ctx context.Context, bucket, path string, data []byte) error {
	_, err := guarded(ctx, b.g, "put", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.Put(ctx, bucket, path, data)
	})
	return err
}

func (b *breakerBlobStore) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	return guarded(ctx, b.g, "get", func(ctx context.Context) ([]byte, error) {
		return b.store.Get(ctx, bucket, path)
	})
}

func (b *breakerBlobStore) Delete(ctx context.Context, bucket, path string) error {
	_, err := guarded(ctx, b.g, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.Delete(ctx, bucket, path)
	})
	return err
}

func (b *breakerBlobStore) Exists(ctx context.Context, bucket string) (bool, error) {
	return guarded(ctx, b.g, "exists", func(ctx context.Context) (bool, error) {
		return b.store.Exists(ctx, bucket)
	})
}

func (b *breakerBlobStore) CreateBucket(ctx context.Context, bucket string) error {
	_, err := guarded(ctx, b.g, "create_bucket", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.CreateBucket(ctx, bucket)
	})
	return err
}

type breakerDocumentStore struct {
	store interfaces.DocumentStore
	g     *guard
}

// NewBreakerDocumentStore wraps store with a deadline and circuit breaker
func NewBreakerDocumentStore(store interfaces.DocumentStore, cfg BreakerConfig) interfaces.DocumentStore {
	return &breakerDocumentStore{store: store, g: newGuard(cfg)}
}

func (b *breakerDocumentStore) FindByID(ctx context.Context, collection string, id model.ModelID) (*model.Metadata, error) {
	return guarded(ctx, b.g, "find", func(ctx context.Context) (*model.Metadata, error) {
		return b.store.FindByID(ctx, collection, id)
	})
}

func (b *breakerDocumentStore) Upsert(ctx context.Context, collection string, id model.ModelID, doc *model.Metadata) (interfaces.UpsertResult, error) {
	return guarded(ctx, b.g, "upsert", func(ctx context.Context) (interfaces.UpsertResult, error) {
		return b.store.Upsert(ctx, collection, id, doc)
	})
}

func (b *breakerDocumentStore) DeleteByID(ctx context.Context, collection string, id model.ModelID) error {
	_, err := guarded(ctx, b.g, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.DeleteByID(ctx, collection, id)
	})
	return err
}

func (b *breakerDocumentStore) List(ctx context.Context, collection string, limit int) ([]*model.Metadata, error) {
	return guarded(ctx, b.g, "list", func(ctx context.Context) ([]*model.Metadata, error) {
		return b.store.List(ctx, collection, limit)
	})
}
