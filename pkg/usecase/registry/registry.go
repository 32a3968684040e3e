// Package registry keeps fitted models across two stores: the artifact in a
// blob store and its metadata in a document store, keyed by model ID.
//
// Operations on the same ID are not coordinated. Two concurrent saves both
// write their artifact and the last metadata upsert to complete wins; a save
// racing a remove may leave either state behind. Callers that need stronger
// guarantees must serialize per ID themselves.
package registry

import (
	"time"

	"github.com/m-mizutani/modelhub/pkg/catalog"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
)

// DefaultCollection is the document collection holding model metadata
const DefaultCollection = "models"

// Registry coordinates artifact and metadata persistence
type Registry struct {
	blobs      interfaces.BlobStore
	docs       interfaces.DocumentStore
	catalog    *catalog.Catalog
	collection string
	now        func() time.Time
	newID      func() model.ModelID
}

// Option is a functional option for Registry
type Option func(*Registry)

// WithCollection sets the metadata collection name
func WithCollection(name string) Option {
	return func(r *Registry) {
		r.collection = name
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDGenerator replaces the model ID generator
func WithIDGenerator(gen func() model.ModelID) Option {
	return func(r *Registry) {
		r.newID = gen
	}
}

// New creates a Registry over the given stores
func New(
	blobs interfaces.BlobStore,
	docs interfaces.DocumentStore,
	cat *catalog.Catalog,
	opts ...Option,
) *Registry {
	r := &Registry{
		blobs:      blobs,
		docs:       docs,
		catalog:    cat,
		collection: DefaultCollection,
		now:        time.Now,
		newID:      model.NewModelID,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// timestamp returns now in UTC at microsecond precision, which every
// document store backend can represent without rounding
func (r *Registry) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}
