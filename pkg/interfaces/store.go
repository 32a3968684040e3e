package interfaces

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
)

var (
	// ErrObjectNotFound is returned by BlobStore when the object is absent
	ErrObjectNotFound = goerr.New("object not found")
	// ErrDocumentNotFound is returned by DocumentStore when the document is absent
	ErrDocumentNotFound = goerr.New("document not found")
)

// UpsertResult reports what an upsert did to the store
type UpsertResult int

const (
	UpsertNone UpsertResult = iota
	UpsertInserted
	UpsertMatched
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertMatched:
		return "matched"
	default:
		return "none"
	}
}

// BlobStore keeps named binary objects in buckets. Implementations create
// their configured buckets on construction.
type BlobStore interface {
	// Put writes data to bucket/path, replacing any existing object
	Put(ctx context.Context, bucket, path string, data []byte) error

	// Get reads the object; ErrObjectNotFound if absent
	Get(ctx context.Context, bucket, path string) ([]byte, error)

	// Delete removes the object; ErrObjectNotFound if absent
	Delete(ctx context.Context, bucket, path string) error

	// Exists reports whether the bucket exists
	Exists(ctx context.Context, bucket string) (bool, error)

	// CreateBucket creates the bucket. Creating an existing bucket is not an error.
	CreateBucket(ctx context.Context, bucket string) error
}

// DocumentStore keeps model metadata documents keyed by ModelID
type DocumentStore interface {
	// FindByID returns the document; ErrDocumentNotFound if absent
	FindByID(ctx context.Context, collection string, id model.ModelID) (*model.Metadata, error)

	// Upsert inserts or replaces the document
	Upsert(ctx context.Context, collection string, id model.ModelID, doc *model.Metadata) (UpsertResult, error)

	// DeleteByID removes the document. Deleting an absent document is not an error.
	DeleteByID(ctx context.Context, collection string, id model.ModelID) error

	// List returns up to limit documents in store-native order
	List(ctx context.Context, collection string, limit int) ([]*model.Metadata, error)
}
