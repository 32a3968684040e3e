package adapter

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
)

const (
	badgerBucketPrefix = "bucket:"
	badgerBlobPrefix   = "blob:"
	badgerDocPrefix    = "doc:"
)

// ErrBucketNotFound is returned when writing to a bucket that was never created
var ErrBucketNotFound = goerr.New("bucket not found")

// Badger is an embedded store implementing both BlobStore and DocumentStore.
// It backs local development and hermetic tests.
type Badger struct {
	db *badger.DB
}

var (
	_ interfaces.BlobStore     = (*Badger)(nil)
	_ interfaces.DocumentStore = (*Badger)(nil)
)

// NewBadger opens (or creates) a Badger database at dir and ensures buckets
// exist. An empty dir opens an in-memory database.
func NewBadger(ctx context.Context, dir string, buckets ...string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open badger", goerr.V("dir", dir))
	}

	b := &Badger{db: db}
	if err := ensureBuckets(ctx, b, buckets); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the database
func (b *Badger) Close() error {
	if err := b.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close badger")
	}
	return nil
}

func blobKey(bucket, path string) []byte {
	return []byte(badgerBlobPrefix + bucket + "/" + path)
}

func docKey(collection string, id model.ModelID) []byte {
	return []byte(badgerDocPrefix + collection + "/" + string(id))
}

func (b *Badger) Put(ctx context.Context, bucket, path string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(badgerBucketPrefix + bucket)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return goerr.Wrap(ErrBucketNotFound, "cannot write to missing bucket", goerr.V("bucket", bucket))
			}
			return err
		}
		return txn.Set(blobKey(bucket, path), data)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put object", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	return nil
}

func (b *Badger) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(bucket, path))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, goerr.Wrap(interfaces.ErrObjectNotFound, "object not found",
			goerr.V("bucket", bucket), goerr.V("path", path))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get object", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	return data, nil
}

func (b *Badger) Delete(ctx context.Context, bucket, path string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		key := blobKey(bucket, path)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return goerr.Wrap(interfaces.ErrObjectNotFound, "object not found",
			goerr.V("bucket", bucket), goerr.V("path", path))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to delete object", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	return nil
}

func (b *Badger) Exists(ctx context.Context, bucket string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerBucketPrefix + bucket))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to look up bucket", goerr.V("bucket", bucket))
	}
	return true, nil
}

func (b *Badger) CreateBucket(ctx context.Context, bucket string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerBucketPrefix+bucket), []byte{1})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create bucket", goerr.V("bucket", bucket))
	}
	return nil
}

func (b *Badger) FindByID(ctx context.Context, collection string, id model.ModelID) (*model.Metadata, error) {
	var doc model.Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, goerr.Wrap(interfaces.ErrDocumentNotFound, "document not found",
			goerr.V("collection", collection), goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return &doc, nil
}

// Upsert checks for an existing document and writes in one transaction so
// the reported result matches what was written
func (b *Badger) Upsert(ctx context.Context, collection string, id model.ModelID, doc *model.Metadata) (interfaces.UpsertResult, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return interfaces.UpsertNone, goerr.Wrap(err, "failed to marshal document", goerr.V("id", id))
	}

	result := interfaces.UpsertNone
	err = b.db.Update(func(txn *badger.Txn) error {
		key := docKey(collection, id)
		switch _, err := txn.Get(key); {
		case err == nil:
			result = interfaces.UpsertMatched
		case errors.Is(err, badger.ErrKeyNotFound):
			result = interfaces.UpsertInserted
		default:
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return interfaces.UpsertNone, goerr.Wrap(err, "failed to upsert document",
			goerr.V("collection", collection), goerr.V("id", id))
	}
	return result, nil
}

func (b *Badger) DeleteByID(ctx context.Context, collection string, id model.ModelID) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(collection, id))
	})
	if err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return nil
}

func (b *Badger) List(ctx context.Context, collection string, limit int) ([]*model.Metadata, error) {
	var docs []*model.Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerDocPrefix + collection + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(docs) < limit; it.Next() {
			var doc model.Metadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			docs = append(docs, &doc)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list documents", goerr.V("collection", collection))
	}
	return docs, nil
}
