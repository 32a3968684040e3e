package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"google.golang.org/api/googleapi"
)

// Storage implements interfaces.BlobStore using Cloud Storage
type Storage struct {
	projectID string
	client    *storage.Client
}

var _ interfaces.BlobStore = (*Storage)(nil)

// NewStorage creates a Cloud Storage client and ensures buckets exist.
// projectID is only used when a bucket has to be created.
func NewStorage(ctx context.Context, projectID string, buckets ...string) (*Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	s := &Storage{
		projectID: projectID,
		client:    client,
	}
	if err := ensureBuckets(ctx, s, buckets); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying client
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Put(ctx context.Context, bucket, path string, data []byte) error {
	w := s.client.Bucket(bucket).Object(path).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize object", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(interfaces.ErrObjectNotFound, "object not found",
				goerr.V("bucket", bucket), goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object body", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	return data, nil
}

func (s *Storage) Delete(ctx context.Context, bucket, path string) error {
	if err := s.client.Bucket(bucket).Object(path).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return goerr.Wrap(interfaces.ErrObjectNotFound, "object not found",
				goerr.V("bucket", bucket), goerr.V("path", path))
		}
		return goerr.Wrap(err, "failed to delete object", goerr.V("bucket", bucket), goerr.V("path", path))
	}
	return nil
}

func (s *Storage) Exists(ctx context.Context, bucket string) (bool, error) {
	if _, err := s.client.Bucket(bucket).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrBucketNotExist) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get bucket attributes", goerr.V("bucket", bucket))
	}
	return true, nil
}

func (s *Storage) CreateBucket(ctx context.Context, bucket string) error {
	if s.projectID == "" {
		return goerr.New("project ID is required to create a bucket", goerr.V("bucket", bucket))
	}
	if err := s.client.Bucket(bucket).Create(ctx, s.projectID, nil); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return nil
		}
		return goerr.Wrap(err, "failed to create bucket", goerr.V("bucket", bucket), goerr.V("project_id", s.projectID))
	}
	return nil
}
