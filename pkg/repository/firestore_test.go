package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

// testDocumentStore runs the document store contract against store
func testDocumentStore(t *testing.T, store interfaces.DocumentStore) {
	ctx := context.Background()
	collection := "modelhub_test"
	id := model.NewModelID()
	t.Cleanup(func() { _ = store.DeleteByID(ctx, collection, id) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	score := 0.5
	doc := &model.Metadata{
		ID:              id,
		BlobBucket:      "bucket",
		BlobPath:        "logreg/" + id.String() + ".mhub",
		ModelType:       model.ModelTypeLogReg,
		Vectorizer:      "tfidf",
		Hyperparameters: map[string]any{"C": 0.5, "fit_intercept": true},
		CreatedAt:       now,
		UpdatedAt:       now,
		TestScore:       &score,
	}

	t.Run("find absent", func(t *testing.T) {
		_, err := store.FindByID(ctx, collection, id)
		gt.True(t, errors.Is(err, interfaces.ErrDocumentNotFound))
	})

	t.Run("insert then match", func(t *testing.T) {
		res, err := store.Upsert(ctx, collection, id, doc)
		gt.NoError(t, err)
		gt.Equal(t, res, interfaces.UpsertInserted)

		doc.UpdatedAt = now.Add(time.Second)
		res, err = store.Upsert(ctx, collection, id, doc)
		gt.NoError(t, err)
		gt.Equal(t, res, interfaces.UpsertMatched)
	})

	t.Run("find", func(t *testing.T) {
		got, err := store.FindByID(ctx, collection, id)
		gt.NoError(t, err)
		gt.Equal(t, got.ID, id)
		gt.Equal(t, got.ModelType, model.ModelTypeLogReg)
		gt.True(t, got.CreatedAt.Equal(now))
		gt.True(t, got.UpdatedAt.Equal(now.Add(time.Second)))
		gt.Equal(t, *got.TestScore, 0.5)
		gt.Nil(t, got.TrainScore)
	})

	t.Run("list", func(t *testing.T) {
		docs, err := store.List(ctx, collection, 1000)
		gt.NoError(t, err)
		found := false
		for _, d := range docs {
			if d.ID == id {
				found = true
			}
		}
		gt.True(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		gt.NoError(t, store.DeleteByID(ctx, collection, id))
		gt.NoError(t, store.DeleteByID(ctx, collection, id))
		_, err := store.FindByID(ctx, collection, id)
		gt.True(t, errors.Is(err, interfaces.ErrDocumentNotFound))
	})
}

func TestFirestore(t *testing.T) {
	testDocumentStore(t, setupFirestore(t))
}
