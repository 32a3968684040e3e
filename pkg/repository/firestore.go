package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implements interfaces.DocumentStore using Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

var _ interfaces.DocumentStore = (*Firestore)(nil)

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID), goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) FindByID(ctx context.Context, collection string, id model.ModelID) (*model.Metadata, error) {
	snap, err := r.client.Collection(collection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrDocumentNotFound, "document not found",
				goerr.V("collection", collection), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("collection", collection), goerr.V("id", id))
	}

	var doc model.Metadata
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return &doc, nil
}

// Upsert reads and writes in one transaction so that the result reflects
// the state the write was applied to
func (r *Firestore) Upsert(ctx context.Context, collection string, id model.ModelID, doc *model.Metadata) (interfaces.UpsertResult, error) {
	ref := r.client.Collection(collection).Doc(id.String())

	result := interfaces.UpsertNone
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = interfaces.UpsertNone
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			result = interfaces.UpsertInserted
		} else {
			result = interfaces.UpsertMatched
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return interfaces.UpsertNone, goerr.Wrap(err, "failed to upsert document",
			goerr.V("collection", collection), goerr.V("id", id))
	}
	return result, nil
}

func (r *Firestore) DeleteByID(ctx context.Context, collection string, id model.ModelID) error {
	if _, err := r.client.Collection(collection).Doc(id.String()).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return nil
}

func (r *Firestore) List(ctx context.Context, collection string, limit int) ([]*model.Metadata, error) {
	iter := r.client.Collection(collection).Limit(limit).Documents(ctx)
	defer iter.Stop()

	var docs []*model.Metadata
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("collection", collection))
		}

		var doc model.Metadata
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document",
				goerr.V("collection", collection), goerr.V("id", snap.Ref.ID))
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}
