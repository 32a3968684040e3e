package repository

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS modelhub_documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       JSONB NOT NULL,
	PRIMARY KEY (collection, id)
)`

// Postgres implements interfaces.DocumentStore on a single JSONB table
type Postgres struct {
	pool *pgxpool.Pool
}

var _ interfaces.DocumentStore = (*Postgres)(nil)

// NewPostgres connects to dsn and creates the document table if needed
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to postgres")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to create document table")
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool
func (r *Postgres) Close() {
	r.pool.Close()
}

func (r *Postgres) FindByID(ctx context.Context, collection string, id model.ModelID) (*model.Metadata, error) {
	var body []byte
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM modelhub_documents WHERE collection = $1 AND id = $2`,
		collection, id.String(),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goerr.Wrap(interfaces.ErrDocumentNotFound, "document not found",
			goerr.V("collection", collection), goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("collection", collection), goerr.V("id", id))
	}

	var doc model.Metadata
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return &doc, nil
}

// Upsert uses xmax to tell an insert from an update: it is zero only for a
// freshly inserted row version
func (r *Postgres) Upsert(ctx context.Context, collection string, id model.ModelID, doc *model.Metadata) (interfaces.UpsertResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return interfaces.UpsertNone, goerr.Wrap(err, "failed to encode document", goerr.V("id", id))
	}

	var inserted bool
	err = r.pool.QueryRow(ctx, `
		INSERT INTO modelhub_documents (collection, id, body)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body
		RETURNING (xmax = 0)`,
		collection, id.String(), string(body),
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.UpsertNone, nil
	}
	if err != nil {
		return interfaces.UpsertNone, goerr.Wrap(err, "failed to upsert document",
			goerr.V("collection", collection), goerr.V("id", id))
	}

	if inserted {
		return interfaces.UpsertInserted, nil
	}
	return interfaces.UpsertMatched, nil
}

func (r *Postgres) DeleteByID(ctx context.Context, collection string, id model.ModelID) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM modelhub_documents WHERE collection = $1 AND id = $2`,
		collection, id.String(),
	); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return nil
}

func (r *Postgres) List(ctx context.Context, collection string, limit int) ([]*model.Metadata, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT body FROM modelhub_documents WHERE collection = $1 LIMIT $2`,
		collection, limit,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list documents", goerr.V("collection", collection))
	}
	defer rows.Close()

	var docs []*model.Metadata
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, goerr.Wrap(err, "failed to scan document", goerr.V("collection", collection))
		}
		var doc model.Metadata
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("collection", collection))
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("collection", collection))
	}
	return docs, nil
}
