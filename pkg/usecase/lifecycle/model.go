package lifecycle

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
)

// Predict returns one label per feature row using the stored model id
func (u *UseCase) Predict(ctx context.Context, id model.ModelID, features []string) ([]string, error) {
	if len(features) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "features are empty")
	}

	session, _, err := u.registry.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.Predict(features)
}

// Get returns the metadata of id
func (u *UseCase) Get(ctx context.Context, id model.ModelID) (*model.Metadata, error) {
	return u.registry.Get(ctx, id)
}

// List returns up to limit models
func (u *UseCase) List(ctx context.Context, limit int) ([]*model.Metadata, error) {
	return u.registry.List(ctx, limit)
}

// Remove deletes the model id
func (u *UseCase) Remove(ctx context.Context, id model.ModelID) error {
	return u.registry.Remove(ctx, id)
}
