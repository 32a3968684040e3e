package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

type ModelType string

const (
	ModelTypeLinearSVC ModelType = "linearSVC"
	ModelTypeLogReg    ModelType = "logreg"
)

// ModelTypes returns every supported model type
func ModelTypes() []ModelType {
	return []ModelType{ModelTypeLinearSVC, ModelTypeLogReg}
}

// Validate checks if the model type is one of the supported types
func (t ModelType) Validate() error {
	switch t {
	case ModelTypeLinearSVC, ModelTypeLogReg:
		return nil
	default:
		return goerr.Wrap(ErrInvalidInput, "unsupported model type", goerr.V("model_type", t))
	}
}

// Metadata is the document describing where a model artifact lives and how
// it was trained.
type Metadata struct {
	ID              ModelID        `json:"id" firestore:"id"`
	BlobBucket      string         `json:"blobBucket" firestore:"blobBucket"`
	BlobPath        string         `json:"blobPath" firestore:"blobPath"`
	ModelType       ModelType      `json:"modelType" firestore:"modelType"`
	Vectorizer      string         `json:"vectorizer" firestore:"vectorizer"`
	Hyperparameters map[string]any `json:"hyperparameters" firestore:"hyperparameters"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`

	TrainScore *float64 `json:"trainScore,omitempty" firestore:"trainScore,omitempty"`
	TestScore  *float64 `json:"testScore,omitempty" firestore:"testScore,omitempty"`
}
