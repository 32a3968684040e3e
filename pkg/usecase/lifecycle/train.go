package lifecycle

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/dataset"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/policy"
	"github.com/m-mizutani/modelhub/pkg/training"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
)

// TrainInput describes one training request. Exactly one of Dataset and
// DatasetName must be set. An empty ID creates a new model.
type TrainInput struct {
	ID              model.ModelID
	ModelType       model.ModelType
	Hyperparameters map[string]any
	Dataset         *dataset.Dataset
	DatasetName     string
}

// TrainOutput is the result of a successful training. TestScore is nil when
// the dataset had no test rows.
type TrainOutput struct {
	ID         model.ModelID `json:"id"`
	TrainScore *float64      `json:"trainScore"`
	TestScore  *float64      `json:"testScore,omitempty"`
}

// Train fits a new session on the requested dataset and saves it
func (u *UseCase) Train(ctx context.Context, input TrainInput) (*TrainOutput, error) {
	entry, err := u.catalog.Lookup(input.ModelType)
	if err != nil {
		return nil, err
	}

	source, err := u.source(input)
	if err != nil {
		return nil, err
	}
	ds, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}

	session, err := training.New(entry, input.Hyperparameters)
	if err != nil {
		return nil, err
	}

	if err := u.policy.Check(ctx, &policy.Input{
		ModelType:       input.ModelType,
		Hyperparameters: session.Hyperparameters(),
		TrainSize:       len(ds.TrainFeatures),
		TestSize:        len(ds.TestFeatures),
	}); err != nil {
		return nil, err
	}

	started := time.Now()
	if err := session.Fit(ds.TrainFeatures, ds.TrainLabels); err != nil {
		return nil, err
	}
	logging.From(ctx).Info("model fitted",
		"model_type", input.ModelType,
		"rows", len(ds.TrainFeatures),
		"elapsed", time.Since(started).String(),
	)

	out := &TrainOutput{}
	trainScore, err := session.Score(ds.TrainFeatures, ds.TrainLabels)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to score training rows")
	}
	out.TrainScore = &trainScore.Accuracy

	if ds.HasTest() {
		testScore, err := session.Score(ds.TestFeatures, ds.TestLabels)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to score test rows")
		}
		out.TestScore = &testScore.Accuracy
	}

	out.ID, err = u.registry.Save(ctx, session, input.ID, out.TrainScore, out.TestScore)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *UseCase) source(input TrainInput) (dataset.Source, error) {
	switch {
	case input.Dataset != nil && input.DatasetName != "":
		return nil, goerr.Wrap(model.ErrInvalidInput, "dataset and dataset name are mutually exclusive")
	case input.DatasetName != "":
		def, err := u.catalog.Dataset(input.DatasetName)
		if err != nil {
			return nil, err
		}
		if u.bigquery == nil {
			return nil, goerr.Wrap(model.ErrInvalidInput, "named datasets need a BigQuery project",
				goerr.V("dataset", input.DatasetName))
		}
		return dataset.NewBigQuery(u.bigquery, def), nil
	default:
		return &dataset.Inline{Dataset: input.Dataset}, nil
	}
}
