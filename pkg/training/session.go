// Package training wraps a vectorizer + estimator pipeline with the
// fit / predict / score lifecycle of one model.
package training

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/catalog"
	"github.com/m-mizutani/modelhub/pkg/ml"
	"github.com/m-mizutani/modelhub/pkg/model"
)

// Score is the evaluation result of a fitted session
type Score struct {
	Accuracy float64 `json:"accuracy"`
}

// Session owns one pipeline. A session is either fresh (built by New and
// fitted in-process) or loaded (restored from an artifact, predict only).
type Session struct {
	modelType       model.ModelType
	hyperparameters map[string]any
	pipeline        *ml.Pipeline
	loaded          bool
}

// New builds an unfitted session for entry. params are merged over the
// entry defaults; any rejection surfaces as model.ErrInvalidHyperparameters
// before fitting is attempted.
func New(entry *catalog.Entry, params map[string]any) (*Session, error) {
	hp, err := entry.Hyperparameters(params)
	if err != nil {
		return nil, err
	}

	vec, err := ml.NewVectorizer(entry.Vectorizer)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build vectorizer", goerr.V("model_type", entry.ModelType))
	}
	est, err := ml.NewEstimator(entry.ModelType, hp)
	if err != nil {
		return nil, goerr.Wrap(model.Mark(model.ErrInvalidHyperparameters, err), "estimator rejected hyperparameters",
			goerr.V("model_type", entry.ModelType))
	}

	return &Session{
		modelType:       entry.ModelType,
		hyperparameters: hp,
		pipeline:        ml.NewPipeline(vec, est),
	}, nil
}

// Restore wraps a decoded pipeline as a loaded session
func Restore(p *ml.Pipeline, meta *model.Metadata) *Session {
	return &Session{
		modelType:       p.Estimator.Kind(),
		hyperparameters: meta.Hyperparameters,
		pipeline:        p,
		loaded:          true,
	}
}

func (s *Session) ModelType() model.ModelType { return s.modelType }
func (s *Session) Hyperparameters() map[string]any { return s.hyperparameters }
func (s *Session) Pipeline() *ml.Pipeline { return s.pipeline }
func (s *Session) VectorizerKind() ml.VectorizerKind { return s.pipeline.Vectorizer.Kind() }
func (s *Session) Fitted() bool { return s.pipeline.Fitted() }
func (s *Session) Loaded() bool { return s.loaded }

// Fit trains the pipeline from scratch on features/labels
func (s *Session) Fit(features, labels []string) error {
	if s.loaded {
		return goerr.Wrap(model.ErrFitFailure, "loaded session cannot be refit", goerr.V("model_type", s.modelType))
	}
	if err := checkLengths(features, labels); err != nil {
		return err
	}

	if err := s.pipeline.Fit(features, labels); err != nil {
		return goerr.Wrap(model.Mark(model.ErrFitFailure, err), "failed to fit pipeline",
			goerr.V("model_type", s.modelType), goerr.V("samples", len(features)))
	}
	return nil
}

// Predict returns one label per feature row, in order
func (s *Session) Predict(features []string) ([]string, error) {
	labels, err := s.pipeline.Predict(features)
	if err != nil {
		if errors.Is(err, ml.ErrNotFitted) {
			return nil, goerr.Wrap(model.ErrNotFitted, "predict called on unfitted session", goerr.V("model_type", s.modelType))
		}
		return nil, goerr.Wrap(err, "failed to predict", goerr.V("model_type", s.modelType))
	}
	return labels, nil
}

// Score measures accuracy of the session on features/labels
func (s *Session) Score(features, labels []string) (*Score, error) {
	if err := checkLengths(features, labels); err != nil {
		return nil, err
	}
	predicted, err := s.Predict(features)
	if err != nil {
		return nil, err
	}
	return &Score{Accuracy: ml.Accuracy(predicted, labels)}, nil
}

func checkLengths(features, labels []string) error {
	if len(features) == 0 {
		return goerr.Wrap(model.ErrInvalidInput, "features are empty")
	}
	if len(features) != len(labels) {
		return goerr.Wrap(model.ErrInvalidInput, "features and labels differ in length",
			goerr.V("features", len(features)), goerr.V("labels", len(labels)))
	}
	return nil
}
