// Package dataset supplies training and test rows to a training session.
package dataset

import (
	"context"
	"math"
	"math/rand"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
)

// Dataset holds text features and labels for fitting and evaluation. The
// test half may be empty.
type Dataset struct {
	TrainFeatures []string `json:"train_features"`
	TrainLabels   []string `json:"train_labels"`
	TestFeatures  []string `json:"test_features,omitempty"`
	TestLabels    []string `json:"test_labels,omitempty"`
}

// Source produces a dataset
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// HasTest reports whether the dataset carries held-out rows
func (d *Dataset) HasTest() bool {
	return len(d.TestFeatures) > 0
}

// Validate checks row counts of both halves
func (d *Dataset) Validate() error {
	if len(d.TrainFeatures) == 0 {
		return goerr.Wrap(model.ErrInvalidInput, "training features are empty")
	}
	if len(d.TrainFeatures) != len(d.TrainLabels) {
		return goerr.Wrap(model.ErrInvalidInput, "training features and labels differ in length",
			goerr.V("features", len(d.TrainFeatures)), goerr.V("labels", len(d.TrainLabels)))
	}
	if len(d.TestFeatures) != len(d.TestLabels) {
		return goerr.Wrap(model.ErrInvalidInput, "test features and labels differ in length",
			goerr.V("features", len(d.TestFeatures)), goerr.V("labels", len(d.TestLabels)))
	}
	return nil
}

// Split shuffles rows with a seeded generator and puts the first
// ceil(trainSize * n) of them in the training half. The same input, size
// and seed always give the same split.
func Split(features, labels []string, trainSize float64, seed int64) (*Dataset, error) {
	if len(features) != len(labels) {
		return nil, goerr.Wrap(model.ErrInvalidInput, "features and labels differ in length",
			goerr.V("features", len(features)), goerr.V("labels", len(labels)))
	}
	if trainSize <= 0 || trainSize >= 1 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "train size must be in (0, 1)", goerr.V("train_size", trainSize))
	}
	n := len(features)
	if n < 2 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "at least two rows are needed to split", goerr.V("rows", n))
	}

	order := rand.New(rand.NewSource(seed)).Perm(n)

	cut := int(math.Ceil(float64(n) * trainSize))
	if cut >= n {
		cut = n - 1
	}

	ds := &Dataset{
		TrainFeatures: make([]string, 0, cut),
		TrainLabels:   make([]string, 0, cut),
		TestFeatures:  make([]string, 0, n-cut),
		TestLabels:    make([]string, 0, n-cut),
	}
	for i, idx := range order {
		if i < cut {
			ds.TrainFeatures = append(ds.TrainFeatures, features[idx])
			ds.TrainLabels = append(ds.TrainLabels, labels[idx])
		} else {
			ds.TestFeatures = append(ds.TestFeatures, features[idx])
			ds.TestLabels = append(ds.TestLabels, labels[idx])
		}
	}
	return ds, nil
}

// Inline is a dataset supplied directly by the caller
type Inline struct {
	Dataset *Dataset
}

func (s *Inline) Load(ctx context.Context) (*Dataset, error) {
	if s.Dataset == nil {
		return nil, goerr.Wrap(model.ErrInvalidInput, "dataset is missing")
	}
	if err := s.Dataset.Validate(); err != nil {
		return nil, err
	}
	return s.Dataset, nil
}
