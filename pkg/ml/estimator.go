package ml

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
)

var (
	ErrInvalidParams   = goerr.New("invalid estimator parameters")
	ErrEmptyVocabulary = goerr.New("empty vocabulary")
	ErrSingleClass     = goerr.New("at least two classes are required")
	ErrInvalidData     = goerr.New("invalid training data")
	ErrNotFitted       = goerr.New("pipeline is not fitted")
	ErrInconsistent    = goerr.New("fitted state is inconsistent")
)

// Estimator is a linear multi-class classifier over sparse rows
type Estimator interface {
	Kind() model.ModelType
	// Fit replaces any prior fit. y holds class indices in [0, classes).
	Fit(x []SparseVector, y []int, features, classes int) error
	// Decision returns one score per class
	Decision(x SparseVector) []float64
	// Validate checks that restored state matches the feature width and
	// class count, so Decision cannot index out of range
	Validate(features, classes int) error
}

type estimatorSpec struct {
	build func(params map[string]any) (Estimator, error)
	empty func() Estimator
}

var estimators = map[model.ModelType]estimatorSpec{
	model.ModelTypeLinearSVC: {
		build: newLinearSVC,
		empty: func() Estimator { return &LinearSVC{} },
	},
	model.ModelTypeLogReg: {
		build: newLogisticRegression,
		empty: func() Estimator { return &LogisticRegression{} },
	},
}

// NewEstimator builds an unfitted estimator. Unknown keys and values of the
// wrong type are rejected with ErrInvalidParams.
func NewEstimator(kind model.ModelType, params map[string]any) (Estimator, error) {
	factory, ok := estimators[kind]
	if !ok {
		return nil, goerr.New("unsupported estimator", goerr.V("kind", kind))
	}
	return factory.build(params)
}

// EmptyEstimator returns a zero value of the given kind for decoding
func EmptyEstimator(kind model.ModelType) (Estimator, error) {
	factory, ok := estimators[kind]
	if !ok {
		return nil, goerr.New("unsupported estimator", goerr.V("kind", kind))
	}
	return factory.empty(), nil
}

// decodeParams strictly decodes a hyperparameter mapping into dst
func decodeParams(params map[string]any, dst any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return goerr.Wrap(ErrInvalidParams, "hyperparameters are not serializable", goerr.V("error", err.Error()))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return goerr.Wrap(ErrInvalidParams, "hyperparameters rejected", goerr.V("error", err.Error()))
	}
	return nil
}

// validateLinear checks one weight row and one intercept per class, each row
// spanning the feature space
func validateLinear(weights [][]float64, intercepts []float64, features, classes int) error {
	if len(weights) != classes || len(intercepts) != classes {
		return goerr.Wrap(ErrInconsistent, "weights and intercepts must have one entry per class",
			goerr.V("weights", len(weights)), goerr.V("intercepts", len(intercepts)), goerr.V("classes", classes))
	}
	for k, row := range weights {
		if len(row) != features {
			return goerr.Wrap(ErrInconsistent, "weight row width differs from feature count",
				goerr.V("class", k), goerr.V("width", len(row)), goerr.V("features", features))
		}
	}
	return nil
}

// argmax returns the index of the largest score; ties go to the lower index
func argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
