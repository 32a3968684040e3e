package ml_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/modelhub/pkg/ml"
	"github.com/m-mizutani/modelhub/pkg/model"
)

var (
	trainDocs = []string{
		"stock market rallies as shares climb",
		"central bank raises interest rates again",
		"investors sell shares after earnings miss",
		"team wins championship after overtime goal",
		"striker scores twice in derby match",
		"coach praises defence after cup victory",
	}
	trainLabels = []string{"business", "business", "business", "sports", "sports", "sports"}
)

func newPipeline(t *testing.T, kind model.ModelType, params map[string]any) *ml.Pipeline {
	t.Helper()
	v, err := ml.NewVectorizer(ml.VectorizerConfig{Kind: ml.VectorizerTFIDF})
	gt.NoError(t, err)
	e, err := ml.NewEstimator(kind, params)
	gt.NoError(t, err)
	return ml.NewPipeline(v, e)
}

func TestPipelineFitPredict(t *testing.T) {
	for _, kind := range model.ModelTypes() {
		t.Run(string(kind), func(t *testing.T) {
			p := newPipeline(t, kind, nil)
			gt.NoError(t, p.Fit(trainDocs, trainLabels))
			gt.True(t, p.Fitted())
			gt.A(t, p.Classes).Equal([]string{"business", "sports"})

			got, err := p.Predict(trainDocs)
			gt.NoError(t, err)
			gt.Equal(t, ml.Accuracy(got, trainLabels), 1.0)

			got, err = p.Predict([]string{"shares and interest rates", "derby goal in overtime"})
			gt.NoError(t, err)
			gt.A(t, got).Equal([]string{"business", "sports"})
		})
	}
}

func TestPipelineDeterministic(t *testing.T) {
	p1 := newPipeline(t, model.ModelTypeLinearSVC, map[string]any{"C": 0.5})
	p2 := newPipeline(t, model.ModelTypeLinearSVC, map[string]any{"C": 0.5})
	gt.NoError(t, p1.Fit(trainDocs, trainLabels))
	gt.NoError(t, p2.Fit(trainDocs, trainLabels))

	svc1 := p1.Estimator.(*ml.LinearSVC)
	svc2 := p2.Estimator.(*ml.LinearSVC)
	gt.Equal(t, svc1.Weights, svc2.Weights)
	gt.Equal(t, svc1.Intercepts, svc2.Intercepts)
}

func TestPipelineFitFailure(t *testing.T) {
	t.Run("single class", func(t *testing.T) {
		p := newPipeline(t, model.ModelTypeLogReg, nil)
		err := p.Fit([]string{"alpha beta", "gamma delta"}, []string{"a", "a"})
		gt.True(t, errors.Is(err, ml.ErrSingleClass))
		gt.False(t, p.Fitted())
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		p := newPipeline(t, model.ModelTypeLogReg, nil)
		err := p.Fit([]string{"a", "b !"}, []string{"x", "y"})
		gt.True(t, errors.Is(err, ml.ErrEmptyVocabulary))
	})

	t.Run("length mismatch", func(t *testing.T) {
		p := newPipeline(t, model.ModelTypeLogReg, nil)
		err := p.Fit(trainDocs, trainLabels[:2])
		gt.True(t, errors.Is(err, ml.ErrInvalidData))
	})

	t.Run("refit failure clears previous fit", func(t *testing.T) {
		p := newPipeline(t, model.ModelTypeLogReg, nil)
		gt.NoError(t, p.Fit(trainDocs, trainLabels))
		gt.Error(t, p.Fit([]string{"only one"}, []string{"x"}))
		gt.False(t, p.Fitted())
	})
}

func TestPredictBeforeFit(t *testing.T) {
	p := newPipeline(t, model.ModelTypeLinearSVC, nil)
	_, err := p.Predict([]string{"anything"})
	gt.True(t, errors.Is(err, ml.ErrNotFitted))
}

func TestNewEstimatorParams(t *testing.T) {
	testCases := []struct {
		name   string
		kind   model.ModelType
		params map[string]any
		valid  bool
	}{
		{"svc defaults", model.ModelTypeLinearSVC, nil, true},
		{"svc C", model.ModelTypeLinearSVC, map[string]any{"C": 0.5}, true},
		{"svc integer max_iter", model.ModelTypeLinearSVC, map[string]any{"max_iter": 50}, true},
		{"svc unknown key", model.ModelTypeLinearSVC, map[string]any{"gamma": 1}, false},
		{"svc negative C", model.ModelTypeLinearSVC, map[string]any{"C": -1.0}, false},
		{"svc wrong type", model.ModelTypeLinearSVC, map[string]any{"C": "high"}, false},
		{"logreg learning rate", model.ModelTypeLogReg, map[string]any{"learning_rate": 0.1}, true},
		{"logreg svc-only key", model.ModelTypeLogReg, map[string]any{"random_state": 1}, false},
		{"logreg zero tol", model.ModelTypeLogReg, map[string]any{"tol": 0.0}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ml.NewEstimator(tc.kind, tc.params)
			if tc.valid {
				gt.NoError(t, err)
			} else {
				gt.True(t, errors.Is(err, ml.ErrInvalidParams))
			}
		})
	}

	_, err := ml.NewEstimator("randomForest", nil)
	gt.Error(t, err)
}

func TestVectorizer(t *testing.T) {
	t.Run("tfidf rows are unit length", func(t *testing.T) {
		v, err := ml.NewVectorizer(ml.VectorizerConfig{Kind: ml.VectorizerTFIDF})
		gt.NoError(t, err)
		gt.NoError(t, v.Fit(trainDocs))
		for _, row := range v.Transform(trainDocs) {
			n := row.SquaredNorm()
			gt.True(t, n > 0.999999 && n < 1.000001)
		}
	})

	t.Run("count ignores unknown and short tokens", func(t *testing.T) {
		v, err := ml.NewVectorizer(ml.VectorizerConfig{Kind: ml.VectorizerCount})
		gt.NoError(t, err)
		gt.NoError(t, v.Fit([]string{"Apple apple banana", "banana cherry"}))
		gt.Equal(t, v.Features(), 3)

		rows := v.Transform([]string{"apple APPLE a durian"})
		gt.A(t, rows[0].Indices).Equal([]int{0})
		gt.A(t, rows[0].Values).Equal([]float64{2})
	})

	t.Run("bigrams", func(t *testing.T) {
		v, err := ml.NewVectorizer(ml.VectorizerConfig{Kind: ml.VectorizerCount, NgramMax: 2})
		gt.NoError(t, err)
		gt.NoError(t, v.Fit([]string{"new york city"}))
		gt.Equal(t, v.Features(), 5)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := ml.NewVectorizer(ml.VectorizerConfig{Kind: "word2vec"})
		gt.Error(t, err)
		_, err = ml.NewVectorizer(ml.VectorizerConfig{Kind: ml.VectorizerTFIDF, NgramMax: 3})
		gt.Error(t, err)
	})
}

func TestAccuracy(t *testing.T) {
	gt.Equal(t, ml.Accuracy([]string{"a", "b", "a", "a"}, []string{"a", "b", "b", "a"}), 0.75)
	gt.Equal(t, ml.Accuracy(nil, nil), 0.0)
}
