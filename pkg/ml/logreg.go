package ml

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
)

// LogisticRegression is a multinomial (softmax) classifier with L2 penalty,
// trained by full-batch gradient descent.
type LogisticRegression struct {
	C            float64 `json:"C"`
	MaxIter      int     `json:"max_iter"`
	Tol          float64 `json:"tol"`
	FitIntercept bool    `json:"fit_intercept"`
	LearningRate float64 `json:"learning_rate"`

	Weights    [][]float64 `json:"weights,omitempty"`
	Intercepts []float64   `json:"intercepts,omitempty"`
}

type logRegParams struct {
	C            *float64 `json:"C"`
	MaxIter      *int     `json:"max_iter"`
	Tol          *float64 `json:"tol"`
	FitIntercept *bool    `json:"fit_intercept"`
	LearningRate *float64 `json:"learning_rate"`
}

func newLogisticRegression(params map[string]any) (Estimator, error) {
	var p logRegParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	m := &LogisticRegression{C: 1.0, MaxIter: 300, Tol: 1e-4, FitIntercept: true, LearningRate: 0.5}
	if p.C != nil {
		m.C = *p.C
	}
	if p.MaxIter != nil {
		m.MaxIter = *p.MaxIter
	}
	if p.Tol != nil {
		m.Tol = *p.Tol
	}
	if p.FitIntercept != nil {
		m.FitIntercept = *p.FitIntercept
	}
	if p.LearningRate != nil {
		m.LearningRate = *p.LearningRate
	}

	if m.C <= 0 {
		return nil, goerr.Wrap(ErrInvalidParams, "C must be positive", goerr.V("C", m.C))
	}
	if m.MaxIter <= 0 {
		return nil, goerr.Wrap(ErrInvalidParams, "max_iter must be positive", goerr.V("max_iter", m.MaxIter))
	}
	if m.Tol <= 0 {
		return nil, goerr.Wrap(ErrInvalidParams, "tol must be positive", goerr.V("tol", m.Tol))
	}
	if m.LearningRate <= 0 {
		return nil, goerr.Wrap(ErrInvalidParams, "learning_rate must be positive", goerr.V("learning_rate", m.LearningRate))
	}
	return m, nil
}

func (m *LogisticRegression) Kind() model.ModelType { return model.ModelTypeLogReg }

func (m *LogisticRegression) Fit(x []SparseVector, y []int, features, classes int) error {
	if len(x) == 0 || len(x) != len(y) {
		return goerr.Wrap(ErrInvalidData, "sample and label counts differ",
			goerr.V("samples", len(x)), goerr.V("labels", len(y)))
	}
	if classes < 2 {
		return goerr.Wrap(ErrSingleClass, "logreg needs two or more classes", goerr.V("classes", classes))
	}

	n := float64(len(x))
	m.Weights = make([][]float64, classes)
	m.Intercepts = make([]float64, classes)
	gradW := make([][]float64, classes)
	for k := range m.Weights {
		m.Weights[k] = make([]float64, features)
		gradW[k] = make([]float64, features)
	}
	gradB := make([]float64, classes)

	for iter := 0; iter < m.MaxIter; iter++ {
		for k := range gradW {
			for f := range gradW[k] {
				gradW[k][f] = m.Weights[k][f] / (m.C * n)
			}
			gradB[k] = 0
		}

		for i, row := range x {
			probs := softmax(m.Decision(row))
			for k, p := range probs {
				d := p
				if y[i] == k {
					d -= 1
				}
				row.AddTo(gradW[k], d/n)
				gradB[k] += d / n
			}
		}

		var maxGrad float64
		for k := range gradW {
			for f, g := range gradW[k] {
				maxGrad = math.Max(maxGrad, math.Abs(g))
				m.Weights[k][f] -= m.LearningRate * g
			}
			if m.FitIntercept {
				maxGrad = math.Max(maxGrad, math.Abs(gradB[k]))
				m.Intercepts[k] -= m.LearningRate * gradB[k]
			}
		}
		if maxGrad < m.Tol {
			break
		}
	}
	return nil
}

func (m *LogisticRegression) Validate(features, classes int) error {
	return validateLinear(m.Weights, m.Intercepts, features, classes)
}

func (m *LogisticRegression) Decision(x SparseVector) []float64 {
	scores := make([]float64, len(m.Weights))
	for k, w := range m.Weights {
		scores[k] = x.Dot(w) + m.Intercepts[k]
	}
	return scores
}

func softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	peak := math.Inf(-1)
	for _, s := range scores {
		peak = math.Max(peak, s)
	}
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
