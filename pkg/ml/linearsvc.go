package ml

import (
	"math"
	"math/rand"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
)

// LinearSVC is a one-vs-rest linear SVM with squared hinge loss and L2
// penalty, trained by dual coordinate descent.
type LinearSVC struct {
	C            float64 `json:"C"`
	MaxIter      int     `json:"max_iter"`
	Tol          float64 `json:"tol"`
	FitIntercept bool    `json:"fit_intercept"`
	RandomState  int64   `json:"random_state"`

	Weights    [][]float64 `json:"weights,omitempty"`
	Intercepts []float64   `json:"intercepts,omitempty"`
}

type linearSVCParams struct {
	C            *float64 `json:"C"`
	MaxIter      *int     `json:"max_iter"`
	Tol          *float64 `json:"tol"`
	FitIntercept *bool    `json:"fit_intercept"`
	RandomState  *int64   `json:"random_state"`
}

func newLinearSVC(params map[string]any) (Estimator, error) {
	var p linearSVCParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	m := &LinearSVC{C: 1.0, MaxIter: 1000, Tol: 1e-4, FitIntercept: true}
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
	if p.RandomState != nil {
		m.RandomState = *p.RandomState
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
	return m, nil
}

func (m *LinearSVC) Kind() model.ModelType { return model.ModelTypeLinearSVC }

func (m *LinearSVC) Fit(x []SparseVector, y []int, features, classes int) error {
	if len(x) == 0 || len(x) != len(y) {
		return goerr.Wrap(ErrInvalidData, "sample and label counts differ",
			goerr.V("samples", len(x)), goerr.V("labels", len(y)))
	}
	if classes < 2 {
		return goerr.Wrap(ErrSingleClass, "linearSVC needs two or more classes", goerr.V("classes", classes))
	}

	rng := rand.New(rand.NewSource(m.RandomState))
	m.Weights = make([][]float64, classes)
	m.Intercepts = make([]float64, classes)
	target := make([]float64, len(y))
	for k := 0; k < classes; k++ {
		for i, label := range y {
			target[i] = -1
			if label == k {
				target[i] = 1
			}
		}
		m.Weights[k], m.Intercepts[k] = m.fitBinary(x, target, features, rng)
	}
	return nil
}

func (m *LinearSVC) fitBinary(x []SparseVector, y []float64, features int, rng *rand.Rand) ([]float64, float64) {
	w := make([]float64, features)
	var b, bias float64
	if m.FitIntercept {
		bias = 1
	}

	diag := 0.5 / m.C
	qd := make([]float64, len(x))
	for i := range x {
		qd[i] = diag + x[i].SquaredNorm() + bias*bias
	}

	alpha := make([]float64, len(x))
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}

	for iter := 0; iter < m.MaxIter; iter++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		maxPG, minPG := math.Inf(-1), math.Inf(1)
		for _, i := range order {
			g := y[i]*(x[i].Dot(w)+b*bias) - 1 + diag*alpha[i]
			pg := g
			if alpha[i] == 0 {
				pg = math.Min(g, 0)
			}
			maxPG = math.Max(maxPG, pg)
			minPG = math.Min(minPG, pg)

			if math.Abs(pg) > 1e-12 {
				prev := alpha[i]
				alpha[i] = math.Max(alpha[i]-g/qd[i], 0)
				d := (alpha[i] - prev) * y[i]
				x[i].AddTo(w, d)
				b += d * bias
			}
		}
		if maxPG-minPG <= m.Tol {
			break
		}
	}
	return w, b
}

func (m *LinearSVC) Validate(features, classes int) error {
	return validateLinear(m.Weights, m.Intercepts, features, classes)
}

func (m *LinearSVC) Decision(x SparseVector) []float64 {
	scores := make([]float64, len(m.Weights))
	for k, w := range m.Weights {
		scores[k] = x.Dot(w) + m.Intercepts[k]
	}
	return scores
}
