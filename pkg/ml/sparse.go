package ml

// SparseVector holds the non-zero entries of a feature row. Indices are
// sorted ascending and unique.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot returns the inner product with a dense weight vector. Indices beyond
// the weight vector are ignored.
func (v SparseVector) Dot(w []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		if idx < len(w) {
			sum += w[idx] * v.Values[i]
		}
	}
	return sum
}

// AddTo performs w += scale * v
func (v SparseVector) AddTo(w []float64, scale float64) {
	for i, idx := range v.Indices {
		if idx < len(w) {
			w[idx] += scale * v.Values[i]
		}
	}
}

func (v SparseVector) SquaredNorm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return sum
}
