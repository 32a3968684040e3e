package ml

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

// Pipeline chains a vectorizer and an estimator (vectorize -> classify)
type Pipeline struct {
	Vectorizer Vectorizer
	Estimator  Estimator
	// Classes holds the sorted label set; empty until fitted
	Classes []string
}

func NewPipeline(v Vectorizer, e Estimator) *Pipeline {
	return &Pipeline{Vectorizer: v, Estimator: e}
}

func (p *Pipeline) Fitted() bool {
	return len(p.Classes) > 0
}

// Fit trains both stages from scratch, discarding any previous fit
func (p *Pipeline) Fit(docs, labels []string) error {
	if len(docs) == 0 {
		return goerr.Wrap(ErrInvalidData, "no training documents")
	}
	if len(docs) != len(labels) {
		return goerr.Wrap(ErrInvalidData, "document and label counts differ",
			goerr.V("documents", len(docs)), goerr.V("labels", len(labels)))
	}
	p.Classes = nil

	classes := uniqueSorted(labels)
	if len(classes) < 2 {
		return goerr.Wrap(ErrSingleClass, "training labels contain a single class",
			goerr.V("classes", classes))
	}
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]int, len(labels))
	for i, l := range labels {
		y[i] = index[l]
	}

	if err := p.Vectorizer.Fit(docs); err != nil {
		return err
	}
	x := p.Vectorizer.Transform(docs)
	if err := p.Estimator.Fit(x, y, p.Vectorizer.Features(), len(classes)); err != nil {
		return err
	}

	p.Classes = classes
	return nil
}

// Predict returns one label per document, in order
func (p *Pipeline) Predict(docs []string) ([]string, error) {
	if !p.Fitted() {
		return nil, goerr.Wrap(ErrNotFitted, "predict called before fit")
	}
	rows := p.Vectorizer.Transform(docs)
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = p.Classes[argmax(p.Estimator.Decision(row))]
	}
	return out, nil
}

// Accuracy is the fraction of predictions equal to truth
func Accuracy(predicted, truth []string) float64 {
	if len(truth) == 0 {
		return 0
	}
	var hit int
	for i := range truth {
		if i < len(predicted) && predicted[i] == truth[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
