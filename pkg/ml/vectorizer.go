package ml

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

type VectorizerKind string

const (
	VectorizerTFIDF VectorizerKind = "tfidf"
	VectorizerCount VectorizerKind = "count"
)

// Vectorizer turns raw documents into sparse feature rows
type Vectorizer interface {
	Kind() VectorizerKind
	// Fit learns the vocabulary (and weights) from docs, replacing prior state
	Fit(docs []string) error
	Transform(docs []string) []SparseVector
	// Features returns the width of the feature space
	Features() int
	// Validate checks that restored state is self-consistent
	Validate() error
}

// VectorizerConfig is the catalog-level configuration of a vectorizer
type VectorizerConfig struct {
	Kind     VectorizerKind `yaml:"kind" json:"kind"`
	NgramMax int            `yaml:"ngram_max" json:"ngram_max"`
	MinDF    int            `yaml:"min_df" json:"min_df"`
}

// Validate checks the configuration and fills defaults
func (c *VectorizerConfig) Validate() error {
	switch c.Kind {
	case VectorizerTFIDF, VectorizerCount:
	default:
		return goerr.New("unsupported vectorizer", goerr.V("kind", c.Kind))
	}
	if c.NgramMax == 0 {
		c.NgramMax = 1
	}
	if c.NgramMax < 1 || c.NgramMax > 2 {
		return goerr.New("ngram_max must be 1 or 2", goerr.V("ngram_max", c.NgramMax))
	}
	if c.MinDF == 0 {
		c.MinDF = 1
	}
	if c.MinDF < 1 {
		return goerr.New("min_df must be positive", goerr.V("min_df", c.MinDF))
	}
	return nil
}

// NewVectorizer builds an unfitted vectorizer from cfg
func NewVectorizer(cfg VectorizerConfig) (Vectorizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vocab := Vocabulary{NgramMax: cfg.NgramMax, MinDF: cfg.MinDF}
	switch cfg.Kind {
	case VectorizerCount:
		return &CountVectorizer{Vocabulary: vocab}, nil
	default:
		return &TFIDFVectorizer{Vocabulary: vocab}, nil
	}
}

// EmptyVectorizer returns a zero value of the given kind, ready to be
// populated by a decoder.
func EmptyVectorizer(kind VectorizerKind) (Vectorizer, error) {
	switch kind {
	case VectorizerTFIDF:
		return &TFIDFVectorizer{}, nil
	case VectorizerCount:
		return &CountVectorizer{}, nil
	default:
		return nil, goerr.New("unsupported vectorizer", goerr.V("kind", kind))
	}
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// tokenize lowercases doc and keeps word tokens of two or more characters
func tokenize(doc string, ngramMax int) []string {
	words := wordPattern.FindAllString(strings.ToLower(doc), -1)
	tokens := make([]string, 0, len(words)*ngramMax)
	kept := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) >= 2 {
			kept = append(kept, w)
		}
	}
	tokens = append(tokens, kept...)
	if ngramMax >= 2 {
		for i := 0; i+1 < len(kept); i++ {
			tokens = append(tokens, kept[i]+" "+kept[i+1])
		}
	}
	return tokens
}

// Vocabulary maps terms to feature indices
type Vocabulary struct {
	Terms    map[string]int `json:"terms"`
	NgramMax int            `json:"ngram_max"`
	MinDF    int            `json:"min_df"`
}

// learn builds a sorted vocabulary and returns per-term document frequency
func (v *Vocabulary) learn(docs []string) ([]int, error) {
	if v.NgramMax == 0 {
		v.NgramMax = 1
	}
	if v.MinDF == 0 {
		v.MinDF = 1
	}

	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(doc, v.NgramMax) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= v.MinDF {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, goerr.Wrap(ErrEmptyVocabulary, "no terms remain after tokenization",
			goerr.V("documents", len(docs)))
	}
	sort.Strings(terms)

	v.Terms = make(map[string]int, len(terms))
	freq := make([]int, len(terms))
	for i, term := range terms {
		v.Terms[term] = i
		freq[i] = df[term]
	}
	return freq, nil
}

// counts returns the raw term counts of doc, ignoring unknown terms
func (v *Vocabulary) counts(doc string) SparseVector {
	tf := make(map[int]float64)
	for _, tok := range tokenize(doc, v.NgramMax) {
		if idx, ok := v.Terms[tok]; ok {
			tf[idx]++
		}
	}
	vec := SparseVector{
		Indices: make([]int, 0, len(tf)),
		Values:  make([]float64, 0, len(tf)),
	}
	for idx := range tf {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)
	for _, idx := range vec.Indices {
		vec.Values = append(vec.Values, tf[idx])
	}
	return vec
}

func (v *Vocabulary) Features() int { return len(v.Terms) }

// Validate checks that term indices are a permutation of [0, len(Terms))
func (v *Vocabulary) Validate() error {
	seen := make([]bool, len(v.Terms))
	for term, idx := range v.Terms {
		if idx < 0 || idx >= len(v.Terms) || seen[idx] {
			return goerr.Wrap(ErrInconsistent, "vocabulary index out of range or duplicated",
				goerr.V("term", term), goerr.V("index", idx), goerr.V("terms", len(v.Terms)))
		}
		seen[idx] = true
	}
	return nil
}

// CountVectorizer emits raw term counts
type CountVectorizer struct {
	Vocabulary
}

func (c *CountVectorizer) Kind() VectorizerKind { return VectorizerCount }

func (c *CountVectorizer) Fit(docs []string) error {
	_, err := c.learn(docs)
	return err
}

func (c *CountVectorizer) Transform(docs []string) []SparseVector {
	rows := make([]SparseVector, len(docs))
	for i, doc := range docs {
		rows[i] = c.counts(doc)
	}
	return rows
}

// TFIDFVectorizer emits l2-normalised tf * smoothed idf
type TFIDFVectorizer struct {
	Vocabulary
	IDF []float64 `json:"idf"`
}

func (t *TFIDFVectorizer) Kind() VectorizerKind { return VectorizerTFIDF }

func (t *TFIDFVectorizer) Fit(docs []string) error {
	df, err := t.learn(docs)
	if err != nil {
		return err
	}
	n := float64(len(docs))
	t.IDF = make([]float64, len(df))
	for i, d := range df {
		t.IDF[i] = math.Log((1+n)/(1+float64(d))) + 1
	}
	return nil
}

func (t *TFIDFVectorizer) Validate() error {
	if err := t.Vocabulary.Validate(); err != nil {
		return err
	}
	if len(t.IDF) != len(t.Terms) {
		return goerr.Wrap(ErrInconsistent, "idf length differs from vocabulary size",
			goerr.V("idf", len(t.IDF)), goerr.V("terms", len(t.Terms)))
	}
	return nil
}

func (t *TFIDFVectorizer) Transform(docs []string) []SparseVector {
	rows := make([]SparseVector, len(docs))
	for i, doc := range docs {
		vec := t.counts(doc)
		for j, idx := range vec.Indices {
			vec.Values[j] *= t.IDF[idx]
		}
		if norm := math.Sqrt(vec.SquaredNorm()); norm > 0 {
			for j := range vec.Values {
				vec.Values[j] /= norm
			}
		}
		rows[i] = vec
	}
	return rows
}
