package dataset_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/modelhub/pkg/catalog"
	"github.com/m-mizutani/modelhub/pkg/dataset"
	"github.com/m-mizutani/modelhub/pkg/model"
)

func rows(n int) ([]string, []string) {
	features := make([]string, n)
	labels := make([]string, n)
	for i := range features {
		features[i] = fmt.Sprintf("doc %d", i)
		labels[i] = fmt.Sprintf("label %d", i%2)
	}
	return features, labels
}

func TestSplit(t *testing.T) {
	features, labels := rows(8)

	ds, err := dataset.Split(features, labels, 0.75, 0xDEAD)
	gt.NoError(t, err)
	gt.A(t, ds.TrainFeatures).Length(6)
	gt.A(t, ds.TestFeatures).Length(2)
	gt.NoError(t, ds.Validate())

	again, err := dataset.Split(features, labels, 0.75, 0xDEAD)
	gt.NoError(t, err)
	gt.A(t, again.TrainFeatures).Equal(ds.TrainFeatures)
	gt.A(t, again.TestLabels).Equal(ds.TestLabels)

	seen := map[string]bool{}
	for _, f := range append(append([]string{}, ds.TrainFeatures...), ds.TestFeatures...) {
		seen[f] = true
	}
	gt.Equal(t, len(seen), 8)

	for i, f := range ds.TrainFeatures {
		var n int
		_, err := fmt.Sscanf(f, "doc %d", &n)
		gt.NoError(t, err)
		gt.Equal(t, ds.TrainLabels[i], fmt.Sprintf("label %d", n%2))
	}
}

func TestSplitKeepsTestRow(t *testing.T) {
	features, labels := rows(2)
	ds, err := dataset.Split(features, labels, 0.9, 1)
	gt.NoError(t, err)
	gt.A(t, ds.TrainFeatures).Length(1)
	gt.A(t, ds.TestFeatures).Length(1)
}

func TestSplitInvalid(t *testing.T) {
	features, labels := rows(4)

	_, err := dataset.Split(features, labels[:3], 0.75, 1)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
	_, err = dataset.Split(features, labels, 1.0, 1)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
	_, err = dataset.Split(features[:1], labels[:1], 0.5, 1)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestInline(t *testing.T) {
	ctx := context.Background()

	_, err := (&dataset.Inline{}).Load(ctx)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = (&dataset.Inline{Dataset: &dataset.Dataset{
		TrainFeatures: []string{"a b"},
		TrainLabels:   []string{"x"},
		TestFeatures:  []string{"c d"},
	}}).Load(ctx)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))

	ds, err := (&dataset.Inline{Dataset: &dataset.Dataset{
		TrainFeatures: []string{"a b"},
		TrainLabels:   []string{"x"},
	}}).Load(ctx)
	gt.NoError(t, err)
	gt.False(t, ds.HasTest())
}

type mockBigQuery struct {
	rows  []map[string]any
	query string
	err   error
}

func (m *mockBigQuery) DryRun(ctx context.Context, query string) (int64, error) {
	return 0, nil
}

func (m *mockBigQuery) Rows(ctx context.Context, query string) ([]map[string]any, error) {
	m.query = query
	return m.rows, m.err
}

func TestBigQuerySource(t *testing.T) {
	def := &catalog.Dataset{
		Name:        "news",
		Query:       "SELECT title, description, Category FROM news",
		TextColumns: []string{"title", "description"},
		LabelColumn: "Category",
		TrainSize:   0.5,
		Seed:        0xDEAD,
	}

	t.Run("joins text columns", func(t *testing.T) {
		bq := &mockBigQuery{rows: []map[string]any{
			{"title": "Rates up", "description": "Bank acts", "Category": "business"},
			{"title": "Cup final", "description": nil, "Category": "sports"},
			{"title": "No label", "description": "x", "Category": nil},
		}}
		ds, err := dataset.NewBigQuery(bq, def).Load(context.Background())
		gt.NoError(t, err)
		gt.Equal(t, bq.query, def.Query)
		gt.Equal(t, len(ds.TrainFeatures)+len(ds.TestFeatures), 2)

		all := append(append([]string{}, ds.TrainFeatures...), ds.TestFeatures...)
		gt.True(t, slices.Contains(all, "Rates up \\\nBank acts"))
		gt.True(t, slices.Contains(all, "Cup final \\\n"))
	})

	t.Run("missing column", func(t *testing.T) {
		bq := &mockBigQuery{rows: []map[string]any{
			{"title": "Rates up", "Category": "business"},
		}}
		_, err := dataset.NewBigQuery(bq, def).Load(context.Background())
		gt.True(t, errors.Is(err, model.ErrInvalidInput))
	})

	t.Run("query failure", func(t *testing.T) {
		bq := &mockBigQuery{err: errors.New("quota exceeded")}
		_, err := dataset.NewBigQuery(bq, def).Load(context.Background())
		gt.True(t, errors.Is(err, model.ErrStoreUnavailable))
	})
}
