package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/adapter"
	"github.com/m-mizutani/modelhub/pkg/catalog"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
)

// textSeparator joins text columns of one row, e.g. a title and its
// description
const textSeparator = " \\\n"

// BigQuery loads a named catalog dataset and splits it
type BigQuery struct {
	client adapter.BigQuery
	def    *catalog.Dataset
}

func NewBigQuery(client adapter.BigQuery, def *catalog.Dataset) *BigQuery {
	return &BigQuery{client: client, def: def}
}

func (s *BigQuery) Load(ctx context.Context) (*Dataset, error) {
	rows, err := s.client.Rows(ctx, s.def.Query)
	if err != nil {
		return nil, goerr.Wrap(model.StoreFailure(err), "failed to read dataset", goerr.V("dataset", s.def.Name))
	}

	features := make([]string, 0, len(rows))
	labels := make([]string, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		label, ok := columnText(row, s.def.LabelColumn)
		if !ok || label == "" {
			skipped++
			continue
		}

		parts := make([]string, 0, len(s.def.TextColumns))
		for _, col := range s.def.TextColumns {
			text, ok := columnText(row, col)
			if !ok {
				return nil, goerr.Wrap(model.ErrInvalidInput, "dataset row lacks text column",
					goerr.V("dataset", s.def.Name), goerr.V("column", col))
			}
			parts = append(parts, text)
		}
		features = append(features, strings.Join(parts, textSeparator))
		labels = append(labels, label)
	}

	if skipped > 0 {
		logging.From(ctx).Warn("rows without label skipped", "dataset", s.def.Name, "skipped", skipped)
	}

	return Split(features, labels, s.def.TrainSize, s.def.Seed)
}

// columnText renders a cell as text. NULL cells count as empty strings; a
// missing column reports false.
func columnText(row map[string]any, col string) (string, bool) {
	v, ok := row[col]
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	default:
		return fmt.Sprint(x), true
	}
}
