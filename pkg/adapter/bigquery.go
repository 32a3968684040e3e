package adapter

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
	"google.golang.org/api/iterator"
)

// ErrScanLimitExceeded is returned when a dry run estimates more bytes than allowed
var ErrScanLimitExceeded = goerr.New("query exceeds scan limit")

// BigQuery reads training rows from BigQuery
type BigQuery interface {
	// DryRun returns the number of bytes the query would scan
	DryRun(ctx context.Context, query string) (int64, error)

	// Rows runs the query and returns every row as a column map
	Rows(ctx context.Context, query string) ([]map[string]any, error)
}

type bigqueryClient struct {
	client    *bigquery.Client
	scanLimit int64
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithScanLimit rejects queries whose dry run exceeds limit bytes. Zero
// disables the check.
func WithScanLimit(limit int64) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.scanLimit = limit
	}
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string, opts ...BigQueryOption) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client: client,
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

func (bq *bigqueryClient) DryRun(ctx context.Context, query string) (int64, error) {
	q := bq.client.Query(query)
	q.DryRun = true

	job, err := q.Run(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run dry-run query")
	}

	status := job.LastStatus()
	if status == nil || status.Statistics == nil {
		return 0, goerr.New("no statistics available from dry-run")
	}

	return status.Statistics.TotalBytesProcessed, nil
}

func (bq *bigqueryClient) Rows(ctx context.Context, query string) ([]map[string]any, error) {
	if bq.scanLimit > 0 {
		scanned, err := bq.DryRun(ctx, query)
		if err != nil {
			return nil, err
		}
		if scanned > bq.scanLimit {
			return nil, goerr.Wrap(ErrScanLimitExceeded, "refusing to run query",
				goerr.V("bytes", scanned), goerr.V("limit", bq.scanLimit))
		}
	}

	it, err := bq.client.Query(query).Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query")
	}

	var results []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result")
		}

		rowMap := make(map[string]any, len(row))
		for k, v := range row {
			rowMap[k] = v
		}
		results = append(results, rowMap)
	}

	logging.From(ctx).Debug("bigquery rows fetched", "rows", len(results))
	return results, nil
}
