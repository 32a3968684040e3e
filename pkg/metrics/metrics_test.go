package metrics_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/modelhub/pkg/metrics"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRegistry(t *testing.T) {
	ok := metrics.RegistryOperationsTotal.WithLabelValues("test_op", "ok")
	notFound := metrics.RegistryOperationsTotal.WithLabelValues("test_op", "not_found")
	okBefore := testutil.ToFloat64(ok)
	nfBefore := testutil.ToFloat64(notFound)

	metrics.ObserveRegistry("test_op", time.Now(), nil)
	metrics.ObserveRegistry("test_op", time.Now(), goerr.Wrap(model.ErrNotFound, "missing"))

	gt.Equal(t, testutil.ToFloat64(ok), okBefore+1)
	gt.Equal(t, testutil.ToFloat64(notFound), nfBefore+1)
}
