package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePipelineRun(t *testing.T) {
	m := New()
	now := time.Now()

	m.ObservePipelineRun(ResultSuccess, now.Add(-time.Second), now)
	m.ObservePipelineRun(ResultError, now.Add(-time.Second), now)
	m.ObservePipelineRun(ResultError, now.Add(-time.Second), now)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues(ResultError)))
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(m.lastSuccess))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncFetchError("DK_1")
	m.SetCurrentPrice("DK_2", 1.5, 2.0)
	m.IncGraphRequest("404")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dkspot_fetch_errors_total{zone="DK_1"} 1`)
	assert.Contains(t, string(body), `dkspot_price_dkk_per_kwh{tax="included",zone="DK_2"} 2`)
	assert.Contains(t, string(body), `dkspot_graph_requests_total{status="404"} 1`)
}
