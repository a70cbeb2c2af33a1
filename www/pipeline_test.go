package www

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/angas/dkspot/calc"
	"github.com/angas/dkspot/chart"
	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/hours"
	"github.com/angas/dkspot/metrics"
	"github.com/angas/dkspot/task"
	"github.com/angas/dkspot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProvider struct {
	err error
}

func (p *flakyProvider) GetDayAheadPrices(ctx context.Context, zone types.Zone, start, end time.Time) ([]types.EnergyPrice, error) {
	if p.err != nil {
		return nil, p.err
	}
	var prices []types.EnergyPrice
	for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
		prices = append(prices, types.EnergyPrice{Time: ts, Price: 420})
	}
	return prices, nil
}

func TestFailedRunKeepsServingPreviousChart(t *testing.T) {
	_, srv, chartPath := newTestServer(t, config.AppConfigApi{}, nil, false)

	renderer, err := chart.NewRenderer(false)
	require.NoError(t, err)
	provider := &flakyProvider{}
	now := time.Date(2025, time.July, 1, 8, 0, 0, 0, hours.Copenhagen())
	pipeline := task.NewPriceChartTask(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		provider,
		renderer,
		config.AppConfigPipeline{
			WorkDir:      t.TempDir(),
			ChartFile:    chartPath,
			ExchangeRate: calc.DefaultExchangeRate,
			IncludeTax:   false,
		},
		time.Minute).
		WithMetrics(metrics.New()).
		WithClock(func() time.Time { return now })

	resp, _ := get(t, srv.URL+"/graph")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, pipeline.RunAndRecord(context.Background()))
	resp, first := get(t, srv.URL+"/graph")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, first, "DKK/KWh timepriser - Vest Danmark")

	provider.err = errors.New("service unavailable")
	require.Error(t, pipeline.RunAndRecord(context.Background()))

	resp, second := get(t, srv.URL+"/graph")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first, second)
}
