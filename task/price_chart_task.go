package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/dkspot/calc"
	"github.com/angas/dkspot/chart"
	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/database"
	"github.com/angas/dkspot/hours"
	"github.com/angas/dkspot/metrics"
	"github.com/angas/dkspot/publish"
	"github.com/angas/dkspot/series"
	"github.com/angas/dkspot/tax"
	"github.com/angas/dkspot/types"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// ErrFetch marks errors returned by the price provider.
var ErrFetch = errors.New("fetch")

type RunStore interface {
	SavePipelineRun(ctx context.Context, r database.PipelineRunRow) error
}

type RunResult struct {
	Series     []calc.EnrichedSeries
	ChartBytes int
}

func (r RunResult) Rows() int {
	n := 0
	for _, s := range r.Series {
		n += len(s.Rows)
	}
	return n
}

// PriceChartTask fetches both zones, adds tax and replaces the chart file.
// Zones are processed one at a time and the chart is only written when every
// zone succeeded, so a failed run leaves the previous chart in place.
type PriceChartTask struct {
	logger     *slog.Logger
	provider   types.EnergyPriceProvider
	renderer   *chart.Renderer
	normalizer calc.Normalizer
	cnfg       config.AppConfigPipeline
	timeout    time.Duration
	runs       RunStore
	publisher  publish.Publisher
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewPriceChartTask(
	logger *slog.Logger,
	provider types.EnergyPriceProvider,
	renderer *chart.Renderer,
	cnfg config.AppConfigPipeline,
	timeout time.Duration,
) *PriceChartTask {
	return &PriceChartTask{
		logger:     logger,
		provider:   provider,
		renderer:   renderer,
		normalizer: calc.NewNormalizer(cnfg.ExchangeRate, calc.DefaultScale),
		cnfg:       cnfg,
		timeout:    timeout,
		metrics:    metrics.Default(),
		now:        time.Now,
	}
}

func (t *PriceChartTask) WithRunStore(runs RunStore) *PriceChartTask {
	t.runs = runs
	return t
}

func (t *PriceChartTask) WithPublisher(p publish.Publisher) *PriceChartTask {
	t.publisher = p
	return t
}

func (t *PriceChartTask) WithMetrics(m *metrics.Metrics) *PriceChartTask {
	t.metrics = m
	return t
}

func (t *PriceChartTask) WithClock(now func() time.Time) *PriceChartTask {
	t.now = now
	return t
}

// Func is the scheduled entry point. Errors are logged and recorded, never
// propagated, the next tick is the retry.
func (t *PriceChartTask) Func() func() {
	return func() {
		ctx := context.Background()
		if t.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}
		_ = t.RunAndRecord(ctx)
	}
}

func (t *PriceChartTask) RunAndRecord(ctx context.Context) error {
	id := uuid.NewString()
	logger := t.logger.With(slog.String("runId", id))
	logger.Debug("running price chart task...")

	started := time.Now()
	res, err := t.Run(ctx)
	finished := time.Now()

	row := database.PipelineRunRow{
		ID:         id,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     database.RunStatusOK,
		Rows:       res.Rows(),
		ChartBytes: res.ChartBytes,
	}
	result := metrics.ResultSuccess
	if err != nil {
		kind := FailureKind(err)
		row.Status = database.RunStatusFailed
		row.Error = err.Error()
		result = metrics.ResultError
		t.metrics.IncRunFailure(kind)
		logger.Error("price chart task error, keeping previous chart",
			slog.String("kind", kind),
			slog.Any("error", err))
	} else {
		logger.Info("price chart task done",
			slog.Int("rows", row.Rows),
			slog.String("chart", humanize.Bytes(uint64(res.ChartBytes))),
			slog.Duration("took", finished.Sub(started)))
	}
	t.metrics.ObservePipelineRun(result, started, finished)

	if t.runs != nil {
		// The run context may already be expired
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if saveErr := t.runs.SavePipelineRun(saveCtx, row); saveErr != nil {
			logger.Warn("failed to record pipeline run", slog.Any("error", saveErr))
		}
	}

	return err
}

func (t *PriceChartTask) Run(ctx context.Context) (RunResult, error) {
	now := t.now()
	start, end := hours.Window(now)
	table := tax.ForTime(now)

	t.logger.Debug("price window",
		slog.Time("start", start),
		slog.Time("end", end),
		slog.String("season", string(table.Season)))

	enriched := make([]calc.EnrichedSeries, 0, len(types.Zones))
	for _, zone := range types.Zones {
		s, err := t.zoneSeries(ctx, zone, start, end, table)
		if err != nil {
			return RunResult{}, err
		}
		enriched = append(enriched, s)
	}

	doc, err := chart.Build(enriched, t.cnfg.IncludeTax, now)
	if err != nil {
		return RunResult{}, fmt.Errorf("build chart: %w", err)
	}

	n, err := t.renderer.WriteFile(t.cnfg.ChartPath(), doc)
	if err != nil {
		return RunResult{}, fmt.Errorf("write chart: %w", err)
	}

	for _, s := range enriched {
		t.metrics.SetCurrentPrice(s.Zone.Code, s.Rows[0].Price, s.Rows[0].PriceWithTax)
	}

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, enriched, now); err != nil {
			// The chart is already replaced, publishing is best effort
			t.logger.Warn("failed to publish prices", slog.Any("error", err))
		}
	}

	return RunResult{Series: enriched, ChartBytes: n}, nil
}

func (t *PriceChartTask) zoneSeries(ctx context.Context, zone types.Zone, start, end time.Time, table tax.Table) (calc.EnrichedSeries, error) {
	prices, err := t.provider.GetDayAheadPrices(ctx, zone, start, end)
	if err != nil {
		t.metrics.IncFetchError(zone.Code)
		return calc.EnrichedSeries{}, fmt.Errorf("%w %s: %w", ErrFetch, zone.Code, err)
	}

	csvPath := t.cnfg.CSVPath(zone.CSVFile)
	if err := series.WriteFile(csvPath, prices); err != nil {
		return calc.EnrichedSeries{}, fmt.Errorf("store %s: %w", zone.Code, err)
	}
	prices, err = series.ReadFile(csvPath)
	if err != nil {
		return calc.EnrichedSeries{}, fmt.Errorf("load %s: %w", zone.Code, err)
	}

	rows, err := t.normalizer.Normalize(prices)
	if err != nil {
		return calc.EnrichedSeries{}, fmt.Errorf("normalize %s: %w", zone.Code, err)
	}

	s, err := calc.Merge(zone, rows, table)
	if err != nil {
		return calc.EnrichedSeries{}, fmt.Errorf("add tax %s: %w", zone.Code, err)
	}

	if len(s.Rows) < tax.HoursPerDay {
		t.logger.Warn("incomplete price series, later hours not published yet",
			slog.String("zone", zone.Code),
			slog.Int("rows", len(s.Rows)))
	}
	return s, nil
}

// IsDataError reports errors caused by the shape of the fetched data rather
// than by the provider or the filesystem.
func IsDataError(err error) bool {
	return errors.Is(err, calc.ErrEmptySeries) ||
		errors.Is(err, calc.ErrInvalidPrice) ||
		errors.Is(err, calc.ErrNoTaxForInterval) ||
		errors.Is(err, calc.ErrTaxMismatch) ||
		errors.Is(err, calc.ErrWindowTooLong) ||
		errors.Is(err, chart.ErrMisalignedSeries) ||
		errors.Is(err, series.ErrMalformed)
}

// FailureKind classifies a failed run for logs and metrics.
func FailureKind(err error) string {
	switch {
	case IsDataError(err):
		return metrics.FailureData
	case errors.Is(err, ErrFetch):
		return metrics.FailureFetch
	default:
		return metrics.FailureOther
	}
}
