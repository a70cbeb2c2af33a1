package calc

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/angas/dkspot/hours"
	"github.com/angas/dkspot/tax"
	"github.com/angas/dkspot/types"
	"github.com/shopspring/decimal"
)

const (
	DefaultExchangeRate = 7.45   // DKK per EUR
	DefaultScale        = 1000.0 // MWh to kWh
)

var (
	ErrEmptySeries      = errors.New("empty price series")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrNoTaxForInterval = errors.New("no tax rate for interval")
	ErrTaxMismatch      = errors.New("interval label disagrees with tax hour")
	ErrWindowTooLong    = errors.New("series spans more than one tax day")
)

type NormalizedRow struct {
	Time     time.Time
	Hour     int    // Local hour of day, indexes the tax table
	Interval string // "HH.MM-HH.MM"
	Price    float64
}

type EnrichedRow struct {
	Time         time.Time
	Hour         int
	Interval     string
	Price        float64
	Tax          float64
	PriceWithTax float64
}

type EnrichedSeries struct {
	Zone   types.Zone
	Season tax.Season
	Rows   []EnrichedRow
}

// Normalizer converts EUR/MWh into DKK/kWh.
type Normalizer struct {
	rate  decimal.Decimal
	scale decimal.Decimal
}

func NewNormalizer(exchangeRate, scale float64) Normalizer {
	if exchangeRate <= 0 {
		exchangeRate = DefaultExchangeRate
	}
	if scale <= 0 {
		scale = DefaultScale
	}
	return Normalizer{
		rate:  decimal.NewFromFloat(exchangeRate),
		scale: decimal.NewFromFloat(scale),
	}
}

func (n Normalizer) Convert(price float64) float64 {
	return decimal.NewFromFloat(price).Mul(n.rate).Div(n.scale).InexactFloat64()
}

func (n Normalizer) Normalize(prices []types.EnergyPrice) ([]NormalizedRow, error) {
	if len(prices) == 0 {
		return nil, ErrEmptySeries
	}

	rows := make([]NormalizedRow, len(prices))
	for i, p := range prices {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			return nil, fmt.Errorf("%w at %s: %v", ErrInvalidPrice, p.Time, p.Price)
		}
		rows[i] = NormalizedRow{
			Time:     hours.LocationCopenhagen(p.Time),
			Hour:     hours.HourOfDay(p.Time),
			Interval: hours.IntervalKey(p.Time),
			Price:    n.Convert(p.Price),
		}
	}
	return rows, nil
}

// Merge adds the tax for each row's local hour. Rows keep their order. The
// series is rejected rather than carrying a row without tax.
func Merge(zone types.Zone, rows []NormalizedRow, table tax.Table) (EnrichedSeries, error) {
	if len(rows) == 0 {
		return EnrichedSeries{}, ErrEmptySeries
	}
	if len(rows) > tax.HoursPerDay {
		return EnrichedSeries{}, fmt.Errorf("%w: %d rows", ErrWindowTooLong, len(rows))
	}

	enriched := make([]EnrichedRow, len(rows))
	for i, r := range rows {
		rate, ok := table.Rate(r.Hour)
		if !ok {
			return EnrichedSeries{}, fmt.Errorf("%w %q (hour %d)", ErrNoTaxForInterval, r.Interval, r.Hour)
		}
		// Labels that exist in the table must agree with the hour they were
		// derived from. Labels spanning a daylight saving change don't exist there.
		if labelRate, found := table.Lookup(r.Interval); found && r.Interval != hours.IntervalKeyForHour(r.Hour) {
			return EnrichedSeries{}, fmt.Errorf("%w: %q at hour %d (rate %v)", ErrTaxMismatch, r.Interval, r.Hour, labelRate)
		}

		enriched[i] = EnrichedRow{
			Time:         r.Time,
			Hour:         r.Hour,
			Interval:     r.Interval,
			Price:        r.Price,
			Tax:          rate,
			PriceWithTax: decimal.NewFromFloat(r.Price).Add(decimal.NewFromFloat(rate)).InexactFloat64(),
		}
	}

	return EnrichedSeries{Zone: zone, Season: table.Season, Rows: enriched}, nil
}
