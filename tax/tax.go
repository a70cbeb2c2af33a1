// Package tax holds the fixed time-of-day electricity tax tariffs in DKK/kWh.
//
// The rates are regulatory values and are updated by hand when the grid
// operator publishes new tariffs.
package tax

import (
	"time"

	"github.com/angas/dkspot/hours"
	"github.com/angas/dkspot/slice"
)

const HoursPerDay = 24

type Season string

const (
	SeasonHeating    Season = "heating"     // October to March
	SeasonNonHeating Season = "non_heating" // April to September
)

// Tariff levels. The night level is shared by both seasons.
const (
	RateNight          = 0.1519
	RateHeatingDay     = 0.4556
	RateHeatingPeak    = 1.3668
	RateNonHeatingDay  = 0.2277
	RateNonHeatingPeak = 0.5923
)

// Table is a tax rate per local hour of day, index 0 is 00.00-01.00.
type Table struct {
	Season Season
	Rates  [HoursPerDay]float64
}

type Row struct {
	Interval string
	Rate     float64
}

var heatingTable = Table{
	Season: SeasonHeating,
	Rates: [HoursPerDay]float64{
		RateNight, RateNight, RateNight, RateNight, RateNight, RateNight,
		RateHeatingDay, RateHeatingDay, RateHeatingDay, RateHeatingDay, RateHeatingDay, RateHeatingDay,
		RateHeatingDay, RateHeatingDay, RateHeatingDay, RateHeatingDay, RateHeatingDay,
		RateHeatingPeak, RateHeatingPeak, RateHeatingPeak, RateHeatingPeak,
		RateHeatingDay, RateHeatingDay, RateHeatingDay,
	},
}

var nonHeatingTable = Table{
	Season: SeasonNonHeating,
	Rates: [HoursPerDay]float64{
		RateNight, RateNight, RateNight, RateNight, RateNight, RateNight,
		RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay,
		RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay,
		RateNonHeatingPeak, RateNonHeatingPeak, RateNonHeatingPeak, RateNonHeatingPeak,
		RateNonHeatingDay, RateNonHeatingDay, RateNonHeatingDay,
	},
}

func SeasonOf(m time.Month) Season {
	switch m {
	case time.October, time.November, time.December, time.January, time.February, time.March:
		return SeasonHeating
	default:
		return SeasonNonHeating
	}
}

// ForMonth returns the table in effect for the given month. Months outside
// 1-12 wrap around, so 13 is January and 0 is December.
func ForMonth(m time.Month) Table {
	m = time.Month((int(m)-1)%12+12)%12 + 1
	if SeasonOf(m) == SeasonHeating {
		return heatingTable
	}
	return nonHeatingTable
}

func ForTime(t time.Time) Table {
	return ForMonth(hours.LocationCopenhagen(t).Month())
}

// Rate returns the rate for a local hour of day. ok is false for hours outside 0-23.
func (t Table) Rate(hour int) (rate float64, ok bool) {
	if hour < 0 || hour >= HoursPerDay {
		return 0, false
	}
	return t.Rates[hour], true
}

func (t Table) Rows() []Row {
	rows := make([]Row, HoursPerDay)
	for h, rate := range t.Rates {
		rows[h] = Row{Interval: hours.IntervalKeyForHour(h), Rate: rate}
	}
	return rows
}

// Lookup finds the rate for an interval label such as "13.00-14.00".
func (t Table) Lookup(interval string) (float64, bool) {
	row, found := slice.Find(t.Rows(), func(r Row) bool { return r.Interval == interval })
	return row.Rate, found
}
