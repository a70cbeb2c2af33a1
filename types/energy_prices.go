package types

import (
	"context"
	"time"
)

type EnergyPrice struct {
	Time  time.Time // Start of the delivery hour
	Price float64   // Day-ahead price in EUR per MWh
}

type Zone struct {
	Code    string // "DK_1", "DK_2"
	EIC     string // Bidding zone EIC code used by the transparency platform
	Name    string // Display name
	CSVFile string // Intermediate file for the fetched series
}

var (
	ZoneDK1 = Zone{Code: "DK_1", EIC: "10YDK-1--------W", Name: "Vest Danmark", CSVFile: "outfile_w.csv"}
	ZoneDK2 = Zone{Code: "DK_2", EIC: "10YDK-2--------M", Name: "Øst Danmark", CSVFile: "outfile_e.csv"}
)

// Zones in chart order.
var Zones = []Zone{ZoneDK1, ZoneDK2}

type EnergyPriceProvider interface {
	GetDayAheadPrices(ctx context.Context, zone Zone, start, end time.Time) ([]EnergyPrice, error)
}
