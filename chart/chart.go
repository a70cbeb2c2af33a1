// Package chart renders enriched price series into a self-contained HTML bar
// chart with a selector that shows one series at a time.
package chart

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/angas/dkspot/calc"
	"github.com/angas/dkspot/hours"
	"github.com/angas/dkspot/slice"
)

const pricePrecision = 4

var (
	ErrNoSeries         = errors.New("nothing to chart")
	ErrMisalignedSeries = errors.New("series do not share the same intervals")
	generatedTimeLayout = "2006-01-02 15:04"
)

// MenuOption is one entry of the series selector.
type MenuOption struct {
	Label   string `json:"label"`
	Title   string `json:"title"`
	Visible []bool `json:"visible"`
}

type Document struct {
	Title       string
	Chart       Chart
	Menu        []MenuOption
	GeneratedAt time.Time
	LiveReload  bool
}

func (d Document) Generated() string {
	return hours.LocationCopenhagen(d.GeneratedAt).Format(generatedTimeLayout)
}

type seriesSpec struct {
	label  string
	title  string
	color  string
	values func(calc.EnrichedRow) float64
}

func priceOf(r calc.EnrichedRow) float64        { return r.Price }
func priceWithTaxOf(r calc.EnrichedRow) float64 { return r.PriceWithTax }

// Build lays out one dataset per zone and tax inclusion. With includeTax the
// chart has two datasets per zone, pre-tax and tax inclusive; otherwise one.
// The first dataset is visible and the menu covers every dataset.
func Build(series []calc.EnrichedSeries, includeTax bool, generatedAt time.Time) (Document, error) {
	if len(series) == 0 {
		return Document{}, ErrNoSeries
	}

	labels := intervals(series[0])
	if s, found := slice.Find(series[1:], func(s calc.EnrichedSeries) bool {
		return !slices.Equal(labels, intervals(s))
	}); found {
		return Document{}, fmt.Errorf("%w: %s and %s", ErrMisalignedSeries, series[0].Zone.Code, s.Zone.Code)
	}

	var specs [][]seriesSpec
	var xTitle, yTitle string
	if includeTax {
		xTitle, yTitle = "Time", "Price (DKK/KWh)"
		for _, s := range series {
			specs = append(specs, []seriesSpec{
				{label: s.Zone.Name + " u. Skat", title: s.Zone.Name + " u. Skat", color: ColorSteelBlue, values: priceOf},
				{label: s.Zone.Name + " m. Skat", title: s.Zone.Name + " m. Skat", color: ColorRed, values: priceWithTaxOf},
			})
		}
	} else {
		xTitle, yTitle = "Tid", "Pris (DKK/KWh)"
		for _, s := range series {
			specs = append(specs, []seriesSpec{
				{label: s.Zone.Name, title: "DKK/KWh timepriser - " + s.Zone.Name, color: ColorSteelBlue, values: priceOf},
			})
		}
	}

	var datasets []ChartDataset
	var menu []MenuOption
	for i, s := range series {
		for _, spec := range specs[i] {
			data := make([]*float64, len(s.Rows))
			for j, row := range s.Rows {
				data[j] = FixedFloat64(spec.values(row), pricePrecision)
			}
			datasetName := spec.label
			if !includeTax {
				datasetName = "Pris DKK/KWh"
			}
			datasets = append(datasets, ChartDataset{
				Label:           datasetName,
				Data:            data,
				BackgroundColor: spec.color,
				BorderWidth:     1,
				Hidden:          len(datasets) > 0,
			})
			menu = append(menu, MenuOption{Label: spec.label, Title: spec.title})
		}
	}

	for i := range menu {
		menu[i].Visible = make([]bool, len(datasets))
		menu[i].Visible[i] = true
	}

	c := newBarChart(menu[0].Title, xTitle, yTitle)
	c.Data = ChartData{Labels: labels, Datasets: datasets}

	return Document{
		Title:       menu[0].Title,
		Chart:       c,
		Menu:        menu,
		GeneratedAt: generatedAt,
	}, nil
}

func intervals(s calc.EnrichedSeries) []string {
	return slice.Map(s.Rows, func(r calc.EnrichedRow) string { return r.Interval })
}
