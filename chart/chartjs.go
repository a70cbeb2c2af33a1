package chart

import "github.com/angas/dkspot/convert"

const (
	ColorSteelBlue = "steelblue"
	ColorRed       = "red"
)

type Chart struct {
	Type    string       `json:"type"`
	Data    ChartData    `json:"data"`
	Options ChartOptions `json:"options"`
}

type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

type ChartDataset struct {
	Label           string     `json:"label"`
	Data            []*float64 `json:"data"`
	BackgroundColor string     `json:"backgroundColor"`
	BorderWidth     int        `json:"borderWidth"`
	Hidden          bool       `json:"hidden"`
}

type ChartOptions struct {
	Responsive bool                  `json:"responsive"`
	Plugins    ChartPlugins          `json:"plugins"`
	Scales     map[string]ChartScale `json:"scales"`
}

type ChartPlugins struct {
	Legend ChartLegend `json:"legend"`
	Title  ChartTitle  `json:"title"`
}

type ChartLegend struct {
	Display bool       `json:"display"`
	Title   ChartTitle `json:"title"`
}

type ChartTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

type ChartScale struct {
	BeginAtZero bool       `json:"beginAtZero"`
	Title       ChartTitle `json:"title"`
}

func newBarChart(title, xTitle, yTitle string) Chart {
	return Chart{
		Type: "bar",
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Display: true, Title: ChartTitle{Display: true, Text: "Region"}},
				Title:  ChartTitle{Display: true, Text: title},
			},
			Scales: map[string]ChartScale{
				"x": {Title: ChartTitle{Display: true, Text: xTitle}},
				"y": {BeginAtZero: true, Title: ChartTitle{Display: true, Text: yTitle}},
			},
		},
	}
}

func FixedFloat64(num float64, precision int) *float64 {
	result := convert.RoundFloat64(num, precision)
	return &result
}
