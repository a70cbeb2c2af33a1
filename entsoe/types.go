package entsoe

import "encoding/xml"

const timeLayout = "2006-01-02T15:04Z"

type marketDocument struct {
	XMLName    xml.Name
	TimeSeries []timeSeries `xml:"TimeSeries"`
	Reasons    []reason     `xml:"Reason"`
}

type timeSeries struct {
	MRID      string   `xml:"mRID"`
	CurveType string   `xml:"curveType"`
	Currency  string   `xml:"currency_Unit.name"`
	Unit      string   `xml:"price_Measure_Unit.name"`
	Periods   []period `xml:"Period"`
}

type period struct {
	TimeInterval timeInterval `xml:"timeInterval"`
	Resolution   string       `xml:"resolution"`
	Points       []point      `xml:"Point"`
}

type timeInterval struct {
	Start string `xml:"start"`
	End   string `xml:"end"`
}

type point struct {
	Position int     `xml:"position"`
	Price    float64 `xml:"price.amount"`
}

type reason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}
