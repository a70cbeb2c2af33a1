package entsoe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angas/dkspot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlyDocument(start time.Time, prices ...float64) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3">
  <TimeSeries>
    <mRID>1</mRID>
    <currency_Unit.name>EUR</currency_Unit.name>
    <price_Measure_Unit.name>MWH</price_Measure_Unit.name>
    <curveType>A03</curveType>
    <Period>
      <timeInterval>`)
	fmt.Fprintf(&b, "<start>%s</start><end>%s</end>", start.UTC().Format(timeLayout),
		start.Add(time.Duration(len(prices))*time.Hour).UTC().Format(timeLayout))
	b.WriteString(`</timeInterval>
      <resolution>PT60M</resolution>`)
	for i, p := range prices {
		fmt.Fprintf(&b, "<Point><position>%d</position><price.amount>%.2f</price.amount></Point>", i+1, p)
	}
	b.WriteString(`</Period></TimeSeries></Publication_MarketDocument>`)
	return b.String()
}

func TestGetDayAheadPrices(t *testing.T) {
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, hourlyDocument(start, 500, 510.5, 490))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", 5*time.Second)
	prices, err := c.GetDayAheadPrices(context.Background(), types.ZoneDK1, start, end)
	require.NoError(t, err)
	require.Len(t, prices, 3)

	assert.True(t, prices[0].Time.Equal(start))
	assert.Equal(t, 500.0, prices[0].Price)
	assert.Equal(t, 510.5, prices[1].Price)
	assert.Equal(t, 490.0, prices[2].Price)

	assert.Contains(t, query, "documentType=A44")
	assert.Contains(t, query, "in_Domain=10YDK-1--------W")
	assert.Contains(t, query, "periodStart=202501150000")
	assert.Contains(t, query, "periodEnd=202501150300")
	assert.Contains(t, query, "securityToken=secret")
}

func TestGetDayAheadPricesTrimsToWindow(t *testing.T) {
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hourlyDocument(start, 1, 2, 3, 4, 5))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", 5*time.Second)
	prices, err := c.GetDayAheadPrices(context.Background(), types.ZoneDK2,
		start.Add(time.Hour), start.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 2.0, prices[0].Price)
	assert.Equal(t, 3.0, prices[1].Price)
}

func TestMissingToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.GetDayAheadPrices(context.Background(), types.ZoneDK1, time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.False(t, called, "no request may be sent without a token")
}

func TestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `<Acknowledgement_MarketDocument><Reason><code>999</code><text>Invalid token</text></Reason></Acknowledgement_MarketDocument>`)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad", time.Second)
	_, err := c.GetDayAheadPrices(context.Background(), types.ZoneDK1, time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid token")
	assert.NotContains(t, err.Error(), "securityToken")
}

func TestAcknowledgementMeansNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<Acknowledgement_MarketDocument><Reason><code>999</code><text>No matching data found</text></Reason></Acknowledgement_MarketDocument>`)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second)
	_, err := c.GetDayAheadPrices(context.Background(), types.ZoneDK1, time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second)
	for i := 0; i < 5; i++ {
		_, err := c.GetDayAheadPrices(context.Background(), types.ZoneDK1, time.Now(), time.Now().Add(time.Hour))
		require.Error(t, err)
	}
	assert.Equal(t, 3, requests)
}

func TestQuarterHourResolutionIsAveraged(t *testing.T) {
	doc := marketDocument{
		TimeSeries: []timeSeries{{
			Periods: []period{{
				TimeInterval: timeInterval{Start: "2025-10-15T00:00Z", End: "2025-10-15T02:00Z"},
				Resolution:   "PT15M",
				Points: []point{
					{Position: 1, Price: 10}, {Position: 2, Price: 20}, {Position: 3, Price: 30}, {Position: 4, Price: 40},
					{Position: 5, Price: 100}, {Position: 6, Price: 100}, {Position: 7, Price: 100}, {Position: 8, Price: 100},
				},
			}},
		}},
	}
	start := time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC)
	prices, err := doc.hourlyPrices(start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 25.0, prices[0].Price)
	assert.Equal(t, 100.0, prices[1].Price)
}

func TestMissingPositionsAreForwardFilled(t *testing.T) {
	doc := marketDocument{
		TimeSeries: []timeSeries{{
			Periods: []period{{
				TimeInterval: timeInterval{Start: "2025-01-15T00:00Z", End: "2025-01-15T04:00Z"},
				Resolution:   "PT60M",
				Points:       []point{{Position: 1, Price: 50}, {Position: 3, Price: 70}},
			}},
		}},
	}
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	prices, err := doc.hourlyPrices(start, start.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, prices, 4)
	assert.Equal(t, []float64{50, 50, 70, 70}, []float64{prices[0].Price, prices[1].Price, prices[2].Price, prices[3].Price})
}

func TestOverlappingSeriesKeepFirst(t *testing.T) {
	doc := marketDocument{
		TimeSeries: []timeSeries{
			{
				Periods: []period{{
					TimeInterval: timeInterval{Start: "2025-01-15T00:00Z", End: "2025-01-15T01:00Z"},
					Resolution:   "PT15M",
					Points:       []point{{Position: 1, Price: 80}, {Position: 2, Price: 120}, {Position: 3, Price: 100}, {Position: 4, Price: 100}},
				}},
			},
			{
				Periods: []period{{
					TimeInterval: timeInterval{Start: "2025-01-15T00:00Z", End: "2025-01-15T02:00Z"},
					Resolution:   "PT60M",
					Points:       []point{{Position: 1, Price: 300}, {Position: 2, Price: 60}},
				}},
			},
		},
	}
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	prices, err := doc.hourlyPrices(start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 100.0, prices[0].Price)
	assert.Equal(t, 60.0, prices[1].Price)
}

func TestUnsupportedResolution(t *testing.T) {
	_, err := parseResolution("P1D")
	assert.Error(t, err)
}

func TestContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL, "secret", time.Second)
	_, err := c.GetDayAheadPrices(ctx, types.ZoneDK1, time.Now(), time.Now().Add(time.Hour))
	assert.True(t, errors.Is(err, context.Canceled))
}
