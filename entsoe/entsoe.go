// Package entsoe fetches day-ahead auction prices from the ENTSO-E
// transparency platform.
package entsoe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/angas/dkspot/hours"
	"github.com/angas/dkspot/types"
	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL  = "https://web-api.tp.entsoe.eu"
	dayAheadPrices  = "A44"
	maxResponseSize = 8 << 20
)

var (
	ErrMissingToken = errors.New("entsoe security token is not set")
	ErrNoData       = errors.New("no day-ahead prices returned")
)

type Client struct {
	logger  *slog.Logger
	baseURL string
	token   string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := slog.Default().With("module", "entsoe")
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "entsoe",
			MaxRequests: 1,
			Timeout:     30 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		}),
	}
}

// GetDayAheadPrices returns hourly prices in EUR/MWh for the zone within [start, end).
func (c *Client) GetDayAheadPrices(ctx context.Context, zone types.Zone, start, end time.Time) ([]types.EnergyPrice, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.fetch(ctx, zone, start, end)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices for %s: %w", zone.Code, err)
	}

	prices := result.([]types.EnergyPrice)
	if len(prices) == 0 {
		return nil, fmt.Errorf("zone %s: %w", zone.Code, ErrNoData)
	}
	return prices, nil
}

func (c *Client) fetch(ctx context.Context, zone types.Zone, start, end time.Time) ([]types.EnergyPrice, error) {
	q := url.Values{}
	q.Set("documentType", dayAheadPrices)
	q.Set("in_Domain", zone.EIC)
	q.Set("out_Domain", zone.EIC)
	q.Set("periodStart", hours.PeriodString(start))
	q.Set("periodEnd", hours.PeriodString(end))
	q.Set("securityToken", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("fetching day-ahead prices",
		slog.String("zone", zone.Code),
		slog.String("start", hours.PeriodString(start)),
		slog.String("end", hours.PeriodString(end)))

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the token, don't leak it into logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	doc, decodeErr := decode(body)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && len(doc.Reasons) > 0 {
			return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, doc.reasonText())
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	return doc.hourlyPrices(start, end)
}

func decode(body []byte) (marketDocument, error) {
	var doc marketDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return marketDocument{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return doc, nil
}

func (d marketDocument) reasonText() string {
	texts := make([]string, 0, len(d.Reasons))
	for _, r := range d.Reasons {
		texts = append(texts, fmt.Sprintf("%s %s", r.Code, r.Text))
	}
	return strings.Join(texts, "; ")
}

// hourlyPrices flattens all periods, fills gaps left by curve type A03 and
// averages sub-hourly resolutions into whole hours. When series overlap the
// first one covering an hour wins.
func (d marketDocument) hourlyPrices(start, end time.Time) ([]types.EnergyPrice, error) {
	if d.XMLName.Local == "Acknowledgement_MarketDocument" {
		return nil, fmt.Errorf("%w: %s", ErrNoData, d.reasonText())
	}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)

	for _, ts := range d.TimeSeries {
		series := make(map[time.Time]*bucket)
		for _, p := range ts.Periods {
			samples, err := p.samples()
			if err != nil {
				return nil, err
			}
			for _, s := range samples {
				if s.Time.Before(start) || !s.Time.Before(end) {
					continue
				}
				hour := s.Time.Truncate(time.Hour)
				b, ok := series[hour]
				if !ok {
					b = &bucket{}
					series[hour] = b
				}
				b.sum += s.Price
				b.count++
			}
		}
		for hour, b := range series {
			if _, taken := buckets[hour]; !taken {
				buckets[hour] = b
			}
		}
	}

	prices := make([]types.EnergyPrice, 0, len(buckets))
	for hour, b := range buckets {
		prices = append(prices, types.EnergyPrice{
			Time:  hours.LocationCopenhagen(hour),
			Price: b.sum / float64(b.count),
		})
	}
	slices.SortFunc(prices, func(a, b types.EnergyPrice) int {
		return a.Time.Compare(b.Time)
	})

	return prices, nil
}

func (p period) samples() ([]types.EnergyPrice, error) {
	resolution, err := parseResolution(p.Resolution)
	if err != nil {
		return nil, err
	}
	periodStart, err := time.Parse(timeLayout, p.TimeInterval.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid period start %q: %w", p.TimeInterval.Start, err)
	}
	periodEnd, err := time.Parse(timeLayout, p.TimeInterval.End)
	if err != nil {
		return nil, fmt.Errorf("invalid period end %q: %w", p.TimeInterval.End, err)
	}

	n := int(periodEnd.Sub(periodStart) / resolution)
	if n <= 0 || len(p.Points) == 0 {
		return nil, nil
	}

	byPosition := make(map[int]float64, len(p.Points))
	for _, pt := range p.Points {
		byPosition[pt.Position] = pt.Price
	}

	first := slices.MinFunc(p.Points, func(a, b point) int { return a.Position - b.Position })

	samples := make([]types.EnergyPrice, 0, n)
	last := first.Price
	for pos := first.Position; pos <= n; pos++ {
		if price, ok := byPosition[pos]; ok {
			last = price
		}
		samples = append(samples, types.EnergyPrice{
			Time:  periodStart.Add(time.Duration(pos-1) * resolution),
			Price: last,
		})
	}
	return samples, nil
}

func parseResolution(s string) (time.Duration, error) {
	switch s {
	case "PT15M":
		return 15 * time.Minute, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT60M", "PT1H":
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported resolution %q", s)
	}
}
