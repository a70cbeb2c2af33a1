// Package publish pushes the latest enriched prices to an MQTT broker so home
// automation can act on them without scraping the chart.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/dkspot/calc"
	"github.com/angas/dkspot/slice"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 10 * time.Second

type Publisher interface {
	Publish(ctx context.Context, series []calc.EnrichedSeries, generatedAt time.Time) error
}

type PricePayload struct {
	Time         time.Time `json:"time"`
	Interval     string    `json:"interval"`
	Price        float64   `json:"price"`
	Tax          float64   `json:"tax"`
	PriceWithTax float64   `json:"priceWithTax"`
}

type ZonePayload struct {
	Zone        string         `json:"zone"`
	Name        string         `json:"name"`
	Season      string         `json:"season"`
	Unit        string         `json:"unit"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Prices      []PricePayload `json:"prices"`
}

func NewZonePayload(s calc.EnrichedSeries, generatedAt time.Time) ZonePayload {
	prices := slice.Map(s.Rows, func(r calc.EnrichedRow) PricePayload {
		return PricePayload{
			Time:         r.Time,
			Interval:     r.Interval,
			Price:        r.Price,
			Tax:          r.Tax,
			PriceWithTax: r.PriceWithTax,
		}
	})
	return ZonePayload{
		Zone:        s.Zone.Code,
		Name:        s.Zone.Name,
		Season:      string(s.Season),
		Unit:        "DKK/kWh",
		GeneratedAt: generatedAt,
		Prices:      prices,
	}
}

type Mqtt struct {
	client      mqtt.Client
	logger      *slog.Logger
	topicPrefix string
}

func NewMqtt(broker string, port int16, clientID, username, password, topicPrefix string) *Mqtt {
	logger := slog.Default().With("module", "mqtt")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqtt.CRITICAL = newMqttLogger(logger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(logger, slog.LevelError)
	mqtt.WARN = newMqttLogger(logger, slog.LevelWarn)

	return &Mqtt{
		client:      mqtt.NewClient(opts),
		logger:      logger,
		topicPrefix: topicPrefix,
	}
}

func (m *Mqtt) Connect() error {
	m.logger.Debug("connecting MQTT client")
	token := m.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// Connect keeps retrying in the background
		m.logger.Warn("MQTT broker not reachable yet, continuing")
		return nil
	}
	return token.Error()
}

func (m *Mqtt) Disconnect() {
	m.client.Disconnect(250)
}

func (m *Mqtt) Topic(zone string) string {
	return m.topicPrefix + "/" + zone
}

func (m *Mqtt) Publish(ctx context.Context, series []calc.EnrichedSeries, generatedAt time.Time) error {
	for _, s := range series {
		payload, err := json.Marshal(NewZonePayload(s, generatedAt))
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", s.Zone.Code, err)
		}

		token := m.client.Publish(m.Topic(s.Zone.Code), 1, true, payload)
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				return fmt.Errorf("publish %s: %w", s.Zone.Code, err)
			}
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", s.Zone.Code, ctx.Err())
		}
		m.logger.Debug("published prices", slog.String("topic", m.Topic(s.Zone.Code)), slog.Int("rows", len(s.Rows)))
	}
	return nil
}
