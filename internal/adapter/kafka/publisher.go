// Package kafka publishes persisted weather rows to a topic for downstream
// consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher implements collector.RowPublisher over a kafka-go writer.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a producer for the row topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes one denormalized row and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, row domain.WeatherRow) error {
	msg, err := serializeToMessage(row)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// rowMessage is the published wire shape; dates travel as YYYY-MM-DD.
type rowMessage struct {
	Date          string   `json:"date"`
	Location      string   `json:"location"`
	MinTemp       float64  `json:"min_temp"`
	MaxTemp       float64  `json:"max_temp"`
	Rainfall      float64  `json:"rainfall"`
	Evaporation   *float64 `json:"evaporation"`
	Sunshine      *float64 `json:"sunshine"`
	WindGustDir   string   `json:"wind_gust_dir"`
	WindGustSpeed float64  `json:"wind_gust_speed"`
	WindDir9am    string   `json:"wind_dir_9am"`
	WindDir3pm    string   `json:"wind_dir_3pm"`
	WindSpeed9am  float64  `json:"wind_speed_9am"`
	WindSpeed3pm  float64  `json:"wind_speed_3pm"`
	Humidity9am   float64  `json:"humidity_9am"`
	Humidity3pm   float64  `json:"humidity_3pm"`
	Pressure9am   float64  `json:"pressure_9am"`
	Pressure3pm   float64  `json:"pressure_3pm"`
	Cloud9am      float64  `json:"cloud_9am"`
	Cloud3pm      float64  `json:"cloud_3pm"`
	Temp9am       float64  `json:"temp_9am"`
	Temp3pm       float64  `json:"temp_3pm"`
	RainToday     string   `json:"rain_today"`
	RainTomorrow  string   `json:"rain_tomorrow,omitempty"`
}

// serializeToMessage marshals a row into a Kafka message keyed by
// location|date, so per-station ordering survives partitioning.
func serializeToMessage(row domain.WeatherRow) (kafkago.Message, error) {
	date := domain.FormatDate(row.Date)
	payload := rowMessage{
		Date:          date,
		Location:      row.Location,
		MinTemp:       row.MinTemp,
		MaxTemp:       row.MaxTemp,
		Rainfall:      row.Rainfall,
		Evaporation:   row.Evaporation,
		Sunshine:      row.Sunshine,
		WindGustDir:   row.WindGustDir,
		WindGustSpeed: row.WindGustSpeed,
		WindDir9am:    row.WindDir9am,
		WindDir3pm:    row.WindDir3pm,
		WindSpeed9am:  row.WindSpeed9am,
		WindSpeed3pm:  row.WindSpeed3pm,
		Humidity9am:   row.Humidity9am,
		Humidity3pm:   row.Humidity3pm,
		Pressure9am:   row.Pressure9am,
		Pressure3pm:   row.Pressure3pm,
		Cloud9am:      row.Cloud9am,
		Cloud3pm:      row.Cloud3pm,
		Temp9am:       row.Temp9am,
		Temp3pm:       row.Temp3pm,
		RainToday:     row.RainToday,
		RainTomorrow:  row.RainTomorrow,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize weather row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.Location + "|" + date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "location", Value: []byte(row.Location)},
			{Key: "published_at", Value: []byte(domain.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
