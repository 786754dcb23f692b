package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// AlertPublisher forwards super-critical alert records to Kafka so downstream
// consumers can react without polling the HTTP API.
type AlertPublisher struct {
	writer *kafka.Writer
	topic  string
}

// CrowdAlertMessage is the wire form of a published alert.
type CrowdAlertMessage struct {
	Feed             int      `json:"feed"`
	Time             string   `json:"time"`
	Density          float64  `json:"density"`
	PredictedDensity *float64 `json:"pred_density"`
	EstimatedPeople  int      `json:"est_people"`
	Alert            string   `json:"alert"`
}

// newAlertPublisher connects to the brokers and verifies the topic is
// reachable before returning.
func newAlertPublisher(brokers, topic string) (*AlertPublisher, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1, // Send immediately for real-time alerts
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Compression:  kafka.Gzip,
	}

	conn, err := kafka.DialLeader(context.Background(), "tcp", brokers, topic, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	conn.Close()

	log.Info().Str("topic", topic).Str("brokers", brokers).Msg("Kafka alert publisher initialized")

	return &AlertPublisher{writer: writer, topic: topic}, nil
}

// Publish sends one alert record, keyed by feed index for partitioning.
func (ap *AlertPublisher) Publish(feed int, rec AlertRecord) error {
	msg := CrowdAlertMessage{
		Feed:             feed,
		Time:             rec.Time,
		Density:          rec.Density,
		PredictedDensity: rec.PredictedDensity,
		EstimatedPeople:  rec.EstimatedPeople,
		Alert:            rec.Alert,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ap.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(feed)),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to write alert to kafka: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (ap *AlertPublisher) Close() error {
	if ap.writer != nil {
		return ap.writer.Close()
	}
	return nil
}
