// Package kafka mirrors live pipeline events onto a Kafka topic for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SoilMonitorAPI/internal/config"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/metrics"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Subscriber is the part of *live.Hub the mirror needs.
type Subscriber interface {
	Subscribe(ctx context.Context) (*live.Subscription, error)
}

const resubscribeDelay = time.Second

// Mirror is a live subscriber that writes every event it receives to Kafka. Snapshots
// are not mirrored.
type Mirror struct {
	hub          Subscriber
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	log          *logger.Logger
}

func NewMirror(cfg config.KafkaConfig, hub Subscriber, log *logger.Logger) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka mirror requires brokers and a topic")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.EventsTopic,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newMirrorWithWriter(cfg, hub, writer, log), nil
}

func newMirrorWithWriter(cfg config.KafkaConfig, hub Subscriber, writer messageWriter, log *logger.Logger) *Mirror {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Mirror{
		hub:          hub,
		writer:       writer,
		topic:        cfg.EventsTopic,
		writeTimeout: timeout,
		log:          log,
	}
}

// Run mirrors events until ctx is cancelled or the hub stops. If the hub drops the
// mirror for falling behind, it subscribes again; events in between are lost.
func (m *Mirror) Run(ctx context.Context) error {
	m.log.Info("Kafka mirror started (topic %s)", m.topic)
	defer m.log.Info("Kafka mirror stopped")

	for {
		sub, err := m.hub.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, live.ErrHubClosed) {
				return nil
			}
			return fmt.Errorf("kafka mirror subscribe: %w", err)
		}

		m.consume(ctx, sub)

		if ctx.Err() != nil {
			return nil
		}
		m.log.Warn("Kafka mirror lost its subscription, resubscribing")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
	}
}

func (m *Mirror) consume(ctx context.Context, sub *live.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Kind() == live.EventSnapshot {
				continue
			}
			if err := m.write(ctx, ev); err != nil {
				metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
				m.log.Error("Failed to mirror %s event: %v", ev.Kind(), err)
				continue
			}
			metrics.KafkaPublishTotal.WithLabelValues("success").Inc()
		}
	}
}

func (m *Mirror) write(ctx context.Context, ev live.Event) error {
	msg, err := live.Encode(ev)
	if err != nil {
		return err
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
	defer cancel()

	return m.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(eventKey(ev)),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Kind())},
		},
	})
}

// eventKey keeps each sensor's events on one partition.
func eventKey(ev live.Event) string {
	switch e := ev.(type) {
	case live.ReadingCreated:
		return e.Reading.SensorID
	case live.AlertsCreated:
		if len(e.Alerts) > 0 {
			return e.Alerts[0].SensorID
		}
	}
	return "system"
}

func (m *Mirror) Close() error {
	return m.writer.Close()
}
