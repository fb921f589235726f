// Package stream mirrors forwarded notifications onto a Kafka topic.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTopic = "otc-events"

	flushTimeoutMs = 5000
)

// Message is the value written for every notification.
type Message struct {
	Kind    otc.NotificationKind `json:"kind"`
	Payload any                  `json:"payload"`
}

// Producer is the part of *kafka.Producer used by Mirror.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

type Mirror struct {
	producer Producer
	topic    string

	log     *logrus.Entry
	metrics *observability.Metrics
}

var _ otc.Forwarder = (*Mirror)(nil)

func NewProducer(brokers string) (*kafka.Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "otc-indexer",
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return p, nil
}

func New(p Producer, topic string, log *logrus.Logger, metrics *observability.Metrics) *Mirror {
	if topic == "" {
		topic = DefaultTopic
	}

	m := &Mirror{
		producer: p,
		topic:    topic,
		log:      log.WithField("component", "stream"),
		metrics:  metrics,
	}

	go m.deliveryReports()

	return m
}

// deliveryReports drains the producer's event channel until it is closed.
func (m *Mirror) deliveryReports() {
	for e := range m.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				m.log.WithError(ev.TopicPartition.Error).Warn("kafka delivery failed")
				m.metrics.Notification("kafka", observability.OutcomeFailed)
				continue
			}
			m.metrics.Notification("kafka", observability.OutcomeSent)
		case kafka.Error:
			m.log.WithError(ev).Warn("kafka error")
		}
	}
}

// Forward queues n on the producer. Delivery is reported asynchronously.
func (m *Mirror) Forward(_ context.Context, n otc.Notification) {
	value, err := json.Marshal(Message{Kind: n.Kind, Payload: n.Payload()})
	if err != nil {
		m.log.WithError(err).Error("failed to encode notification")
		m.metrics.Notification("kafka", observability.OutcomeFailed)
		return
	}

	err = m.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &m.topic, Partition: kafka.PartitionAny},
		Key:            []byte(n.Key()),
		Value:          value,
		Headers:        []kafka.Header{{Key: "kind", Value: []byte(n.Kind)}},
	}, nil)
	if err != nil {
		m.log.WithError(err).Warn("kafka produce failed")
		m.metrics.Notification("kafka", observability.OutcomeFailed)
	}
}

func (m *Mirror) Close() {
	if left := m.producer.Flush(flushTimeoutMs); left > 0 {
		m.log.Warnf("%d kafka messages not delivered", left)
	}
	m.producer.Close()
	m.log.Info("Kafka Producer closed")
}
