package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	events   chan kafka.Event
	produced []*kafka.Message
	err      error
	closed   bool
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{events: make(chan kafka.Event)}
}

func (p *fakeProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.produced = append(p.produced, msg)
	return nil
}

func (p *fakeProducer) Events() chan kafka.Event { return p.events }
func (p *fakeProducer) Flush(int) int          { return 0 }

func (p *fakeProducer) Close() {
	p.closed = true
	close(p.events)
}

func TestForward(t *testing.T) {
	p := newFakeProducer()
	m := New(p, "", logrus.New(), nil)

	m.Forward(context.Background(), otc.Notification{
		Kind:      otc.NotificationExecution,
		Execution: &otc.ExecutionSnapshot{ID: "0xT2-1", ListingID: "5"},
	})

	require.Len(t, p.produced, 1)

	msg := p.produced[0]
	assert.Equal(t, DefaultTopic, *msg.TopicPartition.Topic)
	assert.Equal(t, "0xT2-1", string(msg.Key))
	assert.Equal(t, "execution", string(msg.Headers[0].Value))

	var v struct {
		Kind    string            `json:"kind"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &v))
	assert.Equal(t, "execution", v.Kind)
	assert.Equal(t, "5", v.Payload["listingId"])

	m.Close()
	assert.True(t, p.closed)
}

func TestForwardProduceError(t *testing.T) {
	p := newFakeProducer()
	p.err = errors.New("queue full")
	metrics := observability.NewMetrics("test")

	m := New(p, "topic", logrus.New(), metrics)
	m.Forward(context.Background(), otc.Notification{Kind: otc.NotificationListing, Listing: &otc.ListingSnapshot{ID: "1"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("kafka", observability.OutcomeFailed)))
	m.Close()
}
