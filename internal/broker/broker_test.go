package broker

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092,"))
	assert.Empty(t, ParseBrokers(""))
}

func TestHeaders(t *testing.T) {
	msg := kafka.Message{Headers: Headers(HeaderRequestID, "req-1", HeaderSourceService, "")}
	require.Len(t, msg.Headers, 1)

	assert.Equal(t, "req-1", Header(msg, "x-request-id"))
	assert.Empty(t, Header(msg, HeaderSourceService))
}

func TestNewWriter(t *testing.T) {
	_, err := NewWriter(WriterConfig{Topic: "create-order"})
	require.ErrorIs(t, err, ErrNoBrokers)

	w, err := NewWriter(WriterConfig{Brokers: []string{"localhost:9092"}, Topic: "create-order"})
	require.NoError(t, err)
	assert.Equal(t, "create-order", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}

func TestNewReader_RequiresGroup(t *testing.T) {
	_, err := NewReader(ReaderConfig{Brokers: []string{"localhost:9092"}, Topic: "create-payment"})
	require.Error(t, err)
}

func TestPing_NoBrokers(t *testing.T) {
	require.ErrorIs(t, Ping(context.Background(), nil), ErrNoBrokers)
}
