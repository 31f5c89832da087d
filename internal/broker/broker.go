// Package broker builds segmentio/kafka-go writers and readers for the
// settlement topics and exposes helpers for message headers.
package broker

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// Header names carried by settlement messages.
const (
	HeaderRequestID     = "X-Request-Id"
	HeaderSourceService = "X-Source-Service"
)

// ErrNoBrokers is returned when the broker list is empty.
var ErrNoBrokers = errors.New("no kafka brokers configured")

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// WriterConfig configures NewWriter.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewWriter returns a writer that partitions by message key and waits for
// all in-sync replicas, so messages with the same key keep their order.
func NewWriter(cfg WriterConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, nil
}

// ReaderConfig configures NewReader.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader returns a consumer group reader. Offsets are committed
// explicitly with CommitMessages; the group assigns each partition to one
// reader at a time.
func NewReader(cfg ReaderConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka group id is required")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	}), nil
}

// Header returns the value of the first header named key, or "".
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}

// Headers builds message headers from key/value pairs, skipping empty values.
func Headers(kv ...string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		headers = append(headers, kafka.Header{Key: kv[i], Value: []byte(kv[i+1])})
	}
	return headers
}

// Ping dials the first reachable broker.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return ErrNoBrokers
	}
	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	var netErr net.Error
	if errors.As(lastErr, &netErr) && netErr.Timeout() {
		return errors.Wrap(lastErr, "kafka dial timeout")
	}
	return errors.Wrap(lastErr, "kafka dial")
}
