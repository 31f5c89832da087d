package settlement

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliakaiko/orderservice/internal/broker"
	"github.com/juliakaiko/orderservice/internal/domain/order"
	"github.com/juliakaiko/orderservice/pkg/httpmiddleware"
)

// --- Mock implementations ---

type mockWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

// slowWriter takes a little longer for the first messages it sees so that
// later sends would overtake them if they were not serialized.
type slowWriter struct {
	mockWriter
	calls atomic.Int32
}

func (m *slowWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if n := m.calls.Add(1); n <= 10 {
		time.Sleep(time.Duration(11-n) * time.Millisecond)
	}
	return m.mockWriter.WriteMessages(ctx, msgs...)
}

// --- Helpers ---

func orderWithQuantity(id, quantity int64) *order.Order {
	o := testOrder()
	o.ID = id
	o.LineItems[0].Quantity = quantity
	return o
}

func encoded(o *order.Order) string {
	var e jx.Encoder
	NewRequest(o).Encode(&e)
	return string(e.Bytes())
}

func testOrder() *order.Order {
	return &order.Order{
		ID:      1,
		BuyerID: 1,
		Status:  order.StatusCreated,
		LineItems: []order.LineItem{
			{CatalogItemID: 2, Quantity: 5, UnitPrice: decimal.RequireFromString("100.00")},
		},
	}
}

// --- Tests ---

func TestPublisher_Confirmed(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, PublisherOptions{Source: "order-service"})

	ctx, cancel := context.WithCancel(httpmiddleware.WithRequestID(context.Background(), "req-42"))
	var confirmed atomic.Int32
	p.Publish(ctx, testOrder(), func() { confirmed.Add(1) })
	// The send must survive the end of the request.
	cancel()
	p.Close()

	assert.Equal(t, int32(1), confirmed.Load())
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "1", string(msg.Key))
	assert.Equal(t, `{"orderId":"1","userId":"1","paymentAmount":500.00}`, string(msg.Value))
	assert.Equal(t, "req-42", broker.Header(msg, broker.HeaderRequestID))
	assert.Equal(t, "order-service", broker.Header(msg, broker.HeaderSourceService))
}

func TestPublisher_Failed(t *testing.T) {
	w := &mockWriter{err: errors.New("broker unreachable")}
	p := NewPublisher(w, PublisherOptions{})

	var confirmed atomic.Int32
	p.Publish(context.Background(), testOrder(), func() { confirmed.Add(1) })
	p.Close()

	assert.Zero(t, confirmed.Load())
	assert.Empty(t, w.msgs)
}

func TestPublisher_SnapshotsOrder(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, PublisherOptions{})

	o := testOrder()
	p.Publish(context.Background(), o, func() {})
	o.LineItems[0].Quantity = 1
	p.Close()

	require.Len(t, w.msgs, 1)
	assert.Contains(t, string(w.msgs[0].Value), `"paymentAmount":500.00`)
}

func TestPublisher_KeepsOrderPerKey(t *testing.T) {
	const n = 500
	w := &slowWriter{}
	p := NewPublisher(w, PublisherOptions{Senders: 8, Backlog: 4})

	var (
		mu        sync.Mutex
		confirmed []int
		want      []string
	)
	for i := 1; i <= n; i++ {
		o := orderWithQuantity(7, int64(i))
		want = append(want, encoded(o))
		p.Publish(context.Background(), o, func() {
			mu.Lock()
			confirmed = append(confirmed, i)
			mu.Unlock()
		})
		// Traffic for other orders shares the senders.
		p.Publish(context.Background(), orderWithQuantity(int64(100+i), 1), func() {})
	}
	p.Close()

	var got []string
	for _, msg := range w.msgs {
		if string(msg.Key) == "7" {
			got = append(got, string(msg.Value))
		}
	}
	require.Len(t, got, n)
	assert.Equal(t, want, got)

	require.Len(t, confirmed, n)
	for i, v := range confirmed {
		require.Equal(t, i+1, v, "confirmation %d out of order", i)
	}
	assert.Len(t, w.msgs, 2*n)
}

func TestPublisher_ConfirmsAfterWrite(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, PublisherOptions{})

	var written int
	p.Publish(context.Background(), testOrder(), func() {
		w.mu.Lock()
		written = len(w.msgs)
		w.mu.Unlock()
	})
	p.Close()

	assert.Equal(t, 1, written)
}

func TestPublisher_PublishAfterClose(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, PublisherOptions{})
	p.Close()
	p.Close()

	var confirmed atomic.Int32
	p.Publish(context.Background(), testOrder(), func() { confirmed.Add(1) })

	assert.Zero(t, confirmed.Load())
	assert.Empty(t, w.msgs)
}
