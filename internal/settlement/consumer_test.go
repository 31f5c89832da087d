package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

// mockReader serves queued messages and then blocks until the context ends.
type mockReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newMockReader(msgs ...kafka.Message) *mockReader {
	return &mockReader{queue: msgs, drained: make(chan struct{})}
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	select {
	case <-m.drained:
	default:
		close(m.drained)
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *mockReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// scriptedHandler returns verdicts per offset in order, then Commit.
type scriptedHandler struct {
	mu       sync.Mutex
	verdicts map[int64][]Verdict
	seen     []int64
}

func (h *scriptedHandler) Reconcile(_ context.Context, msg kafka.Message) Verdict {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.Offset)
	vs := h.verdicts[msg.Offset]
	if len(vs) == 0 {
		return Commit
	}
	h.verdicts[msg.Offset] = vs[1:]
	return vs[0]
}

// --- Helpers ---

func runConsumer(t *testing.T, r *mockReader, h Handler, opts ConsumerOptions) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewConsumer(func() (MessageReader, error) { return r, nil }, h, opts)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)
}

func msgAt(offset int64) kafka.Message {
	return kafka.Message{Partition: 0, Offset: offset, Value: []byte(`{}`)}
}

// --- Tests ---

func TestConsumer_CommitsAndDrops(t *testing.T) {
	r := newMockReader(msgAt(1), msgAt(2), msgAt(3))
	h := &scriptedHandler{verdicts: map[int64][]Verdict{2: {Drop}}}

	runConsumer(t, r, h, ConsumerOptions{})

	assert.Equal(t, []int64{1, 2, 3}, h.seen)
	assert.Equal(t, []int64{1, 3}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumer_RedeliversInPlace(t *testing.T) {
	r := newMockReader(msgAt(1), msgAt(2))
	h := &scriptedHandler{verdicts: map[int64][]Verdict{1: {Redeliver, Redeliver}}}

	runConsumer(t, r, h, ConsumerOptions{RedeliveryDelay: time.Millisecond})

	assert.Equal(t, []int64{1, 1, 1, 2}, h.seen)
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestConsumer_MaxAttempts(t *testing.T) {
	r := newMockReader(msgAt(1), msgAt(2))
	h := &scriptedHandler{verdicts: map[int64][]Verdict{1: {Redeliver, Redeliver, Redeliver, Redeliver}}}

	runConsumer(t, r, h, ConsumerOptions{RedeliveryDelay: time.Millisecond, MaxAttempts: 2})

	assert.Equal(t, []int64{1, 1, 2}, h.seen)
	assert.Equal(t, []int64{2}, r.committed)
}

func TestConsumer_ReaderError(t *testing.T) {
	c := NewConsumer(func() (MessageReader, error) {
		return nil, errors.New("no brokers")
	}, &scriptedHandler{}, ConsumerOptions{Workers: 2})

	require.Error(t, c.Run(context.Background()))
}
