package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/juliakaiko/orderservice/internal/broker"
	"github.com/juliakaiko/orderservice/internal/domain/order"
	"github.com/juliakaiko/orderservice/pkg/httpmiddleware"
)

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

var _ MessageWriter = (*kafka.Writer)(nil)

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	// Source is sent in the X-Source-Service header.
	Source string
	// Timeout bounds a single send. Zero means 10s.
	Timeout time.Duration
	// Senders is the number of sender goroutines. Requests with the same
	// key always go to the same sender. Zero means 4.
	Senders int
	// Backlog is the queue length of each sender. Zero means 64.
	Backlog        int
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
}

type outgoing struct {
	ctx         context.Context
	req         Request
	msg         kafka.Message
	onConfirmed func()
}

// Publisher sends payment requests from a fixed set of sender goroutines.
// Publish returns once the message is queued; messages sharing a key are
// written in the order Publish was called.
type Publisher struct {
	writer  MessageWriter
	source  string
	timeout time.Duration
	metrics *Metrics
	tracer  trace.Tracer

	balancer kafka.Hash
	shards   []int
	queues   []chan outgoing

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ order.SettlementPublisher = (*Publisher)(nil)

// NewPublisher creates a Publisher writing to w.
func NewPublisher(w MessageWriter, opts PublisherOptions) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Senders <= 0 {
		opts.Senders = 4
	}
	if opts.Backlog <= 0 {
		opts.Backlog = 64
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = noop.NewTracerProvider()
	}
	p := &Publisher{
		writer:  w,
		source:  opts.Source,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		tracer:  opts.TracerProvider.Tracer("orders/settlement"),
		shards:  make([]int, opts.Senders),
		queues:  make([]chan outgoing, opts.Senders),
	}
	for i := range p.queues {
		p.shards[i] = i
		p.queues[i] = make(chan outgoing, opts.Backlog)
		p.wg.Add(1)
		go p.run(p.queues[i])
	}
	return p
}

func (p *Publisher) run(queue <-chan outgoing) {
	defer p.wg.Done()
	for out := range queue {
		p.send(out.ctx, out.req, out.msg, out.onConfirmed)
	}
}

// Publish sends the payment request for o keyed by order id. onConfirmed
// runs after the broker acknowledges the message and is skipped when the
// send fails. Failed sends are logged and not retried.
func (p *Publisher) Publish(ctx context.Context, o *order.Order, onConfirmed func()) {
	req := NewRequest(o)
	var e jx.Encoder
	req.Encode(&e)

	msg := kafka.Message{
		Key:   req.Key(),
		Value: e.Bytes(),
		Headers: broker.Headers(
			broker.HeaderRequestID, httpmiddleware.RequestIDFromContext(ctx),
			broker.HeaderSourceService, p.source,
		),
		Time: time.Now().UTC(),
	}

	out := outgoing{
		// The request context ends with the HTTP response; the send must not.
		ctx:         context.WithoutCancel(ctx),
		req:         req,
		msg:         msg,
		onConfirmed: onConfirmed,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		zctx.From(ctx).Warn("Publisher closed, payment request dropped",
			zap.Int64("order_id", req.OrderID),
		)
		p.metrics.publish(ctx, "dropped")
		return
	}
	p.queues[p.balancer.Balance(msg, p.shards...)] <- out
}

func (p *Publisher) send(ctx context.Context, req Request, msg kafka.Message, onConfirmed func()) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "settlement.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.Int64("order.id", req.OrderID),
			attribute.String("payment.amount", req.PaymentAmount.StringFixed(2)),
		),
	)
	defer span.End()

	lg := zctx.From(ctx).With(
		zap.Int64("order_id", req.OrderID),
		zap.String("payment_amount", req.PaymentAmount.StringFixed(2)),
	)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		p.metrics.publish(ctx, "error")
		lg.Error("Send payment request", zap.Error(err))
		return
	}
	p.metrics.publish(ctx, "ok")
	lg.Info("Payment request sent")

	onConfirmed()
}

// Close drains queued requests and stops the senders. Later calls to
// Publish drop their request.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}
