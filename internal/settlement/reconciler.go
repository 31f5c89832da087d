package settlement

import (
	"context"

	"github.com/go-faster/errors"
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

// Verdict tells the consumer what to do with a message after reconciling it.
type Verdict uint8

const (
	// Commit marks the message as processed.
	Commit Verdict = iota
	// Drop skips the message without committing it.
	Drop
	// Redeliver asks for the message to be processed again after a delay.
	Redeliver
)

func (v Verdict) String() string {
	switch v {
	case Commit:
		return "commit"
	case Drop:
		return "drop"
	case Redeliver:
		return "redeliver"
	default:
		return "unknown"
	}
}

// StatusUpdater applies a status to an order.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error)
}

var _ StatusUpdater = (*order.Service)(nil)

// Reconciler applies payment outcomes to orders.
type Reconciler struct {
	orders  StatusUpdater
	metrics *Metrics
	tracer  trace.Tracer
}

// NewReconciler creates a Reconciler. metrics and tp may be nil.
func NewReconciler(orders StatusUpdater, metrics *Metrics, tp trace.TracerProvider) *Reconciler {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Reconciler{
		orders:  orders,
		metrics: metrics,
		tracer:  tp.Tracer("orders/settlement"),
	}
}

// Reconcile applies one outcome message.
//
// Malformed messages are dropped. An outcome the order can no longer accept
// (for example FAILED after PAID) is committed. Every other failure,
// including an unknown order id, is redelivered; applying the same status
// again is a no-op, so redelivery is safe.
func (r *Reconciler) Reconcile(ctx context.Context, msg kafka.Message) Verdict {
	requestID := broker.Header(msg, broker.HeaderRequestID)
	if requestID != "" {
		ctx = httpmiddleware.WithRequestID(ctx, requestID)
	}
	ctx = zctx.With(ctx,
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.ByteString("key", msg.Key),
		zap.String("request_id", requestID),
		zap.String("source_service", broker.Header(msg, broker.HeaderSourceService)),
	)

	ctx, span := r.tracer.Start(ctx, "settlement.Reconcile",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	v := r.reconcile(ctx, msg)
	span.SetAttributes(attribute.String("verdict", v.String()))
	if v == Redeliver {
		span.SetStatus(codes.Error, "redeliver")
	}
	r.metrics.outcome(ctx, v)
	return v
}

func (r *Reconciler) reconcile(ctx context.Context, msg kafka.Message) Verdict {
	lg := zctx.From(ctx)

	if len(msg.Value) == 0 {
		lg.Warn("Skipping empty payment outcome")
		return Drop
	}
	out, err := DecodeOutcome(msg.Value)
	if err != nil {
		lg.Warn("Skipping malformed payment outcome", zap.Error(err))
		return Drop
	}
	id, status, known, err := out.Parse()
	if err != nil {
		lg.Warn("Skipping invalid payment outcome",
			zap.String("order_id", out.OrderID),
			zap.String("status", out.Status),
			zap.Error(err),
		)
		return Drop
	}

	lg = lg.With(zap.Int64("order_id", id), zap.Stringer("target_status", status))
	if !known {
		lg.Warn("Unknown payment status, treating as failed", zap.String("status", out.Status))
	}

	o, err := r.orders.UpdateStatus(ctx, id, status)
	switch {
	case err == nil:
		lg.Info("Payment outcome applied", zap.Stringer("status", o.Status))
		return Commit
	case errors.Is(err, order.ErrInvalidTransition):
		lg.Warn("Payment outcome rejected by order state", zap.Error(err))
		return Commit
	default:
		lg.Error("Apply payment outcome", zap.Error(err))
		return Redeliver
	}
}
