package settlement

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts settlement traffic. A nil *Metrics records nothing.
type Metrics struct {
	published metric.Int64Counter
	outcomes  metric.Int64Counter
}

// NewMetrics registers the settlement instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	published, err := meter.Int64Counter("orders.settlement.published",
		metric.WithDescription("Payment requests sent, by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "published counter")
	}
	outcomes, err := meter.Int64Counter("orders.settlement.outcomes",
		metric.WithDescription("Payment outcomes processed, by verdict"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "outcomes counter")
	}
	return &Metrics{published: published, outcomes: outcomes}, nil
}

func (m *Metrics) publish(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) outcome(ctx context.Context, v Verdict) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", v.String())))
}
