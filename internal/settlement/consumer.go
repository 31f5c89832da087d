package settlement

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ MessageReader = (*kafka.Reader)(nil)

// Handler decides the fate of a message.
type Handler interface {
	Reconcile(ctx context.Context, msg kafka.Message) Verdict
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	// Workers is the number of group members started by Run.
	Workers int
	// RedeliveryDelay is the pause before a message is handled again.
	RedeliveryDelay time.Duration
	// MaxAttempts caps handling of one message. Zero means no cap.
	MaxAttempts int
}

// Consumer runs a set of consumer group members. Each member owns the
// partitions the group assigns to it and handles their messages strictly in
// order: a message being redelivered blocks its partition.
type Consumer struct {
	newReader func() (MessageReader, error)
	handler   Handler
	opts      ConsumerOptions
}

// NewConsumer creates a Consumer. newReader is called once per worker.
func NewConsumer(newReader func() (MessageReader, error), h Handler, opts ConsumerOptions) *Consumer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RedeliveryDelay <= 0 {
		opts.RedeliveryDelay = 100 * time.Millisecond
	}
	return &Consumer{newReader: newReader, handler: h, opts: opts}
}

// Run starts the workers and blocks until ctx is done or a reader cannot be
// created.
func (c *Consumer) Run(ctx context.Context) error {
	readers := make([]MessageReader, 0, c.opts.Workers)
	for i := range c.opts.Workers {
		r, err := c.newReader()
		if err != nil {
			for _, r := range readers {
				_ = r.Close()
			}
			return errors.Wrapf(err, "create reader %d", i)
		}
		readers = append(readers, r)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, r := range readers {
		wctx := zctx.With(ctx, zap.Int("worker", i))
		g.Go(func() error {
			defer func() { _ = r.Close() }()
			return c.work(wctx, r)
		})
	}
	return g.Wait()
}

func (c *Consumer) work(ctx context.Context, r MessageReader) error {
	lg := zctx.From(ctx)
	lg.Info("Consumer started")
	defer lg.Info("Consumer stopped")

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			lg.Error("Fetch message", zap.Error(err))
			if !sleep(ctx, c.opts.RedeliveryDelay) {
				return nil
			}
			continue
		}
		c.handle(ctx, r, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, r MessageReader, msg kafka.Message) {
	for attempt := 1; ; attempt++ {
		switch c.handler.Reconcile(ctx, msg) {
		case Commit:
			c.commit(ctx, r, msg)
			return
		case Drop:
			return
		case Redeliver:
			if c.opts.MaxAttempts > 0 && attempt >= c.opts.MaxAttempts {
				zctx.From(ctx).Error("Giving up on message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Int("attempts", attempt),
				)
				return
			}
			if !sleep(ctx, c.opts.RedeliveryDelay) {
				return
			}
		}
	}
}

func (c *Consumer) commit(ctx context.Context, r MessageReader, msg kafka.Message) {
	// Commit even during shutdown so a processed message is not redelivered.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.CommitMessages(cctx, msg); err != nil {
		zctx.From(ctx).Error("Commit message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
