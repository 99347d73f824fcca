// Package consumer manages the JetStream pull consumer for the analytics service.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/analytics"
	"github.com/example/listening-companion/internal/platform/natsconn"
	"github.com/example/listening-companion/services/analytics/internal/handler"
)

const (
	analyticsConsumer = "analytics_processor"
	filterSubject     = "analytics.>"
)

// Consumer wraps a JetStream pull subscription and dispatches messages.
type Consumer struct {
	sub        *nats.Subscription
	dispatcher *handler.Dispatcher
	batchSize  int
	waitMs     time.Duration
	log        *zap.Logger
}

// New creates the ANALYTICS JetStream stream if needed and returns a Consumer
// ready to call Run.
func New(nc *nats.Conn, d *handler.Dispatcher, batchSize, batchIntervalMs int, log *zap.Logger) (*Consumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}

	created, err := natsconn.EnsureStream(js, analytics.Stream)
	switch {
	case err != nil:
		log.Warn("analytics: ensure stream", zap.String("stream", analytics.Stream.Name), zap.Error(err))
	case created:
		log.Info("analytics: stream created", zap.String("stream", analytics.Stream.Name))
	}

	sub, err := js.PullSubscribe(filterSubject, analyticsConsumer, nats.BindStream(analytics.Stream.Name))
	if err != nil {
		return nil, err
	}

	return &Consumer{
		sub:        sub,
		dispatcher: d,
		batchSize:  batchSize,
		waitMs:     time.Duration(batchIntervalMs) * time.Millisecond,
		log:        log,
	}, nil
}

// Run processes messages until ctx is cancelled. Every fetched message is
// acked after dispatch, including ones the dispatcher could not decode.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.waitMs))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			c.log.Error("analytics consumer: fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			c.dispatcher.Dispatch(msg)
			if err := msg.Ack(); err != nil {
				c.log.Warn("analytics consumer: ack", zap.Error(err))
			}
		}
	}
}
