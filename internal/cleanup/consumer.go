package cleanup

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/dcastella/fabrica-backend/pkg/logger"
	"github.com/dcastella/fabrica-backend/pkg/metrics"
)

type prefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type processResult struct {
	ack  bool
	nack bool
}

// Consumer drains the cleanup subscription and removes storage prefixes.
type Consumer struct {
	subscription *pubsub.Subscriber
	storage      prefixDeleter
	metrics      *metrics.CleanupMetrics
	logg         *logger.Logger
}

func NewConsumer(subscription *pubsub.Subscriber, storage prefixDeleter, m *metrics.CleanupMetrics, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("cleanup subscription is required")
	}
	if storage == nil {
		return nil, errors.New("storage is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		storage:      storage,
		metrics:      m,
		logg:         logg,
	}, nil
}

// Run processes cleanup requests until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		// A malformed payload never becomes valid; drop it.
		c.logg.Error(logCtx, "failed to decode cleanup request", err)
		return processResult{ack: true}
	}
	if req.Prefix == "" {
		c.logg.Warn(logCtx, "cleanup request without prefix")
		return processResult{ack: true}
	}

	logCtx = c.logg.WithField(logCtx, "prefix", req.Prefix)

	deleted, err := c.storage.DeletePrefix(ctx, req.Prefix)
	if err != nil {
		c.logg.Error(logCtx, "failed to delete storage prefix", err)
		return processResult{nack: true}
	}

	c.metrics.AddObjectsDeleted(deleted)
	logCtx = c.logg.WithField(logCtx, "deleted", deleted)
	c.logg.Info(logCtx, "storage prefix cleaned")
	return processResult{ack: true}
}
