package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/dcastella/fabrica-backend/pkg/config"
	"github.com/dcastella/fabrica-backend/pkg/logger"
	"github.com/dcastella/fabrica-backend/pkg/metrics"
)

// Request is the wire payload between the API and the cleanup worker.
type Request struct {
	Prefix string `json:"prefix"`
}

type publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// PubsubPublisher adapts a Pub/Sub publisher handle to the scheduler.
type PubsubPublisher struct {
	pub *pubsub.Publisher
}

func NewPubsubPublisher(pub *pubsub.Publisher) *PubsubPublisher {
	return &PubsubPublisher{pub: pub}
}

func (p *PubsubPublisher) Publish(ctx context.Context, data []byte) error {
	result := p.pub.Publish(ctx, &pubsub.Message{Data: data})
	_, err := result.Get(ctx)
	return err
}

// Scheduler hands storage prefixes off the request path. Schedule never
// blocks and never fails the caller: a saturated queue drops the request and
// logs it, leaving the debris for the retention sweep.
type Scheduler struct {
	queue   chan string
	pub     publisher
	timeout time.Duration
	metrics *metrics.CleanupMetrics
	logg    *logger.Logger
}

func NewScheduler(cfg config.CleanupConfig, pub publisher, m *metrics.CleanupMetrics, logg *logger.Logger) (*Scheduler, error) {
	if pub == nil {
		return nil, errors.New("cleanup publisher is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scheduler{
		queue:   make(chan string, size),
		pub:     pub,
		timeout: timeout,
		metrics: m,
		logg:    logg,
	}, nil
}

// Schedule enqueues a prefix for deferred deletion.
func (s *Scheduler) Schedule(prefix string) {
	if prefix == "" {
		return
	}
	select {
	case s.queue <- prefix:
		s.metrics.IncScheduled()
	default:
		s.metrics.IncDropped()
		ctx := s.logg.WithField(context.Background(), "prefix", prefix)
		s.logg.Warn(ctx, "cleanup queue saturated, dropping request")
	}
}

// Run drains the queue until the context is canceled. Publish failures are
// logged and counted, never propagated.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case prefix := <-s.queue:
			s.publish(ctx, prefix)
		}
	}
}

func (s *Scheduler) publish(ctx context.Context, prefix string) {
	logCtx := s.logg.WithField(ctx, "prefix", prefix)

	payload, err := json.Marshal(Request{Prefix: prefix})
	if err != nil {
		s.metrics.IncPublishFailed()
		s.logg.Error(logCtx, "failed to encode cleanup request", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.pub.Publish(pubCtx, payload); err != nil {
		s.metrics.IncPublishFailed()
		s.logg.Error(logCtx, "failed to publish cleanup request", err)
		return
	}
	s.metrics.IncPublished()
}
