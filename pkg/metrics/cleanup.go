package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CleanupMetrics tracks the storage-cleanup pipeline: requests scheduled onto
// the in-process queue, requests dropped at saturation, publishes to the
// broker, and objects removed by the worker.
type CleanupMetrics struct {
	scheduled      prometheus.Counter
	dropped        prometheus.Counter
	published      prometheus.Counter
	publishFailed  prometheus.Counter
	objectsDeleted prometheus.Counter
}

// NewCleanupMetrics registers the cleanup metrics on the provided registerer.
func NewCleanupMetrics(reg prometheus.Registerer) *CleanupMetrics {
	if reg == nil {
		return &CleanupMetrics{}
	}
	scheduled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_scheduled_total",
		Help: "Cleanup requests accepted onto the queue.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_dropped_total",
		Help: "Cleanup requests dropped because the queue was full.",
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_published_total",
		Help: "Cleanup requests published to the broker.",
	})
	publishFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_publish_failures_total",
		Help: "Cleanup publishes that failed.",
	})
	objectsDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_objects_deleted_total",
		Help: "Objects removed by the cleanup worker.",
	})
	reg.MustRegister(scheduled, dropped, published, publishFailed, objectsDeleted)
	return &CleanupMetrics{
		scheduled:      scheduled,
		dropped:        dropped,
		published:      published,
		publishFailed:  publishFailed,
		objectsDeleted: objectsDeleted,
	}
}

func (c *CleanupMetrics) IncScheduled() {
	if c == nil || c.scheduled == nil {
		return
	}
	c.scheduled.Inc()
}

func (c *CleanupMetrics) IncDropped() {
	if c == nil || c.dropped == nil {
		return
	}
	c.dropped.Inc()
}

func (c *CleanupMetrics) IncPublished() {
	if c == nil || c.published == nil {
		return
	}
	c.published.Inc()
}

func (c *CleanupMetrics) IncPublishFailed() {
	if c == nil || c.publishFailed == nil {
		return
	}
	c.publishFailed.Inc()
}

func (c *CleanupMetrics) AddObjectsDeleted(n int) {
	if c == nil || c.objectsDeleted == nil || n <= 0 {
		return
	}
	c.objectsDeleted.Add(float64(n))
}
