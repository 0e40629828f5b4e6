package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagedesk_ingest_events_total",
		Help: "Webhook events applied, by kind and status.",
	}, []string{"kind", "status"})

	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagedesk_ingest_dropped_total",
		Help: "Webhook events dropped because the ingest queue was full or closed.",
	})

	resultsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagedesk_ingest_results_dropped_total",
		Help: "Ingest results not observed because shutdown cut the drain short.",
	})

	fallbackProfilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagedesk_ingest_fallback_profiles_total",
		Help: "Messages and postbacks stored with the Unknown User profile.",
	})

	evictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagedesk_store_evicted_total",
		Help: "Messages evicted from full page stores.",
	})

	applySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagedesk_ingest_apply_seconds",
		Help:    "Time from dequeue to applied state, by event kind.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"kind"})

	queueWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagedesk_ingest_queue_wait_seconds",
		Help:    "Time events spend queued before a worker picks them up.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)

func init() {
	prometheus.MustRegister(eventsTotal, droppedTotal, resultsDroppedTotal, fallbackProfilesTotal, evictedTotal, applySeconds, queueWaitSeconds)
}

// QueueGauges exports queue depth and capacity from fn.
func QueueGauges(depth, capacity func() float64) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pagedesk_ingest_queue_depth",
			Help: "Events waiting in the ingest queue.",
		}, depth),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pagedesk_ingest_queue_capacity",
			Help: "Total ingest queue capacity.",
		}, capacity),
	}
}
