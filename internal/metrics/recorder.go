// Package metrics exports catalog measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/event-catalog/internal/application"
)

const namespace = "event_catalog"

// Recorder implements application.MetricsRecorder with Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	eventsByRegion  *prometheus.GaugeVec
	trackedByStatus *prometheus.GaugeVec
	savedRecords    prometheus.Gauge
	ingested        *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	evicted         prometheus.Counter
	notifications   *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
}

// NewRecorder registers the catalog collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	r.eventsByRegion = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events",
		Help:      "Upcoming catalog events by region",
	}, []string{"region"})
	r.trackedByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_events",
		Help:      "Tracked events by status",
	}, []string{"status"})
	r.savedRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "saved_records",
		Help:      "Records in the saved ledger",
	})
	r.ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_ingested_total",
		Help:      "Events added to the catalog by source",
	}, []string{"source"})
	r.duplicates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_duplicate_total",
		Help:      "Ingested events skipped as duplicates by source",
	}, []string{"source"})
	r.evicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_evicted_total",
		Help:      "Past events removed from the catalog",
	})
	r.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Deadline alerts and event reminders sent",
	}, []string{"kind"})
	r.queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Catalog query latency",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"cache"})

	r.registry.MustRegister(
		r.eventsByRegion, r.trackedByStatus, r.savedRecords,
		r.ingested, r.duplicates, r.evicted,
		r.notifications, r.queryDuration,
		prometheus.NewGoCollector(),
	)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) CatalogChanged(byRegion map[application.Region]int, byStatus map[application.Status]int) {
	r.eventsByRegion.WithLabelValues(string(application.RegionAll)).Set(float64(byRegion[application.RegionAll]))
	for _, region := range application.Regions {
		r.eventsByRegion.WithLabelValues(string(region)).Set(float64(byRegion[region]))
	}
	for _, status := range application.Statuses {
		r.trackedByStatus.WithLabelValues(string(status)).Set(float64(byStatus[status]))
	}
}

func (r *Recorder) LedgerChanged(total int) {
	r.savedRecords.Set(float64(total))
}

func (r *Recorder) EventsIngested(source application.Source, inserted, duplicates int) {
	r.ingested.WithLabelValues(string(source)).Add(float64(inserted))
	r.duplicates.WithLabelValues(string(source)).Add(float64(duplicates))
}

func (r *Recorder) EventsEvicted(count int) {
	r.evicted.Add(float64(count))
}

func (r *Recorder) NotificationSent(kind application.NotificationKind) {
	r.notifications.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) QueryObserved(duration time.Duration, cached bool) {
	label := "miss"
	if cached {
		label = "hit"
	}
	r.queryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

var _ application.MetricsRecorder = (*Recorder)(nil)
