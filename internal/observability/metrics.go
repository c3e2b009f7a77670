package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the service. Components
// accept a nil *Metrics and skip recording.
type Metrics struct {
	SessionsOnline prometheus.Gauge
	QueueDepth     *prometheus.GaugeVec
	TaskItems      *prometheus.CounterVec
	JobsFired      *prometheus.CounterVec
	Published      prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionsOnline: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_online",
			Help:      "Number of connected account sessions.",
		}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Items waiting per task kind.",
		}, []string{"kind"}),
		TaskItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_items_total",
			Help:      "Processed task items by kind and result.",
		}, []string{"kind", "result"}),
		JobsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_jobs_fired_total",
			Help:      "Scheduler job firings by kind.",
		}, []string{"kind"}),
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages published to channels.",
		}),
	}
}

func (m *Metrics) ItemProcessed(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.TaskItems.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) JobFired(kind string) {
	if m == nil {
		return
	}
	m.JobsFired.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetSessionsOnline(n int) {
	if m == nil {
		return
	}
	m.SessionsOnline.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(kind string, n int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) MessagePublished() {
	if m == nil {
		return
	}
	m.Published.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
