package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navalha",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	slotsComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "navalha",
			Name:      "slots_computed_total",
			Help:      "Availability resolutions performed.",
		},
	)

	slotsDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "navalha",
			Name:      "slots_duration_seconds",
			Help:      "Time spent resolving availability.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	appointments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navalha",
			Name:      "appointments_total",
			Help:      "Appointment state changes by resulting status.",
		},
		[]string{"status"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navalha",
			Name:      "sync_tasks_total",
			Help:      "Sheets sync tasks by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, slotsComputed, slotsDuration, appointments, syncTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveSlots records one availability resolution.
func ObserveSlots(elapsed time.Duration) {
	slotsComputed.Inc()
	slotsDuration.Observe(elapsed.Seconds())
}

func IncAppointment(status string) {
	appointments.WithLabelValues(status).Inc()
}

func IncSyncTask(outcome string) {
	syncTasks.WithLabelValues(outcome).Inc()
}
