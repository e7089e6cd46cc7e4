package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "timetable"

type Metrics struct {
	SlotWrites      *prometheus.CounterVec
	AttendanceMarks *prometheus.CounterVec
	ReadRetries     *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SlotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_writes_total",
			Help:      "Slot create/update/delete attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		AttendanceMarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_marks_total",
			Help:      "Attendance marking attempts by protocol and outcome.",
		}, []string{"protocol", "outcome"}),
		ReadRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_retries_total",
			Help:      "Read operations retried after a transient store failure.",
		}, []string{"operation"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.SlotWrites, m.AttendanceMarks, m.ReadRetries, m.HTTPDuration)
	return m
}
