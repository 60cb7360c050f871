package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hwbot/internal/homework"
)

const namespace = "hwbot"

// Metrics records poll and delivery outcomes on its own registry.
type Metrics struct {
	reg *prometheus.Registry

	polls         *prometheus.CounterVec
	pollErrors    *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	lastSuccess   prometheus.Gauge
	statusChanges *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll iterations by result.",
		}, []string{"result"}),
		pollErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Failed poll iterations by error kind.",
		}, []string{"kind"}),
		pollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll iteration.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll.",
		}),
		statusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Observed homework status changes by new status.",
		}, []string{"status"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Chat notifications by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// PollFinished counts one poll iteration.
func (m *Metrics) PollFinished(err error, took time.Duration) {
	m.pollDuration.Observe(took.Seconds())
	if err != nil {
		m.polls.WithLabelValues("error").Inc()
		m.pollErrors.WithLabelValues(kindLabel(err)).Inc()
		return
	}
	m.polls.WithLabelValues("ok").Inc()
	m.lastSuccess.SetToCurrentTime()
}

func (m *Metrics) StatusChanged(status string) {
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) NotificationSent()   { m.notifications.WithLabelValues("sent").Inc() }
func (m *Metrics) NotificationFailed() { m.notifications.WithLabelValues("failed").Inc() }

// GaugeFunc exposes fn as a gauge sampled at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

func kindLabel(err error) string {
	if k := homework.KindOf(err); k != "" {
		return string(k)
	}
	return "other"
}
