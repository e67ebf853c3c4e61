// Package metrics exposes Prometheus collectors for uploads and processing jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	uploadsTotal   *prometheus.CounterVec
	uploadBytes    *prometheus.HistogramVec
	rejectedTotal  *prometheus.CounterVec
	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobsInProgress prometheus.Gauge
	jobsWaiting    prometheus.Gauge
}

// New creates the collectors under namespace and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Accepted uploads by file type.",
		}, []string{"file_type"}),
		uploadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of accepted uploads.",
			// 1KB .. 64MB
			Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
		}, []string{"file_type"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Files rejected at submission by reason.",
		}, []string{"reason"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished processing jobs by outcome.",
		}, []string{"status", "file_type"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Processing job wall time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		jobsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_progress",
			Help:      "Jobs currently holding a worker slot.",
		}),
		jobsWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_waiting",
			Help:      "Jobs waiting for a worker slot.",
		}),
	}

	reg.MustRegister(
		m.uploadsTotal,
		m.uploadBytes,
		m.rejectedTotal,
		m.jobsTotal,
		m.jobDuration,
		m.jobsInProgress,
		m.jobsWaiting,
	)
	return m
}

// UploadAccepted records one stored upload.
func (m *Metrics) UploadAccepted(fileType string, size int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(fileType).Inc()
	m.uploadBytes.WithLabelValues(fileType).Observe(float64(size))
}

// UploadRejected records a gate rejection.
func (m *Metrics) UploadRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

// JobQueued marks a job waiting for a slot.
func (m *Metrics) JobQueued() {
	if m == nil {
		return
	}
	m.jobsWaiting.Inc()
}

// JobStarted moves a job from waiting to running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsWaiting.Dec()
	m.jobsInProgress.Inc()
}

// JobAbandoned removes a job that never got a slot.
func (m *Metrics) JobAbandoned() {
	if m == nil {
		return
	}
	m.jobsWaiting.Dec()
}

// JobFinished records the outcome of a running job.
func (m *Metrics) JobFinished(status, fileType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsInProgress.Dec()
	m.jobsTotal.WithLabelValues(status, fileType).Inc()
	m.jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
