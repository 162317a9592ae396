// Package metrics exports inventory counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zaloga"

// Metrics holds the collectors on a private registry. It implements
// inventory.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	adjustments    prometheus.Counter
	appendFailures prometheus.Counter
	commits        *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	blobDeletes    *prometheus.CounterVec
	sessions       prometheus.Gauge
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		adjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quantity_adjustments_total",
			Help:      "Quantity adjustments written to the backend.",
		}),
		appendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_append_failures_total",
			Help:      "Activity log entries that could not be written.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_commits_total",
			Help:      "Edit session commits by result.",
		}, []string{"result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_uploads_total",
			Help:      "Attachment uploads by result.",
		}, []string{"result"}),
		blobDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_deletes_total",
			Help:      "Attachment blob deletions by result.",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Signed-in client sessions held by the server.",
		}),
	}
	m.reg.MustRegister(
		m.adjustments, m.appendFailures,
		m.commits, m.uploads, m.blobDeletes,
		m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) QuantityAdjusted()          { m.adjustments.Inc() }
func (m *Metrics) ActivityAppendFailed()      { m.appendFailures.Inc() }
func (m *Metrics) ItemCommitted(ok bool)      { m.commits.WithLabelValues(result(ok)).Inc() }
func (m *Metrics) AttachmentUploaded(ok bool) { m.uploads.WithLabelValues(result(ok)).Inc() }
func (m *Metrics) BlobDeleted(ok bool)        { m.blobDeletes.WithLabelValues(result(ok)).Inc() }

// SessionOpened and SessionClosed track the active session gauge.
func (m *Metrics) SessionOpened() { m.sessions.Inc() }
func (m *Metrics) SessionClosed() { m.sessions.Dec() }

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
