// Package metrics exposes Prometheus collectors for the HTTP layer and the
// inspection lifecycle. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	reg *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	inspectionsCreated prometheus.Counter
	statusChanges      *prometheus.CounterVec
	stepUpdates        *prometheus.CounterVec
	deletesBlocked     *prometheus.CounterVec
	photosUploaded     prometheus.Counter
}

func NewRecorder() (*Recorder, error) {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		reg: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspection_http_requests_total",
				Help: "HTTP requests partitioned by route and status code.",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inspection_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		inspectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspections_created_total",
			Help: "Inspections created from a checklist.",
		}),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspection_status_changes_total",
				Help: "Inspection status updates by target status.",
			},
			[]string{"status"},
		),
		stepUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspection_step_updates_total",
				Help: "Step result status updates by target status.",
			},
			[]string{"status"},
		),
		deletesBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspection_deletes_blocked_total",
				Help: "Deletions refused because inspections still depend on the record.",
			},
			[]string{"resource"},
		),
		photosUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspection_photos_uploaded_total",
			Help: "Step photos stored.",
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"requests":            r.requests,
		"request duration":    r.requestDuration,
		"inspections created": r.inspectionsCreated,
		"status changes":      r.statusChanges,
		"step updates":        r.stepUpdates,
		"deletes blocked":     r.deletesBlocked,
		"photos uploaded":     r.photosUploaded,
		"go":                  collectors.NewGoCollector(),
		"process":             collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}
	return r, nil
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.requestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (r *Recorder) InspectionCreated() {
	if r == nil {
		return
	}
	r.inspectionsCreated.Inc()
}

func (r *Recorder) StatusChanged(status string) {
	if r == nil {
		return
	}
	r.statusChanges.WithLabelValues(status).Inc()
}

func (r *Recorder) StepUpdated(status string) {
	if r == nil {
		return
	}
	r.stepUpdates.WithLabelValues(status).Inc()
}

func (r *Recorder) DeleteBlocked(resource string) {
	if r == nil {
		return
	}
	r.deletesBlocked.WithLabelValues(resource).Inc()
}

func (r *Recorder) PhotoUploaded() {
	if r == nil {
		return
	}
	r.photosUploaded.Inc()
}
