// Package metrics exposes Prometheus instrumentation for the lead-scoring
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service's Prometheus collectors behind a dedicated
// registry so tests can create isolated instances.
type Recorder struct {
	registry *prometheus.Registry

	batchesProcessed prometheus.Counter
	leadsScored      prometheus.Counter
	jobsFinished     *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec
	runningJobs      prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		batchesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadscore_batches_processed_total",
			Help: "Total scoring batches processed across all jobs.",
		}),
		leadsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadscore_leads_scored_total",
			Help: "Total leads scored across all jobs.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_jobs_finished_total",
			Help: "Total jobs that reached a final or stopped state, by status.",
		}, []string{"status"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_provider_errors_total",
			Help: "Total scoring-provider call failures, by error class.",
		}, []string{"class"}),
		runningJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadscore_running_jobs",
			Help: "Number of lead-scoring jobs currently running in this process.",
		}),
	}

	registry.MustRegister(r.batchesProcessed)
	registry.MustRegister(r.leadsScored)
	registry.MustRegister(r.jobsFinished)
	registry.MustRegister(r.providerErrors)
	registry.MustRegister(r.runningJobs)

	return r
}

// Handler returns the /metrics HTTP handler for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) BatchProcessed(leads int) {
	r.batchesProcessed.Inc()
	r.leadsScored.Add(float64(leads))
}

func (r *Recorder) JobFinished(status string) {
	r.jobsFinished.WithLabelValues(status).Inc()
}

func (r *Recorder) ProviderError(class string) {
	r.providerErrors.WithLabelValues(class).Inc()
}

func (r *Recorder) RunStarted() {
	r.runningJobs.Inc()
}

func (r *Recorder) RunStopped() {
	r.runningJobs.Dec()
}
