package jobs

import "github.com/prometheus/client_golang/prometheus"

// Метрики фоновых задач, метка job — имя из Runner.Every.
var (
	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drillcert_job_runs_total",
		Help: "Background job runs",
	}, []string{"job"})

	jobErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drillcert_job_errors_total",
		Help: "Background job runs that returned an error or panicked",
	}, []string{"job"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drillcert_job_duration_seconds",
		Help:    "Background job run duration",
		Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"job"})

	// jobLastSuccess — по нему алертим на застывшие gauges сертификации.
	jobLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "drillcert_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful job run",
	}, []string{"job"})
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobDuration, jobLastSuccess)
}
