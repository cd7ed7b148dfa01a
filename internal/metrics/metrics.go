package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drillcert"

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total", Help: "Processed API requests",
	}, []string{"route", "code"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_seconds", Help: "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "handler_errors_total", Help: "Internal handler errors",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})

	EvaluationsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "evaluations_submitted_total", Help: "Submitted participant evaluations",
	}, []string{"result"})
	SessionsLocked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "sessions_locked_total", Help: "Locked scoring sessions",
	})
	CertificatesIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "certificates_issued_total", Help: "Issued certificates",
	}, []string{"type", "trigger"})
	CertificatesRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "certificates_revoked_total", Help: "Revoked certificates",
	})
	AutoIssueSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "auto_issue_skipped_total", Help: "Submissions left in the manual queue",
	}, []string{"reason"})
	RenderDiagnostics = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "render_diagnostics_total", Help: "Template problems found while rendering",
	}, []string{"kind"})
	NotificationsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "notifications_failed_total", Help: "Failed participant notifications",
	})

	CertifiedTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "certified_total", Help: "Active certificates",
	})
	PendingCertifications = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "pending_certifications", Help: "Passed evaluations without an active certificate",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration, HandlerErrors, DBPing,
		EvaluationsSubmitted, SessionsLocked, CertificatesIssued, CertificatesRevoked,
		AutoIssueSkipped, RenderDiagnostics, NotificationsFailed,
		CertifiedTotal, PendingCertifications,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
