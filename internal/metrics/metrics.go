package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the crewkit server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Domain metrics.
	CapRejectionsTotal   *prometheus.CounterVec
	RegistrationsTotal   *prometheus.CounterVec
	TeamsCreatedTotal    prometheus.Counter
	TeamsDeletedTotal    prometheus.Counter
	ProUpgradesTotal     *prometheus.CounterVec

	// Rate limiting and auth metrics.
	RateLimitRejectionsTotal prometheus.Counter
	AuthFailuresTotal        *prometheus.CounterVec
	AuthSuccessesTotal       *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewkit_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crewkit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		CapRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewkit_cap_rejections_total",
			Help: "Total number of aggregate credit cap rejections.",
		}, []string{"operation"}),

		RegistrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewkit_registrations_total",
			Help: "Total number of registrations.",
		}, []string{"referred"}),

		TeamsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crewkit_teams_created_total",
			Help: "Total number of teams created.",
		}),

		TeamsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crewkit_teams_deleted_total",
			Help: "Total number of teams deleted.",
		}),

		ProUpgradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewkit_pro_upgrades_total",
			Help: "Total number of Pro upgrades and downgrades.",
		}, []string{"direction"}),

		RateLimitRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crewkit_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewkit_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"reason"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewkit_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"method"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crewkit_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CapRejectionsTotal,
		m.RegistrationsTotal,
		m.TeamsCreatedTotal,
		m.TeamsDeletedTotal,
		m.ProUpgradesTotal,
		m.RateLimitRejectionsTotal,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// IncCapRejection increments the aggregate-cap rejection counter.
func (m *Metrics) IncCapRejection(operation string) {
	m.CapRejectionsTotal.WithLabelValues(operation).Inc()
}

// IncRegistration increments the registration counter.
func (m *Metrics) IncRegistration(referred bool) {
	label := "false"
	if referred {
		label = "true"
	}
	m.RegistrationsTotal.WithLabelValues(label).Inc()
}

// IncAuthFailure increments the auth failure counter for the given reason.
func (m *Metrics) IncAuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// IncAuthSuccess increments the auth success counter.
func (m *Metrics) IncAuthSuccess(method string) {
	m.AuthSuccessesTotal.WithLabelValues(method).Inc()
}
