package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the orgbook server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Domain activity.
	RegistrationsTotal        prometheus.Counter
	OrganisationsCreatedTotal prometheus.Counter
	MembershipsAddedTotal     *prometheus.CounterVec

	RateLimitRejectionsTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orgbook_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orgbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orgbook_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orgbook_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"auth_type", "reason"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orgbook_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"auth_type"}),

		RegistrationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orgbook_registrations_total",
			Help: "Total number of user registrations.",
		}),

		OrganisationsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orgbook_organisations_created_total",
			Help: "Total number of organisations created.",
		}),

		MembershipsAddedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orgbook_memberships_added_total",
			Help: "Total number of add-member requests by outcome.",
		}, []string{"outcome"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orgbook_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgbook_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.RegistrationsTotal,
		m.OrganisationsCreatedTotal,
		m.MembershipsAddedTotal,
		m.RateLimitRejectionsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
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

// IncAuthFailure increments the auth failure counter. authType is "login" or
// "bearer"; reason distinguishes e.g. expired from invalid tokens.
func (m *Metrics) IncAuthFailure(authType, reason string) {
	m.AuthFailuresTotal.WithLabelValues(authType, reason).Inc()
}

// IncAuthSuccess increments the auth success counter for the given auth type.
func (m *Metrics) IncAuthSuccess(authType string) {
	m.AuthSuccessesTotal.WithLabelValues(authType).Inc()
}

func (m *Metrics) IncRegistration() {
	m.RegistrationsTotal.Inc()
}

func (m *Metrics) IncOrganisationCreated() {
	m.OrganisationsCreatedTotal.Inc()
}

// IncMembershipAdded records an add-member call; added is false when the user
// was already a member.
func (m *Metrics) IncMembershipAdded(added bool) {
	outcome := "added"
	if !added {
		outcome = "already_member"
	}
	m.MembershipsAddedTotal.WithLabelValues(outcome).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}
