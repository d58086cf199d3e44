// Package metrics provides Prometheus metrics for the genesis server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "genesis"

// Result labels for metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Verification outcome labels.
const (
	OutcomeValid     = "valid"
	OutcomeInvalid   = "invalid"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

// Registry holds every genesis collector plus the Go runtime and process
// collectors. It is served by Handler.
var Registry = prometheus.NewRegistry()

var (
	// TokensIssuedTotal counts issuance attempts by result.
	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "issued_total",
			Help:      "Total number of token issuance attempts",
		},
		[]string{"result"},
	)

	// TokensVerifiedTotal counts verifications by outcome.
	TokensVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "verified_total",
			Help:      "Total number of token verifications",
		},
		[]string{"outcome"},
	)

	// RenewalAttemptsTotal counts credential renewal attempts by result.
	RenewalAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "renewal_attempts_total",
			Help:      "Total number of credential renewal attempts",
		},
		[]string{"result"},
	)

	// LeaseExpiryTimestamp is the unix time at which the current lease runs out.
	// Zero means the lease does not expire.
	LeaseExpiryTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "lease_expiry_timestamp_seconds",
			Help:      "Unix time at which the current credential lease expires",
		},
	)

	// PrivilegeLossTotal counts observed insufficient-privilege errors.
	PrivilegeLossTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "privilege_loss_total",
			Help:      "Total number of insufficient privilege errors observed",
		},
	)

	// HTTPRequestDuration observes request latency by route and status.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TokensIssuedTotal,
		TokensVerifiedTotal,
		RenewalAttemptsTotal,
		LeaseExpiryTimestamp,
		PrivilegeLossTotal,
		HTTPRequestDuration,
	)
}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// IncrementTokensIssued records one issuance attempt.
func IncrementTokensIssued(success bool) {
	TokensIssuedTotal.WithLabelValues(result(success)).Inc()
}

// IncrementTokensVerified records one verification with its outcome label.
func IncrementTokensVerified(outcome string) {
	TokensVerifiedTotal.WithLabelValues(outcome).Inc()
}

// IncrementRenewalAttempt records one renewal attempt.
func IncrementRenewalAttempt(success bool) {
	RenewalAttemptsTotal.WithLabelValues(result(success)).Inc()
}

// SetLeaseExpiry publishes the expiry of the current lease.
func SetLeaseExpiry(t time.Time) {
	if t.IsZero() {
		LeaseExpiryTimestamp.Set(0)
		return
	}
	LeaseExpiryTimestamp.Set(float64(t.Unix()))
}

func IncrementPrivilegeLoss() {
	PrivilegeLossTotal.Inc()
}

// ObserveHTTPRequest records the latency of a served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
