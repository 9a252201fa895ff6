package metrics

import (
	"errors"
	"time"

	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gisadmin"

// Metrics collects request and run metrics for one command, written out as a node exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	services        *prometheus.GaugeVec
	runSuccess      *prometheus.GaugeVec
	runTimestamp    *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "REST requests by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "REST request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"method"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued, reason is login or expired.",
		}, []string{"reason"}),
		services: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services",
			Help:      "Services by availability result from the last check.",
		}, []string{"site", "result"}),
		runSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 when the last run of the command succeeded.",
		}, []string{"command"}),
		runTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_timestamp_seconds",
			Help:      "Time the command last finished.",
		}, []string{"command"}),
	}

	m.registry.MustRegister(m.requests, m.requestDuration, m.tokens, m.services, m.runSuccess, m.runTimestamp)
	return m
}

func outcome(err error) string {
	var (
		apiErr  *arcrest.ApiError
		authErr *arcrest.AuthError
		netErr  *arcrest.NetworkError
		ioErr   *arcrest.IoError
	)

	switch {
	case err == nil:
		return "success"
	case arcrest.IsTokenExpired(err):
		return "token_expired"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &ioErr):
		return "io_error"
	}
	return "error"
}

// RequestDone implements arcrest.Observer.
func (m *Metrics) RequestDone(method string, elapsed time.Duration, err error) {
	m.requests.WithLabelValues(method, outcome(err)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// TokenIssued implements arcrest.Observer.
func (m *Metrics) TokenIssued(reauth bool) {
	reason := "login"
	if reauth {
		reason = "expired"
	}
	m.tokens.WithLabelValues(reason).Inc()
}

// ServiceResults records how many services ended in each availability result.
func (m *Metrics) ServiceResults(site string, counts map[string]int) {
	for result, n := range counts {
		m.services.WithLabelValues(site, result).Set(float64(n))
	}
}

func (m *Metrics) RunFinished(command string, err error) {
	success := 0.0
	if err == nil {
		success = 1
	}
	m.runSuccess.WithLabelValues(command).Set(success)
	m.runTimestamp.WithLabelValues(command).SetToCurrentTime()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics atomically for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
