// Package metrics provides Prometheus instrumentation for the module
// bundle: counters for filter verdicts and hook traffic, histograms for
// evaluation latency, and per-module counters for the glue modules.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilterVerdicts counts message filter outcomes, labeled by verdict:
	// "allow", "rewrite", "deny_charset", "deny_phrase", "deny_internal".
	FilterVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mods_filter_verdicts_total",
		Help: "Message filter verdicts by outcome",
	}, []string{"verdict"})

	// FilterLatency records Evaluate latency in seconds.
	FilterLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mods_filter_latency_seconds",
		Help:    "Message filter evaluation latency in seconds",
		Buckets: []float64{.000005, .00001, .00005, .0001, .0005, .001, .005, .01},
	})

	// PatternCompiles counts pattern set compilations, labeled by result:
	// "ok" or "error".
	PatternCompiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mods_pattern_compiles_total",
		Help: "Pattern set compilations by result",
	}, []string{"result"})

	// ConfigReloads counts configuration reloads, labeled by result.
	ConfigReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mods_config_reloads_total",
		Help: "Configuration reloads by result",
	}, []string{"result"})

	// CaptchaChecks counts connect-time CAPTCHA decisions, labeled by
	// outcome: "cached", "verified", "denied", "throttled", "db_error".
	CaptchaChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mods_captcha_checks_total",
		Help: "CAPTCHA connect checks by outcome",
	}, []string{"outcome"})

	// WSGuardRejections counts WebSocket origin rejections.
	WSGuardRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mods_wsguard_rejections_total",
		Help: "WebSocket connections rejected for a disallowed Origin",
	})

	// RPCRequests counts JSON-RPC requests, labeled by method and result.
	RPCRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mods_rpc_requests_total",
		Help: "JSON-RPC requests by method and result",
	}, []string{"method", "result"})

	// SnoticesSent counts oper notices published.
	SnoticesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mods_snotices_sent_total",
		Help: "Oper notices published to the snotice subjects",
	})
)

func init() {
	prometheus.MustRegister(
		FilterVerdicts,
		FilterLatency,
		PatternCompiles,
		ConfigReloads,
		CaptchaChecks,
		WSGuardRejections,
		RPCRequests,
		SnoticesSent,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
