package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chopshop",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopshop",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chopshop",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	tickRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopshop",
			Subsystem: "auction",
			Name:      "tick_runs_total",
			Help:      "Total number of auction tick invocations.",
		},
		[]string{"status"},
	)

	roundTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopshop",
			Subsystem: "auction",
			Name:      "round_transitions_total",
			Help:      "Total number of auction round transitions.",
		},
		[]string{"to"},
	)

	bids = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopshop",
			Subsystem: "auction",
			Name:      "bids_total",
			Help:      "Total number of bid placement attempts.",
		},
		[]string{"status"},
	)

	lockVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopshop",
			Subsystem: "ethlock",
			Name:      "verifications_total",
			Help:      "Total number of lock verification outcomes.",
		},
		[]string{"outcome"},
	)

	rpcPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chopshop",
			Subsystem: "ethlock",
			Name:      "rpc_poll_attempts_total",
			Help:      "Total number of receipt poll attempts against the RPC endpoint.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		tickRuns,
		roundTransitions,
		bids,
		lockVerifications,
		rpcPolls,
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// TickRun records a tick invocation outcome (ok, busy, error).
func TickRun(status string) { tickRuns.WithLabelValues(status).Inc() }

// RoundTransition records a round entering the named state.
func RoundTransition(to string) { roundTransitions.WithLabelValues(to).Inc() }

// BidPlaced records an accepted bid.
func BidPlaced() { bids.WithLabelValues("accepted").Inc() }

// BidRejected records a rejected bid.
func BidRejected() { bids.WithLabelValues("rejected").Inc() }

// LockVerification records a verification outcome (confirmed, pending, error).
func LockVerification(outcome string) { lockVerifications.WithLabelValues(outcome).Inc() }

// RPCPoll records one receipt poll attempt.
func RPCPoll() { rpcPolls.Inc() }

// statusRecorder captures the response code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an HTTP handler with request counting and timing.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
