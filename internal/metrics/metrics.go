package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trivia"

// Recorder holds the service's Prometheus instruments. A nil *Recorder is valid and
// records nothing, so components can be built without metrics in tests.
type Recorder struct {
	reg *prometheus.Registry

	starts         prometheus.Counter
	evictions      *prometheus.CounterVec
	scoreMutations *prometheus.CounterVec
	publishErrors  prometheus.Counter
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewRecorder registers all instruments on a private registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		reg: reg,
		starts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_starts_total",
			Help:      "Game sessions started.",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_evictions_total",
			Help:      "Game sessions removed from the registry, by reason.",
		}, []string{"reason"}),
		scoreMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_mutations_total",
			Help:      "RecordScore calls, by outcome.",
		}, []string{"outcome"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_event_publish_errors_total",
			Help:      "Score events that could not be queued for the historian.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(
		r.starts,
		r.evictions,
		r.scoreMutations,
		r.publishErrors,
		r.requests,
		r.requestLatency,
	)
	return r
}

// TrackLiveGames exposes a gauge read from fn at scrape time.
func (r *Recorder) TrackLiveGames(fn func() int) {
	if r == nil {
		return
	}
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_games",
		Help:      "Game sessions currently held in memory.",
	}, func() float64 { return float64(fn()) }))
}

func (r *Recorder) GameStarted() {
	if r == nil {
		return
	}
	r.starts.Inc()
}

func (r *Recorder) GameEvicted(reason string) {
	if r == nil {
		return
	}
	r.evictions.WithLabelValues(reason).Inc()
}

// ScoreRecorded counts a RecordScore call; err nil means the score was stored.
func (r *Recorder) ScoreRecorded(err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	r.scoreMutations.WithLabelValues(outcome).Inc()
}

func (r *Recorder) PublishFailed() {
	if r == nil {
		return
	}
	r.publishErrors.Inc()
}

// RecordHTTPRequest is called by the logging middleware once per request.
func (r *Recorder) RecordHTTPRequest(method string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.requestLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
