// Package metrics holds the prometheus collectors of a social client.
package metrics

import (
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luciancaetano/socialnet"
)

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeRemoteError = "remote_error"
	OutcomeError       = "error"
	OutcomeEnd         = "end"
)

// Metrics observes calls and stream elements per method.
type Metrics struct {
	calls          *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	streamElements *prometheus.CounterVec
	streamsEnded   *prometheus.CounterVec
	sessions       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests and short-lived tools want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialnet",
			Name:      "calls_total",
			Help:      "Total number of unary calls by method and outcome.",
		}, []string{"method", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "socialnet",
			Name:      "call_duration_seconds",
			Help:      "Duration of unary calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		streamElements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialnet",
			Name:      "stream_elements_total",
			Help:      "Total number of stream elements received by method.",
		}, []string{"method"}),
		streamsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialnet",
			Name:      "streams_ended_total",
			Help:      "Total number of streams ended by method and outcome.",
		}, []string{"method", "outcome"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialnet",
			Name:      "sessions_total",
			Help:      "Total number of session bootstraps by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.calls, m.callDuration, m.streamElements, m.streamsEnded, m.sessions)
	}
	return m
}

// ObserveCall records one unary call started at start.
func (m *Metrics) ObserveCall(method string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.callDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	m.calls.WithLabelValues(method, Outcome(err)).Inc()
}

// ObserveElement records one stream element.
func (m *Metrics) ObserveElement(method string) {
	if m == nil {
		return
	}
	m.streamElements.WithLabelValues(method).Inc()
}

// ObserveStreamEnd records why a stream ended.
func (m *Metrics) ObserveStreamEnd(method string, err error) {
	if m == nil {
		return
	}
	m.streamsEnded.WithLabelValues(method, Outcome(err)).Inc()
}

// ObserveSession records one bootstrap attempt.
func (m *Metrics) ObserveSession(err error) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(Outcome(err)).Inc()
}

// Outcome maps an error to its label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, io.EOF):
		return OutcomeEnd
	case errors.Is(err, socialnet.ErrRemote):
		return OutcomeRemoteError
	default:
		return OutcomeError
	}
}
