// Package metrics exposes Prometheus instrumentation for one bus node.
// Every method is nil-safe, so components accept a *Set and simply call it;
// a nil Set turns instrumentation off.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the collectors one node exports.
type Set struct {
	published   prometheus.Counter
	dispatched  prometheus.Counter
	dropped     prometheus.Counter
	inFlight    prometheus.Gauge
	timeouts    prometheus.Counter
	activeGoals prometheus.Gauge
	feedback    prometheus.Counter
	results     *prometheus.CounterVec
}

// New builds a Set. namespace prefixes every metric name and may be empty.
func New(namespace string) *Set {
	return &Set{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "published_total",
			Help: "Messages published to the transport.",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "dispatched_total",
			Help: "Messages delivered to subscribers by the dispatch loop.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "dropped_total",
			Help: "Inbound messages dropped because the queue was full.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "service", Name: "calls_in_flight",
			Help: "Service calls currently awaiting a response.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "service", Name: "call_timeouts_total",
			Help: "Service calls that gave up waiting.",
		}),
		activeGoals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "action", Name: "goals_active",
			Help: "Goals currently executing on this node.",
		}),
		feedback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "action", Name: "feedback_total",
			Help: "Feedback messages published by action servers.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "action", Name: "results_total",
			Help: "Goal results published, by terminal status.",
		}, []string{"status"}),
	}
}

// Register registers every collector with r. Pass
// prometheus.DefaultRegisterer to export through the default handler.
func (s *Set) Register(r prometheus.Registerer) error {
	if s == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{
		s.published, s.dispatched, s.dropped,
		s.inFlight, s.timeouts,
		s.activeGoals, s.feedback, s.results,
	} {
		if err := r.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}

// MessagePublished counts one payload handed to the transport.
func (s *Set) MessagePublished() {
	if s != nil {
		s.published.Inc()
	}
}

// MessageDispatched counts one payload delivered to subscribers.
func (s *Set) MessageDispatched() {
	if s != nil {
		s.dispatched.Inc()
	}
}

// MessageDropped counts one inbound payload lost to a full queue.
func (s *Set) MessageDropped() {
	if s != nil {
		s.dropped.Inc()
	}
}

// CallStarted marks a service call in flight.
func (s *Set) CallStarted() {
	if s != nil {
		s.inFlight.Inc()
	}
}

// CallFinished marks a service call resolved, failed or abandoned.
func (s *Set) CallFinished() {
	if s != nil {
		s.inFlight.Dec()
	}
}

// CallTimedOut counts a call that gave up waiting.
func (s *Set) CallTimedOut() {
	if s != nil {
		s.timeouts.Inc()
	}
}

// GoalStarted marks a goal execution beginning.
func (s *Set) GoalStarted() {
	if s != nil {
		s.activeGoals.Inc()
	}
}

// GoalFinished marks a goal execution ending with the given terminal status.
func (s *Set) GoalFinished(status string) {
	if s != nil {
		s.activeGoals.Dec()
		s.results.WithLabelValues(status).Inc()
	}
}

// FeedbackPublished counts one feedback message sent.
func (s *Set) FeedbackPublished() {
	if s != nil {
		s.feedback.Inc()
	}
}
