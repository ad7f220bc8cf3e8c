package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register;
// the helpers below no-op until that happens so library embedders who do
// not care about metrics pay nothing.
var (
	regOK atomic.Bool

	readinessAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bootstrapr",
			Subsystem: "readiness",
			Name:      "attempts_total",
			Help:      "Readiness probe invocations per dependency.",
		}, []string{"dependency"},
	)
	readinessExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bootstrapr",
			Subsystem: "readiness",
			Name:      "exhausted_total",
			Help:      "Polling sessions that ran out of attempts.",
		}, []string{"dependency"},
	)
	factsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bootstrapr",
			Subsystem: "provision",
			Name:      "facts_applied_total",
			Help:      "Provisioning facts whose apply action ran.",
		}, []string{"dependency"},
	)
	factsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bootstrapr",
			Subsystem: "provision",
			Name:      "facts_skipped_total",
			Help:      "Provisioning facts short-circuited by their check.",
		}, []string{"dependency"},
	)
	dependencyState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bootstrapr",
			Subsystem: "bootstrap",
			Name:      "dependency_state",
			Help:      "Current lifecycle state per dependency (1 = active state).",
		}, []string{"dependency", "state"},
	)
	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bootstrapr",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Supervised process starts.",
		}, []string{"name"},
	)
	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bootstrapr",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Supervised process auto-restarts.",
		}, []string{"name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bootstrapr",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Supervised process exits, expected or not.",
		}, []string{"name"},
	)
)

var knownStates = []string{
	"not-started", "starting-bootstrap", "awaiting-ready",
	"provisioning", "stopping-bootstrap", "stopped", "failed",
}

// Register registers all collectors with the given registerer. Safe to call
// more than once; AlreadyRegistered is tolerated so the default registry
// can be shared with an embedding application.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		readinessAttempts, readinessExhausted,
		factsApplied, factsSkipped,
		dependencyState,
		processStarts, processRestarts, processStops,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer; the caller mounts it.
func Handler() http.Handler { return promhttp.Handler() }

func IncReadinessAttempt(dep string) {
	if regOK.Load() {
		readinessAttempts.WithLabelValues(dep).Inc()
	}
}

func IncReadinessExhausted(dep string) {
	if regOK.Load() {
		readinessExhausted.WithLabelValues(dep).Inc()
	}
}

func AddFactsApplied(dep string, n int) {
	if regOK.Load() && n > 0 {
		factsApplied.WithLabelValues(dep).Add(float64(n))
	}
}

func AddFactsSkipped(dep string, n int) {
	if regOK.Load() && n > 0 {
		factsSkipped.WithLabelValues(dep).Add(float64(n))
	}
}

// SetDependencyState flips the state gauge: the new state reads 1, all
// others 0, so dashboards can plot the machine's position.
func SetDependencyState(dep, state string) {
	if !regOK.Load() {
		return
	}
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		dependencyState.WithLabelValues(dep, s).Set(v)
	}
}

func IncProcessStart(name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(name).Inc()
	}
}

func IncProcessRestart(name string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(name).Inc()
	}
}

func IncProcessStop(name string) {
	if regOK.Load() {
		processStops.WithLabelValues(name).Inc()
	}
}
