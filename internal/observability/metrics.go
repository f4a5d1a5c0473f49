package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records the outcome of service operations.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// GameMetrics records arena-specific gauges and counters.
type GameMetrics interface {
	SetBotPopulation(room string, alive, required int)
	RecordKill(kind string)
	RecordDuplicateKill()
	RecordReconnectAttempt(outcome string)
	RecordMasterSwitch(room string)
	SetGameTime(room string, seconds float64)
}

// PrometheusMetrics implements Metrics and GameMetrics on a prometheus registry.
type PrometheusMetrics struct {
	attempts       *prometheus.CounterVec
	successes      *prometheus.CounterVec
	failures       *prometheus.CounterVec
	durations      *prometheus.HistogramVec
	botPopulation  *prometheus.GaugeVec
	kills          *prometheus.CounterVec
	duplicateKills prometheus.Counter
	reconnects     *prometheus.CounterVec
	masterSwitches *prometheus.CounterVec
	gameTime       *prometheus.GaugeVec
}

var (
	_ Metrics     = (*PrometheusMetrics)(nil)
	_ GameMetrics = (*PrometheusMetrics)(nil)
)

// NewPrometheusMetrics registers the arena collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operation_attempts_total", Help: "Operation attempts.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operation_success_total", Help: "Successful operations.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operation_failures_total", Help: "Failed operations.",
		}, []string{"operation", "service"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "operation_duration_seconds", Help: "Operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		botPopulation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bot_population", Help: "Alive and required bots per room.",
		}, []string{"room", "kind"}),
		kills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "kills_total", Help: "Scored kills by victim kind.",
		}, []string{"kind"}),
		duplicateKills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "duplicate_kills_total", Help: "Bot kills dropped by the dedup set.",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnect_attempts_total", Help: "Reconnect attempts by outcome.",
		}, []string{"outcome"}),
		masterSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "master_switches_total", Help: "Master client hand-offs observed.",
		}, []string{"room"}),
		gameTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "game_time_seconds", Help: "Remaining session time.",
		}, []string{"room"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.attempts, m.successes, m.failures, m.durations,
			m.botPopulation, m.kills, m.duplicateKills, m.reconnects, m.masterSwitches, m.gameTime,
		)
	}
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.durations.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetBotPopulation(room string, alive, required int) {
	m.botPopulation.WithLabelValues(room, "alive").Set(float64(alive))
	m.botPopulation.WithLabelValues(room, "required").Set(float64(required))
}

func (m *PrometheusMetrics) RecordKill(kind string) { m.kills.WithLabelValues(kind).Inc() }

func (m *PrometheusMetrics) RecordDuplicateKill() { m.duplicateKills.Inc() }

func (m *PrometheusMetrics) RecordReconnectAttempt(outcome string) {
	m.reconnects.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordMasterSwitch(room string) {
	m.masterSwitches.WithLabelValues(room).Inc()
}

func (m *PrometheusMetrics) SetGameTime(room string, seconds float64) {
	m.gameTime.WithLabelValues(room).Set(seconds)
}

// NoOpMetrics discards everything. Used by tests and tools that do not export metrics.
type NoOpMetrics struct{}

var (
	_ Metrics     = NoOpMetrics{}
	_ GameMetrics = NoOpMetrics{}
)

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoOpMetrics) SetBotPopulation(string, int, int)                                      {}
func (NoOpMetrics) RecordKill(string)                                                      {}
func (NoOpMetrics) RecordDuplicateKill()                                                   {}
func (NoOpMetrics) RecordReconnectAttempt(string)                                          {}
func (NoOpMetrics) RecordMasterSwitch(string)                                              {}
func (NoOpMetrics) SetGameTime(string, float64)                                            {}
