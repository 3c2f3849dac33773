package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	opmetrics "github.com/mantlenetworkio/proxy-ops/op-service/metrics"
)

const Namespace = "op_proxy"

const (
	OutcomeSuccess = "success"
	OutcomeNoop    = "noop"
	OutcomeError   = "error"
)

// Outcome is the operation outcome label for err.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// TxMetricer records state-mutating transactions sent by the chain client.
type TxMetricer interface {
	RecordTxSubmitted(op string)
	RecordTxConfirmed(op string, latency time.Duration)
	RecordTxFailed(op string)
}

type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	TxMetricer

	// RecordOperation counts deploy, upgrade and verify runs by outcome
	// ("success", "noop", "error").
	RecordOperation(kind string, outcome string)
	RecordVerificationAttempt(success bool)
}

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  opmetrics.Factory

	info prometheus.GaugeVec
	up   prometheus.Gauge

	txSubmitted      *prometheus.CounterVec
	txFailed         *prometheus.CounterVec
	txConfirmLatency *prometheus.HistogramVec

	operations           *prometheus.CounterVec
	verificationAttempts *prometheus.CounterVec
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(procName string) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)

	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		info: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if op-proxy has finished starting up",
		}),
		txSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tx_submitted_total",
			Help:      "Number of transactions broadcast, by operation step",
		}, []string{"op"}),
		txFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tx_failed_total",
			Help:      "Number of transactions that reverted or did not confirm in time",
		}, []string{"op"}),
		txConfirmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "tx_confirmation_latency_seconds",
			Help:      "Time from broadcast until the requested confirmation depth",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		}, []string{"op"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "operations_total",
			Help:      "Number of deploy, upgrade and verify runs by outcome",
		}, []string{"kind", "outcome"}),
		verificationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "verification_attempts_total",
			Help:      "Number of version reads through a proxy",
		}, []string{"success"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordInfo sets a pseudo-metric that contains versioning and config info.
func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordTxSubmitted(op string) {
	m.txSubmitted.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordTxConfirmed(op string, latency time.Duration) {
	m.txConfirmLatency.WithLabelValues(op).Observe(latency.Seconds())
}

func (m *Metrics) RecordTxFailed(op string) {
	m.txFailed.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordOperation(kind string, outcome string) {
	m.operations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordVerificationAttempt(success bool) {
	label := "false"
	if success {
		label = "true"
	}
	m.verificationAttempts.WithLabelValues(label).Inc()
}
