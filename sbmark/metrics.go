package sbmark

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports live counters of a run. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ops      *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	seconds  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	inflight *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3_loadgen_operations_total",
				Help: "Completed operations",
			},
			[]string{"op"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3_loadgen_bytes_total",
				Help: "Bytes written or read by completed operations",
			},
			[]string{"op"},
		),
		seconds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3_loadgen_operation_seconds_total",
				Help: "Accumulated elapsed time of completed operations",
			},
			[]string{"op"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3_loadgen_errors_total",
				Help: "Failed operations by phase and error kind",
			},
			[]string{"op", "phase", "kind"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "s3_loadgen_active_workers",
				Help: "Workers that have not reached their terminal state",
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.ops, m.bytes, m.seconds, m.errors, m.inflight)
	return m
}

func (m *Metrics) observe(s Stat) {
	if m == nil {
		return
	}
	op := s.Kind.String()
	m.ops.WithLabelValues(op).Inc()
	m.bytes.WithLabelValues(op).Add(float64(s.Size))
	m.seconds.WithLabelValues(op).Add(s.Elapsed().Seconds())
}

// Report makes Metrics an ErrorSink.
func (m *Metrics) Report(ev ErrorEvent) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(ev.Op.String(), ev.Phase, ev.Kind.String()).Inc()
}

func (m *Metrics) workerStarted(op OpKind) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(op.String()).Inc()
}

func (m *Metrics) workerDone(op OpKind) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(op.String()).Dec()
}
