package discordrpc

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "discordrpc"

// Request outcomes recorded by Metrics.
const (
	resultOK       = "ok"
	resultError    = "error"
	resultClosed   = "closed"
	resultCanceled = "canceled"
)

// Metrics holds the prometheus collectors of a client and its transport.
// A nil *Metrics records nothing.
type Metrics struct {
	framesRead    *prometheus.CounterVec
	framesWritten *prometheus.CounterVec
	requests      *prometheus.CounterVec
	pending       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// It returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		framesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_read_total",
			Help:      "Frames received from the Discord client, by opcode.",
		}, []string{"opcode"}),
		framesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_written_total",
			Help:      "Frames sent to the Discord client, by opcode.",
		}, []string{"opcode"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Completed RPC requests, by command and result.",
		}, []string{"cmd", "result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_requests",
			Help:      "RPC requests awaiting a response.",
		}),
	}

	for _, c := range []prometheus.Collector{m.framesRead, m.framesWritten, m.requests, m.pending} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) frameRead(op Opcode) {
	if m == nil {
		return
	}
	m.framesRead.WithLabelValues(op.String()).Inc()
}

func (m *Metrics) frameWritten(op Opcode) {
	if m == nil {
		return
	}
	m.framesWritten.WithLabelValues(op.String()).Inc()
}

func (m *Metrics) requestStarted() {
	if m == nil {
		return
	}
	m.pending.Inc()
}

func (m *Metrics) requestDone(cmd, result string) {
	if m == nil {
		return
	}
	m.pending.Dec()
	m.requests.WithLabelValues(cmd, result).Inc()
}
