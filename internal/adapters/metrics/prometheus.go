package metrics

import (
	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implementa ports.Observer publicando el estado del pool y el resultado
// de cada operación. Los importes se exportan como float64: son solo para dashboards,
// la contabilidad exacta vive en el store.
type Prometheus struct {
	operations  *prometheus.CounterVec
	baseReserve prometheus.Gauge
	yieldRes    prometheus.Gauge
	repaid      prometheus.Gauge
	minted      prometheus.Counter
	burned      prometheus.Counter

	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheus crea las métricas y las registra en reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendpool_operations_total",
			Help: "Pool operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		baseReserve: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lendpool_base_reserve",
			Help: "Base asset held by the main pool.",
		}),
		yieldRes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lendpool_yield_reserve",
			Help: "Yield units held by the loan pool.",
		}),
		repaid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lendpool_cumulative_repaid",
			Help: "Total base asset ever returned by borrowers.",
		}),
		minted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lendpool_yield_minted_total",
			Help: "Yield units minted into the loan pool.",
		}),
		burned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lendpool_yield_burned_total",
			Help: "Yield units burned from the loan pool.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendpool_http_requests_total",
			Help: "HTTP requests served by route, method and status.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lendpool_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(
		m.operations,
		m.baseReserve,
		m.yieldRes,
		m.repaid,
		m.minted,
		m.burned,
		m.requests,
		m.durations,
	)
	return m
}

// PoolOpened publica los gauges de un pool recién abierto, antes de cualquier operación.
func (m *Prometheus) PoolOpened(pool domain.Pool) {
	if m == nil {
		return
	}
	m.setPool(pool)
}

func (m *Prometheus) setPool(pool domain.Pool) {
	m.baseReserve.Set(pool.Base.Amount().InexactFloat64())
	m.yieldRes.Set(pool.Yield.Amount().InexactFloat64())
	m.repaid.Set(pool.CumulativeRepaid.InexactFloat64())
}

// OperationCommitted cuenta la operación y refresca los gauges con el estado confirmado.
func (m *Prometheus) OperationCommitted(op domain.Operation, pool domain.Pool) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(op.Kind), domain.Outcome(nil)).Inc()
	if f := op.Minted.InexactFloat64(); f > 0 {
		m.minted.Add(f)
	}
	if f := op.Burned.InexactFloat64(); f > 0 {
		m.burned.Add(f)
	}
	m.setPool(pool)
}

// OperationRejected cuenta el rechazo con su causa.
func (m *Prometheus) OperationRejected(kind domain.OperationKind, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(kind), domain.Outcome(err)).Inc()
}

// ObserveRequest registra una petición HTTP servida.
func (m *Prometheus) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, method, status).Inc()
	m.durations.WithLabelValues(route, method).Observe(seconds)
}
