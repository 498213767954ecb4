package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"ordersystem/internal/pkg/circuitbreaker"
)

// Metrics 是订单服务暴露的 Prometheus 指标
type Metrics struct {
	ordersCreated      prometheus.Counter
	ordersRejected     *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders accepted and persisted.",
		}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Orders rejected before persistence, by reason.",
		}, []string{"reason"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_side_effect_failures_total",
			Help: "Swallowed failures of asynchronous side effects, by channel.",
		}, []string{"channel"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}
	if reg != nil {
		reg.MustRegister(m.ordersCreated, m.ordersRejected, m.sideEffectFailures, m.breakerState)
	}
	return m
}

// SideEffectFailed 实现 saga.SideEffectObserver
func (m *Metrics) SideEffectFailed(channel string) {
	m.sideEffectFailures.WithLabelValues(channel).Inc()
}

// BreakerStateChanged 可作为 circuitbreaker.WithStateChangeHook 的回调
func (m *Metrics) BreakerStateChanged(name string, _, to circuitbreaker.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

func (m *Metrics) orderCreated() { m.ordersCreated.Inc() }

func (m *Metrics) orderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}
