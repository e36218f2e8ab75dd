// Package metrics содержит счётчики движка для Prometheus:
//
//	scalp_orders_total{kind,side}      ордера (entry|dca|tp|close)
//	scalp_closes_total{reason}         подтверждённые закрытия
//	scalp_close_unverified_total       закрытия, которые биржа не подтвердила
//	scalp_dca_entries_total            усреднения
//	scalp_retry_exhausted_total{op}    операции, исчерпавшие попытки
//	scalp_open_positions               отслеживаемые позиции
//	scalp_cycle_seconds                длительность цикла
//
// Все методы безопасно вызывать на nil.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	orders          *prometheus.CounterVec
	closes          *prometheus.CounterVec
	closeUnverified prometheus.Counter
	dcaEntries      prometheus.Counter
	retryExhausted  *prometheus.CounterVec
	openPositions   prometheus.Gauge
	cycleSeconds    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "scalp_orders_total", Help: "Orders placed"},
			[]string{"kind", "side"},
		),
		closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "scalp_closes_total", Help: "Confirmed position closes by reason"},
			[]string{"reason"},
		),
		closeUnverified: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "scalp_close_unverified_total", Help: "Closes still open at the exchange after every fallback"},
		),
		dcaEntries: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "scalp_dca_entries_total", Help: "DCA re-entries executed"},
		),
		retryExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "scalp_retry_exhausted_total", Help: "Operations that ran out of retry attempts"},
			[]string{"op"},
		),
		openPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "scalp_open_positions", Help: "Positions tracked by the engine"},
		),
		cycleSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scalp_cycle_seconds",
				Help:    "Engine cycle duration",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
	reg.MustRegister(m.orders, m.closes, m.closeUnverified, m.dcaEntries, m.retryExhausted, m.openPositions, m.cycleSeconds)
	return m
}

func (m *Metrics) OrderPlaced(kind, side string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(kind, side).Inc()
}

func (m *Metrics) Closed(reason string) {
	if m == nil {
		return
	}
	m.closes.WithLabelValues(reason).Inc()
}

func (m *Metrics) CloseUnverified() {
	if m == nil {
		return
	}
	m.closeUnverified.Inc()
}

func (m *Metrics) DCAEntry() {
	if m == nil {
		return
	}
	m.dcaEntries.Inc()
}

func (m *Metrics) RetryExhausted(op string) {
	if m == nil {
		return
	}
	m.retryExhausted.WithLabelValues(op).Inc()
}

func (m *Metrics) SetOpenPositions(n int) {
	if m == nil {
		return
	}
	m.openPositions.Set(float64(n))
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleSeconds.Observe(d.Seconds())
}
