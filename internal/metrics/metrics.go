// Package metrics exposes pool operation counters and reserve gauges to
// Prometheus.
package metrics

import (
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zuniswap/internal/exchange"
)

const namespace = "zuniswap"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	reserves   *prometheus.GaugeVec
	shares     prometheus.Gauge
	seq        prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "number of pool operations by result",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "time spent executing pool operations",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"op"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve",
			Help:      "pool reserve in whole units",
		}, []string{"asset"}),
		shares: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_shares",
			Help:      "outstanding pool shares in whole units",
		}),
		seq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_seq",
			Help:      "sequence number of the last committed pool event",
		}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration, m.reserves, m.shares, m.seq} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// ObserveOperation counts one operation. Known pool and gateway errors are
// labelled by their code, anything else as "error".
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, Result(err)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetPool publishes the reserves and share supply of snap.
func (m *Metrics) SetPool(snap exchange.PoolSnapshot) {
	m.reserves.WithLabelValues("base").Set(units(snap.BaseReserve))
	m.reserves.WithLabelValues("token").Set(units(snap.TokenReserve))
	m.shares.Set(units(snap.TotalShares))
	m.seq.Set(float64(snap.Seq))
}

// Operations returns the per-operation counter vector.
func (m *Metrics) Operations() *prometheus.CounterVec { return m.operations }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func Result(err error) string {
	if err == nil {
		return ResultOK
	}
	if code := exchange.ErrorCode(err); code != "" {
		return code
	}
	return ResultError
}

var scale = new(big.Float).SetInt64(1e18)

func units(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v.ToBig()), scale).Float64()
	return f
}
