// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes Prometheus instrumentation for fund pool operations.
package metrics

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fundpool"

// Operation labels
const (
	OpMint   = "mint"
	OpRedeem = "redeem"
)

// Metrics holds the pool collectors. A nil *Metrics records nothing.
type Metrics struct {
	Mints       prometheus.Counter
	Redeems     prometheus.Counter
	Failures    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	TotalShares prometheus.Gauge
}

// New registers the pool collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mints_total",
			Help:      "Total number of successful mints",
		}),
		Redeems: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redeems_total",
			Help:      "Total number of successful redemptions",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Total number of failed pool operations by reason",
		}, []string{"op", "reason"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Pool operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		TotalShares: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_shares",
			Help:      "Outstanding pool shares in share units (approximate)",
		}),
	}
}

// ObserveSuccess records a completed operation and the resulting supply.
func (m *Metrics) ObserveSuccess(op string, start time.Time, totalShares *uint256.Int) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	switch op {
	case OpMint:
		m.Mints.Inc()
	case OpRedeem:
		m.Redeems.Inc()
	}
	if totalShares != nil {
		m.TotalShares.Set(toFloat(totalShares))
	}
}

// ObserveFailure records a failed operation.
func (m *Metrics) ObserveFailure(op, reason string, start time.Time) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.Failures.WithLabelValues(op, reason).Inc()
}

func toFloat(x *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}
