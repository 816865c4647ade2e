// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	start := time.Now()

	m.ObserveSuccess(OpMint, start, uint256.NewInt(5e18))
	m.ObserveSuccess(OpMint, start, uint256.NewInt(7e18))
	m.ObserveSuccess(OpRedeem, start, uint256.NewInt(6e18))
	m.ObserveFailure(OpRedeem, "insufficient_shares", start)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Mints))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Redeems))
	require.Equal(t, 6e18, testutil.ToFloat64(m.TotalShares))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues(OpRedeem, "insufficient_shares")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.Failures.WithLabelValues(OpMint, "insufficient_shares")))
	require.Equal(t, 2, testutil.CollectAndCount(m.Duration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveSuccess(OpMint, time.Now(), uint256.NewInt(1))
		m.ObserveFailure(OpMint, "transfer_failed", time.Now())
	})
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
