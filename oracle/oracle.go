// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle defines the price oracle collaborator consumed by the fund
// pool, plus a reference database-backed feed and a bounded-wait decorator.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var (
	ErrUnavailable  = errors.New("oracle unavailable")
	ErrStale        = fmt.Errorf("%w: quote is stale", ErrUnavailable)
	ErrUnauthorized = errors.New("unauthorized: caller is not the price updater")
	ErrInvalidPrice = errors.New("invalid price")
)

// Quote is a price observation scaled by fixedpoint.PriceScale.
type Quote struct {
	Price      *uint256.Int
	ObservedAt uint64 // unix seconds
}

// Oracle reports the latest quote for a 32-byte symbol key. Implementations
// must be read-only.
type Oracle interface {
	GetPrice(ctx context.Context, symbol common.Hash) (Quote, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, symbol common.Hash) (Quote, error)

func (f OracleFunc) GetPrice(ctx context.Context, symbol common.Hash) (Quote, error) {
	return f(ctx, symbol)
}

type timeoutOracle struct {
	inner   Oracle
	timeout time.Duration
}

// WithTimeout bounds every GetPrice call on o. An expired wait is reported as
// ErrUnavailable, never as a quote. A non-positive timeout returns o unchanged.
func WithTimeout(o Oracle, timeout time.Duration) Oracle {
	if timeout <= 0 || o == nil {
		return o
	}
	return &timeoutOracle{inner: o, timeout: timeout}
}

func (t *timeoutOracle) GetPrice(ctx context.Context, symbol common.Hash) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		quote Quote
		err   error
	}
	done := make(chan result, 1)
	go func() {
		q, err := t.inner.GetPrice(ctx, symbol)
		done <- result{quote: q, err: err}
	}()

	select {
	case r := <-done:
		return r.quote, r.err
	case <-ctx.Done():
		return Quote{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol.Hex(), ctx.Err())
	}
}
