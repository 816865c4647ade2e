// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package valuation prices a fund pool from its basket balances and the
// oracle. Every call re-reads balances and quotes; nothing is memoized.
package valuation

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/fundpool/basket"
	"github.com/parsdao/fundpool/fixedpoint"
	"github.com/parsdao/fundpool/ledger"
	"github.com/parsdao/fundpool/oracle"
)

// Engine computes asset, pool and per-share values.
type Engine struct {
	basket *basket.Basket
	ledger *ledger.Ledger
}

// New creates an engine over b, reading share supply from l.
func New(b *basket.Basket, l *ledger.Ledger) *Engine {
	return &Engine{basket: b, ledger: l}
}

// Quote fetches the current oracle quote for asset i. Oracle failures of any
// kind are reported as oracle.ErrUnavailable.
func (e *Engine) Quote(ctx context.Context, i int) (oracle.Quote, error) {
	asset, err := e.basket.AssetAt(i)
	if err != nil {
		return oracle.Quote{}, err
	}
	q, err := e.basket.Oracle().GetPrice(ctx, asset.Symbol)
	if err != nil {
		if errors.Is(err, oracle.ErrUnavailable) {
			return oracle.Quote{}, err
		}
		return oracle.Quote{}, fmt.Errorf("%w: asset %d: %v", oracle.ErrUnavailable, i, err)
	}
	if q.Price == nil {
		return oracle.Quote{}, fmt.Errorf("%w: asset %d: empty quote", oracle.ErrUnavailable, i)
	}
	return q, nil
}

// AssetValueScaled returns floor(amount * price / TokenScale) for asset i at
// the price the oracle reports now. The quote timestamp is not checked.
func (e *Engine) AssetValueScaled(ctx context.Context, i int, amount *uint256.Int) (*uint256.Int, error) {
	q, err := e.Quote(ctx, i)
	if err != nil {
		return nil, err
	}
	return fixedpoint.ScaleMul(amount, q.Price, fixedpoint.TokenScale())
}

// TotalPoolValueScaled sums the value of the pool's holdings of every asset,
// reading each balance and each quote afresh.
func (e *Engine) TotalPoolValueScaled(ctx context.Context) (*uint256.Int, error) {
	total := new(uint256.Int)
	for i := 0; i < basket.Size; i++ {
		bal, err := e.basket.PoolBalanceOf(ctx, i)
		if err != nil {
			return nil, err
		}
		v, err := e.AssetValueScaled(ctx, i, bal)
		if err != nil {
			return nil, err
		}
		if total, err = fixedpoint.Add(total, v); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// PricePerShareScaled returns the pool value per share in share units, or
// PriceScale while no shares exist.
func (e *Engine) PricePerShareScaled(ctx context.Context) (*uint256.Int, error) {
	totalShares, err := e.ledger.TotalShares()
	if err != nil {
		return nil, err
	}
	if totalShares.IsZero() {
		return fixedpoint.PriceScale(), nil
	}
	totalValue, err := e.TotalPoolValueScaled(ctx)
	if err != nil {
		return nil, err
	}
	return SharePrice(totalValue, totalShares)
}

// SharePrice returns floor(totalValue * ShareScale / totalShares).
func SharePrice(totalValue, totalShares *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.ScaleMul(totalValue, fixedpoint.ShareScale(), totalShares)
}

// AssetValuation is one line of a Breakdown.
type AssetValuation struct {
	Index      int
	Symbol     common.Hash
	Token      common.Address
	Balance    *uint256.Int
	Price      *uint256.Int
	ObservedAt uint64
	Value      *uint256.Int
}

// Breakdown is a per-asset snapshot of the pool's valuation.
type Breakdown struct {
	Assets      [basket.Size]AssetValuation
	TotalValue  *uint256.Int
	TotalShares *uint256.Int
}

// Breakdown values every asset like TotalPoolValueScaled does and also
// reports the quote timestamps, which the engine itself never checks.
func (e *Engine) Breakdown(ctx context.Context) (*Breakdown, error) {
	totalShares, err := e.ledger.TotalShares()
	if err != nil {
		return nil, err
	}
	out := &Breakdown{TotalValue: new(uint256.Int), TotalShares: totalShares}
	for i, asset := range e.basket.Assets() {
		bal, err := e.basket.PoolBalanceOf(ctx, i)
		if err != nil {
			return nil, err
		}
		q, err := e.Quote(ctx, i)
		if err != nil {
			return nil, err
		}
		v, err := fixedpoint.ScaleMul(bal, q.Price, fixedpoint.TokenScale())
		if err != nil {
			return nil, err
		}
		if out.TotalValue, err = fixedpoint.Add(out.TotalValue, v); err != nil {
			return nil, err
		}
		out.Assets[i] = AssetValuation{
			Index:      i,
			Symbol:     asset.Symbol,
			Token:      asset.Token.Address(),
			Balance:    bal,
			Price:      q.Price,
			ObservedAt: q.ObservedAt,
			Value:      v,
		}
	}
	return out, nil
}
