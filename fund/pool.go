// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fund issues and redeems pool shares against deposits of a fixed
// three-asset basket.
//
// At most one Mint or Redeem runs against a Pool at a time. Valuation reads
// share the lock in read mode. The ledger is always written last, so a failed
// operation leaves share balances untouched. Token transfers committed before
// a failure point are not reversed; the error reports the failing asset index.
package fund

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/parsdao/fundpool/basket"
	"github.com/parsdao/fundpool/fixedpoint"
	"github.com/parsdao/fundpool/ledger"
	"github.com/parsdao/fundpool/metrics"
	"github.com/parsdao/fundpool/token"
	"github.com/parsdao/fundpool/valuation"
)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger. The default logs at info level.
func WithLogger(l log.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithValuationOrdering selects the mint pricing order.
func WithValuationOrdering(o ValuationOrdering) Option {
	return func(p *Pool) { p.ordering = o }
}

// Pool is the mint/redeem engine for one basket and its share ledger.
type Pool struct {
	mu sync.RWMutex

	basket *basket.Basket
	ledger *ledger.Ledger
	valuer *valuation.Engine

	ordering ValuationOrdering
	log      log.Logger
	metrics  *metrics.Metrics
}

// New creates a pool over b whose shares live in l.
func New(b *basket.Basket, l *ledger.Ledger, opts ...Option) *Pool {
	p := &Pool{
		basket: b,
		ledger: l,
		valuer: valuation.New(b, l),
		log:    log.NewTestLogger(log.InfoLevel),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Basket returns the pool's basket.
func (p *Pool) Basket() *basket.Basket { return p.basket }

// Ordering returns the configured mint valuation ordering.
func (p *Pool) Ordering() ValuationOrdering { return p.ordering }

// Mint pulls amounts of each basket asset from caller and credits caller with
// shares worth the deposited value.
func (p *Pool) Mint(ctx context.Context, caller common.Address, amounts basket.Amounts) (*MintRecord, error) {
	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.mint(ctx, caller, amounts)
	if err != nil {
		p.log.Warn("mint failed", "caller", caller, "err", err)
		p.metrics.ObserveFailure(metrics.OpMint, failureReason(err), start)
		return nil, err
	}
	total, _ := p.ledger.TotalShares()
	p.log.Info("minted shares",
		"caller", caller,
		"shares", rec.Shares.Dec(),
		"depositedValue", rec.DepositedValue.Dec(),
	)
	p.metrics.ObserveSuccess(metrics.OpMint, start, total)
	return rec, nil
}

func (p *Pool) mint(ctx context.Context, caller common.Address, amounts basket.Amounts) (*MintRecord, error) {
	totalShares, err := p.ledger.TotalShares()
	if err != nil {
		return nil, err
	}

	var poolValue *uint256.Int
	if p.ordering == PreDepositValuation && !totalShares.IsZero() && !amounts.IsZero() {
		if poolValue, err = p.valuer.TotalPoolValueScaled(ctx); err != nil {
			return nil, err
		}
	}

	deposited := new(uint256.Int)
	for i := 0; i < basket.Size; i++ {
		amount := amounts.At(i)
		if amount.IsZero() {
			continue
		}
		if err := p.pull(ctx, i, caller, amount); err != nil {
			return nil, err
		}
		// Priced after the pull.
		v, err := p.valuer.AssetValueScaled(ctx, i, amount)
		if err != nil {
			return nil, fmt.Errorf("value deposit of asset %d: %w", i, err)
		}
		if deposited, err = fixedpoint.Add(deposited, v); err != nil {
			return nil, err
		}
	}
	if deposited.IsZero() {
		return nil, ErrNoValueDeposited
	}

	var shares *uint256.Int
	if totalShares.IsZero() {
		shares, err = fixedpoint.ScaleMul(deposited, fixedpoint.ShareScale(), fixedpoint.PriceScale())
		if err != nil {
			return nil, err
		}
	} else {
		if p.ordering == PostDepositValuation {
			if poolValue, err = p.valuer.TotalPoolValueScaled(ctx); err != nil {
				return nil, err
			}
		}
		pps, err := valuation.SharePrice(poolValue, totalShares)
		if err != nil {
			return nil, err
		}
		if pps.IsZero() {
			return nil, ErrZeroPricePerShare
		}
		if shares, err = fixedpoint.ScaleMul(deposited, fixedpoint.ShareScale(), pps); err != nil {
			return nil, err
		}
	}
	if shares.IsZero() {
		return nil, ErrZeroSharesMinted
	}

	if err := p.ledger.Credit(caller, shares); err != nil {
		return nil, err
	}
	return &MintRecord{Caller: caller, Shares: shares, DepositedValue: deposited}, nil
}

// Redeem burns shares from caller and pays out the proportional amount of
// every basket asset.
func (p *Pool) Redeem(ctx context.Context, caller common.Address, shares *uint256.Int) (*RedeemRecord, error) {
	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.redeem(ctx, caller, shares)
	if err != nil {
		p.log.Warn("redeem failed", "caller", caller, "err", err)
		p.metrics.ObserveFailure(metrics.OpRedeem, failureReason(err), start)
		return nil, err
	}
	total, _ := p.ledger.TotalShares()
	p.log.Info("redeemed shares",
		"caller", caller,
		"shares", rec.Shares.Dec(),
		"valueShare", rec.ValueShare.Dec(),
	)
	p.metrics.ObserveSuccess(metrics.OpRedeem, start, total)
	return rec, nil
}

func (p *Pool) redeem(ctx context.Context, caller common.Address, shares *uint256.Int) (*RedeemRecord, error) {
	if shares == nil || shares.IsZero() {
		return nil, ErrZeroShares
	}
	bal, err := p.ledger.BalanceOf(caller)
	if err != nil {
		return nil, err
	}
	if bal.Lt(shares) {
		return nil, fmt.Errorf("%w: %s holds %s, redeeming %s", ErrInsufficientShares, caller.Hex(), bal.Dec(), shares.Dec())
	}
	totalShares, err := p.ledger.TotalShares()
	if err != nil {
		return nil, err
	}
	if totalShares.Lt(shares) {
		return nil, fmt.Errorf("%w: total %s below %s", ErrInvariantViolation, totalShares.Dec(), shares.Dec())
	}

	totalValue, err := p.valuer.TotalPoolValueScaled(ctx)
	if err != nil {
		return nil, err
	}
	valueShare, err := fixedpoint.ScaleMul(totalValue, shares, totalShares)
	if err != nil {
		return nil, err
	}

	rec := &RedeemRecord{Caller: caller, Shares: shares.Clone(), ValueShare: valueShare}
	for i := 0; i < basket.Size; i++ {
		bal, err := p.basket.PoolBalanceOf(ctx, i)
		if err != nil {
			return nil, err
		}
		out := new(uint256.Int)
		if !totalValue.IsZero() {
			// Two truncating divisions through valueShare, not bal*shares/totalShares.
			if out, err = fixedpoint.ScaleMul(bal, valueShare, totalValue); err != nil {
				return nil, err
			}
		}
		rec.Amounts[i] = out
		if out.IsZero() {
			continue
		}
		if err := p.push(ctx, i, caller, out); err != nil {
			return nil, err
		}
	}

	if err := p.ledger.Debit(caller, shares); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Pool) pull(ctx context.Context, i int, from common.Address, amount *uint256.Int) error {
	asset, err := p.basket.AssetAt(i)
	if err != nil {
		return err
	}
	ok, err := asset.Token.Pull(ctx, from, p.basket.Pool(), amount)
	return transferResult("pull", i, ok, err)
}

func (p *Pool) push(ctx context.Context, i int, to common.Address, amount *uint256.Int) error {
	asset, err := p.basket.AssetAt(i)
	if err != nil {
		return err
	}
	ok, err := asset.Token.Push(ctx, to, amount)
	return transferResult("push", i, ok, err)
}

// transferResult treats a false return exactly like an error.
func transferResult(op string, i int, ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s asset %d: %v", token.ErrTransferFailed, op, i, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s asset %d rejected", token.ErrTransferFailed, op, i)
	}
	return nil
}

// TotalValueScaled returns the current pool value.
func (p *Pool) TotalValueScaled(ctx context.Context) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valuer.TotalPoolValueScaled(ctx)
}

// PricePerShareScaled returns the current value per share.
func (p *Pool) PricePerShareScaled(ctx context.Context) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valuer.PricePerShareScaled(ctx)
}

// Breakdown returns a per-asset valuation snapshot.
func (p *Pool) Breakdown(ctx context.Context) (*valuation.Breakdown, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valuer.Breakdown(ctx)
}

// TotalShares returns the share supply.
func (p *Pool) TotalShares() (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.TotalShares()
}

// BalanceOf returns holder's shares.
func (p *Pool) BalanceOf(holder common.Address) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.BalanceOf(holder)
}

// Audit checks that balances sum to the share supply.
func (p *Pool) Audit() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.Audit()
}
