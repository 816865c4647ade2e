// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package basket holds the fixed, ordered set of three assets tracked by a
// fund pool. Index order is the ownership order used by every basket-wide loop
// and never changes after construction.
package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/fundpool/oracle"
	"github.com/parsdao/fundpool/token"
)

// Size is the number of assets in every basket.
const Size = 3

var (
	ErrInvalidConstruction = errors.New("invalid basket construction")
	ErrIndexOutOfRange     = errors.New("asset index out of range")
)

// Asset pairs a 32-byte oracle symbol key with the token holding the asset.
type Asset struct {
	Symbol common.Hash
	Token  token.Token
}

// Amounts is one raw token amount per basket index. Nil entries read as zero.
type Amounts [Size]*uint256.Int

// NewAmounts builds Amounts from uint64 values.
func NewAmounts(a0, a1, a2 uint64) Amounts {
	return Amounts{uint256.NewInt(a0), uint256.NewInt(a1), uint256.NewInt(a2)}
}

// At returns the amount at i, zero if unset.
func (a Amounts) At(i int) *uint256.Int {
	if a[i] == nil {
		return new(uint256.Int)
	}
	return a[i]
}

// IsZero reports whether every amount is zero.
func (a Amounts) IsZero() bool {
	for i := range a {
		if !a.At(i).IsZero() {
			return false
		}
	}
	return true
}

// Basket is immutable after New.
type Basket struct {
	pool   common.Address
	oracle oracle.Oracle
	assets [Size]Asset
}

// New validates and builds a basket for the pool at pool. It requires exactly
// Size assets, each with a non-zero token address, no token listed twice, and
// a non-nil oracle. Nothing is built unless every check passes.
func New(pool common.Address, o oracle.Oracle, assets []Asset) (*Basket, error) {
	if len(assets) != Size {
		return nil, fmt.Errorf("%w: need %d assets, got %d", ErrInvalidConstruction, Size, len(assets))
	}
	if o == nil {
		return nil, fmt.Errorf("%w: nil oracle", ErrInvalidConstruction)
	}
	if pool == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero pool address", ErrInvalidConstruction)
	}

	b := &Basket{pool: pool, oracle: o}
	seen := make(map[common.Address]int, Size)
	for i, a := range assets {
		if a.Token == nil || a.Token.Address() == (common.Address{}) {
			return nil, fmt.Errorf("%w: asset %d has no token", ErrInvalidConstruction, i)
		}
		addr := a.Token.Address()
		if j, dup := seen[addr]; dup {
			return nil, fmt.Errorf("%w: assets %d and %d share token %s", ErrInvalidConstruction, j, i, addr.Hex())
		}
		seen[addr] = i
		b.assets[i] = a
	}
	return b, nil
}

// Pool returns the address holding the basket's assets.
func (b *Basket) Pool() common.Address { return b.pool }

// Oracle returns the price oracle collaborator.
func (b *Basket) Oracle() oracle.Oracle { return b.oracle }

// Assets returns a copy of the basket in index order.
func (b *Basket) Assets() [Size]Asset { return b.assets }

// AssetAt returns the asset at index i.
func (b *Basket) AssetAt(i int) (Asset, error) {
	if i < 0 || i >= Size {
		return Asset{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return b.assets[i], nil
}

// PoolBalanceOf reads the pool's current holdings of asset i. Every call is a
// fresh read; nothing is cached.
func (b *Basket) PoolBalanceOf(ctx context.Context, i int) (*uint256.Int, error) {
	a, err := b.AssetAt(i)
	if err != nil {
		return nil, err
	}
	bal, err := a.Token.BalanceOf(ctx, b.pool)
	if err != nil {
		if errors.Is(err, token.ErrTransferFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: balanceOf asset %d: %v", token.ErrTransferFailed, i, err)
	}
	if bal == nil {
		return nil, fmt.Errorf("%w: balanceOf asset %d returned nil", token.ErrTransferFailed, i)
	}
	return bal, nil
}
