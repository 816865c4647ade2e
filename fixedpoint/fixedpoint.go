// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedpoint implements the scaled unsigned integer arithmetic shared by
// every fund pool computation. All divisions truncate toward zero and every
// intermediate product is overflow checked against 256 bits.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Scale exponents. Share balances are stored in ShareDecimals units, so these
// are fixed for the lifetime of a pool.
const (
	PriceDecimals = 8
	ShareDecimals = 18
	TokenDecimals = 18
)

const (
	priceScale uint64 = 100_000_000
	shareScale uint64 = 1_000_000_000_000_000_000
	tokenScale uint64 = 1_000_000_000_000_000_000
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrDivisionByZero     = fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
)

// PriceScale returns 10^8, the oracle price scaling factor.
func PriceScale() *uint256.Int { return uint256.NewInt(priceScale) }

// ShareScale returns 10^18, the share scaling factor.
func ShareScale() *uint256.Int { return uint256.NewInt(shareScale) }

// TokenScale returns 10^18, the token amount scaling factor.
func TokenScale() *uint256.Int { return uint256.NewInt(tokenScale) }

// ScaleMul returns floor(a * b / scale). The product a*b must fit in 256 bits.
func ScaleMul(a, b, scale *uint256.Int) (*uint256.Int, error) {
	if scale.IsZero() {
		return nil, ErrDivisionByZero
	}
	prod, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return prod.Div(prod, scale), nil
}

// Add returns a + b.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: %s + %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return sum, nil
}

// Sub returns a - b, failing instead of wrapping when b > a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("%w: %s - %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return diff, nil
}

// OrZero returns x, or a fresh zero when x is nil.
func OrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
