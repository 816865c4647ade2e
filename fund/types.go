// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fund

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/fundpool/basket"
	"github.com/parsdao/fundpool/fixedpoint"
	"github.com/parsdao/fundpool/ledger"
	"github.com/parsdao/fundpool/oracle"
	"github.com/parsdao/fundpool/token"
)

var (
	ErrNoValueDeposited  = errors.New("no value deposited")
	ErrZeroPricePerShare = errors.New("zero price per share")
	ErrZeroSharesMinted  = errors.New("zero shares minted")
	ErrZeroShares        = errors.New("zero shares")
	ErrUnknownOrdering   = errors.New("unknown valuation ordering")

	ErrInsufficientShares = ledger.ErrInsufficientShares
	ErrInvariantViolation = ledger.ErrInvariantViolation
)

// ValuationOrdering selects when Mint values the pool to price new shares.
type ValuationOrdering uint8

const (
	// PostDepositValuation values the pool after the deposit has been pulled,
	// so the exchange rate already includes the minter's own assets.
	PostDepositValuation ValuationOrdering = iota
	// PreDepositValuation values the pool before any asset is pulled.
	PreDepositValuation
)

func (o ValuationOrdering) String() string {
	switch o {
	case PostDepositValuation:
		return "post-deposit"
	case PreDepositValuation:
		return "pre-deposit"
	default:
		return fmt.Sprintf("ordering(%d)", uint8(o))
	}
}

// ParseValuationOrdering parses "post-deposit" or "pre-deposit". The empty
// string selects PostDepositValuation.
func ParseValuationOrdering(s string) (ValuationOrdering, error) {
	switch s {
	case "", "post-deposit":
		return PostDepositValuation, nil
	case "pre-deposit":
		return PreDepositValuation, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOrdering, s)
	}
}

// MintRecord describes a successful mint.
type MintRecord struct {
	Caller         common.Address
	Shares         *uint256.Int
	DepositedValue *uint256.Int
}

// RedeemRecord describes a successful redemption. Amounts holds the raw
// token amount paid out per basket index.
type RedeemRecord struct {
	Caller     common.Address
	Shares     *uint256.Int
	ValueShare *uint256.Int
	Amounts    basket.Amounts
}

// failureReason maps an operation error to a metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, token.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, oracle.ErrUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, fixedpoint.ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, ErrNoValueDeposited):
		return "no_value_deposited"
	case errors.Is(err, ErrZeroPricePerShare):
		return "zero_price_per_share"
	case errors.Is(err, ErrZeroSharesMinted):
		return "zero_shares_minted"
	case errors.Is(err, ErrZeroShares):
		return "zero_shares"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "other"
	}
}
