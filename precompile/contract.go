// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompile exposes a fund pool as a stateful contract: ABI-encoded
// calls are dispatched by method ID, charged gas, and executed against the
// pool on behalf of the caller.
package precompile

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/fundpool/basket"
	"github.com/parsdao/fundpool/fund"
	"github.com/parsdao/fundpool/modules"
)

var _ modules.Contract = (*Contract)(nil)

var (
	ErrOutOfGas           = errors.New("out of gas")
	ErrWriteProtection    = errors.New("write protection")
	ErrInvalidInputLength = errors.New("invalid input length")
	ErrUnknownMethod      = errors.New("unknown method")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// Gas costs
const (
	MintGas      uint64 = 200_000 // three pulls, up to nine valuation reads
	RedeemGas    uint64 = 200_000 // six valuation reads, three pushes
	ValuationGas uint64 = 30_000  // three balance and three oracle reads
	ReadGas      uint64 = 2_600   // one ledger or basket read
)

// PoolABI is the contract's call surface.
const PoolABI = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable",
	 "inputs":[{"name":"amounts","type":"uint256[3]"}],
	 "outputs":[{"name":"shares","type":"uint256"}]},
	{"type":"function","name":"redeem","stateMutability":"nonpayable",
	 "inputs":[{"name":"shares","type":"uint256"}],
	 "outputs":[{"name":"amounts","type":"uint256[3]"}]},
	{"type":"function","name":"totalShares","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalValueScaled","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"pricePerShareScaled","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"assetAt","stateMutability":"view",
	 "inputs":[{"name":"index","type":"uint256"}],
	 "outputs":[{"name":"symbol","type":"bytes32"},{"name":"token","type":"address"}]}
]`

// ABI is the parsed PoolABI.
var ABI = ParseABI(PoolABI)

var methodGas = map[string]uint64{
	"mint":                MintGas,
	"redeem":              RedeemGas,
	"totalShares":         ReadGas,
	"balanceOf":           ReadGas,
	"totalValueScaled":    ValuationGas,
	"pricePerShareScaled": ValuationGas,
	"assetAt":             ReadGas,
}

// Contract serves one pool at one address.
type Contract struct {
	address common.Address
	pool    *fund.Pool
}

// New binds pool to address.
func New(address common.Address, pool *fund.Pool) *Contract {
	return &Contract{address: address, pool: pool}
}

// Address returns the contract address.
func (c *Contract) Address() common.Address { return c.address }

// Pool returns the backing pool.
func (c *Contract) Pool() *fund.Pool { return c.pool }

// RequiredGas returns the cost of input. Unknown or short input costs ReadGas.
func (c *Contract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return ReadGas
	}
	method, err := ABI.MethodById(input[:4])
	if err != nil {
		return ReadGas
	}
	return methodGas[method.Name]
}

// Run executes input for caller.
// Input format:
//
//	[0:4]  = method ID
//	[4:..] = ABI-encoded arguments
func (c *Contract) Run(
	ctx context.Context,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	gasCost := c.RequiredGas(input)
	if suppliedGas < gasCost {
		return nil, 0, ErrOutOfGas
	}
	remaining := suppliedGas - gasCost

	if len(input) < 4 {
		return nil, remaining, ErrInvalidInputLength
	}
	method, err := ABI.MethodById(input[:4])
	if err != nil {
		return nil, remaining, fmt.Errorf("%w: %x", ErrUnknownMethod, input[:4])
	}
	if readOnly && !method.IsConstant() {
		return nil, remaining, fmt.Errorf("%w: %s", ErrWriteProtection, method.Name)
	}
	args, err := ABI.UnpackInput(method.Name, input[4:], true)
	if err != nil {
		return nil, remaining, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var (
		ret    []byte
		amount *uint256.Int
	)
	switch method.Name {
	case "mint":
		ret, err = c.mint(ctx, caller, args)
	case "redeem":
		ret, err = c.redeem(ctx, caller, args)
	case "totalShares":
		amount, err = c.pool.TotalShares()
	case "balanceOf":
		holder, ok := args[0].(common.Address)
		if !ok {
			return nil, remaining, fmt.Errorf("%w: holder", ErrInvalidArgument)
		}
		amount, err = c.pool.BalanceOf(holder)
	case "totalValueScaled":
		amount, err = c.pool.TotalValueScaled(ctx)
	case "pricePerShareScaled":
		amount, err = c.pool.PricePerShareScaled(ctx)
	case "assetAt":
		ret, err = c.assetAt(args)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownMethod, method.Name)
	}
	if err == nil && amount != nil {
		ret, err = ABI.PackOutput(method.Name, amount.ToBig())
	}
	if err != nil {
		return nil, remaining, err
	}
	return ret, remaining, nil
}

func (c *Contract) mint(ctx context.Context, caller common.Address, args []interface{}) ([]byte, error) {
	raw, ok := args[0].([3]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: amounts", ErrInvalidArgument)
	}
	var amounts basket.Amounts
	for i, v := range raw {
		amount, err := toUint256(v)
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
	}
	rec, err := c.pool.Mint(ctx, caller, amounts)
	if err != nil {
		return nil, err
	}
	return ABI.PackOutput("mint", rec.Shares.ToBig())
}

func (c *Contract) redeem(ctx context.Context, caller common.Address, args []interface{}) ([]byte, error) {
	shares, err := toUint256(args[0])
	if err != nil {
		return nil, err
	}
	rec, err := c.pool.Redeem(ctx, caller, shares)
	if err != nil {
		return nil, err
	}
	var out [basket.Size]*big.Int
	for i := range out {
		out[i] = rec.Amounts.At(i).ToBig()
	}
	return ABI.PackOutput("redeem", out)
}

func (c *Contract) assetAt(args []interface{}) ([]byte, error) {
	index, err := toUint256(args[0])
	if err != nil {
		return nil, err
	}
	if !index.IsUint64() || index.Uint64() >= basket.Size {
		return nil, fmt.Errorf("%w: %s", basket.ErrIndexOutOfRange, index.Dec())
	}
	asset, err := c.pool.Basket().AssetAt(int(index.Uint64()))
	if err != nil {
		return nil, err
	}
	return ABI.PackOutput("assetAt", [32]byte(asset.Symbol), asset.Token.Address())
}

func toUint256(v interface{}) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok || b == nil || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, v)
	}
	out, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows uint256", ErrInvalidArgument, b)
	}
	return out, nil
}
