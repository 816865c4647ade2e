// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/fundpool/registry"
)

type echoContract struct {
	address common.Address
}

func (e *echoContract) Address() common.Address { return e.address }

func (e *echoContract) Run(_ context.Context, caller common.Address, input []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, errors.New("read only")
	}
	return append(caller.Bytes(), input...), suppliedGas - 1, nil
}

func module(t *testing.T, key, chain string, symbols ...string) Module {
	t.Helper()
	addr, err := registry.DerivePoolAddress(chain, symbols)
	require.NoError(t, err)
	return Module{ConfigKey: key, Address: addr, Contract: &echoContract{address: addr}}
}

func TestReservedAddress(t *testing.T) {
	require.True(t, ReservedAddress(common.HexToAddress("0x0000000000000000000000000000000000009200")))
	require.True(t, ReservedAddress(common.HexToAddress("0x00000000000000000000000000000000000098ff")))
	require.False(t, ReservedAddress(common.HexToAddress(registry.LXOracle)))
	require.False(t, ReservedAddress(BlackholeAddr))
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	zoo := module(t, "WBTC/WETH/USDC@Zoo", "Zoo", "WBTC", "WETH", "USDC")
	cchain := module(t, "WBTC/WETH/USDC", "C", "WBTC", "WETH", "USDC")

	require.NoError(t, r.Register(zoo))
	require.NoError(t, r.Register(cchain))

	mods := r.Modules()
	require.Len(t, mods, 2)
	require.Equal(t, cchain.Address, mods[0].Address)
	require.Equal(t, zoo.Address, mods[1].Address)

	got, ok := r.ByKey("WBTC/WETH/USDC")
	require.True(t, ok)
	require.Equal(t, cchain.Address, got.Address)
	got, ok = r.ByAddress(zoo.Address)
	require.True(t, ok)
	require.Equal(t, zoo.ConfigKey, got.ConfigKey)
	_, ok = r.ByAddress(common.HexToAddress(registry.LXOracle))
	require.False(t, ok)
}

func TestRegisterRejects(t *testing.T) {
	r := NewRegistry()
	base := module(t, "WBTC/WETH/USDC", "C", "WBTC", "WETH", "USDC")
	require.NoError(t, r.Register(base))

	outside := common.HexToAddress("0x0000000000000000000000000000000000009011")
	mismatched := base
	mismatched.ConfigKey = "other"
	mismatched.Contract = &echoContract{address: outside}

	tests := []struct {
		name string
		stm  Module
	}{
		{name: "duplicate key", stm: Module{ConfigKey: base.ConfigKey, Address: registry.PrecompileAddress(9, 8, 1), Contract: &echoContract{address: registry.PrecompileAddress(9, 8, 1)}}},
		{name: "duplicate address", stm: Module{ConfigKey: "dup", Address: base.Address, Contract: &echoContract{address: base.Address}}},
		{name: "outside range", stm: Module{ConfigKey: "oracle", Address: outside, Contract: &echoContract{address: outside}}},
		{name: "blackhole", stm: Module{ConfigKey: "burn", Address: BlackholeAddr, Contract: &echoContract{address: BlackholeAddr}}},
		{name: "no contract", stm: Module{ConfigKey: "empty", Address: registry.PrecompileAddress(9, 2, 0x01)}},
		{name: "contract address mismatch", stm: mismatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, r.Register(tt.stm))
		})
	}
	require.Len(t, r.Modules(), 1)
}

func TestCall(t *testing.T) {
	r := NewRegistry()
	stm := module(t, "WBTC/WETH/USDC", "C", "WBTC", "WETH", "USDC")
	require.NoError(t, r.Register(stm))

	caller := common.HexToAddress("0x3333333333333333333333333333333333333333")
	ret, remaining, err := r.Call(context.Background(), stm.Address, caller, []byte{0x42}, 10, false)
	require.NoError(t, err)
	require.Equal(t, uint64(9), remaining)
	require.Equal(t, append(caller.Bytes(), 0x42), ret)

	_, remaining, err = r.Call(context.Background(), common.HexToAddress(registry.LXOracle), caller, nil, 10, false)
	require.Error(t, err)
	require.Equal(t, uint64(10), remaining)

	_, _, err = r.Call(context.Background(), stm.Address, caller, nil, 10, true)
	require.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	stm := module(t, "DAI/USDT/USDC", "Zoo", "DAI", "USDT", "USDC")
	require.NoError(t, RegisterModule(stm))
	require.Error(t, RegisterModule(stm))

	got, ok := GetPrecompileModule("DAI/USDT/USDC")
	require.True(t, ok)
	require.Equal(t, stm.Address, got.Address)
	got, ok = GetPrecompileModuleByAddress(stm.Address)
	require.True(t, ok)
	require.Equal(t, "DAI/USDT/USDC", got.ConfigKey)
	require.NotEmpty(t, RegisteredModules())
}
