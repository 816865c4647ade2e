// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/fundpool/basket"
	"github.com/parsdao/fundpool/fund"
	"github.com/parsdao/fundpool/oracle"
	"github.com/parsdao/fundpool/token"
)

const validJSON = `{
	"pool": "0x0000000000000000000000000000000000009090",
	"oracle": "0x0000000000000000000000000000000000000a11",
	"assets": [
		{"symbol": "WBTC", "token": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"symbol": "WETH", "token": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
		{"symbol": "USDC", "token": "0xcccccccccccccccccccccccccccccccccccccccc"}
	],
	"callTimeout": 5
}`

var (
	testPool    = common.HexToAddress("0x0000000000000000000000000000000000009090")
	testOracle  = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	testUpdater = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testHolder  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestLoad(t *testing.T) {
	cfg, err := Load(strings.NewReader(validJSON))
	require.NoError(t, err)
	require.Equal(t, testPool, cfg.Pool)
	require.Equal(t, testOracle, cfg.Oracle)
	require.Equal(t, []string{"WBTC", "WETH", "USDC"}, cfg.Symbols())
	require.Equal(t, common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"), cfg.Assets[1].Token)
	require.Equal(t, "post-deposit", cfg.MintValuation)
	require.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FUNDPOOL_MINTVALUATION", "pre-deposit")
	t.Setenv("FUNDPOOL_CALLTIMEOUT", "30")

	cfg, err := Load(strings.NewReader(validJSON))
	require.NoError(t, err)
	require.Equal(t, "pre-deposit", cfg.MintValuation)
	require.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		edit func(string) string
	}{
		{name: "malformed", edit: func(s string) string { return s[:len(s)-1] }},
		{name: "bad address", edit: func(s string) string {
			return strings.Replace(s, "0x0000000000000000000000000000000000009090", "pool", 1)
		}},
		{name: "zero pool", edit: func(s string) string {
			return strings.Replace(s, "0x0000000000000000000000000000000000009090", "0x0000000000000000000000000000000000000000", 1)
		}},
		{name: "duplicate token", edit: func(s string) string {
			return strings.Replace(s, "0xcccccccccccccccccccccccccccccccccccccccc", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 1)
		}},
		{name: "unknown ordering", edit: func(s string) string {
			return strings.Replace(s, `"callTimeout": 5`, `"callTimeout": 5, "mintValuation": "sideways"`, 1)
		}},
		{name: "long symbol", edit: func(s string) string {
			return strings.Replace(s, `"USDC"`, `"`+strings.Repeat("X", 33)+`"`, 1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.edit(validJSON)))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestVerifyAssetCount(t *testing.T) {
	cfg, err := Load(strings.NewReader(validJSON))
	require.NoError(t, err)
	cfg.Assets = cfg.Assets[:2]
	require.ErrorIs(t, cfg.Verify(), ErrInvalidConfig)
}

type staticResolver struct {
	oracle oracle.Oracle
	tokens map[common.Address]token.Token
}

func (r *staticResolver) Oracle(addr common.Address) (oracle.Oracle, error) {
	if addr != testOracle {
		return nil, errors.New("unknown oracle")
	}
	return r.oracle, nil
}

func (r *staticResolver) Token(addr common.Address) (token.Token, error) {
	t, ok := r.tokens[addr]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return t, nil
}

func TestNewPool(t *testing.T) {
	cfg, err := Load(strings.NewReader(validJSON))
	require.NoError(t, err)
	cfg.MintValuation = "pre-deposit"

	feed := oracle.NewFeed(memdb.New(), testUpdater)
	r := &staticResolver{oracle: feed, tokens: make(map[common.Address]token.Token)}
	books := make([]*token.Book, len(cfg.Assets))
	for i, a := range cfg.Assets {
		books[i] = token.NewBook(a.Token)
		r.tokens[a.Token] = books[i].Caller(cfg.Pool)
		require.NoError(t, feed.SetPrice(testUpdater, basket.MustSymbolKey(a.Symbol), uint256.NewInt(1e8), 1))
		require.NoError(t, books[i].Mint(testHolder, uint256.NewInt(1e18)))
		books[i].Approve(testHolder, cfg.Pool, uint256.NewInt(1e18))
	}

	pool, err := cfg.NewPool(memdb.New(), r, fund.WithLogger(log.NewTestLogger(log.InfoLevel)))
	require.NoError(t, err)
	require.Equal(t, fund.PreDepositValuation, pool.Ordering())
	require.Equal(t, cfg.Pool, pool.Basket().Pool())

	rec, err := pool.Mint(context.Background(), testHolder, basket.NewAmounts(1e18, 1e18, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(2e18), rec.Shares.Uint64())
}

func TestNewPoolResolveError(t *testing.T) {
	cfg, err := Load(strings.NewReader(validJSON))
	require.NoError(t, err)

	r := &staticResolver{oracle: oracle.NewFeed(memdb.New(), testUpdater), tokens: map[common.Address]token.Token{}}
	_, err = cfg.NewPool(memdb.New(), r)
	require.ErrorContains(t, err, "unknown token")
}
