// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config describes a fund pool deployment and assembles the pool from
// it.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/spf13/viper"

	"github.com/parsdao/fundpool/basket"
	"github.com/parsdao/fundpool/fund"
	"github.com/parsdao/fundpool/ledger"
	"github.com/parsdao/fundpool/oracle"
	"github.com/parsdao/fundpool/token"
)

// EnvPrefix prefixes environment overrides, e.g. FUNDPOOL_CALLTIMEOUT.
const EnvPrefix = "FUNDPOOL"

var ErrInvalidConfig = errors.New("invalid fund pool config")

// AssetConfig names one basket entry.
type AssetConfig struct {
	Symbol string         `json:"symbol" mapstructure:"symbol"`
	Token  common.Address `json:"token" mapstructure:"token"`
}

// Config is the JSON form of a pool deployment.
type Config struct {
	Pool          common.Address `json:"pool" mapstructure:"pool"`
	Oracle        common.Address `json:"oracle" mapstructure:"oracle"`
	Assets        []AssetConfig  `json:"assets" mapstructure:"assets"`
	MintValuation string         `json:"mintValuation,omitempty" mapstructure:"mintValuation"`
	// CallTimeout bounds each oracle and token call, in seconds. Zero waits
	// indefinitely.
	CallTimeout uint64 `json:"callTimeout,omitempty" mapstructure:"callTimeout"`
}

// Load reads a JSON config from r, applies FUNDPOOL_* environment overrides
// and verifies the result.
func Load(r io.Reader) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("mintValuation", fund.PostDepositValuation.String())
	v.SetDefault("callTimeout", 0)

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg := new(Config)
	hook := viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Verify checks the config describes a constructible pool.
func (c *Config) Verify() error {
	if c.Pool == (common.Address{}) {
		return fmt.Errorf("%w: missing pool address", ErrInvalidConfig)
	}
	if c.Oracle == (common.Address{}) {
		return fmt.Errorf("%w: missing oracle address", ErrInvalidConfig)
	}
	if len(c.Assets) != basket.Size {
		return fmt.Errorf("%w: need %d assets, got %d", ErrInvalidConfig, basket.Size, len(c.Assets))
	}
	seen := make(map[common.Address]struct{}, basket.Size)
	for i, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("%w: asset %d has no symbol", ErrInvalidConfig, i)
		}
		if _, err := basket.SymbolKey(a.Symbol); err != nil {
			return fmt.Errorf("%w: asset %d: %v", ErrInvalidConfig, i, err)
		}
		if a.Token == (common.Address{}) {
			return fmt.Errorf("%w: asset %d has no token", ErrInvalidConfig, i)
		}
		if _, dup := seen[a.Token]; dup {
			return fmt.Errorf("%w: token %s listed twice", ErrInvalidConfig, a.Token.Hex())
		}
		seen[a.Token] = struct{}{}
	}
	if _, err := fund.ParseValuationOrdering(c.MintValuation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Timeout returns CallTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

// Symbols returns the asset symbols in basket order.
func (c *Config) Symbols() []string {
	out := make([]string, len(c.Assets))
	for i, a := range c.Assets {
		out[i] = a.Symbol
	}
	return out
}

// Resolver binds configured addresses to live collaborators.
type Resolver interface {
	Oracle(addr common.Address) (oracle.Oracle, error)
	Token(addr common.Address) (token.Token, error)
}

// NewPool verifies c, resolves its collaborators, wraps them with the
// configured call timeout and returns a pool whose ledger lives in db.
func (c *Config) NewPool(db database.Database, r Resolver, opts ...fund.Option) (*fund.Pool, error) {
	if err := c.Verify(); err != nil {
		return nil, err
	}
	ordering, _ := fund.ParseValuationOrdering(c.MintValuation)

	o, err := r.Oracle(c.Oracle)
	if err != nil {
		return nil, fmt.Errorf("resolve oracle %s: %w", c.Oracle.Hex(), err)
	}
	assets := make([]basket.Asset, len(c.Assets))
	for i, a := range c.Assets {
		t, err := r.Token(a.Token)
		if err != nil {
			return nil, fmt.Errorf("resolve token %s: %w", a.Token.Hex(), err)
		}
		assets[i] = basket.Asset{
			Symbol: basket.MustSymbolKey(a.Symbol),
			Token:  token.WithTimeout(t, c.Timeout()),
		}
	}
	b, err := basket.New(c.Pool, oracle.WithTimeout(o, c.Timeout()), assets)
	if err != nil {
		return nil, err
	}
	opts = append([]fund.Option{fund.WithValuationOrdering(ordering)}, opts...)
	return fund.New(b, ledger.New(db), opts...), nil
}
