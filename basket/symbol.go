// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package basket

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
)

var ErrSymbolTooLong = errors.New("symbol too long for bytes32")

// SymbolKey encodes a ticker such as "WBTC" as a bytes32 key, right padded
// with zero bytes, the form oracle prices are published under.
func SymbolKey(symbol string) (common.Hash, error) {
	raw := []byte(symbol)
	if len(raw) > common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q is %d bytes", ErrSymbolTooLong, symbol, len(raw))
	}
	var key common.Hash
	copy(key[:], raw)
	return key, nil
}

// MustSymbolKey is SymbolKey that panics on error.
func MustSymbolKey(symbol string) common.Hash {
	key, err := SymbolKey(symbol)
	if err != nil {
		panic(err)
	}
	return key
}

// SymbolString decodes a key produced by SymbolKey.
func SymbolString(key common.Hash) string {
	return string(bytes.TrimRight(key[:], "\x00"))
}
