// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/fundpool/basket"
)

// ============================================================================
// FUND POOL ADDRESS SCHEME - DEX/Markets page (LP-9xxx)
// ============================================================================
//
// Pool contracts use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000PCII
//
//   0x 0000...0000 P C II
//                  │ │ └┴─ Pool slot    (8 bits, 256 pools per chain)
//                  │ └──── Chain slot   (4 bits)
//                  └────── Family page  (always 9, DEX/Markets)
//
// Only chains with a market page host fund pools:
//   C=2 → C-Chain   (0x...9200 - 0x...92FF)
//   C=8 → Zoo       (0x...9800 - 0x...98FF)
//
// The pool slot is derived from the basket symbols, so the same basket lands
// on the same address on every market chain.

var (
	ErrUnknownChain = errors.New("chain has no fund pool range")
	ErrNoSymbols    = errors.New("basket symbols required")
)

// FamilyMarkets is the P nibble of the DEX/Markets page.
const FamilyMarkets uint8 = 9

const (
	// Shared market infrastructure (LP-90xx), outside the pool slots.
	LXOracle = "0x0000000000000000000000000000000000009011" // LP-9011 LXOracle (price aggregation)
	LXFeed   = "0x0000000000000000000000000000000000009040" // LP-9040 LXFeed (computed prices)
)

// MarketChains lists the chains that host fund pools.
var MarketChains = []string{"C", "Zoo"}

// PrecompileAddress calculates address from (P, C, II) nibbles.
// Returns trailing-significant format: 0x0000000000000000000000000000000000PCII
func PrecompileAddress(p, c, ii uint8) common.Address {
	if p > 15 || c > 15 {
		return common.Address{}
	}
	var addr common.Address
	addr[common.AddressLength-2] = p<<4 | c
	addr[common.AddressLength-1] = ii
	return addr
}

// ChainSlot returns the C-nibble for a market chain, or 0xFF.
func ChainSlot(chain string) uint8 {
	switch chain {
	case "C", "c":
		return 2
	case "Zoo", "zoo":
		return 8
	default:
		return 0xFF
	}
}

// FundPoolRange returns the inclusive pool address range of chain.
func FundPoolRange(chain string) (start, end common.Address, err error) {
	slot := ChainSlot(chain)
	if slot == 0xFF {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}
	return PrecompileAddress(FamilyMarkets, slot, 0x00), PrecompileAddress(FamilyMarkets, slot, 0xFF), nil
}

// IsFundPoolAddress reports whether addr is inside any chain's pool range.
func IsFundPoolAddress(addr common.Address) bool {
	for _, b := range addr[:common.AddressLength-2] {
		if b != 0 {
			return false
		}
	}
	sel := addr[common.AddressLength-2]
	if sel>>4 != FamilyMarkets {
		return false
	}
	for _, chain := range MarketChains {
		if sel&0x0F == ChainSlot(chain) {
			return true
		}
	}
	return false
}

// DerivePoolAddress maps a basket to its pool slot on chain. The slot is the
// last byte of keccak256 over the 32-byte symbol keys in basket order.
// Distinct baskets may collide; registration rejects the second one.
func DerivePoolAddress(chain string, symbols []string) (common.Address, error) {
	slot := ChainSlot(chain)
	if slot == 0xFF {
		return common.Address{}, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}
	if len(symbols) == 0 {
		return common.Address{}, ErrNoSymbols
	}
	preimage := make([]byte, 0, len(symbols)*common.HashLength)
	for _, s := range symbols {
		key, err := basket.SymbolKey(s)
		if err != nil {
			return common.Address{}, err
		}
		preimage = append(preimage, key[:]...)
	}
	digest := crypto.Keccak256(preimage)
	return PrecompileAddress(FamilyMarkets, slot, digest[len(digest)-1]), nil
}
