// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/parsdao/fundpool/registry"
)

// Contract is a callable pool contract.
type Contract interface {
	Address() common.Address
	Run(ctx context.Context, caller common.Address, input []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error)
}

// Module binds a pool contract to its address and config key.
type Module struct {
	// ConfigKey names the pool, conventionally its symbols joined by "/".
	ConfigKey string
	Address   common.Address
	Contract  Contract
}

type moduleArray []Module

func (m moduleArray) Len() int      { return len(m) }
func (m moduleArray) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address.Bytes(), m[j].Address.Bytes()) < 0
}

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// reservedRanges holds one fund pool range per market chain.
var reservedRanges = func() []AddressRange {
	ranges := make([]AddressRange, 0, len(registry.MarketChains))
	for _, chain := range registry.MarketChains {
		start, end, err := registry.FundPoolRange(chain)
		if err != nil {
			panic(err)
		}
		ranges = append(ranges, AddressRange{Start: start, End: end})
	}
	return ranges
}()

// ReservedAddress returns true if [addr] is in a reserved fund pool range
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}
	return false
}

// Registry holds pool modules sorted by address for deterministic iteration.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make([]Module, 0)}
}

// Register adds stm. The address must lie in a reserved range and match the
// contract's own address; key and address must both be unused.
func (r *Registry) Register(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if address == BlackholeAddr {
		return fmt.Errorf("address %s overlaps with blackhole address", address)
	}
	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}
	if stm.Contract == nil {
		return fmt.Errorf("module %s has no contract", key)
	}
	if stm.Contract.Address() != address {
		return fmt.Errorf("module %s contract address %s does not match %s", key, stm.Contract.Address(), address)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, registeredModule := range r.modules {
		if registeredModule.ConfigKey == key {
			return fmt.Errorf("name %s already used by a pool contract", key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by a pool contract", address)
		}
	}
	// sort by address to ensure deterministic iteration
	r.modules = insertSortedByAddress(r.modules, stm)
	return nil
}

// ByAddress returns the module at address.
func (r *Registry) ByAddress(address common.Address) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, stm := range r.modules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

// ByKey returns the module registered under key.
func (r *Registry) ByKey(key string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, stm := range r.modules {
		if stm.ConfigKey == key {
			return stm, true
		}
	}
	return Module{}, false
}

// Modules returns a copy of the registered modules in address order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Call runs input against the contract at address.
func (r *Registry) Call(
	ctx context.Context,
	address common.Address,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	stm, ok := r.ByAddress(address)
	if !ok {
		return nil, suppliedGas, fmt.Errorf("no pool contract at %s", address)
	}
	return stm.Contract.Run(ctx, caller, input, suppliedGas, readOnly)
}

var defaultRegistry = NewRegistry()

// RegisterModule registers a pool contract module in the process-wide registry.
func RegisterModule(stm Module) error {
	return defaultRegistry.Register(stm)
}

func GetPrecompileModuleByAddress(address common.Address) (Module, bool) {
	return defaultRegistry.ByAddress(address)
}

func GetPrecompileModule(key string) (Module, bool) {
	return defaultRegistry.ByKey(key)
}

func RegisteredModules() []Module {
	return defaultRegistry.Modules()
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Sort(moduleArray(data))
	return data
}
