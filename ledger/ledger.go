// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger owns the share supply of a fund pool: total shares and the
// per-holder balances that must always sum to it.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/parsdao/fundpool/fixedpoint"
)

// Storage key prefixes
var (
	balancePrefix = []byte("ledger/bal")
	totalPrefix   = []byte("ledger/total")
)

var (
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvariantViolation = errors.New("share supply invariant violated")
	ErrCorruptEntry       = errors.New("corrupt ledger entry")
)

const entryLen = common.AddressLength + 32

// Ledger stores balances in db. Every mutation writes the holder balance and
// the total supply in one batch, so the supply invariant holds at every
// observable point. Balance entries are never deleted, only zeroed.
type Ledger struct {
	mu sync.RWMutex
	db database.Database

	totalKey []byte
}

// New wraps db. An empty db is a ledger with zero supply.
func New(db database.Database) *Ledger {
	return &Ledger{
		db:       db,
		totalKey: hashKey(totalPrefix, nil),
	}
}

// TotalShares returns the share supply.
func (l *Ledger) TotalShares() (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalLocked()
}

// BalanceOf returns holder's shares; unknown holders have zero.
func (l *Ledger) BalanceOf(holder common.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(holder)
}

// Credit mints shares to holder.
func (l *Ledger) Credit(holder common.Address, shares *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	total, err := l.totalLocked()
	if err != nil {
		return err
	}
	bal, err := l.balanceLocked(holder)
	if err != nil {
		return err
	}
	nextTotal, err := fixedpoint.Add(total, shares)
	if err != nil {
		return fmt.Errorf("credit total: %w", err)
	}
	nextBal, err := fixedpoint.Add(bal, shares)
	if err != nil {
		return fmt.Errorf("credit %s: %w", holder.Hex(), err)
	}
	return l.writeLocked(holder, nextBal, nextTotal)
}

// Debit burns shares from holder.
func (l *Ledger) Debit(holder common.Address, shares *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	total, err := l.totalLocked()
	if err != nil {
		return err
	}
	bal, err := l.balanceLocked(holder)
	if err != nil {
		return err
	}
	if bal.Lt(shares) {
		return fmt.Errorf("%w: %s holds %s, debit %s", ErrInsufficientShares, holder.Hex(), bal.Dec(), shares.Dec())
	}
	if total.Lt(shares) {
		return fmt.Errorf("%w: total %s below debit %s", ErrInvariantViolation, total.Dec(), shares.Dec())
	}
	return l.writeLocked(holder, new(uint256.Int).Sub(bal, shares), new(uint256.Int).Sub(total, shares))
}

// ForEach calls fn for every holder that has ever been credited, including
// holders whose balance decayed to zero. Iteration order is by storage key.
func (l *Ledger) ForEach(fn func(holder common.Address, shares *uint256.Int) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.forEachLocked(fn)
}

// Audit recomputes the sum of all balances and compares it to total supply.
func (l *Ledger) Audit() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sum := new(uint256.Int)
	err := l.forEachLocked(func(_ common.Address, shares *uint256.Int) error {
		next, err := fixedpoint.Add(sum, shares)
		if err != nil {
			return fmt.Errorf("%w: balance sum overflows", ErrInvariantViolation)
		}
		sum = next
		return nil
	})
	if err != nil {
		return err
	}
	total, err := l.totalLocked()
	if err != nil {
		return err
	}
	if !sum.Eq(total) {
		return fmt.Errorf("%w: balances sum to %s, total is %s", ErrInvariantViolation, sum.Dec(), total.Dec())
	}
	return nil
}

func (l *Ledger) forEachLocked(fn func(holder common.Address, shares *uint256.Int) error) error {
	it := l.db.NewIteratorWithPrefix(balancePrefix)
	defer it.Release()

	for it.Next() {
		holder, shares, err := decodeEntry(it.Value())
		if err != nil {
			return err
		}
		if err := fn(holder, shares); err != nil {
			return err
		}
	}
	return it.Error()
}

func (l *Ledger) totalLocked() (*uint256.Int, error) {
	raw, err := l.db.Get(l.totalKey)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read total shares: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: total is %d bytes", ErrCorruptEntry, len(raw))
	}
	return new(uint256.Int).SetBytes(raw), nil
}

func (l *Ledger) balanceLocked(holder common.Address) (*uint256.Int, error) {
	raw, err := l.db.Get(balanceKey(holder))
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", holder.Hex(), err)
	}
	stored, shares, err := decodeEntry(raw)
	if err != nil {
		return nil, err
	}
	if stored != holder {
		return nil, fmt.Errorf("%w: key for %s holds %s", ErrCorruptEntry, holder.Hex(), stored.Hex())
	}
	return shares, nil
}

func (l *Ledger) writeLocked(holder common.Address, balance, total *uint256.Int) error {
	batch := l.db.NewBatch()
	if err := batch.Put(balanceKey(holder), encodeEntry(holder, balance)); err != nil {
		return fmt.Errorf("stage balance: %w", err)
	}
	t := total.Bytes32()
	if err := batch.Put(l.totalKey, t[:]); err != nil {
		return fmt.Errorf("stage total: %w", err)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("write ledger batch: %w", err)
	}
	return nil
}

// balanceKey keeps the raw prefix in front so balances can be iterated.
func balanceKey(holder common.Address) []byte {
	return hashKey(balancePrefix, holder.Bytes())
}

func hashKey(prefix, id []byte) []byte {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var digest common.Hash
	h.Digest().Read(digest[:])

	key := make([]byte, 0, len(prefix)+common.HashLength)
	key = append(key, prefix...)
	return append(key, digest[:]...)
}

// holder (20 bytes) || shares (32 bytes big-endian)
func encodeEntry(holder common.Address, shares *uint256.Int) []byte {
	out := make([]byte, entryLen)
	copy(out, holder.Bytes())
	s := shares.Bytes32()
	copy(out[common.AddressLength:], s[:])
	return out
}

func decodeEntry(raw []byte) (common.Address, *uint256.Int, error) {
	if len(raw) != entryLen {
		return common.Address{}, nil, fmt.Errorf("%w: balance is %d bytes", ErrCorruptEntry, len(raw))
	}
	return common.BytesToAddress(raw[:common.AddressLength]), new(uint256.Int).SetBytes(raw[common.AddressLength:]), nil
}
