// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"context"
	"errors"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var ErrBalanceOverflow = errors.New("token balance overflow")

// Book is an in-memory ERC20 ledger: balances plus owner->spender allowances.
type Book struct {
	mu sync.RWMutex

	address    common.Address
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// NewBook creates an empty book for the token at address.
func NewBook(address common.Address) *Book {
	return &Book{
		address:    address,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Address returns the token address.
func (b *Book) Address() common.Address {
	return b.address
}

// Mint credits amount to holder out of thin air.
func (b *Book) Mint(to common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, overflow := new(uint256.Int).AddOverflow(b.balanceLocked(to), amount)
	if overflow {
		return ErrBalanceOverflow
	}
	b.balances[to] = next
	return nil
}

// Approve sets the amount spender may pull from owner.
func (b *Book) Approve(owner, spender common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setAllowanceLocked(owner, spender, amount.Clone())
}

// Allowance returns the amount spender may still pull from owner.
func (b *Book) Allowance(owner, spender common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.allowanceLocked(owner, spender).Clone()
}

// Balance returns holder's balance.
func (b *Book) Balance(holder common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balanceLocked(holder).Clone()
}

// Caller returns a Token handle acting with msg.sender = sender. Push debits
// sender; Pull spends the allowance granted to sender.
func (b *Book) Caller(sender common.Address) *Handle {
	return &Handle{book: b, sender: sender}
}

// transfer moves amount between accounts, returning false without side
// effects if from lacks the balance.
func (b *Book) transfer(from, to common.Address, amount *uint256.Int) bool {
	fromBal := b.balanceLocked(from)
	if fromBal.Lt(amount) {
		return false
	}
	toBal := b.balanceLocked(to)
	if from == to {
		return true
	}
	if _, overflow := new(uint256.Int).AddOverflow(toBal, amount); overflow {
		return false
	}
	b.balances[from] = new(uint256.Int).Sub(fromBal, amount)
	b.balances[to] = new(uint256.Int).Add(toBal, amount)
	return true
}

func (b *Book) balanceLocked(holder common.Address) *uint256.Int {
	if bal, ok := b.balances[holder]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (b *Book) setAllowanceLocked(owner, spender common.Address, amount *uint256.Int) {
	if b.allowances[owner] == nil {
		b.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	b.allowances[owner][spender] = amount
}

func (b *Book) allowanceLocked(owner, spender common.Address) *uint256.Int {
	if a, ok := b.allowances[owner][spender]; ok {
		return a
	}
	return new(uint256.Int)
}

// Handle is a Book bound to a sender.
type Handle struct {
	book   *Book
	sender common.Address
}

var _ Token = (*Handle)(nil)

func (h *Handle) Address() common.Address {
	return h.book.address
}

func (h *Handle) BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.book.Balance(holder), nil
}

// Pull is transferFrom(from, to, amount) executed by the handle's sender.
func (h *Handle) Pull(ctx context.Context, from, to common.Address, amount *uint256.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b := h.book
	b.mu.Lock()
	defer b.mu.Unlock()

	allowance := b.allowanceLocked(from, h.sender)
	if allowance.Lt(amount) {
		return false, nil
	}
	if !b.transfer(from, to, amount) {
		return false, nil
	}
	b.setAllowanceLocked(from, h.sender, new(uint256.Int).Sub(allowance, amount))
	return true, nil
}

// Push is transfer(to, amount) executed by the handle's sender.
func (h *Handle) Push(ctx context.Context, to common.Address, amount *uint256.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b := h.book
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.transfer(h.sender, to, amount), nil
}
