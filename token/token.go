// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token defines the asset transfer collaborator driven by the fund
// pool, a reference ERC20-style balance book and a bounded-wait decorator.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var ErrTransferFailed = errors.New("transfer failed")

// Token is one underlying asset of the basket. Pull moves funds from a holder
// into the pool (transferFrom); Push moves funds from the pool to a holder
// (transfer). A false return is a failure exactly like a returned error.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error)
	Pull(ctx context.Context, from, to common.Address, amount *uint256.Int) (bool, error)
	Push(ctx context.Context, to common.Address, amount *uint256.Int) (bool, error)
}

type timeoutToken struct {
	inner   Token
	timeout time.Duration
}

// WithTimeout bounds every call on t. An expired wait is reported as
// ErrTransferFailed. The underlying transfer may still land after expiry; the
// caller treats it as failed regardless. A non-positive timeout returns t.
func WithTimeout(t Token, timeout time.Duration) Token {
	if timeout <= 0 || t == nil {
		return t
	}
	return &timeoutToken{inner: t, timeout: timeout}
}

func (t *timeoutToken) Address() common.Address {
	return t.inner.Address()
}

func (t *timeoutToken) BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	err := t.bounded(ctx, "balanceOf", func(ctx context.Context) error {
		var err error
		bal, err = t.inner.BalanceOf(ctx, holder)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bal, nil
}

func (t *timeoutToken) Pull(ctx context.Context, from, to common.Address, amount *uint256.Int) (bool, error) {
	var ok bool
	err := t.bounded(ctx, "pull", func(ctx context.Context) error {
		var err error
		ok, err = t.inner.Pull(ctx, from, to, amount)
		return err
	})
	return ok && err == nil, err
}

func (t *timeoutToken) Push(ctx context.Context, to common.Address, amount *uint256.Int) (bool, error) {
	var ok bool
	err := t.bounded(ctx, "push", func(ctx context.Context) error {
		var err error
		ok, err = t.inner.Push(ctx, to, amount)
		return err
	})
	return ok && err == nil, err
}

func (t *timeoutToken) bounded(ctx context.Context, op string, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- call(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %s on %s: %v", ErrTransferFailed, op, t.inner.Address().Hex(), ctx.Err())
	}
}
