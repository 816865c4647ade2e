// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	testToken = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testPool  = common.HexToAddress("0x0000000000000000000000000000000000009090")
	testUser1 = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testUser2 = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func TestBookPull(t *testing.T) {
	ctx := context.Background()
	book := NewBook(testToken)
	require.NoError(t, book.Mint(testUser1, uint256.NewInt(1000)))

	pool := book.Caller(testPool)
	require.Equal(t, testToken, pool.Address())

	// No allowance yet.
	ok, err := pool.Pull(ctx, testUser1, testPool, uint256.NewInt(100))
	require.NoError(t, err)
	require.False(t, ok)

	book.Approve(testUser1, testPool, uint256.NewInt(300))
	ok, err = pool.Pull(ctx, testUser1, testPool, uint256.NewInt(100))
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, uint64(900), book.Balance(testUser1).Uint64())
	require.Equal(t, uint64(100), book.Balance(testPool).Uint64())
	require.Equal(t, uint64(200), book.Allowance(testUser1, testPool).Uint64())

	// Allowance left but balance too small.
	require.NoError(t, book.Mint(testUser2, uint256.NewInt(10)))
	book.Approve(testUser2, testPool, uint256.NewInt(1000))
	ok, err = pool.Pull(ctx, testUser2, testPool, uint256.NewInt(11))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uint64(10), book.Balance(testUser2).Uint64())
	require.Equal(t, uint64(1000), book.Allowance(testUser2, testPool).Uint64())
}

func TestBookPullZeroWithoutAllowance(t *testing.T) {
	pool := NewBook(testToken).Caller(testPool)
	ok, err := pool.Pull(context.Background(), testUser1, testPool, new(uint256.Int))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBookPush(t *testing.T) {
	ctx := context.Background()
	book := NewBook(testToken)
	require.NoError(t, book.Mint(testPool, uint256.NewInt(50)))
	pool := book.Caller(testPool)

	ok, err := pool.Push(ctx, testUser1, uint256.NewInt(20))
	require.NoError(t, err)
	require.True(t, ok)

	bal, err := pool.BalanceOf(ctx, testUser1)
	require.NoError(t, err)
	require.Equal(t, uint64(20), bal.Uint64())

	ok, err = pool.Push(ctx, testUser1, uint256.NewInt(31))
	require.NoError(t, err)
	require.False(t, ok)

	bal, err = pool.BalanceOf(ctx, testPool)
	require.NoError(t, err)
	require.Equal(t, uint64(30), bal.Uint64())
}

func TestBookMintOverflow(t *testing.T) {
	book := NewBook(testToken)
	require.NoError(t, book.Mint(testUser1, new(uint256.Int).SetAllOne()))
	require.ErrorIs(t, book.Mint(testUser1, uint256.NewInt(1)), ErrBalanceOverflow)
}

func TestBalanceIsCopy(t *testing.T) {
	book := NewBook(testToken)
	require.NoError(t, book.Mint(testUser1, uint256.NewInt(5)))
	bal := book.Balance(testUser1)
	bal.SetUint64(500)
	require.Equal(t, uint64(5), book.Balance(testUser1).Uint64())
}

type stuckToken struct {
	release chan struct{}
}

func (s *stuckToken) Address() common.Address { return testToken }

func (s *stuckToken) BalanceOf(context.Context, common.Address) (*uint256.Int, error) {
	<-s.release
	return uint256.NewInt(1), nil
}

func (s *stuckToken) Pull(context.Context, common.Address, common.Address, *uint256.Int) (bool, error) {
	<-s.release
	return true, nil
}

func (s *stuckToken) Push(context.Context, common.Address, *uint256.Int) (bool, error) {
	<-s.release
	return true, nil
}

func TestWithTimeout(t *testing.T) {
	stuck := &stuckToken{release: make(chan struct{})}
	defer close(stuck.release)

	tok := WithTimeout(stuck, 10*time.Millisecond)
	require.Equal(t, testToken, tok.Address())

	ctx := context.Background()
	_, err := tok.BalanceOf(ctx, testUser1)
	require.ErrorIs(t, err, ErrTransferFailed)

	ok, err := tok.Pull(ctx, testUser1, testPool, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrTransferFailed)
	require.False(t, ok)

	ok, err = tok.Push(ctx, testUser1, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrTransferFailed)
	require.False(t, ok)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	book := NewBook(testToken)
	require.NoError(t, book.Mint(testPool, uint256.NewInt(9)))

	tok := WithTimeout(book.Caller(testPool), time.Second)
	ok, err := tok.Push(context.Background(), testUser1, uint256.NewInt(4))
	require.NoError(t, err)
	require.True(t, ok)

	bal, err := tok.BalanceOf(context.Background(), testUser1)
	require.NoError(t, err)
	require.Equal(t, uint64(4), bal.Uint64())

	_, wrapped := WithTimeout(book.Caller(testPool), 0).(*timeoutToken)
	require.False(t, wrapped)
}
