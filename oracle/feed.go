// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

var feedPricePrefix = []byte("oracle/price")

// Feed is a reference oracle storing one quote per symbol, written only by a
// single authorized updater. It mirrors setPrice(bytes32,uint256,uint256).
type Feed struct {
	mu sync.RWMutex

	db      database.Database
	updater common.Address

	// Zero disables the staleness check.
	maxAge time.Duration
	now    func() time.Time
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithMaxAge rejects quotes observed more than maxAge before now.
func WithMaxAge(maxAge time.Duration) FeedOption {
	return func(f *Feed) { f.maxAge = maxAge }
}

// WithClock overrides the wall clock used for staleness checks.
func WithClock(now func() time.Time) FeedOption {
	return func(f *Feed) { f.now = now }
}

// NewFeed creates a feed backed by db.
func NewFeed(db database.Database, updater common.Address, opts ...FeedOption) *Feed {
	f := &Feed{
		db:      db,
		updater: updater,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Updater returns the address allowed to publish prices.
func (f *Feed) Updater() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updater
}

// SetUpdater hands publishing rights to next. Only the current updater may call it.
func (f *Feed) SetUpdater(caller, next common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.updater {
		return ErrUnauthorized
	}
	if next == (common.Address{}) {
		return fmt.Errorf("%w: zero updater", ErrUnauthorized)
	}
	f.updater = next
	return nil
}

// SetPrice publishes a quote for symbol.
func (f *Feed) SetPrice(caller common.Address, symbol common.Hash, price *uint256.Int, observedAt uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.updater {
		return ErrUnauthorized
	}
	if price == nil {
		return ErrInvalidPrice
	}
	return f.db.Put(feedKey(symbol), encodeQuote(price, observedAt))
}

// GetPrice implements Oracle.
func (f *Feed) GetPrice(ctx context.Context, symbol common.Hash) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	raw, err := f.db.Get(feedKey(symbol))
	if errors.Is(err, database.ErrNotFound) {
		return Quote{}, fmt.Errorf("%w: no price for %s", ErrUnavailable, symbol.Hex())
	}
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	q, err := decodeQuote(raw)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if f.maxAge > 0 {
		now := f.now().Unix()
		if now > 0 && uint64(now) > q.ObservedAt && time.Duration(uint64(now)-q.ObservedAt)*time.Second > f.maxAge {
			return Quote{}, fmt.Errorf("%w: %s observed at %d", ErrStale, symbol.Hex(), q.ObservedAt)
		}
	}
	return q, nil
}

func feedKey(symbol common.Hash) []byte {
	h := blake3.New()
	h.Write(feedPricePrefix)
	h.Write(symbol[:])
	var key common.Hash
	h.Digest().Read(key[:])
	return key[:]
}

// price (32 bytes) || observedAt (32 bytes), both big-endian
func encodeQuote(price *uint256.Int, observedAt uint64) []byte {
	out := make([]byte, 64)
	p := price.Bytes32()
	copy(out[:32], p[:])
	ts := uint256.NewInt(observedAt).Bytes32()
	copy(out[32:], ts[:])
	return out
}

func decodeQuote(raw []byte) (Quote, error) {
	if len(raw) != 64 {
		return Quote{}, fmt.Errorf("corrupt quote: %d bytes", len(raw))
	}
	ts := new(uint256.Int).SetBytes(raw[32:])
	if !ts.IsUint64() {
		return Quote{}, errors.New("corrupt quote: timestamp overflows uint64")
	}
	return Quote{
		Price:      new(uint256.Int).SetBytes(raw[:32]),
		ObservedAt: ts.Uint64(),
	}, nil
}
