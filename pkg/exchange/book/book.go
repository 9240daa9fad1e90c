// Package book maintains the per-ticker resting order book: two ranked
// sequences of limit orders, best price first on each side.
//
// The book does no locking of its own. The matching engine serializes all
// access per ticker, and needs multi-step read-then-mutate sequences to be
// atomic, so the mutex lives there.
package book

import (
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/num"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Book holds the resting orders for one ticker. Bids are ranked by descending
// price, asks by ascending price.
//
// Same-price ranking is asymmetric: on the buy side a new order ranks ahead
// of resting orders at the same price (the insertion comparison is
// non-strict), while the sell side is FIFO. Matching priority is
// user-visible economics; changing either side changes who gets filled.
type Book struct {
	bids []*Order
	asks []*Order
}

func New() *Book {
	return &Book{}
}

func (b *Book) side(s Side) *[]*Order {
	if s == Buy {
		return &b.bids
	}
	return &b.asks
}

// Insert places a limit order at its rank on its side.
func (b *Book) Insert(o *Order) {
	side := b.side(o.Side)
	var at int
	if o.Side == Buy {
		// non-strict: ahead of equal-priced resting bids
		at = sort.Search(len(*side), func(i int) bool {
			return (*side)[i].Price.LTE(o.Price)
		})
	} else {
		at = sort.Search(len(*side), func(i int) bool {
			return (*side)[i].Price.GT(o.Price)
		})
	}
	*side = append(*side, nil)
	copy((*side)[at+1:], (*side)[at:])
	(*side)[at] = o
}

// BestBuy returns the highest-priority resting bid, or nil when the side is
// empty.
func (b *Book) BestBuy() *Order {
	if len(b.bids) == 0 {
		return nil
	}
	return b.bids[0]
}

// BestSell returns the highest-priority resting ask, or nil when the side is
// empty.
func (b *Book) BestSell() *Order {
	if len(b.asks) == 0 {
		return nil
	}
	return b.asks[0]
}

// Best returns the top of the given side.
func (b *Book) Best(s Side) *Order {
	if s == Buy {
		return b.BestBuy()
	}
	return b.BestSell()
}

// RecordFill appends a fill quantity to the order's log and removes the order
// from its side once fully filled.
func (b *Book) RecordFill(o *Order, qty *num.Uint) {
	o.Fills = append(o.Fills, qty)
	if o.IsFilled() {
		b.removeByID(o.ID, o.Side)
	}
}

// Remove takes an order off the book on explicit cancellation. The caller
// must be the order's owner.
func (b *Book) Remove(id uint64, s Side, owner common.Address) (*Order, error) {
	side := b.side(s)
	for i, o := range *side {
		if o.ID != id {
			continue
		}
		if o.Owner != owner {
			return nil, ErrUnauthorized
		}
		*side = append((*side)[:i], (*side)[i+1:]...)
		return o, nil
	}
	return nil, ErrOrderNotFound
}

func (b *Book) removeByID(id uint64, s Side) {
	side := b.side(s)
	for i, o := range *side {
		if o.ID == id {
			*side = append((*side)[:i], (*side)[i+1:]...)
			return
		}
	}
}

// Orders returns the ranked sequence of a side. The slice is a copy; the
// orders are live and must not be mutated by callers.
func (b *Book) Orders(s Side) []*Order {
	side := b.side(s)
	out := make([]*Order, len(*side))
	copy(out, *side)
	return out
}

// Len returns the number of resting orders on a side.
func (b *Book) Len(s Side) int {
	return len(*b.side(s))
}
