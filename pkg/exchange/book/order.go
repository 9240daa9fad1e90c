package book

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/num"
)

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side an order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Kind distinguishes resting-capable limit orders from fill-or-forget market
// orders. Market orders never enter the book.
type Kind int8

const (
	Market Kind = iota
	Limit
)

func (k Kind) String() string {
	switch k {
	case Market:
		return "market"
	case Limit:
		return "limit"
	default:
		return "unknown"
	}
}

// Order is a resting limit order, or an in-flight order being matched. Fills
// is an append-only log of partial-fill quantities; remaining quantity is
// always derived from it, never stored.
type Order struct {
	ID     uint64         `json:"id"`
	Owner  common.Address `json:"owner"`
	Side   Side           `json:"side"`
	Kind   Kind           `json:"kind"`
	Ticker token.Ticker   `json:"ticker"`

	Amount *num.Uint   `json:"amount"`
	Price  *num.Uint   `json:"price"` // quote per unit; zero for market orders
	Fills  []*num.Uint `json:"fills"`

	CreatedAt int64 `json:"createdAt"` // unix milliseconds
}

// Filled returns the sum of all fills.
func (o *Order) Filled() *num.Uint {
	total := num.UintZero()
	for _, f := range o.Fills {
		// fills never exceed amount, so the sum cannot overflow
		total, _ = num.Add(total, f)
	}
	return total
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() *num.Uint {
	rem, err := num.Sub(o.Amount, o.Filled())
	if err != nil {
		// fills exceeding amount would be a book invariant violation
		return num.UintZero()
	}
	return rem
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining().IsZero()
}

// Clone returns a snapshot safe to hand outside the book lock.
func (o *Order) Clone() *Order {
	c := *o
	c.Amount = o.Amount.Clone()
	c.Price = o.Price.Clone()
	c.Fills = make([]*num.Uint, len(o.Fills))
	for i, f := range o.Fills {
		c.Fills[i] = f.Clone()
	}
	return &c
}
