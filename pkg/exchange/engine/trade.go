package engine

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/exchange/book"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/num"
)

// Trade is the immutable record of one fill between a taker and one maker.
// Exactly one record is emitted per fill, in fill order.
type Trade struct {
	ID           uint64         `json:"id"`
	Ticker       token.Ticker   `json:"ticker"`
	MakerOrderID uint64         `json:"makerOrderId"`
	TakerOrderID uint64         `json:"takerOrderId"`
	MakerOwner   common.Address `json:"makerOwner"`
	TakerOwner   common.Address `json:"takerOwner"`
	TakerSide    book.Side      `json:"takerSide"`
	TakerKind    book.Kind      `json:"takerKind"`
	Quantity     *num.Uint      `json:"quantity"`
	Price        *num.Uint      `json:"price"`
	Timestamp    int64          `json:"timestamp"`
}

// TradeLog is the append-only in-memory trade history plus the fan-out point
// for downstream observers (history views, charts, the websocket stream).
type TradeLog struct {
	mu     sync.RWMutex
	trades []Trade
	subs   map[chan Trade]struct{}
}

func NewTradeLog() *TradeLog {
	return &TradeLog{
		trades: make([]Trade, 0, 1024),
		subs:   make(map[chan Trade]struct{}),
	}
}

// Record appends a trade and notifies subscribers. Slow subscribers miss
// trades rather than stall the matching loop.
func (tl *TradeLog) Record(t Trade) {
	tl.mu.Lock()
	tl.trades = append(tl.trades, t)
	for ch := range tl.subs {
		select {
		case ch <- t:
		default:
		}
	}
	tl.mu.Unlock()
}

// Recent returns up to n most recent trades, newest last.
func (tl *TradeLog) Recent(n int) []Trade {
	tl.mu.RLock()
	defer tl.mu.RUnlock()

	if n <= 0 || n > len(tl.trades) {
		n = len(tl.trades)
	}
	out := make([]Trade, n)
	copy(out, tl.trades[len(tl.trades)-n:])
	return out
}

// Len returns the total number of recorded trades.
func (tl *TradeLog) Len() int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return len(tl.trades)
}

// Subscribe registers a trade stream consumer. The returned cancel func must
// be called when done.
func (tl *TradeLog) Subscribe(buffer int) (<-chan Trade, func()) {
	ch := make(chan Trade, buffer)
	tl.mu.Lock()
	tl.subs[ch] = struct{}{}
	tl.mu.Unlock()

	cancel := func() {
		tl.mu.Lock()
		if _, ok := tl.subs[ch]; ok {
			delete(tl.subs, ch)
			close(ch)
		}
		tl.mu.Unlock()
	}
	return ch, cancel
}
