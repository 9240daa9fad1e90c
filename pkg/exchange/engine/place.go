package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/exchange/book"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/metrics"
	"github.com/obdex/obdex/pkg/num"
)

// OrderSpec is an incoming order request. Price is the limit price in quote
// units per asset unit and is ignored for market orders.
type OrderSpec struct {
	Ticker token.Ticker
	Side   book.Side
	Kind   book.Kind
	Amount *num.Uint
	Price  *num.Uint
}

// plannedFill is one step of a match computed before anything mutates. The
// maker pointer is live book state; it is only touched in the apply phase.
type plannedFill struct {
	maker *book.Order
	qty   *num.Uint
}

// PlaceOrder validates, reserves, matches and (for limit remainders) rests an
// order. It either commits completely or fails with nothing mutated: the
// match is planned against a consistent snapshot of the book under the
// ticker's lock, and every balance movement is validated before the first
// fill is applied.
//
// Returned are the taker order (with its accumulated fills) and the trades
// emitted, in fill order.
func (e *Engine) PlaceOrder(caller common.Address, spec OrderSpec) (*book.Order, []Trade, error) {
	// Preconditions, first failure wins. The order of these checks is part
	// of the public contract: a disabled ticker reports TokenDisabled even
	// when the quote ticker was never set.
	if !e.registry.Exists(spec.Ticker) {
		return nil, nil, token.ErrTickerNotFound
	}
	if !e.registry.IsTradable(spec.Ticker) {
		return nil, nil, token.ErrTokenDisabled
	}
	quote, err := e.registry.Quote()
	if err != nil {
		return nil, nil, err
	}
	if spec.Ticker == quote {
		return nil, nil, token.ErrQuoteTicker
	}
	if spec.Amount == nil || spec.Amount.IsZero() {
		return nil, nil, fmt.Errorf("%w: zero amount", ErrInvalidOrder)
	}
	if spec.Kind == book.Limit && (spec.Price == nil || spec.Price.IsZero()) {
		return nil, nil, fmt.Errorf("%w: limit order without price", ErrInvalidOrder)
	}

	ms := e.market(spec.Ticker)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// Balance sufficiency. Market buys are exempt here: their cost is
	// unknowable until fill prices are, so they are checked per fill below.
	if spec.Side == book.Sell {
		if e.ledger.Balance(caller, spec.Ticker).Free.LT(spec.Amount) {
			return nil, nil, ErrLowTokenBalance
		}
	} else if spec.Kind == book.Limit {
		cost, err := num.Mul(spec.Amount, spec.Price)
		if err != nil {
			return nil, nil, err
		}
		if e.ledger.Balance(caller, quote).Free.LT(cost) {
			return nil, nil, ErrLowQuoteBalance
		}
	}
	if spec.Kind == book.Market && ms.book.Len(spec.Side.Opposite()) == 0 {
		return nil, nil, ErrEmptyOrderBook
	}

	price := num.UintZero()
	if spec.Kind == book.Limit {
		price = spec.Price.Clone()
	}
	taker := &book.Order{
		ID:        e.orderSeq.Add(1),
		Owner:     caller,
		Side:      spec.Side,
		Kind:      spec.Kind,
		Ticker:    spec.Ticker,
		Amount:    spec.Amount.Clone(),
		Price:     price,
		CreatedAt: e.clock.Now().UnixMilli(),
	}

	plan, err := e.planMatch(ms.book, taker, caller, quote)
	if err != nil {
		return nil, nil, err
	}

	// Reserve. Limit orders lock their full notional up front; the matching
	// below settles out of that reservation and refunds any price
	// improvement fill by fill. Market orders reserve nothing.
	if taker.Kind == book.Limit {
		if taker.Side == book.Buy {
			cost, err := num.Mul(taker.Amount, taker.Price)
			if err != nil {
				return nil, nil, err
			}
			if err := e.ledger.Lock(caller, quote, cost); err != nil {
				return nil, nil, ErrLowQuoteBalance
			}
		} else {
			if err := e.ledger.Lock(caller, spec.Ticker, taker.Amount); err != nil {
				return nil, nil, ErrLowTokenBalance
			}
		}
	}

	trades, err := e.applyMatch(ms.book, taker, quote, plan)
	if err != nil {
		// The batch settle rejected the whole match and moved nothing. A
		// market taker's free balance can shrink between the plan snapshot
		// and settlement (a concurrent withdrawal); release the reservation
		// and report the order as unaffordable.
		if taker.Kind == book.Limit {
			var rbErr error
			if taker.Side == book.Buy {
				cost, _ := num.Mul(taker.Amount, taker.Price)
				rbErr = e.ledger.Unlock(caller, quote, cost)
			} else {
				rbErr = e.ledger.Unlock(caller, spec.Ticker, taker.Amount)
			}
			if rbErr != nil {
				e.log.Errorw("reservation_rollback_failed",
					"order", taker.ID, "err", rbErr)
			}
		}
		if errors.Is(err, ledger.ErrLowBalance) {
			if taker.Side == book.Buy {
				return nil, nil, ErrLowQuoteBalance
			}
			return nil, nil, ErrLowTokenBalance
		}
		return nil, nil, fmt.Errorf("settlement failed: %w", err)
	}

	if taker.Kind == book.Limit && !taker.IsFilled() {
		ms.book.Insert(taker)
	}

	metrics.OrderInc(spec.Ticker.String(), taker.Side.String(), taker.Kind.String())
	e.log.Infow("order_placed",
		"id", taker.ID, "ticker", spec.Ticker.String(),
		"side", taker.Side.String(), "kind", taker.Kind.String(),
		"owner", caller.Hex(), "amount", taker.Amount.String(),
		"price", taker.Price.String(), "fills", len(trades))
	return taker, trades, nil
}

// planMatch walks the opposing side best-price-first and computes the fills
// this taker would produce, without mutating anything. For market buys it
// also proves the taker can pay for every planned fill out of free quote
// balance; running out mid-plan aborts the whole order.
func (e *Engine) planMatch(b *book.Book, taker *book.Order, caller common.Address, quote token.Ticker) ([]plannedFill, error) {
	remaining := taker.Amount.Clone()
	var plan []plannedFill

	var freeQuote, spent *num.Uint
	marketBuy := taker.Side == book.Buy && taker.Kind == book.Market
	if marketBuy {
		freeQuote = e.ledger.Balance(caller, quote).Free
		spent = num.UintZero()
	}

	for _, maker := range b.Orders(taker.Side.Opposite()) {
		if remaining.IsZero() {
			break
		}
		if taker.Kind == book.Limit {
			// The book is ranked best-first: once a maker's price stops
			// satisfying the limit, no later one can.
			if taker.Side == book.Buy && maker.Price.GT(taker.Price) {
				break
			}
			if taker.Side == book.Sell && maker.Price.LT(taker.Price) {
				break
			}
		}

		qty := num.Min(remaining, maker.Remaining())
		cost, err := num.Mul(qty, maker.Price)
		if err != nil {
			return nil, err
		}
		if marketBuy {
			total, err := num.Add(spent, cost)
			if err != nil {
				return nil, err
			}
			if freeQuote.LT(total) {
				return nil, ErrLowQuoteBalance
			}
			spent = total
		}

		plan = append(plan, plannedFill{maker: maker, qty: qty})
		remaining, err = num.Sub(remaining, qty)
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// applyMatch settles the whole plan as one atomic ledger batch at maker
// prices, then records the fills on both orders and emits one trade per
// fill. A settlement failure mutates neither the ledger nor the book.
func (e *Engine) applyMatch(b *book.Book, taker *book.Order, quote token.Ticker, plan []plannedFill) ([]Trade, error) {
	if len(plan) == 0 {
		return nil, nil
	}

	fills := make([]ledger.FillTransfer, len(plan))
	for i, pf := range plan {
		ft := ledger.FillTransfer{
			Ticker:   taker.Ticker,
			Quote:    quote,
			Quantity: pf.qty,
			Price:    pf.maker.Price,
		}
		if taker.Side == book.Buy {
			ft.Buyer = taker.Owner
			ft.Seller = pf.maker.Owner
			if taker.Kind == book.Limit {
				ft.BuyerReservedPrice = taker.Price
			}
		} else {
			ft.Buyer = pf.maker.Owner
			ft.Seller = taker.Owner
			// resting buy makers reserved at their own price; no improvement
			ft.BuyerReservedPrice = pf.maker.Price
			ft.SellerFromFree = taker.Kind == book.Market
		}
		fills[i] = ft
	}
	if err := e.ledger.SettleFills(fills); err != nil {
		return nil, err
	}

	trades := make([]Trade, 0, len(plan))
	for _, pf := range plan {
		maker := pf.maker

		b.RecordFill(maker, pf.qty)
		taker.Fills = append(taker.Fills, pf.qty)

		t := Trade{
			ID:           e.tradeSeq.Add(1),
			Ticker:       taker.Ticker,
			MakerOrderID: maker.ID,
			TakerOrderID: taker.ID,
			MakerOwner:   maker.Owner,
			TakerOwner:   taker.Owner,
			TakerSide:    taker.Side,
			TakerKind:    taker.Kind,
			Quantity:     pf.qty.Clone(),
			Price:        maker.Price.Clone(),
			Timestamp:    e.clock.Now().UnixMilli(),
		}
		e.trades.Record(t)
		metrics.TradeInc(taker.Ticker.String())
		if e.store != nil {
			if err := e.store.SaveTrade(t); err != nil {
				e.log.Warnw("trade_save_failed", "trade", t.ID, "err", err)
			}
		}
		trades = append(trades, t)
	}
	return trades, nil
}
