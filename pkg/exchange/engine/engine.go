// Package engine is the matching engine: it validates incoming orders
// against the token registry, reserves funds in the balance ledger, walks the
// order book producing fills at maker prices, and emits trade records. All
// operations against the same ticker are total-ordered; different tickers
// proceed independently.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/obdex/obdex/pkg/exchange/book"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/metrics"
	"github.com/obdex/obdex/pkg/num"
	"github.com/obdex/obdex/pkg/util"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrLowTokenBalance = errors.New("low token balance")
	ErrLowQuoteBalance = errors.New("low quote balance")
	ErrEmptyOrderBook  = errors.New("empty order book")
	ErrOrderNotFound   = book.ErrOrderNotFound
	ErrInvalidOrder    = errors.New("invalid order")
)

// TradeStore persists emitted trade records. Persistence is write-behind;
// failures are logged, not surfaced.
type TradeStore interface {
	SaveTrade(t Trade) error
}

// marketState is the per-ticker order book plus the mutex that total-orders
// every operation touching that ticker.
type marketState struct {
	mu   sync.Mutex
	book *book.Book
}

// Engine wires registry, ledger and books together behind the public
// exchange surface.
type Engine struct {
	admin    common.Address
	registry *token.Registry
	ledger   *ledger.Ledger
	clock    util.Clock
	log      *zap.SugaredLogger
	trades   *TradeLog
	store    TradeStore // may be nil

	mu      sync.RWMutex
	markets map[token.Ticker]*marketState

	orderSeq atomic.Uint64
	tradeSeq atomic.Uint64
}

// New creates an engine. admin is the single identity allowed to perform
// token administration. store may be nil to run without trade persistence.
func New(admin common.Address, reg *token.Registry, led *ledger.Ledger, clock util.Clock, store TradeStore, log *zap.SugaredLogger) *Engine {
	return &Engine{
		admin:    admin,
		registry: reg,
		ledger:   led,
		clock:    clock,
		log:      log,
		trades:   NewTradeLog(),
		store:    store,
		markets:  make(map[token.Ticker]*marketState),
	}
}

// Admin returns the administrator identity.
func (e *Engine) Admin() common.Address { return e.admin }

// Trades exposes the trade log for history queries and stream subscription.
func (e *Engine) Trades() *TradeLog { return e.trades }

// Now reads the engine clock.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// market returns the per-ticker state, creating it on first use.
func (e *Engine) market(ticker token.Ticker) *marketState {
	e.mu.RLock()
	ms, ok := e.markets[ticker]
	e.mu.RUnlock()
	if ok {
		return ms
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ms, ok = e.markets[ticker]; ok {
		return ms
	}
	ms = &marketState{book: book.New()}
	e.markets[ticker] = ms
	return ms
}

// ==============================
// Token administration (admin only)
// ==============================

func (e *Engine) requireAdmin(caller common.Address) error {
	if caller != e.admin {
		return ErrUnauthorized
	}
	return nil
}

// AddToken registers a new tradable token.
func (e *Engine) AddToken(caller common.Address, ticker token.Ticker, assetAddress common.Address) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.Add(ticker, assetAddress); err != nil {
		return err
	}
	e.log.Infow("token_added", "ticker", ticker.String(), "asset", assetAddress.Hex())
	return nil
}

// EnableTokenTrading re-enables trading for a disabled token.
func (e *Engine) EnableTokenTrading(caller common.Address, ticker token.Ticker) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.Enable(ticker); err != nil {
		return err
	}
	e.log.Infow("token_enabled", "ticker", ticker.String())
	return nil
}

// DisableTokenTrading halts trading for a token. The quote ticker cannot be
// disabled.
func (e *Engine) DisableTokenTrading(caller common.Address, ticker token.Ticker) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.Disable(ticker); err != nil {
		return err
	}
	e.log.Infow("token_disabled", "ticker", ticker.String())
	return nil
}

// SetQuoteTicker designates the settlement asset, once.
func (e *Engine) SetQuoteTicker(caller common.Address, ticker token.Ticker) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.SetQuote(ticker); err != nil {
		return err
	}
	e.log.Infow("quote_ticker_set", "ticker", ticker.String())
	return nil
}

// ==============================
// Queries
// ==============================

// Tokens returns all registered tokens in insertion order.
func (e *Engine) Tokens() []token.Token { return e.registry.Tokens() }

// Tickers returns the ticker list in insertion order.
func (e *Engine) Tickers() []token.Ticker { return e.registry.Tickers() }

// QuoteTicker returns the quote ticker, or ErrQuoteTickerUndefined.
func (e *Engine) QuoteTicker() (token.Ticker, error) { return e.registry.Quote() }

// Balance returns the free/locked pair for a participant and ticker.
func (e *Engine) Balance(participant common.Address, ticker token.Ticker) (*ledger.Balance, error) {
	if !e.registry.Exists(ticker) {
		return nil, token.ErrTickerNotFound
	}
	return e.ledger.Balance(participant, ticker), nil
}

// Orders returns the ranked resting orders of one side of a ticker's book.
// The returned orders are snapshots.
func (e *Engine) Orders(ticker token.Ticker, side book.Side) ([]*book.Order, error) {
	if !e.registry.Exists(ticker) {
		return nil, token.ErrTickerNotFound
	}
	ms := e.market(ticker)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	live := ms.book.Orders(side)
	out := make([]*book.Order, len(live))
	for i, o := range live {
		out[i] = o.Clone()
	}
	return out, nil
}

// ==============================
// Funding
// ==============================

// Deposit credits a participant after a successful external transfer-in.
func (e *Engine) Deposit(participant common.Address, ticker token.Ticker, amount *num.Uint) error {
	if !e.registry.Exists(ticker) {
		return token.ErrTickerNotFound
	}
	if err := e.ledger.Deposit(participant, ticker, amount); err != nil {
		return err
	}
	metrics.DepositInc(ticker.String())
	e.log.Infow("deposit", "participant", participant.Hex(), "ticker", ticker.String(), "amount", amount.String())
	return nil
}

// Withdraw debits a participant's free balance and transfers out.
func (e *Engine) Withdraw(participant common.Address, ticker token.Ticker, amount *num.Uint) error {
	if !e.registry.Exists(ticker) {
		return token.ErrTickerNotFound
	}
	if err := e.ledger.Withdraw(participant, ticker, amount); err != nil {
		return err
	}
	metrics.WithdrawalInc(ticker.String())
	e.log.Infow("withdraw", "participant", participant.Hex(), "ticker", ticker.String(), "amount", amount.String())
	return nil
}

// ==============================
// Cancellation
// ==============================

// CancelOrder removes a resting order and releases its remaining
// reservation. Only the order's owner may cancel it; already-filled portions
// are unaffected.
func (e *Engine) CancelOrder(caller common.Address, ticker token.Ticker, id uint64, side book.Side) error {
	if !e.registry.Exists(ticker) {
		return token.ErrTickerNotFound
	}

	ms := e.market(ticker)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	o, err := ms.book.Remove(id, side, caller)
	if err != nil {
		if errors.Is(err, book.ErrUnauthorized) {
			return ErrUnauthorized
		}
		return err
	}

	remaining := o.Remaining()
	if !remaining.IsZero() {
		if side == book.Buy {
			quote, err := e.registry.Quote()
			if err != nil {
				return err
			}
			refund, err := num.Mul(remaining, o.Price)
			if err != nil {
				return err
			}
			if err := e.ledger.Unlock(caller, quote, refund); err != nil {
				return err
			}
		} else {
			if err := e.ledger.Unlock(caller, ticker, remaining); err != nil {
				return err
			}
		}
	}

	metrics.CancelInc(ticker.String())
	e.log.Infow("order_cancelled",
		"ticker", ticker.String(), "id", id, "side", side.String(),
		"owner", caller.Hex(), "remaining", remaining.String())
	return nil
}
