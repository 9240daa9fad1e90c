// Package ledger holds each participant's per-asset free/locked balances and
// the operations that move value between them. Free is spendable and
// withdrawable, locked is reserved by open orders and only released by a fill
// or a cancellation.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/num"
)

var (
	ErrLowBalance     = errors.New("low balance")
	ErrLowLockedFunds = errors.New("unlock exceeds locked funds")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrTransferFailed = errors.New("asset transfer failed")
)

// Gateway is the external token-transfer collaborator. Both calls may fail;
// a failure aborts the balance mutation that depends on it.
type Gateway interface {
	TransferIn(participant common.Address, ticker token.Ticker, amount *num.Uint) error
	TransferOut(participant common.Address, ticker token.Ticker, amount *num.Uint) error
}

// AutoApproveGateway approves every transfer. Used when the node runs without
// a real bridge; the engine only ever observes success or failure.
type AutoApproveGateway struct{}

func (AutoApproveGateway) TransferIn(common.Address, token.Ticker, *num.Uint) error {
	return nil
}

func (AutoApproveGateway) TransferOut(common.Address, token.Ticker, *num.Uint) error {
	return nil
}

// Store persists balances. LoadBalance returns (nil, nil) when no record
// exists. The in-memory map stays the source of truth; the store is warm
// state across restarts.
type Store interface {
	SaveBalance(participant common.Address, ticker token.Ticker, b *Balance) error
	LoadBalance(participant common.Address, ticker token.Ticker) (*Balance, error)
}

// Balance is the free/locked pair for one (participant, ticker).
type Balance struct {
	Free   *num.Uint `json:"free"`
	Locked *num.Uint `json:"locked"`
}

func newBalance() *Balance {
	return &Balance{Free: num.UintZero(), Locked: num.UintZero()}
}

// Clone returns an independent copy safe to hand to callers.
func (b *Balance) Clone() *Balance {
	return &Balance{Free: b.Free.Clone(), Locked: b.Locked.Clone()}
}

type balanceKey struct {
	addr   common.Address
	ticker token.Ticker
}

// Ledger is the balance book. All operations are atomic with respect to each
// other; a failed operation leaves every balance untouched.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]*Balance
	gateway  Gateway
	store    Store // may be nil
	log      *zap.SugaredLogger
}

func New(gateway Gateway, store Store, log *zap.SugaredLogger) *Ledger {
	return &Ledger{
		balances: make(map[balanceKey]*Balance),
		gateway:  gateway,
		store:    store,
		log:      log,
	}
}

// get returns the balance for (addr, ticker), creating it lazily. Loads from
// the store on first touch. Caller must hold l.mu.
func (l *Ledger) get(addr common.Address, ticker token.Ticker) *Balance {
	key := balanceKey{addr, ticker}
	if b, ok := l.balances[key]; ok {
		return b
	}
	if l.store != nil {
		b, err := l.store.LoadBalance(addr, ticker)
		if err != nil {
			l.log.Warnw("balance_load_failed", "participant", addr.Hex(), "ticker", ticker.String(), "err", err)
		} else if b != nil {
			l.balances[key] = b
			return b
		}
	}
	b := newBalance()
	l.balances[key] = b
	return b
}

// persist writes a balance through to the store. Persistence failures are
// logged, not surfaced: the in-memory state has already committed.
func (l *Ledger) persist(addr common.Address, ticker token.Ticker, b *Balance) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveBalance(addr, ticker, b); err != nil {
		l.log.Warnw("balance_save_failed", "participant", addr.Hex(), "ticker", ticker.String(), "err", err)
	}
}

// Balance returns a copy of the (participant, ticker) balance. Participants
// the ledger has never seen read as zero.
func (l *Ledger) Balance(addr common.Address, ticker token.Ticker) *Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(addr, ticker).Clone()
}

// Deposit credits free balance after a successful external transfer-in. If
// the transfer fails nothing is recorded.
func (l *Ledger) Deposit(addr common.Address, ticker token.Ticker, amount *num.Uint) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := l.gateway.TransferIn(addr, ticker, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.get(addr, ticker)
	free, err := num.Add(b.Free, amount)
	if err != nil {
		return err
	}
	b.Free = free
	l.persist(addr, ticker, b)
	return nil
}

// Withdraw debits free balance and triggers the external transfer-out. If the
// transfer fails the debit is rolled back.
func (l *Ledger) Withdraw(addr common.Address, ticker token.Ticker, amount *num.Uint) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.get(addr, ticker)
	if b.Free.LT(amount) {
		return ErrLowBalance
	}
	free, err := num.Sub(b.Free, amount)
	if err != nil {
		return err
	}
	prev := b.Free
	b.Free = free

	if err := l.gateway.TransferOut(addr, ticker, amount); err != nil {
		b.Free = prev
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	l.persist(addr, ticker, b)
	return nil
}

// Lock moves amount from free to locked, reserving it for an open order.
func (l *Ledger) Lock(addr common.Address, ticker token.Ticker, amount *num.Uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.get(addr, ticker)
	if b.Free.LT(amount) {
		return ErrLowBalance
	}
	free, err := num.Sub(b.Free, amount)
	if err != nil {
		return err
	}
	locked, err := num.Add(b.Locked, amount)
	if err != nil {
		return err
	}
	b.Free, b.Locked = free, locked
	l.persist(addr, ticker, b)
	return nil
}

// Unlock releases a reservation back to free balance. Callers only ever
// unlock what they previously locked; asking for more is a bug upstream and
// reported as ErrLowLockedFunds.
func (l *Ledger) Unlock(addr common.Address, ticker token.Ticker, amount *num.Uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.get(addr, ticker)
	if b.Locked.LT(amount) {
		return ErrLowLockedFunds
	}
	locked, err := num.Sub(b.Locked, amount)
	if err != nil {
		return err
	}
	free, err := num.Add(b.Free, amount)
	if err != nil {
		return err
	}
	b.Free, b.Locked = free, locked
	l.persist(addr, ticker, b)
	return nil
}
