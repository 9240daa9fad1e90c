package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/obdex/obdex/pkg/exchange/book"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/num"
)

var (
	admin   = common.HexToAddress("0x0100000000000000000000000000000000000000")
	trader1 = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	trader2 = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	trader3 = common.HexToAddress("0xCC00000000000000000000000000000000000000")

	zrxAsset = common.HexToAddress("0x1100000000000000000000000000000000000000")
	daiAsset = common.HexToAddress("0x2200000000000000000000000000000000000000")

	zrx = token.MustTicker("ZRX")
	dai = token.MustTicker("DAI")
)

// stubClock pins order and trade timestamps.
type stubClock struct {
	t time.Time
}

func (c stubClock) Now() time.Time { return c.t }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	led := ledger.New(ledger.AutoApproveGateway{}, nil, zap.NewNop().Sugar())
	clock := stubClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return New(admin, token.NewRegistry(), led, clock, nil, zap.NewNop().Sugar())
}

// newTestMarket lists ZRX and DAI, designates DAI as quote and funds trader1
// with DAI and trader2 with ZRX.
func newTestMarket(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t)
	mustAdmin(t, e.AddToken(admin, zrx, zrxAsset))
	mustAdmin(t, e.AddToken(admin, dai, daiAsset))
	mustAdmin(t, e.SetQuoteTicker(admin, dai))

	if err := e.Deposit(trader1, dai, num.NewUint(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := e.Deposit(trader2, zrx, num.NewUint(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	return e
}

func mustAdmin(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("admin op failed: %v", err)
	}
}

func checkBalance(t *testing.T, e *Engine, addr common.Address, tk token.Ticker, free, locked uint64) {
	t.Helper()
	b, err := e.Balance(addr, tk)
	if err != nil {
		t.Fatalf("balance query failed: %v", err)
	}
	if b.Free.Uint64() != free {
		t.Errorf("%s free = %s, want %d", tk, b.Free, free)
	}
	if b.Locked.Uint64() != locked {
		t.Errorf("%s locked = %s, want %d", tk, b.Locked, locked)
	}
}

func TestAdminOnly(t *testing.T) {
	e := newTestEngine(t)

	if err := e.AddToken(trader1, zrx, zrxAsset); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("add: got %v, want ErrUnauthorized", err)
	}
	mustAdmin(t, e.AddToken(admin, zrx, zrxAsset))

	if err := e.DisableTokenTrading(trader1, zrx); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("disable: got %v, want ErrUnauthorized", err)
	}
	if err := e.EnableTokenTrading(trader1, zrx); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("enable: got %v, want ErrUnauthorized", err)
	}
	if err := e.SetQuoteTicker(trader1, zrx); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("set quote: got %v, want ErrUnauthorized", err)
	}
}

func TestDepositUnknownTicker(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Deposit(trader1, zrx, num.NewUint(10)); !errors.Is(err, token.ErrTickerNotFound) {
		t.Errorf("got %v, want ErrTickerNotFound", err)
	}
	if err := e.Withdraw(trader1, zrx, num.NewUint(10)); !errors.Is(err, token.ErrTickerNotFound) {
		t.Errorf("got %v, want ErrTickerNotFound", err)
	}
	if _, err := e.Balance(trader1, zrx); !errors.Is(err, token.ErrTickerNotFound) {
		t.Errorf("got %v, want ErrTickerNotFound", err)
	}
}

func TestWithdrawLockedFundsStay(t *testing.T) {
	e := newTestMarket(t)

	// lock 30 DAI in a resting bid
	if _, _, err := e.PlaceOrder(trader1, OrderSpec{
		Ticker: zrx, Side: book.Buy, Kind: book.Limit,
		Amount: num.NewUint(3), Price: num.NewUint(10),
	}); err != nil {
		t.Fatalf("place failed: %v", err)
	}
	checkBalance(t, e, trader1, dai, 70, 30)

	if err := e.Withdraw(trader1, dai, num.NewUint(71)); !errors.Is(err, ledger.ErrLowBalance) {
		t.Errorf("got %v, want ErrLowBalance", err)
	}
	if err := e.Withdraw(trader1, dai, num.NewUint(70)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	checkBalance(t, e, trader1, dai, 0, 30)
}

func TestCancelOrder(t *testing.T) {
	e := newTestMarket(t)

	o, _, err := e.PlaceOrder(trader1, OrderSpec{
		Ticker: zrx, Side: book.Buy, Kind: book.Limit,
		Amount: num.NewUint(3), Price: num.NewUint(10),
	})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}
	checkBalance(t, e, trader1, dai, 70, 30)

	// only the owner can cancel, and a failed cancel leaves the order resting
	if err := e.CancelOrder(trader2, zrx, o.ID, book.Buy); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
	bids, _ := e.Orders(zrx, book.Buy)
	if len(bids) != 1 {
		t.Fatal("order left the book on unauthorized cancel")
	}
	checkBalance(t, e, trader1, dai, 70, 30)

	if err := e.CancelOrder(trader1, zrx, o.ID, book.Buy); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	checkBalance(t, e, trader1, dai, 100, 0)
	bids, _ = e.Orders(zrx, book.Buy)
	if len(bids) != 0 {
		t.Error("order still on the book")
	}

	if err := e.CancelOrder(trader1, zrx, o.ID, book.Buy); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("got %v, want ErrOrderNotFound", err)
	}
}

func TestCancelPartiallyFilled(t *testing.T) {
	e := newTestMarket(t)

	sell, _, err := e.PlaceOrder(trader2, OrderSpec{
		Ticker: zrx, Side: book.Sell, Kind: book.Limit,
		Amount: num.NewUint(10), Price: num.NewUint(5),
	})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	// fill 4 of the 10
	if _, _, err := e.PlaceOrder(trader1, OrderSpec{
		Ticker: zrx, Side: book.Buy, Kind: book.Limit,
		Amount: num.NewUint(4), Price: num.NewUint(5),
	}); err != nil {
		t.Fatalf("place failed: %v", err)
	}
	checkBalance(t, e, trader2, zrx, 90, 6)

	// cancelling releases only the unfilled remainder
	if err := e.CancelOrder(trader2, zrx, sell.ID, book.Sell); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	checkBalance(t, e, trader2, zrx, 96, 0)
	checkBalance(t, e, trader2, dai, 20, 0)
}

func TestOrdersReturnsSnapshots(t *testing.T) {
	e := newTestMarket(t)

	if _, _, err := e.PlaceOrder(trader1, OrderSpec{
		Ticker: zrx, Side: book.Buy, Kind: book.Limit,
		Amount: num.NewUint(3), Price: num.NewUint(10),
	}); err != nil {
		t.Fatalf("place failed: %v", err)
	}

	bids, err := e.Orders(zrx, book.Buy)
	if err != nil {
		t.Fatalf("orders failed: %v", err)
	}
	bids[0].Amount = num.NewUint(999)

	again, _ := e.Orders(zrx, book.Buy)
	if again[0].Amount.Uint64() != 3 {
		t.Error("orders must return snapshots, not live book state")
	}

	if _, err := e.Orders(token.MustTicker("NOPE"), book.Buy); !errors.Is(err, token.ErrTickerNotFound) {
		t.Errorf("got %v, want ErrTickerNotFound", err)
	}
}

func TestTradeLogSubscribe(t *testing.T) {
	tl := NewTradeLog()
	ch, cancel := tl.Subscribe(4)
	defer cancel()

	tl.Record(Trade{ID: 1, Ticker: zrx})
	tl.Record(Trade{ID: 2, Ticker: zrx})

	for want := uint64(1); want <= 2; want++ {
		select {
		case got := <-ch:
			if got.ID != want {
				t.Errorf("trade id = %d, want %d", got.ID, want)
			}
		default:
			t.Fatal("expected buffered trade")
		}
	}

	recent := tl.Recent(1)
	if len(recent) != 1 || recent[0].ID != 2 {
		t.Errorf("recent = %v", recent)
	}
	if tl.Len() != 2 {
		t.Errorf("len = %d, want 2", tl.Len())
	}
}
