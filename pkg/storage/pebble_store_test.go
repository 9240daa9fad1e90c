package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/exchange/engine"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/num"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")

	zrx = token.MustTicker("ZRX")
	dai = token.MustTicker("DAI")
)

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestBalanceRoundTrip(t *testing.T) {
	s := newTestStore(t)

	// absent reads as nil, nil
	b, err := s.LoadBalance(alice, zrx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if b != nil {
		t.Fatalf("expected nil for absent balance, got %+v", b)
	}

	want := &ledger.Balance{Free: num.NewUint(70), Locked: num.NewUint(30)}
	if err := s.SaveBalance(alice, zrx, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.LoadBalance(alice, zrx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !got.Free.EQ(want.Free) || !got.Locked.EQ(want.Locked) {
		t.Errorf("got %s/%s, want 70/30", got.Free, got.Locked)
	}

	// keys are per (participant, ticker)
	if b, _ := s.LoadBalance(alice, dai); b != nil {
		t.Error("alice DAI should be absent")
	}
	if b, _ := s.LoadBalance(bob, zrx); b != nil {
		t.Error("bob ZRX should be absent")
	}
}

func TestTradeHistory(t *testing.T) {
	s := newTestStore(t)

	for i := uint64(1); i <= 5; i++ {
		err := s.SaveTrade(engine.Trade{
			ID:       i,
			Ticker:   zrx,
			Quantity: num.NewUint(i),
			Price:    num.NewUint(10),
		})
		if err != nil {
			t.Fatalf("save trade failed: %v", err)
		}
	}
	if err := s.SaveTrade(engine.Trade{
		ID: 6, Ticker: dai,
		Quantity: num.NewUint(1), Price: num.NewUint(1),
	}); err != nil {
		t.Fatalf("save trade failed: %v", err)
	}

	trades, err := s.RecentTrades(zrx, 3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(trades))
	}
	// newest first
	for i, want := range []uint64{5, 4, 3} {
		if trades[i].ID != want {
			t.Errorf("trades[%d].ID = %d, want %d", i, trades[i].ID, want)
		}
	}

	// other ticker stays out of the scan
	all, err := s.RecentTrades(zrx, 100)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("got %d ZRX trades, want 5", len(all))
	}
}

func TestTradeScanIsolatesSimilarTickers(t *testing.T) {
	s := newTestStore(t)

	// the fixed-width key form keeps a symbol that extends another, even
	// through the separator byte, in its own key range
	ab := token.MustTicker("AB")
	abc := token.MustTicker("AB:C")

	if err := s.SaveTrade(engine.Trade{
		ID: 1, Ticker: ab,
		Quantity: num.NewUint(1), Price: num.NewUint(1),
	}); err != nil {
		t.Fatalf("save trade failed: %v", err)
	}
	if err := s.SaveTrade(engine.Trade{
		ID: 2, Ticker: abc,
		Quantity: num.NewUint(1), Price: num.NewUint(1),
	}); err != nil {
		t.Fatalf("save trade failed: %v", err)
	}

	trades, err := s.RecentTrades(ab, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(trades) != 1 || trades[0].ID != 1 {
		t.Fatalf("got %d trades for AB, want exactly trade 1", len(trades))
	}

	trades, err = s.RecentTrades(abc, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(trades) != 1 || trades[0].ID != 2 {
		t.Fatalf("got %d trades for AB:C, want exactly trade 2", len(trades))
	}
}
