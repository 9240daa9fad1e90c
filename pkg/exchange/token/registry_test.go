package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	zrxAsset = common.HexToAddress("0x1100000000000000000000000000000000000000")
	daiAsset = common.HexToAddress("0x2200000000000000000000000000000000000000")
)

func TestAddToken(t *testing.T) {
	r := NewRegistry()

	if err := r.Add(MustTicker("ZRX"), zrxAsset); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !r.Exists(MustTicker("ZRX")) {
		t.Error("ZRX should exist")
	}
	if !r.IsTradable(MustTicker("ZRX")) {
		t.Error("newly added token should be tradable")
	}

	// duplicate ticker
	if err := r.Add(MustTicker("ZRX"), daiAsset); !errors.Is(err, ErrTickerExists) {
		t.Errorf("expected ErrTickerExists, got %v", err)
	}
}

func TestDisableEnable(t *testing.T) {
	r := NewRegistry()
	r.Add(MustTicker("ZRX"), zrxAsset)

	if err := r.Enable(MustTicker("ZRX")); !errors.Is(err, ErrTokenEnabled) {
		t.Errorf("enabling an enabled token: got %v, want ErrTokenEnabled", err)
	}
	if err := r.Disable(MustTicker("ZRX")); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if r.IsTradable(MustTicker("ZRX")) {
		t.Error("disabled token reported tradable")
	}
	if err := r.Disable(MustTicker("ZRX")); !errors.Is(err, ErrTokenDisabled) {
		t.Errorf("disabling a disabled token: got %v, want ErrTokenDisabled", err)
	}
	if err := r.Enable(MustTicker("ZRX")); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if !r.IsTradable(MustTicker("ZRX")) {
		t.Error("re-enabled token not tradable")
	}

	if err := r.Disable(MustTicker("NOPE")); !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("unknown ticker: got %v, want ErrTickerNotFound", err)
	}
	if err := r.Enable(MustTicker("NOPE")); !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("unknown ticker: got %v, want ErrTickerNotFound", err)
	}
}

func TestQuoteTicker(t *testing.T) {
	r := NewRegistry()
	r.Add(MustTicker("DAI"), daiAsset)
	r.Add(MustTicker("ZRX"), zrxAsset)

	if _, err := r.Quote(); !errors.Is(err, ErrQuoteTickerUndefined) {
		t.Errorf("expected ErrQuoteTickerUndefined, got %v", err)
	}
	if err := r.SetQuote(MustTicker("NOPE")); !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("unknown quote: got %v, want ErrTickerNotFound", err)
	}
	if err := r.SetQuote(MustTicker("DAI")); err != nil {
		t.Fatalf("set quote failed: %v", err)
	}

	q, err := r.Quote()
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if q != MustTicker("DAI") {
		t.Errorf("quote = %s, want DAI", q)
	}

	// one-shot
	if err := r.SetQuote(MustTicker("ZRX")); !errors.Is(err, ErrQuoteTickerDefined) {
		t.Errorf("expected ErrQuoteTickerDefined, got %v", err)
	}
	// the quote asset cannot be disabled
	if err := r.Disable(MustTicker("DAI")); !errors.Is(err, ErrQuoteTicker) {
		t.Errorf("expected ErrQuoteTicker, got %v", err)
	}
}

func TestListingOrder(t *testing.T) {
	r := NewRegistry()
	for _, s := range []string{"DAI", "ZRX", "BAT"} {
		r.Add(MustTicker(s), zrxAsset)
	}

	tickers := r.Tickers()
	if len(tickers) != 3 {
		t.Fatalf("got %d tickers, want 3", len(tickers))
	}
	for i, want := range []string{"DAI", "ZRX", "BAT"} {
		if tickers[i].String() != want {
			t.Errorf("tickers[%d] = %s, want %s", i, tickers[i], want)
		}
	}

	tokens := r.Tokens()
	if len(tokens) != 3 || tokens[1].Ticker.String() != "ZRX" {
		t.Errorf("tokens listing out of order: %v", tokens)
	}
}

func TestTickerRoundTrip(t *testing.T) {
	tk, err := TickerFromString("ZRX")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if tk.String() != "ZRX" {
		t.Errorf("round trip = %q", tk.String())
	}

	if _, err := TickerFromString(""); err == nil {
		t.Error("empty ticker should fail")
	}
	long := make([]byte, TickerLen+1)
	for i := range long {
		long[i] = 'A'
	}
	if _, err := TickerFromString(string(long)); err == nil {
		t.Error("oversize ticker should fail")
	}
}
