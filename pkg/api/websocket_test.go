package api

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/obdex/obdex/pkg/exchange/engine"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/util"
)

func TestHubCloseStopsRun(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	c := &Client{hub: h, send: make(chan []byte, 1), id: "test", subscriptions: make(map[string]bool)}
	h.register <- c

	h.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// registered clients are released so their write pumps exit
	if _, ok := <-c.send; ok {
		t.Error("client send channel not closed")
	}

	h.Close() // idempotent
}

func TestShutdownStopsBroadcaster(t *testing.T) {
	admin := common.HexToAddress("0x0100000000000000000000000000000000000000")
	led := ledger.New(ledger.AutoApproveGateway{}, nil, zap.NewNop().Sugar())
	eng := engine.New(admin, token.NewRegistry(), led, util.RealClock{}, nil, zap.NewNop().Sugar())
	s := NewServer(eng, nil, zap.NewNop().Sugar())

	done := make(chan struct{})
	go func() {
		s.broadcastTrades()
		close(done)
	}()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcaster did not stop")
	}
}
