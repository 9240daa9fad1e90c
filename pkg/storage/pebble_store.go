package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/exchange/engine"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
)

// PebbleStore backs the ledger and the trade history with a single Pebble
// database. Balances are written synchronously, trades with NoSync since the
// in-memory trade log is the source of truth within a process lifetime.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveBalance persists one (participant, ticker) balance.
func (s *PebbleStore) SaveBalance(addr common.Address, ticker token.Ticker, b *ledger.Balance) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}
	if err := s.db.Set(balanceKey(addr, ticker), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// LoadBalance loads one (participant, ticker) balance.
// Returns nil if no balance has been recorded.
func (s *PebbleStore) LoadBalance(addr common.Address, ticker token.Ticker) (*ledger.Balance, error) {
	data, closer, err := s.db.Get(balanceKey(addr, ticker))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	defer closer.Close()

	var b ledger.Balance
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balance: %w", err)
	}
	return &b, nil
}

// SaveTrade appends an executed trade to the history.
func (s *PebbleStore) SaveTrade(t engine.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Ticker, t.ID), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// RecentTrades loads the most recent trades for a ticker, newest first.
func (s *PebbleStore) RecentTrades(ticker token.Ticker, limit int) ([]engine.Trade, error) {
	prefix := tradePrefix(ticker)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []engine.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t engine.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}

var (
	_ ledger.Store      = (*PebbleStore)(nil)
	_ engine.TradeStore = (*PebbleStore)(nil)
)
