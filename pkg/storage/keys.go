package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/exchange/token"
)

// Key schema:
//
//   bal:<address>:<ticker32>  → Balance
//   trade:<ticker32><seq>     → Trade
//
// Tickers appear in their fixed 32-byte form (symbol plus NUL padding), so a
// prefix scan stays inside one ticker even when a symbol contains the
// separator or is a prefix of another. Trade sequence numbers are zero-padded
// so a scan returns trades in execution order.
const (
	prefixBalance = "bal:"
	prefixTrade   = "trade:"
)

// balanceKey returns the key for one (participant, ticker) balance.
func balanceKey(addr common.Address, ticker token.Ticker) []byte {
	key := []byte(prefixBalance + addr.Hex() + ":")
	return append(key, ticker[:]...)
}

// tradeKey returns the key for a trade, with a 20-digit zero-padded sequence.
func tradeKey(ticker token.Ticker, id uint64) []byte {
	return append(tradePrefix(ticker), fmt.Sprintf("%020d", id)...)
}

// tradePrefix returns the prefix for all trades of a ticker.
func tradePrefix(ticker token.Ticker) []byte {
	return append([]byte(prefixTrade), ticker[:]...)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan, or nil
// when the prefix is all 0xFF and needs none.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		bound[i]++
		if bound[i] != 0 {
			return bound[:i+1]
		}
	}
	return nil
}
