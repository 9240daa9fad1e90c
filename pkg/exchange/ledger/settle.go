package ledger

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/num"
)

// FillTransfer describes the value movement of one fill: Quantity of Ticker
// from seller to buyer, Quantity×Price of Quote from buyer to seller.
type FillTransfer struct {
	Buyer  common.Address
	Seller common.Address
	Ticker token.Ticker
	Quote  token.Ticker

	Quantity *num.Uint
	Price    *num.Uint // maker price, quote per unit

	// BuyerReservedPrice is the unit price at which the buyer's quote was
	// locked. When the fill price improves on it, the difference is returned
	// to the buyer's free balance in the same operation. Nil means the buyer
	// is a market taker paying straight from free balance.
	BuyerReservedPrice *num.Uint

	// SellerFromFree is set for market sell takers, whose asset was never
	// locked. Resting sellers pay from their reservation.
	SellerFromFree bool
}

// SettleFill applies one fill atomically.
func (l *Ledger) SettleFill(f FillTransfer) error {
	return l.SettleFills([]FillTransfer{f})
}

// SettleFills applies a batch of fills as one atomic operation. The batch is
// played out on staged copies of the affected balances, later fills seeing
// the effect of earlier ones, and only a fully valid batch commits. A failure
// anywhere leaves the ledger untouched, so a match loop never half-applies.
func (l *Ledger) SettleFills(fills []FillTransfer) error {
	if len(fills) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[balanceKey]*Balance)
	stage := func(addr common.Address, ticker token.Ticker) *Balance {
		key := balanceKey{addr, ticker}
		if b, ok := staged[key]; ok {
			return b
		}
		b := l.get(addr, ticker).Clone()
		staged[key] = b
		return b
	}

	for _, f := range fills {
		if err := applyFill(f, stage); err != nil {
			return err
		}
	}

	for key, b := range staged {
		l.balances[key] = b
		l.persist(key.addr, key.ticker, b)
	}
	return nil
}

// applyFill moves one fill's value on the staged balances. Staging keys by
// (participant, ticker), so a self-trade (buyer == seller) works on the one
// shared record and nets out correctly.
func applyFill(f FillTransfer, stage func(common.Address, token.Ticker) *Balance) error {
	cost, err := num.Mul(f.Quantity, f.Price)
	if err != nil {
		return err
	}
	var reserved, refund *num.Uint
	if f.BuyerReservedPrice != nil {
		if reserved, err = num.Mul(f.Quantity, f.BuyerReservedPrice); err != nil {
			return err
		}
		// the reservation was made at a price no better than the fill price
		if refund, err = num.Sub(reserved, cost); err != nil {
			return ErrLowLockedFunds
		}
	}

	buyerQuote := stage(f.Buyer, f.Quote)
	buyerAsset := stage(f.Buyer, f.Ticker)
	sellerQuote := stage(f.Seller, f.Quote)
	sellerAsset := stage(f.Seller, f.Ticker)

	// debits
	if reserved != nil {
		if buyerQuote.Locked.LT(reserved) {
			return ErrLowLockedFunds
		}
		buyerQuote.Locked, _ = num.Sub(buyerQuote.Locked, reserved)
		free, err := num.Add(buyerQuote.Free, refund)
		if err != nil {
			return err
		}
		buyerQuote.Free = free
	} else {
		if buyerQuote.Free.LT(cost) {
			return ErrLowBalance
		}
		buyerQuote.Free, _ = num.Sub(buyerQuote.Free, cost)
	}
	if f.SellerFromFree {
		if sellerAsset.Free.LT(f.Quantity) {
			return ErrLowBalance
		}
		sellerAsset.Free, _ = num.Sub(sellerAsset.Free, f.Quantity)
	} else {
		if sellerAsset.Locked.LT(f.Quantity) {
			return ErrLowLockedFunds
		}
		sellerAsset.Locked, _ = num.Sub(sellerAsset.Locked, f.Quantity)
	}

	// credits
	free, err := num.Add(buyerAsset.Free, f.Quantity)
	if err != nil {
		return err
	}
	buyerAsset.Free = free
	free, err = num.Add(sellerQuote.Free, cost)
	if err != nil {
		return err
	}
	sellerQuote.Free = free
	return nil
}
