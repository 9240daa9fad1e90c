package token

import (
	"bytes"
	"fmt"
)

// TickerLen is the fixed width of a ticker symbol. Symbols shorter than the
// width are NUL-padded, which keeps Ticker a comparable value type usable as
// a map key.
const TickerLen = 32

// Ticker is a fixed-width asset symbol (e.g. "ZRX", "DAI").
type Ticker [TickerLen]byte

// TickerFromString builds a Ticker from a short symbol string.
func TickerFromString(s string) (Ticker, error) {
	var t Ticker
	if len(s) == 0 {
		return t, fmt.Errorf("empty ticker symbol")
	}
	if len(s) > TickerLen {
		return t, fmt.Errorf("ticker symbol %q longer than %d bytes", s, TickerLen)
	}
	copy(t[:], s)
	return t, nil
}

// MustTicker is TickerFromString for symbols known to be valid.
func MustTicker(s string) Ticker {
	t, err := TickerFromString(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsZero reports whether the ticker is the empty symbol.
func (t Ticker) IsZero() bool {
	return t == Ticker{}
}

func (t Ticker) String() string {
	if i := bytes.IndexByte(t[:], 0); i >= 0 {
		return string(t[:i])
	}
	return string(t[:])
}

func (t Ticker) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Ticker) UnmarshalText(data []byte) error {
	parsed, err := TickerFromString(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
