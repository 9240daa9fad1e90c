// Package num provides the unsigned fixed-point amount type used for all
// balances, quantities and prices. Amounts are 256-bit unsigned integers in
// the smallest unit of the asset (wei-style); arithmetic that would wrap is a
// hard error, never a silent wraparound.
package num

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow  = errors.New("amount overflow")
	ErrUnderflow = errors.New("amount underflow")

	ErrInvalidAmount = errors.New("invalid amount string")
)

// Uint is an unsigned 256-bit amount. The zero value is usable and equals 0.
type Uint struct {
	u uint256.Int
}

// NewUint returns a Uint holding v.
func NewUint(v uint64) *Uint {
	n := &Uint{}
	n.u.SetUint64(v)
	return n
}

// UintZero returns a new zero amount.
func UintZero() *Uint {
	return &Uint{}
}

// UintFromString parses a base-10 amount string.
func UintFromString(s string) (*Uint, error) {
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return &Uint{u: *u}, nil
}

// MustUintFromString is UintFromString for literals known to be valid.
func MustUintFromString(s string) *Uint {
	u, err := UintFromString(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Add returns x + y, failing on overflow.
func Add(x, y *Uint) (*Uint, error) {
	n := &Uint{}
	if _, over := n.u.AddOverflow(&x.u, &y.u); over {
		return nil, ErrOverflow
	}
	return n, nil
}

// Sub returns x - y, failing if y > x.
func Sub(x, y *Uint) (*Uint, error) {
	n := &Uint{}
	if _, under := n.u.SubOverflow(&x.u, &y.u); under {
		return nil, ErrUnderflow
	}
	return n, nil
}

// Mul returns x * y, failing on overflow.
func Mul(x, y *Uint) (*Uint, error) {
	n := &Uint{}
	if _, over := n.u.MulOverflow(&x.u, &y.u); over {
		return nil, ErrOverflow
	}
	return n, nil
}

// Min returns a clone of the smaller of x and y.
func Min(x, y *Uint) *Uint {
	if x.u.Lt(&y.u) {
		return x.Clone()
	}
	return y.Clone()
}

func (n *Uint) Clone() *Uint {
	c := &Uint{}
	c.u.Set(&n.u)
	return c
}

func (n *Uint) IsZero() bool { return n.u.IsZero() }

// Cmp returns -1, 0 or 1 when n is less than, equal to or greater than o.
func (n *Uint) Cmp(o *Uint) int { return n.u.Cmp(&o.u) }

func (n *Uint) LT(o *Uint) bool  { return n.u.Lt(&o.u) }
func (n *Uint) LTE(o *Uint) bool { return !n.u.Gt(&o.u) }
func (n *Uint) GT(o *Uint) bool  { return n.u.Gt(&o.u) }
func (n *Uint) GTE(o *Uint) bool { return !n.u.Lt(&o.u) }

func (n *Uint) EQ(o *Uint) bool { return n.u.Eq(&o.u) }

func (n *Uint) String() string {
	return n.u.Dec()
}

// Uint64 returns the amount as uint64; only meaningful for small test values.
func (n *Uint) Uint64() uint64 { return n.u.Uint64() }

// MarshalJSON encodes the amount as a decimal string. 256-bit amounts do not
// fit JSON numbers.
func (n *Uint) MarshalJSON() ([]byte, error) {
	return []byte(`"` + n.u.Dec() + `"`), nil
}

func (n *Uint) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	n.u.Set(u)
	return nil
}
