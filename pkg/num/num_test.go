package num

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAddSubMul(t *testing.T) {
	a := NewUint(30)
	b := NewUint(12)

	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if sum.Uint64() != 42 {
		t.Errorf("sum = %s, want 42", sum)
	}

	diff, err := Sub(a, b)
	if err != nil {
		t.Fatalf("sub failed: %v", err)
	}
	if diff.Uint64() != 18 {
		t.Errorf("diff = %s, want 18", diff)
	}

	prod, err := Mul(a, b)
	if err != nil {
		t.Fatalf("mul failed: %v", err)
	}
	if prod.Uint64() != 360 {
		t.Errorf("prod = %s, want 360", prod)
	}

	// operands must be untouched
	if a.Uint64() != 30 || b.Uint64() != 12 {
		t.Errorf("operands mutated: a=%s b=%s", a, b)
	}
}

func TestSubUnderflow(t *testing.T) {
	if _, err := Sub(NewUint(5), NewUint(6)); !errors.Is(err, ErrUnderflow) {
		t.Errorf("expected underflow, got %v", err)
	}
}

func TestMulOverflow(t *testing.T) {
	max := MustUintFromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if _, err := Mul(max, NewUint(2)); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if _, err := Add(max, NewUint(1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}

func TestFromString(t *testing.T) {
	n, err := UintFromString("1000000000000000000")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if n.String() != "1000000000000000000" {
		t.Errorf("round trip = %s", n)
	}

	for _, bad := range []string{"", "-1", "1.5", "0x10", "abc"} {
		if _, err := UintFromString(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%q: expected ErrInvalidAmount, got %v", bad, err)
		}
	}
}

func TestMinClones(t *testing.T) {
	a := NewUint(3)
	b := NewUint(7)
	m := Min(a, b)
	if m.Uint64() != 3 {
		t.Fatalf("min = %s, want 3", m)
	}
	if m == a {
		t.Error("min must return a clone, not the operand")
	}
}

func TestCompare(t *testing.T) {
	a := NewUint(5)
	b := NewUint(9)
	if !a.LT(b) || !a.LTE(b) || a.GT(b) || a.GTE(b) {
		t.Error("5 vs 9 comparisons wrong")
	}
	c := NewUint(5)
	if !a.EQ(c) || !a.LTE(c) || !a.GTE(c) {
		t.Error("5 vs 5 comparisons wrong")
	}
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(c) != 0 {
		t.Error("cmp wrong")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	n := MustUintFromString("340282366920938463463374607431768211456") // 2^128
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"340282366920938463463374607431768211456"` {
		t.Errorf("marshal = %s", data)
	}

	var back Uint
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !back.EQ(n) {
		t.Errorf("round trip = %s, want %s", back.String(), n)
	}
}

func TestZeroValue(t *testing.T) {
	var n Uint
	if !n.IsZero() {
		t.Error("zero value must equal 0")
	}
	if UintZero().String() != "0" {
		t.Error("UintZero must print 0")
	}
}
