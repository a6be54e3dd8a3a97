// Package bigint implements the arbitrary-precision signed integer required
// by the value model's numeric promotion rule: an Int32 arithmetic operation
// that would overflow is promoted to a Int here, which preserves the
// mathematically correct value.
package bigint

import (
	"math/big"
)

// Int is a refcounted handle around an arbitrary-precision signed integer.
// The representation is immutable once constructed: every operation returns
// a new *Int rather than mutating the receiver, matching the value model's
// "Constants are never mutated after allocation" discipline for heap values.
type Int struct {
	v    *big.Int
	refs int
}

// New wraps a big.Int. The caller transfers ownership of v.
func New(v *big.Int) *Int {
	return &Int{v: v, refs: 0}
}

// FromInt64 constructs a Int from a 64-bit signed integer.
func FromInt64(n int64) *Int {
	return &Int{v: big.NewInt(n), refs: 0}
}

// FromInt32 constructs a Int from a 32-bit signed integer.
func FromInt32(n int32) *Int {
	return FromInt64(int64(n))
}

// FromString parses a decimal or 0x-prefixed hex string. ok is false on a
// malformed literal.
func FromString(s string) (result *Int, ok bool) {
	v := new(big.Int)
	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}
	_, success := v.SetString(s, base)
	if !success {
		return nil, false
	}
	return &Int{v: v, refs: 0}, true
}

// Retain increments the reference count.
func (i *Int) Retain() {
	if i != nil {
		i.refs++
	}
}

// Release decrements the reference count. Int has no owned children, so
// releasing to zero simply drops the handle for the garbage collector.
func (i *Int) Release() {
	if i != nil {
		i.refs--
	}
}

// RefCount reports the current reference count (used by leak-detection
// tests).
func (i *Int) RefCount() int { return i.refs }

// ToInt32 returns the value and true when it fits in an int32; otherwise it
// returns 0 and false.
func (i *Int) ToInt32() (int32, bool) {
	if !i.v.IsInt64() {
		return 0, false
	}
	n := i.v.Int64()
	if n < int64(minInt32) || n > int64(maxInt32) {
		return 0, false
	}
	return int32(n), true
}

// ToInt64 returns the value and true when it fits in an int64; otherwise it
// returns 0 and false.
func (i *Int) ToInt64() (int64, bool) {
	if !i.v.IsInt64() {
		return 0, false
	}
	return i.v.Int64(), true
}

const (
	minInt32 = -(1 << 31)
	maxInt32 = (1 << 31) - 1
)

func (i *Int) Add(o *Int) *Int { return &Int{v: new(big.Int).Add(i.v, o.v), refs: 0} }
func (i *Int) Sub(o *Int) *Int { return &Int{v: new(big.Int).Sub(i.v, o.v), refs: 0} }
func (i *Int) Mul(o *Int) *Int { return &Int{v: new(big.Int).Mul(i.v, o.v), refs: 0} }

// Div performs truncating integer division. The caller must check IsZero on
// o first; dividing by zero panics like math/big does.
func (i *Int) Div(o *Int) *Int { return &Int{v: new(big.Int).Quo(i.v, o.v), refs: 0} }

// Mod performs truncating integer remainder (sign follows the dividend).
func (i *Int) Mod(o *Int) *Int { return &Int{v: new(big.Int).Rem(i.v, o.v), refs: 0} }

func (i *Int) Cmp(o *Int) int { return i.v.Cmp(o.v) }
func (i *Int) IsZero() bool   { return i.v.Sign() == 0 }
func (i *Int) Sign() int      { return i.v.Sign() }
func (i *Int) String() string { return i.v.String() }
func (i *Int) Float64() float64 {
	f, _ := new(big.Float).SetInt(i.v).Float64()
	return f
}

// AddInt32 performs a+b and reports whether the mathematically correct
// result fits in an int32; out is always the low 32 bits of the true sum.
func AddInt32(a, b int32) (out int32, fits bool) {
	sum := int64(a) + int64(b)
	return int32(sum), sum >= int64(minInt32) && sum <= int64(maxInt32)
}

// SubInt32 performs a-b with the same overflow contract as AddInt32.
func SubInt32(a, b int32) (out int32, fits bool) {
	diff := int64(a) - int64(b)
	return int32(diff), diff >= int64(minInt32) && diff <= int64(maxInt32)
}

// MulInt32 performs a*b with the same overflow contract as AddInt32.
func MulInt32(a, b int32) (out int32, fits bool) {
	prod := int64(a) * int64(b)
	return int32(prod), prod >= int64(minInt32) && prod <= int64(maxInt32)
}
