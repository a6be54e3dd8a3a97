package vm

import (
	"math"

	"slate/internal/bigint"
	"slate/internal/value"
)

// isNumericKind reports whether v participates in the promotion ladder.
func isNumericKind(v value.Value) bool {
	switch v.Kind {
	case value.KindInt32, value.KindBigInt, value.KindFloat32, value.KindFloat64:
		return true
	}
	return false
}

// numKind ranks the numeric-promotion ladder (§4.6.2) from lowest to
// highest: Int32 (with overflow escalating to BigInt), BigInt, Float32,
// Float64. A mixed operation is computed at the higher operand's rung. A
// BigInt result is never contracted back to Int32 even when it would fit.
type numKind int

const (
	numInt32 numKind = iota
	numBigInt
	numFloat32
	numFloat64
)

func rankOf(v value.Value) numKind {
	switch v.Kind {
	case value.KindInt32:
		return numInt32
	case value.KindFloat32:
		return numFloat32
	case value.KindFloat64:
		return numFloat64
	case value.KindBigInt:
		return numBigInt
	}
	return numInt32
}

func higherRank(a, b numKind) numKind {
	if a > b {
		return a
	}
	return b
}

func toBigInt(v value.Value) *bigint.Int {
	switch v.Kind {
	case value.KindBigInt:
		return v.AsBigInt()
	case value.KindInt32:
		return bigint.FromInt32(v.AsInt32())
	}
	return bigint.FromInt64(int64(toFloat64(v)))
}

func toFloat64(v value.Value) float64 {
	switch v.Kind {
	case value.KindInt32:
		return float64(v.AsInt32())
	case value.KindFloat32:
		return float64(v.AsFloat32())
	case value.KindFloat64:
		return v.AsFloat64()
	case value.KindBigInt:
		return v.AsBigInt().Float64()
	}
	return 0
}

// arith applies one of the four arithmetic operators honoring promotion.
func arith(op byte, a, b value.Value) (value.Value, error) {
	rank := higherRank(rankOf(a), rankOf(b))
	switch rank {
	case numFloat64, numFloat32:
		fa, fb := toFloat64(a), toFloat64(b)
		var r float64
		switch op {
		case '+':
			r = fa + fb
		case '-':
			r = fa - fb
		case '*':
			r = fa * fb
		case '/':
			r = fa / fb
		case '%':
			r = mathMod(fa, fb)
		}
		if rank == numFloat32 {
			return value.Float32(float32(r)), nil
		}
		return value.Float64(r), nil
	case numBigInt:
		ba, bb := toBigInt(a), toBigInt(b)
		switch op {
		case '+':
			return value.BigInt(ba.Add(bb)), nil
		case '-':
			return value.BigInt(ba.Sub(bb)), nil
		case '*':
			return value.BigInt(ba.Mul(bb)), nil
		case '/':
			return value.Float64(ba.Float64() / bb.Float64()), nil
		case '%':
			if bb.IsZero() {
				return value.Value{}, errDivisionByZero
			}
			return value.BigInt(ba.Mod(bb)), nil
		}
	default: // both Int32
		ia, ib := a.AsInt32(), b.AsInt32()
		switch op {
		case '+':
			if r, ok := bigint.AddInt32(ia, ib); ok {
				return value.Int32(r), nil
			}
			return value.BigInt(bigint.FromInt32(ia).Add(bigint.FromInt32(ib))), nil
		case '-':
			if r, ok := bigint.SubInt32(ia, ib); ok {
				return value.Int32(r), nil
			}
			return value.BigInt(bigint.FromInt32(ia).Sub(bigint.FromInt32(ib))), nil
		case '*':
			if r, ok := bigint.MulInt32(ia, ib); ok {
				return value.Int32(r), nil
			}
			return value.BigInt(bigint.FromInt32(ia).Mul(bigint.FromInt32(ib))), nil
		case '/':
			if ib == 0 {
				return value.Value{}, errDivisionByZero
			}
			return value.Float64(float64(ia) / float64(ib)), nil
		case '%':
			if ib == 0 {
				return value.Value{}, errDivisionByZero
			}
			return value.Int32(ia % ib), nil
		}
	}
	return value.Value{}, errUnsupportedOperand
}

func mathMod(a, b float64) float64 {
	m := a - b*float64(int64(a/b))
	return m
}

// floorDiv implements `//`, truncating toward negative infinity for
// integer operands and producing a BigInt only on Int32 overflow.
func floorDiv(a, b value.Value) (value.Value, error) {
	rank := higherRank(rankOf(a), rankOf(b))
	if rank == numFloat64 || rank == numFloat32 {
		fa, fb := toFloat64(a), toFloat64(b)
		r := floorFloat(fa / fb)
		if rank == numFloat32 {
			return value.Float32(float32(r)), nil
		}
		return value.Float64(r), nil
	}
	if rank == numBigInt {
		ba, bb := toBigInt(a), toBigInt(b)
		if bb.IsZero() {
			return value.Value{}, errDivisionByZero
		}
		q := ba.Div(bb)
		if !ba.Mod(bb).IsZero() && (ba.Sign() < 0) != (bb.Sign() < 0) {
			q = q.Sub(bigint.FromInt32(1))
		}
		return value.BigInt(q), nil
	}
	ia, ib := a.AsInt32(), b.AsInt32()
	if ib == 0 {
		return value.Value{}, errDivisionByZero
	}
	if ia == math.MinInt32 && ib == -1 {
		return value.BigInt(bigint.FromInt32(ia).Mul(bigint.FromInt32(-1))), nil
	}
	q := ia / ib
	if (ia%ib != 0) && ((ia < 0) != (ib < 0)) {
		q--
	}
	return value.Int32(q), nil
}

func floorFloat(f float64) float64 {
	i := int64(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return float64(i)
}

// power implements `**`. Unlike the other arithmetic ops it never stays on
// the integer/BigInt rungs of the promotion ladder: §4.6.2 rule 6 makes it
// always produce a floating result, so only the Float32-vs-Float64 split
// survives from the usual rank ladder.
func power(a, b value.Value) (value.Value, error) {
	rank := higherRank(rankOf(a), rankOf(b))
	fa, fb := toFloat64(a), toFloat64(b)
	r := math.Pow(fa, fb)
	if rank == numFloat32 {
		return value.Float32(float32(r)), nil
	}
	return value.Float64(r), nil
}

// compareNumeric returns -1, 0, 1 for ordered comparison of two numeric
// values under the same promotion ladder arith uses.
func compareNumeric(a, b value.Value) int {
	rank := higherRank(rankOf(a), rankOf(b))
	if rank == numBigInt {
		return toBigInt(a).Cmp(toBigInt(b))
	}
	fa, fb := toFloat64(a), toFloat64(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return 0
	}
}
