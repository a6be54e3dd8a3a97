// Package value implements the tagged runtime value representation shared
// by the compiler's constant pool and the VM's operand stack: a small
// struct carrying a Kind tag plus either an inline payload (booleans,
// Int32, floats) or a handle to a refcounted heap object (strings, arrays,
// objects, ranges, iterators, functions, closures, bound methods, classes).
package value

import (
	"fmt"
	"math"

	"slate/internal/bigint"
	"slate/internal/errors"
)

// Kind is the tag of a Value's variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindUndefined
	KindBool
	KindInt32
	KindBigInt
	KindFloat32
	KindFloat64
	KindString
	KindArray
	KindObject
	KindRange
	KindIterator
	KindFunction
	KindClosure
	KindNative
	KindBoundMethod
	KindClass
	KindInstance
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "boolean"
	case KindInt32:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindRange:
		return "range"
	case KindIterator:
		return "iterator"
	case KindFunction:
		return "function"
	case KindClosure:
		return "function"
	case KindNative:
		return "native"
	case KindBoundMethod:
		return "bound_method"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	}
	return "unknown"
}

// HeapObject is implemented by every refcounted heap variant, including the
// ones defined outside this package (bytecode.FunctionObj, and the closure/
// native/bound-method/class objects the VM layers on top). Keeping this
// interface exported, rather than tying Value to concrete types for every
// kind, is what lets package bytecode and package vm each hold a Value
// without importing each other.
type HeapObject interface {
	Retain()
	Release()
	RefCount() int
}

// Displayer is implemented by heap objects defined outside this package
// that need custom ToDisplayString output (functions, closures, natives,
// bound methods, classes).
type Displayer interface {
	DisplayString() string
}

// Value is the uniform tagged runtime value. It is small and passed by
// value; heap-bearing kinds store a pointer in heap and own one reference
// to it.
type Value struct {
	Kind Kind

	b   bool
	i32 int32
	f32 float32
	f64 float64

	heap HeapObject

	// Loc is an optional, non-owning debug location. It does not
	// participate in equality (I1).
	Loc *errors.SourceLocation
}

// NewHeapValue wraps an externally-defined heap object (see HeapObject) as
// a Value of the given kind, retaining one reference on its behalf.
func NewHeapValue(kind Kind, obj HeapObject) Value {
	obj.Retain()
	return Value{Kind: kind, heap: obj}
}

// HeapOf returns the underlying heap object so that package vm can recover
// its own concrete types (e.g. *ClosureObj) from a Value.
func HeapOf(v Value) HeapObject { return v.heap }

// --- Constructors ---

func Null() Value      { return Value{Kind: KindNull} }
func Undefined() Value { return Value{Kind: KindUndefined} }
func Bool(b bool) Value {
	return Value{Kind: KindBool, b: b}
}
func Int32(n int32) Value     { return Value{Kind: KindInt32, i32: n} }
func Float32(f float32) Value { return Value{Kind: KindFloat32, f32: f} }
func Float64(f float64) Value { return Value{Kind: KindFloat64, f64: f} }

func BigInt(i *bigint.Int) Value {
	return NewHeapValue(KindBigInt, &bigIntHandle{i: i})
}

// bigIntHandle adapts *bigint.Int (which already tracks its own refcount)
// to the HeapObject interface used uniformly by Retain/Release below.
type bigIntHandle struct{ i *bigint.Int }

func (h *bigIntHandle) Retain()       { h.i.Retain() }
func (h *bigIntHandle) Release()      { h.i.Release() }
func (h *bigIntHandle) RefCount() int { return h.i.RefCount() }

func (v Value) AsBool() bool       { return v.b }
func (v Value) AsInt32() int32     { return v.i32 }
func (v Value) AsFloat32() float32 { return v.f32 }
func (v Value) AsFloat64() float64 { return v.f64 }

// AsBigInt returns the underlying arbitrary-precision integer. Only valid
// when Kind == KindBigInt.
func (v Value) AsBigInt() *bigint.Int { return v.heap.(*bigIntHandle).i }

// --- Lifecycle (§4.1) ---

// Retain increments the refcount of heap-bearing variants; no-op otherwise.
func Retain(v Value) {
	if v.heap != nil {
		v.heap.Retain()
	}
}

// Release decrements the refcount of heap-bearing variants; at zero it
// recursively releases contained values.
func Release(v Value) {
	if v.heap != nil {
		v.heap.Release()
	}
}

// RefCount reports the current reference count of a heap-bearing value, or
// -1 for inline variants. Used by leak-detection tests.
func RefCount(v Value) int {
	if v.heap == nil {
		return -1
	}
	return v.heap.RefCount()
}

// Truthy implements the falsy set: false, null, undefined, numeric zero,
// empty string are falsy; everything else is truthy.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindNull, KindUndefined:
		return false
	case KindBool:
		return v.b
	case KindInt32:
		return v.i32 != 0
	case KindFloat32:
		return v.f32 != 0
	case KindFloat64:
		return v.f64 != 0
	case KindBigInt:
		return !v.AsBigInt().IsZero()
	case KindString:
		return v.heap.(*StringObj).Value != ""
	default:
		return true
	}
}

// TypeName returns the domain tag name used by the type() builtin.
func TypeName(v Value) string {
	return v.Kind.String()
}

// isNumeric reports whether v participates in cross-tag numeric equality
// and arithmetic promotion.
func isNumeric(v Value) bool {
	switch v.Kind {
	case KindInt32, KindBigInt, KindFloat32, KindFloat64:
		return true
	}
	return false
}

func numericFloat(v Value) float64 {
	switch v.Kind {
	case KindInt32:
		return float64(v.i32)
	case KindFloat32:
		return float64(v.f32)
	case KindFloat64:
		return v.f64
	case KindBigInt:
		return v.AsBigInt().Float64()
	}
	return math.NaN()
}

// Equals implements I1: numeric tags compare by mathematical value, strings
// by content, other reference types by identity.
func Equals(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		if a.Kind == KindBigInt || b.Kind == KindBigInt {
			ai, aok := bigIntOf(a)
			bi, bok := bigIntOf(b)
			if aok && bok {
				return ai.Cmp(bi) == 0
			}
		}
		return numericFloat(a) == numericFloat(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull, KindUndefined:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.heap.(*StringObj).Value == b.heap.(*StringObj).Value
	default:
		return a.heap == b.heap
	}
}

func bigIntOf(v Value) (*bigint.Int, bool) {
	switch v.Kind {
	case KindBigInt:
		return v.AsBigInt(), true
	case KindInt32:
		return bigint.FromInt32(v.i32), true
	}
	return nil, false
}

// ToDisplayString stringifies v for "+" concatenation and template
// interpolation: numbers by shortest round-trip, booleans as true/false,
// null/undefined literally, arrays/objects recursively.
func ToDisplayString(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt32:
		return fmt.Sprintf("%d", v.i32)
	case KindBigInt:
		return v.AsBigInt().String()
	case KindFloat32:
		return formatFloat(float64(v.f32), 32)
	case KindFloat64:
		return formatFloat(v.f64, 64)
	case KindString:
		return v.heap.(*StringObj).Value
	case KindArray:
		return displayArray(v.heap.(*ArrayObj))
	case KindObject:
		return displayObject(v.heap.(*ObjectObj))
	case KindRange:
		r := v.heap.(*RangeObj)
		op := ".."
		if r.Exclusive {
			op = "..<"
		}
		return fmt.Sprintf("%s%s%s", ToDisplayString(r.Start), op, ToDisplayString(r.End))
	case KindIterator:
		return "<iterator>"
	}
	if d, ok := v.heap.(Displayer); ok {
		return d.DisplayString()
	}
	return "?"
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return fmt.Sprintf("%v", roundTrip(f, bits))
}

func roundTrip(f float64, bits int) float64 {
	if bits == 32 {
		return float64(float32(f))
	}
	return f
}

func displayArray(a *ArrayObj) string {
	s := "["
	for i, e := range a.Elements {
		if i > 0 {
			s += ", "
		}
		if e.Kind == KindString {
			s += fmt.Sprintf("%q", e.heap.(*StringObj).Value)
		} else {
			s += ToDisplayString(e)
		}
	}
	return s + "]"
}

func displayObject(o *ObjectObj) string {
	s := "{"
	for i, k := range o.Keys {
		if i > 0 {
			s += ", "
		}
		v := o.Items[k]
		if v.Kind == KindString {
			s += fmt.Sprintf("%s: %q", k, v.heap.(*StringObj).Value)
		} else {
			s += fmt.Sprintf("%s: %s", k, ToDisplayString(v))
		}
	}
	return s + "}"
}
