package value

import "testing"

func TestRetainReleaseTracksRefCount(t *testing.T) {
	v := NewString("hi")
	if RefCount(v) != 1 {
		t.Fatalf("RefCount after construction = %d, want 1", RefCount(v))
	}
	Retain(v)
	if RefCount(v) != 2 {
		t.Fatalf("RefCount after Retain = %d, want 2", RefCount(v))
	}
	Release(v)
	if RefCount(v) != 1 {
		t.Fatalf("RefCount after Release = %d, want 1", RefCount(v))
	}
}

func TestRetainReleaseNoOpOnInlineValues(t *testing.T) {
	v := Int32(42)
	if RefCount(v) != -1 {
		t.Fatalf("RefCount of an inline Int32 = %d, want -1", RefCount(v))
	}
	Retain(v)
	Release(v)
	if v.AsInt32() != 42 {
		t.Errorf("inline value was mutated by Retain/Release: AsInt32() = %d", v.AsInt32())
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"true", Bool(true), true},
		{"false", Bool(false), false},
		{"null", Null(), false},
		{"undefined", Undefined(), false},
		{"zero int", Int32(0), false},
		{"nonzero int", Int32(1), true},
		{"empty string", NewString(""), false},
		{"nonempty string", NewString("x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truthy(tt.v); got != tt.want {
				t.Errorf("Truthy(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestEquals(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal ints", Int32(3), Int32(3), true},
		{"different ints", Int32(3), Int32(4), false},
		{"int equals float", Int32(3), Float64(3), true},
		{"equal strings", NewString("a"), NewString("a"), true},
		{"different strings", NewString("a"), NewString("b"), false},
		{"null equals null", Null(), Null(), true},
		{"null does not equal undefined", Null(), Undefined(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equals(tt.a, tt.b); got != tt.want {
				t.Errorf("Equals(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestToDisplayString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"int", Int32(7), "7"},
		{"float without fraction", Float64(3), "3"},
		{"float with fraction", Float64(3.5), "3.5"},
		{"true", Bool(true), "true"},
		{"null", Null(), "null"},
		{"undefined", Undefined(), "undefined"},
		{"string", NewString("hi"), "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToDisplayString(tt.v); got != tt.want {
				t.Errorf("ToDisplayString(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestArrayRetainReleaseCascadesToElements(t *testing.T) {
	elem := NewString("child")
	arr := NewArray([]Value{elem})
	if RefCount(elem) != 2 {
		t.Fatalf("NewArray should retain its elements: RefCount(elem) = %d, want 2", RefCount(elem))
	}
	Release(arr)
	if RefCount(elem) != 1 {
		t.Errorf("releasing the array should release its elements: RefCount(elem) = %d, want 1", RefCount(elem))
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"int", Int32(1), "int"},
		{"string", NewString("x"), "string"},
		{"bool", Bool(true), "boolean"},
		{"null", Null(), "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeName(tt.v); got != tt.want {
				t.Errorf("TypeName(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}
