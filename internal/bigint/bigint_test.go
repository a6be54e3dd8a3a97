package bigint

import "testing"

func TestFromStringRoundTrips(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"42", "42"},
		{"-17", "-17"},
		{"123456789012345678901234567890", "123456789012345678901234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, ok := FromString(tt.in)
			if !ok {
				t.Fatalf("FromString(%q) failed", tt.in)
			}
			if got := n.String(); got != tt.want {
				t.Errorf("FromString(%q).String() = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromStringRejectsGarbage(t *testing.T) {
	if _, ok := FromString("not a number"); ok {
		t.Error("FromString should reject non-numeric text")
	}
}

func TestArithmetic(t *testing.T) {
	a := FromInt32(10)
	b := FromInt32(3)
	tests := []struct {
		name string
		got  *Int
		want string
	}{
		{"add", a.Add(b), "13"},
		{"sub", a.Sub(b), "7"},
		{"mul", a.Mul(b), "30"},
		{"div", a.Div(b), "3"},
		{"mod", a.Mod(b), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got.String(); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestToInt32OverflowsToFalse(t *testing.T) {
	huge, _ := FromString("99999999999999999999999999999")
	if _, ok := huge.ToInt32(); ok {
		t.Error("ToInt32 should report overflow for a value far beyond int32 range")
	}
	small := FromInt32(5)
	v, ok := small.ToInt32()
	if !ok || v != 5 {
		t.Errorf("ToInt32() = (%d, %v), want (5, true)", v, ok)
	}
}

func TestAddInt32DetectsOverflow(t *testing.T) {
	if _, fits := AddInt32(1<<30, 1<<30); fits {
		t.Error("AddInt32 should report overflow when the sum exceeds int32 range")
	}
	if r, fits := AddInt32(2, 3); !fits || r != 5 {
		t.Errorf("AddInt32(2, 3) = (%d, %v), want (5, true)", r, fits)
	}
}

func TestCmpAndSign(t *testing.T) {
	a := FromInt32(5)
	b := FromInt32(5)
	c := FromInt32(-3)
	if a.Cmp(b) != 0 {
		t.Error("equal values should compare as 0")
	}
	if a.Cmp(c) <= 0 {
		t.Error("5 should compare greater than -3")
	}
	if c.Sign() >= 0 {
		t.Error("-3 should have a negative sign")
	}
	if !FromInt32(0).IsZero() {
		t.Error("IsZero should be true for 0")
	}
}
