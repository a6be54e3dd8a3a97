package builtins

import (
	"testing"

	stdlibErrors "slate/internal/errors"
	"slate/internal/value"
	"slate/internal/vm"
)

func TestNativeType(t *testing.T) {
	m := vm.New("<test>")
	cases := []struct {
		v    value.Value
		want string
	}{
		{value.Int32(1), "int"},
		{value.Float64(1.5), "float"},
		{value.Bool(true), "boolean"},
		{value.NewString("hi"), "string"},
		{value.Null(), "null"},
		{value.Undefined(), "undefined"},
	}
	for _, c := range cases {
		got, err := nativeType(m, []value.Value{c.v})
		if err != nil {
			t.Fatalf("type(%v): unexpected error %v", c.v, err)
		}
		if value.HeapOf(got).(*value.StringObj).Value != c.want {
			t.Errorf("type(%v) = %q, want %q", c.v, value.HeapOf(got).(*value.StringObj).Value, c.want)
		}
	}
}

func TestNativeLen(t *testing.T) {
	m := vm.New("<test>")

	arr := value.NewArray([]value.Value{value.Int32(1), value.Int32(2), value.Int32(3)})
	got, err := nativeLen(m, []value.Value{arr})
	if err != nil || got.AsInt32() != 3 {
		t.Fatalf("len(array) = %v, %v, want 3, nil", got, err)
	}

	s := value.NewString("hello")
	got, err = nativeLen(m, []value.Value{s})
	if err != nil || got.AsInt32() != 5 {
		t.Fatalf("len(string) = %v, %v, want 5, nil", got, err)
	}
}

func TestNativeLenRejectsNonCollection(t *testing.T) {
	m := vm.New("<test>")
	_, err := nativeLen(m, []value.Value{value.Int32(1)})
	if err == nil {
		t.Fatal("len(1) should have errored")
	}
	le, ok := err.(*stdlibErrors.LangError)
	if !ok || le.Kind != stdlibErrors.Type {
		t.Fatalf("expected a Type LangError, got %#v", err)
	}
}

func TestNativePrintJoinsWithSpaces(t *testing.T) {
	m := vm.New("<test>")
	var out string
	m.Stdout = func(s string) { out += s }
	_, err := nativePrintln(m, []value.Value{value.Int32(1), value.NewString("x")})
	if err != nil {
		t.Fatalf("println: unexpected error %v", err)
	}
	if out != "1 x\n" {
		t.Errorf("println output = %q, want %q", out, "1 x\n")
	}
}
