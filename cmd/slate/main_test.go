package main

import (
	"testing"

	"slate/internal/value"
	"slate/internal/vm"
)

func TestDefineArgsExposesArgv(t *testing.T) {
	m := vm.New("<test>")
	defineArgs(m, []string{"a", "b"})
	arr, ok := m.Globals()["argv"]
	if !ok {
		t.Fatal("defineArgs did not define a global named argv")
	}
	elems := value.HeapOf(arr).(*value.ArrayObj).Elements
	if len(elems) != 2 {
		t.Fatalf("argv has %d elements, want 2", len(elems))
	}
	if value.HeapOf(elems[0]).(*value.StringObj).Value != "a" {
		t.Errorf("argv[0] = %v, want \"a\"", elems[0])
	}
}

func TestRunSourceReturnsNonZeroOnParseError(t *testing.T) {
	if code := runSource("var = =", "<test>", nil); code != 1 {
		t.Errorf("runSource with invalid syntax returned %d, want 1", code)
	}
}

func TestRunSourceSucceeds(t *testing.T) {
	if code := runSource("var x = 1 + 2", "<test>", nil); code != 0 {
		t.Errorf("runSource with valid source returned %d, want 0", code)
	}
}
