package vm

import (
	"testing"

	"slate/internal/compiler"
	"slate/internal/lexer"
	"slate/internal/parser"
	"slate/internal/value"
)

// run lexes, parses, compiles and executes src, returning the VM's result
// register (§4.6's "last statement wins" rule surfaced by HALT).
func run(t *testing.T, src string) value.Value {
	t.Helper()
	toks := lexer.NewLexer(src, "<test>").Tokenize()
	p := parser.New(toks, src, "<test>", parser.STRICT)
	stmts := p.ParseProgram()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors for %q: %v", src, p.Errors)
	}
	c := compiler.New("<test>", src)
	fn := c.Compile(stmts)
	if len(c.Errors) > 0 {
		t.Fatalf("compile errors for %q: %v", src, c.Errors)
	}
	machine := New("<test>")
	result, err := machine.Run(fn)
	if err != nil {
		t.Fatalf("run error for %q: %v", src, err)
	}
	return result
}

func TestArithmeticResultRegister(t *testing.T) {
	tests := []struct {
		src  string
		want int32
	}{
		{"1 + 2\n", 3},
		{"2 * 3 + 4\n", 10},
		{"10 - 4 - 1\n", 5},
		{"7 // 2\n", 3},
		{"7 % 2\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := run(t, tt.src)
			if got.AsInt32() != tt.want {
				t.Errorf("run(%q) = %v, want %d", tt.src, got, tt.want)
			}
		})
	}
}

// Power must always produce a floating result, even for exact integer
// operands: 2 ** 10 is 1024.0, never the exact Int32 1024.
func TestPowerAlwaysProducesFloat(t *testing.T) {
	got := run(t, "2 ** 10\n")
	var asFloat float64
	switch got.Kind {
	case value.KindFloat64:
		asFloat = got.AsFloat64()
	case value.KindFloat32:
		asFloat = float64(got.AsFloat32())
	default:
		t.Fatalf("2 ** 10 result kind = %v, want a float kind", got.Kind)
	}
	if asFloat != 1024.0 {
		t.Errorf("2 ** 10 = %v, want 1024.0", asFloat)
	}
}

func TestBlockExpressionWithLocalYieldsTrailingExpr(t *testing.T) {
	got := run(t, "def f(x) = \n    var y = x + 1\n    y * 2\nf(3)\n")
	if got.AsInt32() != 8 {
		t.Errorf("f(3) = %v, want 8 ((3+1)*2)", got)
	}
}

func TestVarDeclSetsResultRegister(t *testing.T) {
	got := run(t, "var y = 41\n")
	if got.AsInt32() != 41 {
		t.Errorf("`var y = 41` result register = %v, want 41", got)
	}
}

func TestIfExpressionResult(t *testing.T) {
	got := run(t, "if true do 1 else 2\n")
	if got.AsInt32() != 1 {
		t.Errorf("if true do 1 else 2 = %v, want 1", got)
	}
	got = run(t, "if false do 1 else 2\n")
	if got.AsInt32() != 2 {
		t.Errorf("if false do 1 else 2 = %v, want 2", got)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	got := run(t, "var i = 0\nvar total = 0\nwhile i < 5\n    total = total + i\n    i = i + 1\ntotal\n")
	if got.AsInt32() != 10 {
		t.Errorf("loop total = %v, want 10", got)
	}
}

func TestRangeWithStepToArray(t *testing.T) {
	got := run(t, "(1..10 step 2).toArray()\n")
	if got.Kind != value.KindArray {
		t.Fatalf("(1..10 step 2).toArray() kind = %v, want KindArray", got.Kind)
	}
	arr, ok := value.HeapOf(got).(*value.ArrayObj)
	if !ok {
		t.Fatalf("(1..10 step 2).toArray() did not produce an array")
	}
	want := []int32{1, 3, 5, 7, 9}
	if len(arr.Elements) != len(want) {
		t.Fatalf("array length = %d, want %d", len(arr.Elements), len(want))
	}
	for i, w := range want {
		if arr.Elements[i].AsInt32() != w {
			t.Errorf("element %d = %v, want %d", i, arr.Elements[i], w)
		}
	}
}
