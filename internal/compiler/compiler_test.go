package compiler

import (
	"testing"

	"slate/internal/bytecode"
	"slate/internal/lexer"
	"slate/internal/parser"
	"slate/internal/value"
	"slate/internal/vm"
)

func compileSource(t *testing.T, src string) *bytecode.FunctionObj {
	t.Helper()
	toks := lexer.NewLexer(src, "<test>").Tokenize()
	p := parser.New(toks, src, "<test>", parser.STRICT)
	stmts := p.ParseProgram()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors for %q: %v", src, p.Errors)
	}
	c := New("<test>", src)
	fn := c.Compile(stmts)
	if len(c.Errors) > 0 {
		t.Fatalf("compile errors for %q: %v", src, c.Errors)
	}
	return fn
}

func execResult(t *testing.T, src string) value.Value {
	t.Helper()
	fn := compileSource(t, src)
	machine := vm.New("<test>")
	result, err := machine.Run(fn)
	if err != nil {
		t.Fatalf("run error for %q: %v", src, err)
	}
	return result
}

// The chunk ends with HALT, which hands back the result register rather
// than whatever RETURN would have popped off an empty stack.
func TestCompileEndsWithHalt(t *testing.T) {
	fn := compileSource(t, "1\n")
	code := fn.Chunk.Code
	if len(code) == 0 || bytecode.OpCode(code[len(code)-1]) != bytecode.HALT {
		t.Fatalf("last opcode = %v, want HALT", code)
	}
}

// A block expression with a local declared before its trailing expression
// must discard the local without disturbing the trailing value: the
// compiler must end such a scope with POP_N_PRESERVE_TOP, not POP/POP_N.
func TestBlockExpressionPreservesTrailingValue(t *testing.T) {
	got := execResult(t, "def f(x) = \n    var y = x + 1\n    y * 2\nf(3)\n")
	if got.AsInt32() != 8 {
		t.Errorf("f(3) = %v, want 8", got)
	}
}

func TestBlockExpressionWithMultipleLocals(t *testing.T) {
	got := execResult(t, "def f() = \n    var a = 1\n    var b = 2\n    var c = 3\n    a + b + c\nf()\n")
	if got.AsInt32() != 6 {
		t.Errorf("f() = %v, want 6", got)
	}
}

func TestExprStmtSetsResultRegister(t *testing.T) {
	got := execResult(t, "1 + 1\n2 + 2\n")
	if got.AsInt32() != 4 {
		t.Errorf("trailing expr statement result = %v, want 4 (last statement wins)", got)
	}
}

func TestGlobalVarDeclSetsResultRegister(t *testing.T) {
	got := execResult(t, "var x = 10\n")
	if got.AsInt32() != 10 {
		t.Errorf("`var x = 10` result register = %v, want 10", got)
	}
}

func TestLocalVarDeclSetsResultRegister(t *testing.T) {
	got := execResult(t, "def f() = \n    var x = 99\nf()\n")
	if got.AsInt32() != 99 {
		t.Errorf("local `var x = 99` as trailing decl = %v, want 99", got)
	}
}
