package parser

import (
	"fmt"
	"testing"

	"slate/internal/ast"
	"slate/internal/lexer"
)

func parseString(input string) (stmts []ast.Stmt, errs []error) {
	defer func() {
		if r := recover(); r != nil {
			errs = append(errs, fmt.Errorf("parser panic: %v", r))
			stmts = nil
		}
	}()

	toks := lexer.NewLexer(input, "<test>").Tokenize()
	p := New(toks, input, "<test>", STRICT)
	stmts = p.ParseProgram()
	for _, e := range p.Errors {
		errs = append(errs, e)
	}
	return
}

func assertParseSuccess(t *testing.T, input, description string) []ast.Stmt {
	t.Helper()
	stmts, errs := parseString(input)
	if len(errs) > 0 {
		t.Errorf("%s: parsing failed with errors: %v", description, errs)
		return nil
	}
	return stmts
}

func assertParseError(t *testing.T, input, description string) {
	t.Helper()
	_, errs := parseString(input)
	if len(errs) == 0 {
		t.Errorf("%s: expected parsing to fail but it succeeded", description)
	}
}

func TestVariableDeclarations(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"var declaration", "var x = 5\n", true},
		{"val declaration", "val x = 5\n", true},
		{"var without init", "var x\n", true},
		{"multiple declarations", "var x = 5\nvar y = 10\n", true},
		{"let is an identifier, not a keyword", "var let = 5\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldPass {
				assertParseSuccess(t, tt.input, tt.name)
			} else {
				assertParseError(t, tt.input, tt.name)
			}
		})
	}
}

func TestIfAsExpression(t *testing.T) {
	tests := []string{
		"var x = if true do 1 else 2\n",
		"if true do 1 else 2\n",
		"if true\n    1\nelse\n    2\n",
	}
	for _, in := range tests {
		assertParseSuccess(t, in, in)
	}
}

func TestLoopConstructs(t *testing.T) {
	tests := []string{
		"while true\n    break\n",
		"do\n    1\nwhile false\n",
		"loop\n    break\n",
		"for i in 1..10\n    continue\n",
	}
	for _, in := range tests {
		assertParseSuccess(t, in, in)
	}
}

func TestFunctionDeclarations(t *testing.T) {
	tests := []string{
		"def add(a, b) = a + b\n",
		"def add(a, b) =\n    return a + b\n",
		"var f = (x) => x * 2\n",
	}
	for _, in := range tests {
		assertParseSuccess(t, in, in)
	}
}

func TestClassDeclaration(t *testing.T) {
	assertParseSuccess(t, "class Point\n    def init(x, y) =\n        this.x = x\n        this.y = y\n", "class decl")
}

func TestTryCatch(t *testing.T) {
	assertParseSuccess(t, "try\n    1\ncatch e\n    2\n", "try/catch")
}

func TestMatchExpression(t *testing.T) {
	assertParseSuccess(t, "match x\n    1 => \"one\"\n    _ => \"other\"\n", "match expr")
}

func TestRangeWithStep(t *testing.T) {
	stmts := assertParseSuccess(t, "1..10 step 2\n", "range with step")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	es, ok := stmts[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected *ast.ExprStmt, got %T", stmts[0])
	}
	if _, ok := es.Expr.(*ast.Range); !ok {
		t.Errorf("expected *ast.Range, got %T", es.Expr)
	}
}

func TestBlockExpression(t *testing.T) {
	stmts := assertParseSuccess(t, "def f(x) = \n    var y = x + 1\n    y * 2\n", "block expression body")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"var = \n",
		"if true\n",
		"def f(\n",
	}
	for _, in := range tests {
		assertParseError(t, in, in)
	}
}
