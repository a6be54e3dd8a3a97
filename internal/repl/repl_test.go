package repl

import (
	"bytes"
	"strings"
	"testing"
)

func TestEvalLinePrintsTrailingExpressionValue(t *testing.T) {
	var out bytes.Buffer
	r := New(strings.NewReader(""), &out, t.TempDir(), false)
	r.evalLine("1 + 2")
	if got := out.String(); got != "3\n" {
		t.Errorf("evalLine(\"1 + 2\") printed %q, want \"3\\n\"", got)
	}
}

func TestEvalLineKeepsGlobalsAcrossLines(t *testing.T) {
	var out bytes.Buffer
	r := New(strings.NewReader(""), &out, t.TempDir(), false)
	r.evalLine("var x = 10")
	out.Reset()
	r.evalLine("x")
	if got := out.String(); got != "10\n" {
		t.Errorf("evalLine(\"x\") after \"var x = 10\" printed %q, want \"10\\n\"", got)
	}
}

func TestEvalLinePrintsDeclarationValue(t *testing.T) {
	var out bytes.Buffer
	r := New(strings.NewReader(""), &out, t.TempDir(), false)
	r.evalLine("var y = 1")
	if got := out.String(); got != "1\n" {
		t.Errorf("evalLine(\"var y = 1\") printed %q, want \"1\\n\"", got)
	}
}

func TestRunExitsOnExitKeyword(t *testing.T) {
	var out bytes.Buffer
	r := New(strings.NewReader("exit\nprint(1)\n"), &out, t.TempDir(), false)
	r.Run()
	if got := out.String(); got != "" {
		t.Errorf("Run should stop at the exit line before evaluating anything after it, got %q", got)
	}
}
