// Package repl implements the interactive line-reading loop: read a line,
// compile it against the running VM's existing globals, execute it, and
// print the VM's result register once the line finishes. Grounded on the
// teacher's internal/repl.Start (scan a line, lex/parse/compile it, run it
// against a persistent VM) but rewritten against the rebuilt
// lexer/parser/compiler/vm packages and extended with the result-register
// display convention the teacher's version never had.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"slate/internal/builtins"
	"slate/internal/compiler"
	stdlibErrors "slate/internal/errors"
	"slate/internal/lexer"
	"slate/internal/module"
	"slate/internal/parser"
	"slate/internal/value"
	"slate/internal/vm"
)

// REPL owns the persistent VM every typed line runs against, so a
// declaration on one line is visible to the next.
type REPL struct {
	out      io.Writer
	in       *bufio.Reader
	machine  *vm.VM
	lineNo   int
	interact bool
}

// New builds a REPL reading from in and writing to out. interact controls
// whether a prompt and banner are shown; callers typically pass
// isatty.IsTerminal on the input file descriptor.
func New(in io.Reader, out io.Writer, searchDir string, interact bool) *REPL {
	machine := vm.New("<repl>")
	machine.Stdout = func(s string) { fmt.Fprint(out, s) }
	machine.Loader = module.NewFileModuleLoader(searchDir, builtins.Register)
	builtins.Register(machine)
	return &REPL{
		out:      out,
		in:       bufio.NewReader(in),
		machine:  machine,
		interact: interact,
	}
}

// NewFromStdin is the convenience entry point cmd/slate calls when no
// script file is given on the command line.
func NewFromStdin(stdinFd uintptr, in io.Reader, out io.Writer, searchDir string) *REPL {
	return New(in, out, searchDir, isatty.IsTerminal(stdinFd))
}

// Run drives the read-eval-print loop until EOF or an "exit"/"quit" line.
func (r *REPL) Run() {
	if r.interact {
		fmt.Fprintln(r.out, "slate REPL  |  type 'exit' to quit")
	}
	for {
		if r.interact {
			fmt.Fprint(r.out, "slate> ")
		}
		line, err := r.in.ReadString('\n')
		if line == "" && err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "exit" || trimmed == "quit" {
			return
		}
		if trimmed == "" {
			if err == io.EOF {
				return
			}
			continue
		}
		r.lineNo++
		r.evalLine(line)
		if err == io.EOF {
			return
		}
	}
}

func (r *REPL) evalLine(line string) {
	file := fmt.Sprintf("<repl:%s>", humanize.Ordinal(r.lineNo))

	toks := lexer.NewLexer(line, file).Tokenize()
	p := parser.New(toks, line, file, parser.LENIENT)
	stmts := p.ParseProgram()
	if len(p.Errors) > 0 {
		fmt.Fprintln(r.out, p.Errors[0].Error())
		return
	}

	c := compiler.New(file, line)
	fn := c.CompileREPL(stmts)
	if len(c.Errors) > 0 {
		fmt.Fprintln(r.out, c.Errors[0].Error())
		return
	}

	result, err := r.machine.Run(fn)
	if err != nil {
		if le, ok := err.(*stdlibErrors.LangError); ok {
			fmt.Fprintln(r.out, le.Error())
		} else {
			fmt.Fprintln(r.out, err.Error())
		}
		return
	}
	if result.Kind != value.KindUndefined {
		fmt.Fprintln(r.out, value.ToDisplayString(result))
	}
	value.Release(result)
}
