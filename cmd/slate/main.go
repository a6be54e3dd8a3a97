// cmd/slate is the command-line entry point: run a script file, run an
// inline snippet given with -c, or fall into the REPL when no file is
// given on a terminal. Grounded on the teacher's cmd/sentra/main.go
// run-file pipeline (lex, parse, compile, execute, print a *LangError to
// stderr and exit 1 on failure) but trimmed to the much smaller surface
// this module's CLI needs: no build/watch/lint/lsp/debug subcommands.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"slate/internal/builtins"
	"slate/internal/compiler"
	stdlibErrors "slate/internal/errors"
	"slate/internal/lexer"
	"slate/internal/module"
	"slate/internal/parser"
	"slate/internal/repl"
	"slate/internal/value"
	"slate/internal/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("slate", flag.ContinueOnError)
	code := fs.String("c", "", "execute the given snippet instead of a file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *code != "" {
		return runSource(*code, "<command-line>", fs.Args())
	}

	rest := fs.Args()
	if len(rest) == 0 {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			repl.New(os.Stdin, os.Stdout, ".", true).Run()
			return 0
		}
		src, err := readAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return runSource(src, "<stdin>", nil)
	}

	path := rest[0]
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return runSource(string(data), path, rest[1:])
}

func readAll(f *os.File) (string, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return string(buf), nil
}

func runSource(src, file string, scriptArgs []string) int {
	toks := lexer.NewLexer(src, file).Tokenize()
	p := parser.New(toks, src, file, parser.STRICT)
	stmts := p.ParseProgram()
	if len(p.Errors) > 0 {
		return reportAll(p.Errors)
	}

	c := compiler.New(file, src)
	fn := c.Compile(stmts)
	if len(c.Errors) > 0 {
		return reportAll(c.Errors)
	}

	machine := vm.New(file)
	machine.Loader = module.NewFileModuleLoader(filepath.Dir(file), builtins.Register)
	builtins.Register(machine)
	defineArgs(machine, scriptArgs)

	if _, err := machine.Run(fn); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

func reportAll(errs []*stdlibErrors.LangError) int {
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e.Error())
	}
	return 1
}

// defineArgs exposes the trailing command-line arguments as a global array
// named argv. It lives here rather than in package builtins because it is
// per-run state (the arguments a particular invocation was given), not a
// native function table every VM gets regardless of how it was started.
func defineArgs(v *vm.VM, args []string) {
	elems := make([]value.Value, len(args))
	for i, a := range args {
		elems[i] = value.NewString(a)
	}
	arr := value.NewArray(elems)
	for _, e := range elems {
		value.Release(e)
	}
	v.DefineGlobal("argv", arr, false)
	value.Release(arr)
}
