// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic raised anywhere in the lexer/parser/compiler/
// VM pipeline.
type Kind string

const (
	Syntax         Kind = "ERR_SYNTAX"
	Compile        Kind = "ERR_COMPILE"
	Type           Kind = "ERR_TYPE"
	Arity          Kind = "ERR_ARITY"
	DivisionByZero Kind = "ERR_DIVISION_BY_ZERO"
	Index          Kind = "ERR_INDEX"
	Reference      Kind = "ERR_REFERENCE"
	Value          Kind = "ERR_VALUE"
)

// SourceLocation represents a location in source code.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// LangError is the uniform diagnostic raised by every stage: ERR_SYNTAX from
// the lexer/parser, ERR_COMPILE from the code generator, everything else
// from the VM.
type LangError struct {
	Kind      Kind
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string // the source line where the error occurred
}

// StackFrame is a single frame in the call stack captured when an error
// unwinds through the VM's frame stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *LangError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Kind, e.Message))

	if e.Location.File != "" || e.Location.Line != 0 {
		sb.WriteString(fmt.Sprintf("  at %s\n", e.Location))

		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n  %d | %s\n", e.Location.Line, e.Source))
			sb.WriteString(fmt.Sprintf("  %s", strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line)))))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:\n")
		for _, frame := range e.CallStack {
			if frame.Function != "" {
				sb.WriteString(fmt.Sprintf("  at %s (%s:%d:%d)\n",
					frame.Function, frame.File, frame.Line, frame.Column))
			} else {
				sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n",
					frame.File, frame.Line, frame.Column))
			}
		}
	}

	return sb.String()
}

func new_(kind Kind, message, file string, line, column int) *LangError {
	return &LangError{
		Kind:    kind,
		Message: message,
		Location: SourceLocation{
			File:   file,
			Line:   line,
			Column: column,
		},
	}
}

func NewSyntaxError(message, file string, line, column int) *LangError {
	return new_(Syntax, message, file, line, column)
}

func NewCompileError(message, file string, line, column int) *LangError {
	return new_(Compile, message, file, line, column)
}

func NewTypeError(message, file string, line, column int) *LangError {
	return new_(Type, message, file, line, column)
}

func NewArityError(message, file string, line, column int) *LangError {
	return new_(Arity, message, file, line, column)
}

func NewIndexError(message, file string, line, column int) *LangError {
	return new_(Index, message, file, line, column)
}

func NewReferenceError(message, file string, line, column int) *LangError {
	return new_(Reference, message, file, line, column)
}

func NewValueError(message, file string, line, column int) *LangError {
	return new_(Value, message, file, line, column)
}

func NewDivisionByZeroError(file string, line, column int) *LangError {
	return new_(DivisionByZero, "division by zero", file, line, column)
}

// WithSource adds source code context to the error.
func (e *LangError) WithSource(source string) *LangError {
	e.Source = source
	return e
}

// WithStack adds a call stack to the error.
func (e *LangError) WithStack(stack []StackFrame) *LangError {
	e.CallStack = stack
	return e
}

// AddStackFrame adds a single stack frame.
func (e *LangError) AddStackFrame(function, file string, line, column int) *LangError {
	e.CallStack = append(e.CallStack, StackFrame{
		Function: function,
		File:     file,
		Line:     line,
		Column:   column,
	})
	return e
}
