// Package compiler is the code generator: it walks an ast.Stmt list and
// emits bytecode.Chunk instructions, performing the three-tier
// local/upvalue/global identifier resolution and the jump-patching
// discipline used for control flow and short-circuit operators.
package compiler

import (
	"slate/internal/ast"
	"slate/internal/bytecode"
	"slate/internal/errors"
	"slate/internal/value"
)

// local is a resolved local-slot binding in the current function's scope
// chain.
type local struct {
	name    string
	depth   int
	mutable bool
}

// loopContext tracks the break/continue jump targets for the innermost
// enclosing loop, per the parent-compiler-chain pattern the teacher uses
// for nested function scopes (stmt_compiler.go's `parent` field).
type loopContext struct {
	continueTarget int
	breakJumps     []int
	parent         *loopContext
}

// Compiler compiles one function body (the top-level script is itself a
// function with arity 0). Nested function literals get their own Compiler
// linked via parent, mirroring the scope chain a closure captures from.
type Compiler struct {
	parent *Compiler
	fn     *bytecode.FunctionObj
	chunk  *bytecode.Chunk

	locals     []local
	scopeDepth int

	loop *loopContext

	file  string
	lines []string

	Errors []*errors.LangError
}

// New creates a compiler for the top-level script.
func New(file, source string) *Compiler {
	fn := bytecode.NewFunction("<script>", nil, false)
	return &Compiler{
		fn:    fn,
		chunk: fn.Chunk,
		file:  file,
		lines: splitLines(source),
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

// Compile compiles the whole program and returns the top-level function
// object, whose Chunk is ready to execute. Every var/val declaration and
// every bare expression statement sets the VM's result register
// (§4.5.2/§4.6) as it runs; the chunk ends with HALT, which hands that
// register back to the caller rather than whatever the last RETURN
// happened to leave on the stack.
func (c *Compiler) Compile(stmts []ast.Stmt) *bytecode.FunctionObj {
	for _, s := range stmts {
		c.compileStmt(s)
	}
	c.chunk.WriteOp(bytecode.HALT)
	return c.fn
}

// CompileREPL compiles one REPL line. It is identical to Compile: the
// result register, not a special-cased trailing RETURN, is what surfaces
// a line's value for display (§ REPL result display). Kept as a distinct
// entry point so the REPL's call site reads as what it is.
func (c *Compiler) CompileREPL(stmts []ast.Stmt) *bytecode.FunctionObj {
	return c.Compile(stmts)
}

func (c *Compiler) errorAt(pos ast.Pos, msg string) {
	var src string
	if pos.Line-1 >= 0 && pos.Line-1 < len(c.lines) {
		src = c.lines[pos.Line-1]
	}
	e := errors.NewCompileError(msg, c.file, pos.Line, pos.Column).WithSource(src)
	c.Errors = append(c.Errors, e)
}

// --- scope management (§4.5.1) ---

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope pops every local declared at the scope being closed, emitting
// POP for one and POP_N for several. Captured locals are popped like the
// others; the VM closes their cells only at frame exit.
func (c *Compiler) endScope() {
	c.scopeDepth--
	n := 0
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
		n++
	}
	if n == 1 {
		c.chunk.WriteOp(bytecode.POP)
	} else if n > 1 {
		c.chunk.WriteOp(bytecode.POP_N)
		c.chunk.WriteByte(byte(n))
	}
}

// endScopePreserveTop closes the current scope like endScope, except the
// value already on top of the stack (a block expression's trailing result)
// survives: the locals below it are discarded via POP_N_PRESERVE_TOP
// instead of POP/POP_N, which would otherwise discard the result itself
// and expose the last local underneath it.
func (c *Compiler) endScopePreserveTop() {
	c.scopeDepth--
	n := 0
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
		n++
	}
	if n > 0 {
		c.chunk.WriteOp(bytecode.POP_N_PRESERVE_TOP)
		c.chunk.WriteU16(uint16(n))
	}
}

func (c *Compiler) declareLocal(name string, mutable bool) int {
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, mutable: mutable})
	return len(c.locals) - 1
}

// resolveLocal searches the current function's locals only, innermost
// scope first (shadowing).
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

// resolveUpvalue implements the three-tier rule: if the name is a local of
// the immediately enclosing function, capture it directly (IsLocal=true);
// otherwise recurse into the enclosing function's own upvalue resolution
// and forward it (IsLocal=false). AddUpvalue de-duplicates by descriptor.
func (c *Compiler) resolveUpvalue(name string) int {
	if c.parent == nil {
		return -1
	}
	if idx := c.parent.resolveLocal(name); idx != -1 {
		return c.fn.AddUpvalue(bytecode.UpvalueDesc{IsLocal: true, Index: uint8(idx)})
	}
	if idx := c.parent.resolveUpvalue(name); idx != -1 {
		return c.fn.AddUpvalue(bytecode.UpvalueDesc{IsLocal: false, Index: uint8(idx)})
	}
	return -1
}

// --- jump patching (§4.5.3) ---

func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.chunk.WriteOp(op)
	offset := c.chunk.Len()
	c.chunk.WriteU16(0xFFFF)
	return offset
}

func (c *Compiler) patchJump(offset int) {
	dist := c.chunk.Len() - (offset + 2)
	c.chunk.PatchU16(offset, uint16(dist))
}

func (c *Compiler) emitLoop(target int) {
	c.chunk.WriteOp(bytecode.LOOP)
	offset := c.chunk.Len()
	dist := (offset + 2) - target
	c.chunk.WriteU16(uint16(dist))
}

// --- constants ---

func (c *Compiler) addIntConstant(n int64) int {
	return c.chunk.AddConstant(value.Int32(int32(n)))
}

func (c *Compiler) emitConstant(v value.Value) {
	idx := c.chunk.AddConstant(v)
	c.chunk.WriteOp(bytecode.PUSH_CONSTANT)
	c.chunk.WriteU16(uint16(idx))
}

func (c *Compiler) setDebug(pos ast.Pos) {
	c.chunk.SetDebugLocation(c.chunk.Len(), pos.Line, pos.Column)
}

func nameConstant(c *Compiler, name string) int {
	return c.chunk.AddConstant(value.NewString(name))
}

func stringValue(s string) value.Value { return value.NewString(s) }
