package compiler

import (
	"slate/internal/ast"
	"slate/internal/bigint"
	"slate/internal/bytecode"
	"slate/internal/value"
)

func (c *Compiler) compileExpr(n ast.Node) {
	switch e := n.(type) {
	case *ast.NullLit:
		c.chunk.WriteOp(bytecode.PUSH_NULL)
	case *ast.UndefinedLit:
		c.chunk.WriteOp(bytecode.PUSH_UNDEFINED)
	case *ast.BoolLit:
		if e.Value {
			c.chunk.WriteOp(bytecode.PUSH_TRUE)
		} else {
			c.chunk.WriteOp(bytecode.PUSH_FALSE)
		}
	case *ast.IntLit:
		if int64(int32(e.Value)) == e.Value {
			c.emitConstant(value.Int32(int32(e.Value)))
		} else {
			c.emitConstant(value.BigInt(bigint.FromInt64(e.Value)))
		}
	case *ast.BigIntLit:
		c.compileBigIntLit(e)
	case *ast.FloatLit:
		if e.Is32 {
			c.emitConstant(value.Float32(float32(e.Value)))
		} else {
			c.emitConstant(value.Float64(e.Value))
		}
	case *ast.StringLit:
		c.emitConstant(value.NewString(e.Value))
	case *ast.TemplateLit:
		c.compileTemplateLit(e)
	case *ast.Identifier:
		c.compileIdentifierLoad(e.Name)
	case *ast.Assign:
		c.compileAssign(e)
	case *ast.Binary:
		c.compileBinary(e)
	case *ast.Logical:
		c.compileLogical(e)
	case *ast.Unary:
		c.compileUnary(e)
	case *ast.Ternary:
		c.compileTernary(e)
	case *ast.Range:
		c.compileRange(e)
	case *ast.Call:
		c.compileCall(e)
	case *ast.Member:
		c.compileMember(e)
	case *ast.Index:
		c.compileIndex(e)
	case *ast.ArrayLit:
		c.compileArrayLit(e)
	case *ast.ObjectLit:
		c.compileObjectLit(e)
	case *ast.Arrow:
		c.compileFunctionLiteral(e.Name, e.Params, e.Body, true)
	case *ast.If:
		c.compileIfExpr(e)
	case *ast.Block:
		c.compileBlockExpr(e)
	default:
		c.errorAt(n.Position(), "unsupported expression")
	}
}

func (c *Compiler) compileBigIntLit(e *ast.BigIntLit) {
	n, ok := bigint.FromString(e.Text)
	if !ok {
		c.errorAt(e.Position(), "invalid integer literal "+e.Text)
		return
	}
	c.emitConstant(value.BigInt(n))
}

// compileTemplateLit concatenates literal-text and interpolated-expression
// parts left to right via ADD (string "+" is defined as concatenation,
// §4.6.2 numeric-promotion notes clarify string operands short-circuit
// promotion).
func (c *Compiler) compileTemplateLit(e *ast.TemplateLit) {
	if len(e.Parts) == 0 {
		c.emitConstant(value.NewString(""))
		return
	}
	first := true
	for _, part := range e.Parts {
		if part.Expr != nil {
			c.compileExpr(part.Expr)
		} else {
			c.emitConstant(value.NewString(part.Text))
		}
		if !first {
			c.chunk.WriteOp(bytecode.ADD)
		}
		first = false
	}
}

func (c *Compiler) compileIdentifierLoad(name string) {
	if idx := c.resolveLocal(name); idx != -1 {
		c.chunk.WriteOp(bytecode.GET_LOCAL)
		c.chunk.WriteByte(byte(idx))
		return
	}
	if idx := c.resolveUpvalue(name); idx != -1 {
		c.chunk.WriteOp(bytecode.GET_UPVALUE)
		c.chunk.WriteByte(byte(idx))
		return
	}
	idx := nameConstant(c, name)
	c.chunk.WriteOp(bytecode.GET_GLOBAL)
	c.chunk.WriteU16(uint16(idx))
}

func (c *Compiler) compileIdentifierStore(name string) {
	if idx := c.resolveLocal(name); idx != -1 {
		c.chunk.WriteOp(bytecode.SET_LOCAL)
		c.chunk.WriteByte(byte(idx))
		return
	}
	if idx := c.resolveUpvalue(name); idx != -1 {
		c.chunk.WriteOp(bytecode.SET_UPVALUE)
		c.chunk.WriteByte(byte(idx))
		return
	}
	idx := nameConstant(c, name)
	c.chunk.WriteOp(bytecode.SET_GLOBAL)
	c.chunk.WriteU16(uint16(idx))
}

var binaryOps = map[string]bytecode.OpCode{
	"+": bytecode.ADD, "-": bytecode.SUBTRACT, "*": bytecode.MULTIPLY,
	"/": bytecode.DIVIDE, "%": bytecode.MOD, "**": bytecode.POWER,
	"//": bytecode.FLOOR_DIV,
	"==": bytecode.EQUAL, "!=": bytecode.NOT_EQUAL,
	"<": bytecode.LESS, "<=": bytecode.LESS_EQUAL,
	">": bytecode.GREATER, ">=": bytecode.GREATER_EQUAL,
	"&": bytecode.BITWISE_AND, "|": bytecode.BITWISE_OR, "^": bytecode.BITWISE_XOR,
	"<<": bytecode.LEFT_SHIFT, ">>": bytecode.RIGHT_SHIFT, ">>>": bytecode.LOGICAL_RIGHT_SHIFT,
	"in": bytecode.IN, "instanceof": bytecode.INSTANCEOF,
}

func (c *Compiler) compileBinary(e *ast.Binary) {
	c.compileExpr(e.Left)
	c.compileExpr(e.Right)
	op, ok := binaryOps[e.Operator]
	if !ok {
		c.errorAt(e.Position(), "unknown binary operator "+e.Operator)
		return
	}
	c.chunk.WriteOp(op)
}

// compileLogical short-circuits && / and, || / or, and ??, per §4.4.1's
// operator table — the right operand is only evaluated when needed.
func (c *Compiler) compileLogical(e *ast.Logical) {
	c.compileExpr(e.Left)
	switch e.Operator {
	case "&&", "and":
		j := c.emitJump(bytecode.JUMP_IF_FALSE)
		c.chunk.WriteOp(bytecode.POP)
		c.compileExpr(e.Right)
		c.patchJump(j)
	case "||", "or":
		j := c.emitJump(bytecode.JUMP_IF_TRUE)
		c.chunk.WriteOp(bytecode.POP)
		c.compileExpr(e.Right)
		c.patchJump(j)
	case "??":
		useRight := c.emitJump(bytecode.JUMP_IF_NULLISH)
		end := c.emitJump(bytecode.JUMP)
		c.patchJump(useRight)
		c.chunk.WriteOp(bytecode.POP)
		c.compileExpr(e.Right)
		c.patchJump(end)
	default:
		c.errorAt(e.Position(), "unknown logical operator "+e.Operator)
	}
}

func (c *Compiler) compileUnary(e *ast.Unary) {
	if e.Operator == "++" || e.Operator == "--" {
		c.compileIncDec(e)
		return
	}
	c.compileExpr(e.Operand)
	switch e.Operator {
	case "-":
		c.chunk.WriteOp(bytecode.NEGATE)
	case "!", "not":
		c.chunk.WriteOp(bytecode.NOT)
	case "~":
		c.chunk.WriteOp(bytecode.BITWISE_NOT)
	default:
		c.errorAt(e.Position(), "unknown unary operator "+e.Operator)
	}
}

// compileIncDec desugars ++/-- (prefix or postfix) into a load, an add of
// +-1, and a store, leaving either the new or old value on the stack.
func (c *Compiler) compileIncDec(e *ast.Unary) {
	delta := int32(1)
	if e.Operator == "--" {
		delta = -1
	}
	c.compileExpr(e.Operand)
	if e.Postfix {
		c.chunk.WriteOp(bytecode.DUP)
	}
	c.emitConstant(value.Int32(delta))
	c.chunk.WriteOp(bytecode.ADD)
	if !e.Postfix {
		c.chunk.WriteOp(bytecode.DUP)
	}
	c.compileStoreTarget(e.Operand)
}

func (c *Compiler) compileTernary(e *ast.Ternary) {
	c.compileExpr(e.Cond)
	thenJump := c.emitJump(bytecode.JUMP_IF_FALSE)
	c.chunk.WriteOp(bytecode.POP)
	c.compileExpr(e.Then)
	elseJump := c.emitJump(bytecode.JUMP)
	c.patchJump(thenJump)
	c.chunk.WriteOp(bytecode.POP)
	c.compileExpr(e.Else)
	c.patchJump(elseJump)
}

func (c *Compiler) compileRange(e *ast.Range) {
	c.compileExpr(e.Start)
	c.compileExpr(e.End)
	flags := byte(0)
	if e.Exclusive {
		flags |= bytecode.MakeRangeExclusive
	}
	if e.Step != nil {
		flags |= bytecode.MakeRangeHasStep
		c.compileExpr(e.Step)
	}
	c.chunk.WriteOp(bytecode.MAKE_RANGE)
	c.chunk.WriteByte(flags)
}

func (c *Compiler) compileCall(e *ast.Call) {
	if m, ok := e.Callee.(*ast.Member); ok {
		// method call: push receiver, then GET_PROPERTY yields a bound
		// method the VM can CALL directly (§4.6.6). Optional chaining on a
		// call target (`o?.m()`) is not specially short-circuited here;
		// GET_PROPERTY on null raises the same error a plain
		// member access would.
		c.compileExpr(m.Object)
		idx := nameConstant(c, m.Name)
		c.chunk.WriteOp(bytecode.GET_PROPERTY)
		c.chunk.WriteU16(uint16(idx))
	} else {
		c.compileExpr(e.Callee)
	}
	for _, a := range e.Args {
		c.compileExpr(a)
	}
	c.chunk.WriteOp(bytecode.CALL)
	c.chunk.WriteU16(uint16(len(e.Args)))
}

func (c *Compiler) compileMember(e *ast.Member) {
	c.compileExpr(e.Object)
	idx := nameConstant(c, e.Name)
	if e.Optional {
		j := c.emitJump(bytecode.JUMP_IF_NULLISH)
		c.chunk.WriteOp(bytecode.GET_PROPERTY)
		c.chunk.WriteU16(uint16(idx))
		c.patchJump(j)
		return
	}
	c.chunk.WriteOp(bytecode.GET_PROPERTY)
	c.chunk.WriteU16(uint16(idx))
}

func (c *Compiler) compileIndex(e *ast.Index) {
	c.compileExpr(e.Object)
	c.compileExpr(e.Index)
	c.chunk.WriteOp(bytecode.GET_INDEX)
}

func (c *Compiler) compileArrayLit(e *ast.ArrayLit) {
	for _, el := range e.Elements {
		c.compileExpr(el)
	}
	c.chunk.WriteOp(bytecode.BUILD_ARRAY)
	c.chunk.WriteU16(uint16(len(e.Elements)))
}

func (c *Compiler) compileObjectLit(e *ast.ObjectLit) {
	for i, k := range e.Keys {
		c.emitConstant(value.NewString(k))
		c.compileExpr(e.Values[i])
	}
	c.chunk.WriteOp(bytecode.BUILD_OBJECT)
	c.chunk.WriteU16(uint16(len(e.Keys)))
}

// compileAssign handles plain `=` and desugars compound assignment
// (`+=`, `&&=`, ...) into load-operate-store, per ast.Assign's doc comment.
func (c *Compiler) compileAssign(e *ast.Assign) {
	if e.Op == "" {
		c.compileExpr(e.Value)
		c.chunk.WriteOp(bytecode.DUP)
		c.compileStoreTarget(e.Target)
		return
	}
	switch e.Op {
	case "&&", "||", "??":
		c.compileLogicalAssign(e)
		return
	}
	c.compileExpr(e.Target)
	c.compileExpr(e.Value)
	op, ok := binaryOps[e.Op]
	if !ok {
		c.errorAt(e.Position(), "unknown compound assignment operator "+e.Op)
		return
	}
	c.chunk.WriteOp(op)
	c.chunk.WriteOp(bytecode.DUP)
	c.compileStoreTarget(e.Target)
}

func (c *Compiler) compileLogicalAssign(e *ast.Assign) {
	c.compileExpr(e.Target)
	var jumpOp bytecode.OpCode
	switch e.Op {
	case "&&":
		jumpOp = bytecode.JUMP_IF_FALSE
	case "||":
		jumpOp = bytecode.JUMP_IF_TRUE
	case "??":
		jumpOp = bytecode.JUMP_IF_NULLISH
	}
	skip := c.emitJump(jumpOp)
	if e.Op == "??" {
		// JUMP_IF_NULLISH jumps when the target is nullish, which is the
		// case that assigns; a non-nullish target skips the assignment.
		assign := skip
		skip = c.emitJump(bytecode.JUMP)
		c.patchJump(assign)
	}
	c.chunk.WriteOp(bytecode.POP)
	c.compileExpr(e.Value)
	c.chunk.WriteOp(bytecode.DUP)
	c.compileStoreTarget(e.Target)
	c.patchJump(skip)
}

// compileStoreTarget assumes the value to store is already on top of the
// stack; the store consumes it, so callers that need the assigned value as
// the expression's result DUP it first.
func (c *Compiler) compileStoreTarget(target ast.Node) {
	switch t := target.(type) {
	case *ast.Identifier:
		c.compileIdentifierStore(t.Name)
	case *ast.Member:
		// stack on entry: [value]; SET_PROPERTY expects [value, object] so
		// the object is compiled after the value is already in place.
		c.compileExpr(t.Object)
		idx := nameConstant(c, t.Name)
		c.chunk.WriteOp(bytecode.SET_PROPERTY)
		c.chunk.WriteU16(uint16(idx))
	case *ast.Index:
		c.compileExpr(t.Object)
		c.compileExpr(t.Index)
		c.chunk.WriteOp(bytecode.SET_INDEX)
	default:
		c.errorAt(target.Position(), "invalid assignment target")
	}
}

// compileIfExpr emits the cond/then/else triple; If.Else may be another
// *ast.If from elif desugaring, nil (no else — the value is undefined), or
// any expression.
func (c *Compiler) compileIfExpr(e *ast.If) {
	c.compileExpr(e.Cond)
	thenJump := c.emitJump(bytecode.JUMP_IF_FALSE)
	c.chunk.WriteOp(bytecode.POP)
	c.compileBranch(e.Then)
	elseJump := c.emitJump(bytecode.JUMP)
	c.patchJump(thenJump)
	c.chunk.WriteOp(bytecode.POP)
	if e.Else != nil {
		c.compileBranch(e.Else)
	} else {
		c.chunk.WriteOp(bytecode.PUSH_UNDEFINED)
	}
	c.patchJump(elseJump)
}

func (c *Compiler) compileBranch(n ast.Node) {
	if blk, ok := n.(*ast.Block); ok {
		c.compileBlockExpr(blk)
		return
	}
	c.compileExpr(n)
}

// compileFunctionLiteral compiles a nested function body with its own
// Compiler linked via parent (so resolveUpvalue can walk outward), then
// emits a CLOSURE instruction in the enclosing chunk that captures each of
// the child's upvalues per its descriptor list.
func (c *Compiler) compileFunctionLiteral(name string, params []string, body ast.Node, isArrow bool) {
	child := &Compiler{
		parent: c,
		fn:     bytecode.NewFunction(name, params, isArrow),
		file:   c.file,
		lines:  c.lines,
	}
	child.chunk = child.fn.Chunk
	for _, p := range params {
		child.declareLocal(p, true)
	}

	child.compileBranch(body)
	child.chunk.WriteOp(bytecode.RETURN)

	c.Errors = append(c.Errors, child.Errors...)

	idx := c.chunk.AddConstant(value.NewHeapValue(value.KindFunction, child.fn))
	c.chunk.WriteOp(bytecode.CLOSURE)
	c.chunk.WriteU16(uint16(idx))
	for _, uv := range child.fn.Upvalues {
		if uv.IsLocal {
			c.chunk.WriteByte(1)
		} else {
			c.chunk.WriteByte(0)
		}
		c.chunk.WriteByte(uv.Index)
	}
}
