package compiler

import (
	"slate/internal/ast"
	"slate/internal/bytecode"
)

func (c *Compiler) compileStmt(s ast.Stmt) {
	c.setDebug(s.Position())
	switch n := s.(type) {
	case *ast.VarDecl:
		c.compileVarDecl(n)
	case *ast.ExprStmt:
		c.compileExpr(n.Expr)
		c.chunk.WriteOp(bytecode.SET_RESULT)
		c.chunk.WriteOp(bytecode.POP)
	case *ast.While:
		c.compileWhile(n)
	case *ast.DoWhile:
		c.compileDoWhile(n)
	case *ast.Loop:
		c.compileLoop(n)
	case *ast.For:
		c.compileFor(n)
	case *ast.ForIn:
		c.compileForIn(n)
	case *ast.Break:
		c.compileBreak(n)
	case *ast.Continue:
		c.compileContinue(n)
	case *ast.Return:
		c.compileReturn(n)
	case *ast.Import:
		c.compileImport(n)
	case *ast.PackageDecl:
		// package declarations are metadata only; no code is emitted.
	case *ast.ClassDecl:
		c.compileClassDecl(n)
	case *ast.TryStmt:
		c.compileTry(n)
	case *ast.ThrowStmt:
		c.compileExpr(n.Value)
		c.chunk.WriteOp(bytecode.THROW)
	case *ast.Block:
		c.compileBlockStmt(n)
	case *ast.If:
		c.compileExpr(n)
		c.chunk.WriteOp(bytecode.SET_RESULT)
		c.chunk.WriteOp(bytecode.POP)
	default:
		c.errorAt(s.Position(), "unsupported statement")
	}
}

// compileVarDecl emits the initializer, then SET_RESULT so the
// declaration's value reaches the result register (§4.5.2) before the
// value is consumed into its binding. SET_RESULT only peeks the stack, so
// placing it here instead of after DEFINE_GLOBAL/the implicit local slot
// assignment has the identical observable effect without needing a DUP
// and a matching extra POP.
func (c *Compiler) compileVarDecl(n *ast.VarDecl) {
	if n.Value != nil {
		c.compileExpr(n.Value)
	} else {
		c.chunk.WriteOp(bytecode.PUSH_UNDEFINED)
	}
	c.chunk.WriteOp(bytecode.SET_RESULT)
	if c.scopeDepth > 0 {
		c.declareLocal(n.Name, n.Mutable)
		return
	}
	idx := nameConstant(c, n.Name)
	c.chunk.WriteOp(bytecode.DEFINE_GLOBAL)
	c.chunk.WriteU16(uint16(idx))
	flags := byte(0)
	if !n.Mutable {
		flags = bytecode.DefineGlobalImmutable
	}
	c.chunk.WriteByte(flags)
}

// compileBlockStmt compiles a block used in pure-statement position: every
// statement's value is discarded (each ExprStmt already pops after itself).
func (c *Compiler) compileBlockStmt(n *ast.Block) {
	c.beginScope()
	for _, s := range n.Stmts {
		c.compileStmt(s)
	}
	c.endScope()
}

// compileBlockExpr compiles a block used in expression position: the final
// statement's value is left on the stack instead of popped.
func (c *Compiler) compileBlockExpr(n *ast.Block) {
	c.beginScope()
	for i, s := range n.Stmts {
		last := i == len(n.Stmts)-1
		if last {
			if es, ok := s.(*ast.ExprStmt); ok {
				c.setDebug(es.Position())
				c.compileExpr(es.Expr)
				c.endScopePreserveTop()
				return
			}
			if blk, ok := s.(*ast.Block); ok {
				c.compileBlockExpr(blk)
				c.endScopePreserveTop()
				return
			}
			if ifn, ok := s.(*ast.If); ok {
				c.compileExpr(ifn)
				c.endScopePreserveTop()
				return
			}
		}
		c.compileStmt(s)
	}
	c.chunk.WriteOp(bytecode.PUSH_UNDEFINED)
	c.endScopePreserveTop()
}

func (c *Compiler) compileWhile(n *ast.While) {
	loopStart := c.chunk.Len()
	c.compileExpr(n.Cond)
	exitJump := c.emitJump(bytecode.JUMP_IF_FALSE)
	c.chunk.WriteOp(bytecode.POP)

	c.loop = &loopContext{continueTarget: loopStart, parent: c.loop}
	c.compileStmt(n.Body)
	lc := c.loop
	c.loop = c.loop.parent

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.chunk.WriteOp(bytecode.POP)
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) compileDoWhile(n *ast.DoWhile) {
	loopStart := c.chunk.Len()
	c.loop = &loopContext{continueTarget: loopStart, parent: c.loop}
	c.compileStmt(n.Body)
	lc := c.loop
	c.loop = c.loop.parent

	continueTarget := c.chunk.Len()
	lc.continueTarget = continueTarget
	c.compileExpr(n.Cond)
	exitJump := c.emitJump(bytecode.JUMP_IF_FALSE)
	c.chunk.WriteOp(bytecode.POP)
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.chunk.WriteOp(bytecode.POP)
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) compileLoop(n *ast.Loop) {
	loopStart := c.chunk.Len()
	c.loop = &loopContext{continueTarget: loopStart, parent: c.loop}
	c.compileStmt(n.Body)
	lc := c.loop
	c.loop = c.loop.parent
	c.emitLoop(loopStart)
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) compileFor(n *ast.For) {
	c.beginScope()
	if n.Init != nil {
		c.compileStmt(n.Init)
	}
	loopStart := c.chunk.Len()
	var exitJump int
	hasExit := n.Cond != nil
	if hasExit {
		c.compileExpr(n.Cond)
		exitJump = c.emitJump(bytecode.JUMP_IF_FALSE)
		c.chunk.WriteOp(bytecode.POP)
	}

	bodyJump := c.emitJump(bytecode.JUMP)
	updateStart := c.chunk.Len()
	if n.Update != nil {
		c.compileExpr(n.Update)
		c.chunk.WriteOp(bytecode.POP)
	}
	c.emitLoop(loopStart)
	c.patchJump(bodyJump)

	c.loop = &loopContext{continueTarget: updateStart, parent: c.loop}
	c.compileStmt(n.Body)
	lc := c.loop
	c.loop = c.loop.parent
	c.emitLoop(updateStart)

	if hasExit {
		c.patchJump(exitJump)
		c.chunk.WriteOp(bytecode.POP)
	}
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
	c.endScope()
}

// compileForIn lowers `for x in iterable { body }` to GET_ITERATOR/ITER_NEXT
// per the iterator contract (§4.6.5): ITER_NEXT leaves the next value on
// the stack and falls through, or jumps to the loop's exit when exhausted.
func (c *Compiler) compileForIn(n *ast.ForIn) {
	c.beginScope()
	c.compileExpr(n.Iterable)
	c.chunk.WriteOp(bytecode.GET_ITERATOR)

	loopStart := c.chunk.Len()
	c.chunk.WriteOp(bytecode.ITER_NEXT)
	exitJump := c.chunk.Len()
	c.chunk.WriteU16(0xFFFF)

	c.beginScope()
	c.declareLocal(n.Variable, false)

	c.loop = &loopContext{continueTarget: loopStart, parent: c.loop}
	c.compileStmt(n.Body)
	lc := c.loop
	c.loop = c.loop.parent

	c.endScope()
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.chunk.WriteOp(bytecode.POP) // drop the iterator
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
	c.endScope()
}

func (c *Compiler) compileBreak(n *ast.Break) {
	if c.loop == nil {
		c.errorAt(n.Position(), "break outside a loop")
		return
	}
	j := c.emitJump(bytecode.JUMP)
	c.loop.breakJumps = append(c.loop.breakJumps, j)
}

func (c *Compiler) compileContinue(n *ast.Continue) {
	if c.loop == nil {
		c.errorAt(n.Position(), "continue outside a loop")
		return
	}
	c.emitLoop(c.loop.continueTarget)
}

func (c *Compiler) compileReturn(n *ast.Return) {
	if n.Value != nil {
		c.compileExpr(n.Value)
	} else {
		c.chunk.WriteOp(bytecode.PUSH_UNDEFINED)
	}
	c.chunk.WriteOp(bytecode.RETURN)
}

func (c *Compiler) compileImport(n *ast.Import) {
	idx := nameConstant(c, n.Path)
	c.chunk.WriteOp(bytecode.IMPORT_MODULE)
	c.chunk.WriteU16(uint16(idx))
	if len(n.Specifiers) == 0 {
		idx := nameConstant(c, lastSegment(n.Path))
		c.chunk.WriteOp(bytecode.DEFINE_GLOBAL)
		c.chunk.WriteU16(uint16(idx))
		c.chunk.WriteByte(bytecode.DefineGlobalImmutable)
		return
	}
	for _, spec := range n.Specifiers {
		c.chunk.WriteOp(bytecode.DUP)
		pidx := nameConstant(c, spec)
		c.chunk.WriteOp(bytecode.GET_PROPERTY)
		c.chunk.WriteU16(uint16(pidx))
		gidx := nameConstant(c, spec)
		c.chunk.WriteOp(bytecode.DEFINE_GLOBAL)
		c.chunk.WriteU16(uint16(gidx))
		c.chunk.WriteByte(bytecode.DefineGlobalImmutable)
	}
	c.chunk.WriteOp(bytecode.POP)
}

func lastSegment(path string) string {
	last := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			last = path[i+1:]
			break
		}
	}
	return last
}

// compileClassDecl emits a MAKE_CLASS instruction: field-name array, then
// optional superclass value, then method (name, closure) pairs, per the
// MAKE_CLASS operand contract in opcodes.go.
func (c *Compiler) compileClassDecl(n *ast.ClassDecl) {
	for _, f := range n.Fields {
		c.emitConstant(stringValue(f))
	}
	c.chunk.WriteOp(bytecode.BUILD_ARRAY)
	c.chunk.WriteU16(uint16(len(n.Fields)))

	hasSuper := n.Superclass != ""
	if hasSuper {
		idx := nameConstant(c, n.Superclass)
		c.chunk.WriteOp(bytecode.GET_GLOBAL)
		c.chunk.WriteU16(uint16(idx))
	}

	for _, m := range n.Methods {
		c.emitConstant(stringValue(m.Name))
		c.compileFunctionLiteral(m.Name, m.Params, m.Body, false)
	}

	flags := byte(0)
	if hasSuper {
		flags |= 1
	}
	nameIdx := nameConstant(c, n.Name)
	c.chunk.WriteOp(bytecode.MAKE_CLASS)
	c.chunk.WriteU16(uint16(nameIdx))
	c.chunk.WriteU16(uint16(len(n.Methods)))
	c.chunk.WriteByte(flags)

	if c.scopeDepth > 0 {
		c.declareLocal(n.Name, false)
		return
	}
	idx := nameConstant(c, n.Name)
	c.chunk.WriteOp(bytecode.DEFINE_GLOBAL)
	c.chunk.WriteU16(uint16(idx))
	c.chunk.WriteByte(bytecode.DefineGlobalImmutable)
}

// compileTry wires PUSH_HANDLER/POP_HANDLER around the protected block, per
// §4.6.7's error-trap mechanism. The catch handler receives the thrown
// value as though it were a local declared at the top of the catch block.
func (c *Compiler) compileTry(n *ast.TryStmt) {
	var handlerJump int
	hasCatch := n.CatchBlock != nil
	if hasCatch {
		handlerJump = c.emitJump(bytecode.PUSH_HANDLER)
	}

	c.compileBlockStmt(n.TryBlock)

	if hasCatch {
		c.chunk.WriteOp(bytecode.POP_HANDLER)
		skipCatch := c.emitJump(bytecode.JUMP)
		c.patchJump(handlerJump)

		c.beginScope()
		if n.CatchVar != "" {
			c.declareLocal(n.CatchVar, false)
		} else {
			c.chunk.WriteOp(bytecode.POP)
		}
		for _, s := range n.CatchBlock.Stmts {
			c.compileStmt(s)
		}
		c.endScope()
		c.patchJump(skipCatch)
	}

	if n.FinallyBlock != nil {
		c.compileBlockStmt(n.FinallyBlock)
	}
}
