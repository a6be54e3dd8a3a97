package parser

import (
	"slate/internal/ast"
	"slate/internal/lexer"
)

func b(pos ast.Pos) ast.Base { return ast.Base{Pos: pos} }

// declaration parses one top-level-or-block statement, recovering via
// synchronize() if a syntax error was recorded while parsing it.
func (p *Parser) declaration() ast.Stmt {
	s := p.statement()
	if p.panicking {
		p.synchronize()
	}
	return s
}

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(lexer.VAR):
		return p.varDecl(true)
	case p.match(lexer.VAL):
		return p.varDecl(false)
	case p.match(lexer.DEF):
		return p.defDecl()
	case p.match(lexer.WHILE):
		return p.whileStmt()
	case p.match(lexer.DO):
		return p.doWhileStmt()
	case p.match(lexer.LOOP):
		return p.loopStmt()
	case p.match(lexer.FOR):
		return p.forStmt()
	case p.match(lexer.BREAK):
		return &ast.Break{Base: b(p.pos())}
	case p.match(lexer.CONTINUE):
		return &ast.Continue{Base: b(p.pos())}
	case p.match(lexer.RETURN):
		return p.returnStmt()
	case p.match(lexer.IMPORT):
		return p.importStmt()
	case p.match(lexer.PACKAGE):
		return p.packageStmt()
	case p.match(lexer.CLASS):
		return p.classDecl()
	case p.match(lexer.TRY):
		return p.tryStmt()
	case p.match(lexer.THROW):
		return p.throwStmt()
	case p.check(lexer.INDENT):
		return p.block()
	case p.check(lexer.IF):
		p.advance()
		return p.ifExpr().(*ast.If)
	}
	pos := p.pos()
	expr := p.expression()
	return &ast.ExprStmt{Base: b(pos), Expr: expr}
}

func (p *Parser) varDecl(mutable bool) ast.Stmt {
	pos := p.pos()
	name := p.consume(lexer.IDENT, "expected variable name").Lexeme
	var value ast.Node
	if p.match(lexer.ASSIGN) {
		value = p.expression()
	} else if !mutable {
		p.errorAt(p.peek(), "val declaration requires an initializer")
	}
	return &ast.VarDecl{Base: b(pos), Name: name, Mutable: mutable, Value: value}
}

// defDecl desugars `def name(p1, ...) = body` into an immutable binding of
// an arrow function (§4.4.2).
func (p *Parser) defDecl() ast.Stmt {
	pos := p.pos()
	name := p.consume(lexer.IDENT, "expected function name").Lexeme
	p.consume(lexer.LPAREN, "expected '(' after function name")
	var params []string
	for !p.check(lexer.RPAREN) {
		params = append(params, p.consume(lexer.IDENT, "expected parameter name").Lexeme)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RPAREN, "expected ')' after parameters")
	p.consume(lexer.ASSIGN, "expected '=' after function signature")
	body := p.arrowBody()
	arrow := &ast.Arrow{Base: b(pos), Name: name, Params: params, Body: body}
	return &ast.VarDecl{Base: b(pos), Name: name, Mutable: false, Value: arrow}
}

func (p *Parser) arrowBody() ast.Node {
	if p.check(lexer.INDENT) {
		return p.blockNode()
	}
	return p.expression()
}

func (p *Parser) whileStmt() ast.Stmt {
	pos := p.pos()
	cond := p.expression()
	body := p.controlBody()
	return &ast.While{Base: b(pos), Cond: cond, Body: body}
}

func (p *Parser) doWhileStmt() ast.Stmt {
	pos := p.pos()
	body := p.controlBody()
	p.consume(lexer.WHILE, "expected 'while' after do block")
	cond := p.expression()
	return &ast.DoWhile{Base: b(pos), Body: body, Cond: cond}
}

func (p *Parser) loopStmt() ast.Stmt {
	pos := p.pos()
	body := p.controlBody()
	return &ast.Loop{Base: b(pos), Body: body}
}

// forStmt parses the three-clause header; a lone IDENT followed by `in`
// is instead a for-in loop over an iterable.
func (p *Parser) forStmt() ast.Stmt {
	pos := p.pos()
	if p.check(lexer.IDENT) && p.peekAt(1).Kind == lexer.IN {
		name := p.advance().Lexeme
		p.advance() // IN
		iterable := p.expression()
		body := p.controlBody()
		return &ast.ForIn{Base: b(pos), Variable: name, Iterable: iterable, Body: body}
	}

	var init ast.Stmt
	if p.match(lexer.VAR) {
		init = p.varDecl(true)
	} else if !p.check(lexer.SEMICOLON) {
		epos := p.pos()
		init = &ast.ExprStmt{Base: b(epos), Expr: p.expression()}
	}
	p.consume(lexer.SEMICOLON, "expected ';' after for-loop initializer")

	var cond ast.Node
	if !p.check(lexer.SEMICOLON) {
		cond = p.expression()
	}
	p.consume(lexer.SEMICOLON, "expected ';' after for-loop condition")

	var update ast.Node
	if !p.check(lexer.LBRACE) && !p.check(lexer.INDENT) && !p.check(lexer.DO) {
		update = p.expression()
	}
	body := p.controlBody()
	return &ast.For{Base: b(pos), Init: init, Cond: cond, Update: update, Body: body}
}

// controlBody parses a loop/if body: a same-line expression after `do`, an
// indented block, or a single statement.
func (p *Parser) controlBody() ast.Stmt {
	if p.match(lexer.DO) {
		pos := p.pos()
		return &ast.ExprStmt{Base: b(pos), Expr: p.expression()}
	}
	if p.check(lexer.INDENT) {
		return p.block()
	}
	return p.statement()
}

func (p *Parser) returnStmt() ast.Stmt {
	pos := p.pos()
	var value ast.Node
	if !p.check(lexer.NEWLINE) && !p.check(lexer.DEDENT) && !p.isAtEnd() {
		value = p.expression()
	}
	return &ast.Return{Base: b(pos), Value: value}
}

func (p *Parser) importStmt() ast.Stmt {
	pos := p.pos()
	path := p.consume(lexer.IDENT, "expected module path").Lexeme
	for p.match(lexer.DOT) {
		path += "." + p.consume(lexer.IDENT, "expected path segment").Lexeme
	}
	var specifiers []string
	if p.match(lexer.LBRACE) {
		for !p.check(lexer.RBRACE) {
			specifiers = append(specifiers, p.consume(lexer.IDENT, "expected import specifier").Lexeme)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.consume(lexer.RBRACE, "expected '}' after import specifiers")
	}
	return &ast.Import{Base: b(pos), Path: path, Specifiers: specifiers}
}

func (p *Parser) packageStmt() ast.Stmt {
	pos := p.pos()
	path := p.consume(lexer.IDENT, "expected package path").Lexeme
	for p.match(lexer.DOT) {
		path += "." + p.consume(lexer.IDENT, "expected path segment").Lexeme
	}
	return &ast.PackageDecl{Base: b(pos), Path: path}
}

func (p *Parser) classDecl() ast.Stmt {
	pos := p.pos()
	name := p.consume(lexer.IDENT, "expected class name").Lexeme
	var super string
	if p.match(lexer.COLON) {
		super = p.consume(lexer.IDENT, "expected superclass name").Lexeme
	}
	p.consume(lexer.INDENT, "expected indented class body")
	var methods []ast.MethodDecl
	var fields []string
	for !p.check(lexer.DEDENT) && !p.isAtEnd() {
		if p.match(lexer.VAR) || p.match(lexer.VAL) {
			fields = append(fields, p.consume(lexer.IDENT, "expected field name").Lexeme)
		} else if p.match(lexer.DEF) {
			mname := p.consume(lexer.IDENT, "expected method name").Lexeme
			p.consume(lexer.LPAREN, "expected '(' after method name")
			var params []string
			for !p.check(lexer.RPAREN) {
				params = append(params, p.consume(lexer.IDENT, "expected parameter name").Lexeme)
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.consume(lexer.RPAREN, "expected ')' after parameters")
			p.consume(lexer.ASSIGN, "expected '=' after method signature")
			body := p.arrowBody()
			methods = append(methods, ast.MethodDecl{Name: mname, Params: params, Body: body})
		}
		p.skipNewlines()
	}
	p.consume(lexer.DEDENT, "expected dedent after class body")
	return &ast.ClassDecl{Base: b(pos), Name: name, Superclass: super, Methods: methods, Fields: fields}
}

func (p *Parser) tryStmt() ast.Stmt {
	pos := p.pos()
	tryBlock := p.blockNode()
	var catchVar string
	var catchBlock *ast.Block
	if p.match(lexer.CATCH) {
		if p.match(lexer.LPAREN) {
			catchVar = p.consume(lexer.IDENT, "expected catch variable").Lexeme
			p.consume(lexer.RPAREN, "expected ')' after catch variable")
		} else if p.check(lexer.IDENT) {
			catchVar = p.advance().Lexeme
		}
		catchBlock = p.blockNode()
	}
	var finallyBlock *ast.Block
	if p.match(lexer.FINALLY) {
		finallyBlock = p.blockNode()
	}
	return &ast.TryStmt{Base: b(pos), TryBlock: tryBlock, CatchVar: catchVar, CatchBlock: catchBlock, FinallyBlock: finallyBlock}
}

func (p *Parser) throwStmt() ast.Stmt {
	pos := p.pos()
	return &ast.ThrowStmt{Base: b(pos), Value: p.expression()}
}

// block parses an INDENT/DEDENT-delimited block statement (a non-
// expression block; its last statement's value is discarded in statement
// context by the compiler's POP_N rule).
func (p *Parser) block() ast.Stmt {
	return p.blockNode()
}

// blockNode is shared by statement and expression positions; STRICT mode
// requires the final statement be an expression-statement, LENIENT mode
// additionally allows a var/val declaration to stand in as the value
// (§4.4.2).
func (p *Parser) blockNode() *ast.Block {
	pos := p.pos()
	p.consume(lexer.INDENT, "expected indented block")
	var stmts []ast.Stmt
	p.skipNewlines()
	for !p.check(lexer.DEDENT) && !p.isAtEnd() {
		stmts = append(stmts, p.declaration())
		p.skipNewlines()
	}
	p.consume(lexer.DEDENT, "expected dedent to close block")
	if len(stmts) > 0 {
		last := stmts[len(stmts)-1]
		switch last.(type) {
		case *ast.ExprStmt, *ast.If, *ast.Block:
		case *ast.VarDecl:
			if p.mode == STRICT {
				p.errorAt(p.peek(), "block expression must end in an expression statement")
			}
		}
	}
	return &ast.Block{Base: b(pos), Stmts: stmts}
}
