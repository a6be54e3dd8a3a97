package parser

import (
	"strconv"
	"strings"

	"slate/internal/ast"
	"slate/internal/lexer"
)

// expression is the entry point of the precedence chain (§4.4.1):
// assignment -> ternary -> null-coalesce -> logical-or -> logical-and ->
// bitwise-or -> bitwise-xor -> bitwise-and -> equality -> comparison ->
// range -> shift -> additive -> multiplicative -> power -> unary ->
// postfix -> call/member -> primary.
func (p *Parser) expression() ast.Node {
	return p.assignment()
}

var compoundAssignOps = map[lexer.TokenKind]string{
	lexer.PLUS_ASSIGN:      "+",
	lexer.MINUS_ASSIGN:     "-",
	lexer.STAR_ASSIGN:      "*",
	lexer.SLASH_ASSIGN:     "/",
	lexer.PERCENT_ASSIGN:   "%",
	lexer.POWER_ASSIGN:     "**",
	lexer.FLOOR_DIV_ASSIGN: "//",
	lexer.AMP_ASSIGN:       "&",
	lexer.PIPE_ASSIGN:      "|",
	lexer.CARET_ASSIGN:     "^",
	lexer.SHL_ASSIGN:       "<<",
	lexer.SHR_ASSIGN:       ">>",
	lexer.USHR_ASSIGN:      ">>>",
	lexer.AND_ASSIGN:       "&&",
	lexer.OR_ASSIGN:        "||",
	lexer.QQ_ASSIGN:        "??",
}

func (p *Parser) assignment() ast.Node {
	left := p.ternary()

	if p.check(lexer.ASSIGN) {
		pos := p.pos()
		p.advance()
		value := p.assignment()
		return &ast.Assign{Base: b(pos), Target: left, Op: "", Value: value}
	}
	for kind, op := range compoundAssignOps {
		if p.check(kind) {
			pos := p.pos()
			p.advance()
			value := p.assignment()
			return &ast.Assign{Base: b(pos), Target: left, Op: op, Value: value}
		}
	}
	return left
}

func (p *Parser) ternary() ast.Node {
	cond := p.nullCoalesce()
	if p.match(lexer.QUESTION) {
		pos := p.pos()
		then := p.assignment()
		p.consume(lexer.COLON, "expected ':' in ternary expression")
		els := p.assignment()
		return &ast.Ternary{Base: b(pos), Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) nullCoalesce() ast.Node {
	left := p.logicalOr()
	for p.check(lexer.QUESTION_QUESTION) {
		pos := p.pos()
		p.advance()
		right := p.logicalOr()
		left = &ast.Logical{Base: b(pos), Left: left, Operator: "??", Right: right}
	}
	return left
}

func (p *Parser) logicalOr() ast.Node {
	left := p.logicalAnd()
	for p.check(lexer.PIPE_PIPE) || p.check(lexer.OR_KW) {
		pos := p.pos()
		op := p.advance().Lexeme
		right := p.logicalAnd()
		left = &ast.Logical{Base: b(pos), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) logicalAnd() ast.Node {
	left := p.bitwiseOr()
	for p.check(lexer.AMP_AMP) || p.check(lexer.AND_KW) {
		pos := p.pos()
		op := p.advance().Lexeme
		right := p.bitwiseOr()
		left = &ast.Logical{Base: b(pos), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) bitwiseOr() ast.Node {
	left := p.bitwiseXor()
	for p.check(lexer.PIPE) {
		pos := p.pos()
		p.advance()
		right := p.bitwiseXor()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: "|", Right: right}
	}
	return left
}

func (p *Parser) bitwiseXor() ast.Node {
	left := p.bitwiseAnd()
	for p.check(lexer.CARET) {
		pos := p.pos()
		p.advance()
		right := p.bitwiseAnd()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: "^", Right: right}
	}
	return left
}

func (p *Parser) bitwiseAnd() ast.Node {
	left := p.equality()
	for p.check(lexer.AMP) {
		pos := p.pos()
		p.advance()
		right := p.equality()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: "&", Right: right}
	}
	return left
}

func (p *Parser) equality() ast.Node {
	left := p.comparison()
	for p.check(lexer.EQ) || p.check(lexer.NE) {
		pos := p.pos()
		op := p.advance().Lexeme
		right := p.comparison()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) comparison() ast.Node {
	left := p.rangeExpr()
	for p.check(lexer.LT) || p.check(lexer.LE) || p.check(lexer.GT) || p.check(lexer.GE) ||
		p.check(lexer.IN) || p.check(lexer.INSTANCEOF) {
		pos := p.pos()
		op := p.advance().Lexeme
		right := p.rangeExpr()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: op, Right: right}
	}
	return left
}

// rangeExpr parses `start..end`, `start..<end`, with an optional trailing
// `step n`.
func (p *Parser) rangeExpr() ast.Node {
	left := p.shift()
	if p.check(lexer.DOTDOT) || p.check(lexer.DOTDOT_LT) {
		pos := p.pos()
		exclusive := p.advance().Kind == lexer.DOTDOT_LT
		right := p.shift()
		var step ast.Node
		if p.match(lexer.STEP) {
			step = p.shift()
		}
		return &ast.Range{Base: b(pos), Start: left, End: right, Exclusive: exclusive, Step: step}
	}
	return left
}

func (p *Parser) shift() ast.Node {
	left := p.additive()
	for p.check(lexer.SHL) || p.check(lexer.SHR) || p.check(lexer.USHR) {
		pos := p.pos()
		op := p.advance().Lexeme
		right := p.additive()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) additive() ast.Node {
	left := p.multiplicative()
	for p.check(lexer.PLUS) || p.check(lexer.MINUS) {
		pos := p.pos()
		op := p.advance().Lexeme
		right := p.multiplicative()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) multiplicative() ast.Node {
	left := p.power()
	for p.check(lexer.STAR) || p.check(lexer.SLASH) || p.check(lexer.PERCENT) || p.check(lexer.FLOOR_DIV) {
		pos := p.pos()
		op := p.advance().Lexeme
		right := p.power()
		left = &ast.Binary{Base: b(pos), Left: left, Operator: op, Right: right}
	}
	return left
}

// power is right-associative.
func (p *Parser) power() ast.Node {
	left := p.unary()
	if p.check(lexer.POWER) {
		pos := p.pos()
		p.advance()
		right := p.power()
		return &ast.Binary{Base: b(pos), Left: left, Operator: "**", Right: right}
	}
	return left
}

func (p *Parser) unary() ast.Node {
	if p.check(lexer.MINUS) || p.check(lexer.BANG) || p.check(lexer.NOT_KW) || p.check(lexer.TILDE) ||
		p.check(lexer.PLUS_PLUS) || p.check(lexer.MINUS_MINUS) {
		pos := p.pos()
		op := p.advance().Lexeme
		operand := p.unary()
		return &ast.Unary{Base: b(pos), Operator: op, Operand: operand}
	}
	return p.postfix()
}

func (p *Parser) postfix() ast.Node {
	expr := p.callOrMember()
	for p.check(lexer.PLUS_PLUS) || p.check(lexer.MINUS_MINUS) {
		pos := p.pos()
		op := p.advance().Lexeme
		expr = &ast.Unary{Base: b(pos), Operator: op, Operand: expr, Postfix: true}
	}
	return expr
}

func (p *Parser) callOrMember() ast.Node {
	expr := p.primary()
	for {
		switch {
		case p.check(lexer.LPAREN):
			pos := p.pos()
			p.advance()
			var args []ast.Node
			for !p.check(lexer.RPAREN) {
				args = append(args, p.assignment())
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.consume(lexer.RPAREN, "expected ')' after arguments")
			expr = &ast.Call{Base: b(pos), Callee: expr, Args: args}
		case p.check(lexer.DOT):
			pos := p.pos()
			p.advance()
			name := p.consume(lexer.IDENT, "expected property name after '.'").Lexeme
			expr = &ast.Member{Base: b(pos), Object: expr, Name: name}
		case p.check(lexer.QUESTION_DOT):
			pos := p.pos()
			p.advance()
			name := p.consume(lexer.IDENT, "expected property name after '?.'").Lexeme
			expr = &ast.Member{Base: b(pos), Object: expr, Name: name, Optional: true}
		case p.check(lexer.LBRACKET):
			pos := p.pos()
			p.advance()
			idx := p.assignment()
			p.consume(lexer.RBRACKET, "expected ']' after index expression")
			expr = &ast.Index{Base: b(pos), Object: expr, Index: idx}
		default:
			return expr
		}
	}
}

// primary handles literals, identifiers, grouped/parenthesized expressions
// (with the list/arrow-function disambiguation of §4.4.3), array/object
// literals, template literals, if-expressions, and match-expressions.
func (p *Parser) primary() ast.Node {
	pos := p.pos()
	switch {
	case p.check(lexer.INT):
		t := p.advance()
		n, err := strconv.ParseInt(t.Lexeme, 0, 64)
		if err != nil {
			return &ast.BigIntLit{Base: b(pos), Text: t.Lexeme}
		}
		return &ast.IntLit{Base: b(pos), Value: n}
	case p.check(lexer.FLOAT):
		t := p.advance()
		is32 := strings.HasSuffix(t.Lexeme, "f") || strings.HasSuffix(t.Lexeme, "F")
		text := strings.TrimRight(t.Lexeme, "fFdD")
		f, _ := strconv.ParseFloat(text, 64)
		return &ast.FloatLit{Base: b(pos), Value: f, Is32: is32}
	case p.check(lexer.STRING):
		t := p.advance()
		return &ast.StringLit{Base: b(pos), Value: t.Lexeme}
	case p.check(lexer.TRUE):
		p.advance()
		return &ast.BoolLit{Base: b(pos), Value: true}
	case p.check(lexer.FALSE):
		p.advance()
		return &ast.BoolLit{Base: b(pos), Value: false}
	case p.check(lexer.NULL):
		p.advance()
		return &ast.NullLit{Base: b(pos)}
	case p.check(lexer.UNDEFINED):
		p.advance()
		return &ast.UndefinedLit{Base: b(pos)}
	case p.check(lexer.IDENT):
		t := p.advance()
		return &ast.Identifier{Base: b(pos), Name: t.Lexeme}
	case p.check(lexer.TEMPLATE_START):
		return p.templateLit()
	case p.check(lexer.LBRACKET):
		return p.arrayLit()
	case p.check(lexer.LBRACE):
		return p.objectLit()
	case p.check(lexer.LPAREN):
		return p.parenOrArrow()
	case p.check(lexer.IF):
		p.advance()
		return p.ifExpr()
	case p.check(lexer.MATCH):
		p.advance()
		return p.matchExpr()
	}
	p.errorAt(p.peek(), "expected expression")
	p.advance()
	return &ast.NullLit{Base: b(pos)}
}

func (p *Parser) arrayLit() ast.Node {
	pos := p.pos()
	p.consume(lexer.LBRACKET, "expected '['")
	var elems []ast.Node
	for !p.check(lexer.RBRACKET) {
		elems = append(elems, p.assignment())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RBRACKET, "expected ']' after array elements")
	return &ast.ArrayLit{Base: b(pos), Elements: elems}
}

func (p *Parser) objectLit() ast.Node {
	pos := p.pos()
	p.consume(lexer.LBRACE, "expected '{'")
	var keys []string
	var vals []ast.Node
	for !p.check(lexer.RBRACE) {
		var key string
		if p.check(lexer.STRING) {
			key = p.advance().Lexeme
		} else {
			key = p.consume(lexer.IDENT, "expected object key").Lexeme
		}
		p.consume(lexer.COLON, "expected ':' after object key")
		keys = append(keys, key)
		vals = append(vals, p.assignment())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.consume(lexer.RBRACE, "expected '}' after object members")
	return &ast.ObjectLit{Base: b(pos), Keys: keys, Values: vals}
}

// templateLit consumes a TEMPLATE_START .. TEMPLATE_END run produced by the
// lexer's template sub-mode, assembling literal-text and embedded-expression
// parts in source order.
func (p *Parser) templateLit() ast.Node {
	pos := p.pos()
	p.consume(lexer.TEMPLATE_START, "expected template literal")
	var parts []ast.TemplatePart
	for !p.check(lexer.TEMPLATE_END) && !p.isAtEnd() {
		switch {
		case p.check(lexer.TEMPLATE_TEXT):
			t := p.advance()
			parts = append(parts, ast.TemplatePart{Text: t.Lexeme})
		case p.check(lexer.TEMPLATE_SIMPLE_VAR):
			t := p.advance()
			parts = append(parts, ast.TemplatePart{Expr: &ast.Identifier{Base: b(pos), Name: t.Lexeme}})
		case p.check(lexer.TEMPLATE_EXPR_START):
			p.advance()
			expr := p.expression()
			p.consume(lexer.TEMPLATE_EXPR_END, "expected '}' to close template expression")
			parts = append(parts, ast.TemplatePart{Expr: expr})
		default:
			p.errorAt(p.peek(), "unexpected token in template literal")
			p.advance()
		}
	}
	p.consume(lexer.TEMPLATE_END, "expected end of template literal")
	return &ast.TemplateLit{Base: b(pos), Parts: parts}
}

// parenOrArrow disambiguates a parenthesized `(expr)` from a
// `(params) -> body` / `(params) => body` arrow function: tryParseArrow is
// attempted first, and when it fails the parenthesized form is parsed as a
// single grouped expression. A parenthesized list such as `(a, b)` that is
// not followed by an arrow is a syntax error.
func (p *Parser) parenOrArrow() ast.Node {
	pos := p.pos()
	if arrow, ok := p.tryParseArrow(pos); ok {
		return arrow
	}

	p.consume(lexer.LPAREN, "expected '('")
	expr := p.assignment()
	p.consume(lexer.RPAREN, "expected ')' after expression")
	return expr
}

// tryParseArrow looks ahead for `( ident (, ident)* ) ->`/`=>` by scanning
// tokens, and when the shape doesn't match it restores the saved token
// cursor and pushback state, so parenOrArrow can fall through to plain
// grouping.
func (p *Parser) tryParseArrow(pos ast.Pos) (ast.Node, bool) {
	save := p.current
	savedPushback := append([]lexer.Token(nil), p.pushback...)

	p.advance() // consume '('
	var params []string
	ok := true
	for !p.check(lexer.RPAREN) {
		if !p.check(lexer.IDENT) {
			ok = false
			break
		}
		params = append(params, p.advance().Lexeme)
		if p.match(lexer.COMMA) {
			continue
		}
		break
	}
	if ok && p.check(lexer.RPAREN) {
		p.advance()
		if p.check(lexer.ARROW) || p.check(lexer.FAT_ARROW) {
			p.advance()
			body := p.arrowBody()
			return &ast.Arrow{Base: b(pos), Params: params, Body: body}, true
		}
	}

	p.current = save
	p.pushback = savedPushback
	return nil, false
}

// ifExpr parses an if/elif/else chain, desugaring each `elif` into a
// nested *ast.If in the Else slot (§4.4.2).
func (p *Parser) ifExpr() ast.Node {
	pos := p.pos()
	cond := p.expression()
	then := p.ifBranchBody()
	var els ast.Node
	if p.match(lexer.ELIF) {
		els = p.ifExpr()
	} else if p.match(lexer.ELSE) {
		els = p.ifBranchBody()
	}
	return &ast.If{Base: b(pos), Cond: cond, Then: then, Else: els}
}

func (p *Parser) ifBranchBody() ast.Node {
	if p.match(lexer.DO) {
		return p.expression()
	}
	if p.check(lexer.INDENT) {
		return p.blockNode()
	}
	return p.expression()
}

// matchExpr desugars a match expression into a chain of nested if/else
// comparisons against the subject. The subject expression is re-embedded
// directly into each arm's `==` comparison, so it is evaluated once per arm
// that is tested.
func (p *Parser) matchExpr() ast.Node {
	pos := p.pos()
	subject := p.expression()
	p.consume(lexer.INDENT, "expected indented match body")

	var patterns []ast.Node
	var bodies []ast.Node
	for !p.check(lexer.DEDENT) && !p.isAtEnd() {
		var pattern ast.Node
		if p.check(lexer.IDENT) && p.peek().Lexeme == "_" {
			p.advance()
			pattern = nil
		} else {
			pattern = p.expression()
		}
		p.consume(lexer.FAT_ARROW, "expected '=>' after match pattern")
		body := p.arrowBody()
		patterns = append(patterns, pattern)
		bodies = append(bodies, body)
		p.skipNewlines()
	}
	p.consume(lexer.DEDENT, "expected dedent after match body")

	return desugarMatch(pos, subject, patterns, bodies)
}

// desugarMatch turns a Match's arm list into a right-nested If chain:
// if subject == pat0 then body0 elif subject == pat1 then body1 ... else
// wildcard body (or null when there is no wildcard arm).
func desugarMatch(pos ast.Pos, subject ast.Node, patterns, bodies []ast.Node) ast.Node {
	var result ast.Node = &ast.NullLit{Base: b(pos)}
	for i := len(patterns) - 1; i >= 0; i-- {
		if patterns[i] == nil {
			result = bodies[i]
			continue
		}
		cond := &ast.Binary{Base: b(pos), Left: subject, Operator: "==", Right: patterns[i]}
		result = &ast.If{Base: b(pos), Cond: cond, Then: bodies[i], Else: result}
	}
	return result
}
