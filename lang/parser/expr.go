package parser

import (
	"strings"

	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/token"
)

// parseExpr parses a full expression, including assignment (the lowest
// precedence level) and the comma operator is intentionally not supported
// (spec §6 has no SequenceExpression).
func (p *parser) parseExpr() ast.Expr {
	return p.parseAssign()
}

// parseAssign parses "lhs = rhs" / "lhs op= rhs" / a ConditionalExpr,
// right-associatively.
func (p *parser) parseAssign() ast.Expr {
	left := p.parseConditional()
	if p.tok().IsAssignOp() {
		op := p.tok()
		opPos := p.curPos()
		p.advance()
		right := p.parseAssign()
		return &ast.AssignExpr{Left: left, Op: op, OpPos: opPos, Right: right}
	}
	return left
}

func (p *parser) parseConditional() ast.Expr {
	cond := p.parseLogicalOr()
	if _, ok := p.accept(token.QUESTION); ok {
		cons := p.parseAssign()
		p.expect(token.COLON)
		alt := p.parseAssign()
		return &ast.ConditionalExpr{Cond: cond, Cons: cons, Alt: alt}
	}
	return cond
}

func (p *parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	for p.at(token.OR2) || p.at(token.QUESTION2) {
		op, pos := p.tok(), p.curPos()
		p.advance()
		right := p.parseLogicalAnd()
		left = &ast.LogicalExpr{Left: left, Op: op, OpPos: pos, Right: right}
	}
	return left
}

func (p *parser) parseLogicalAnd() ast.Expr {
	left := p.parseBitOr()
	for p.at(token.AND2) {
		pos := p.curPos()
		p.advance()
		right := p.parseBitOr()
		left = &ast.LogicalExpr{Left: left, Op: token.AND2, OpPos: pos, Right: right}
	}
	return left
}

func (p *parser) parseBitOr() ast.Expr  { return p.parseLeftAssocBin(p.parseBitXor, token.PIPE) }
func (p *parser) parseBitXor() ast.Expr { return p.parseLeftAssocBin(p.parseBitAnd, token.CARET) }
func (p *parser) parseBitAnd() ast.Expr { return p.parseLeftAssocBin(p.parseEquality, token.AMP) }

func (p *parser) parseEquality() ast.Expr {
	return p.parseLeftAssocBin(p.parseRelational, token.EQ3, token.NEQ3, token.EQ2, token.NEQ2)
}

func (p *parser) parseRelational() ast.Expr {
	return p.parseLeftAssocBin(p.parseShift, token.LT, token.GT, token.LE, token.GE, token.INSTANCEOF)
}

func (p *parser) parseShift() ast.Expr {
	return p.parseLeftAssocBin(p.parseAdditive, token.LTLT, token.GTGT)
}

func (p *parser) parseAdditive() ast.Expr {
	return p.parseLeftAssocBin(p.parseMultiplicative, token.PLUS, token.MINUS)
}

func (p *parser) parseMultiplicative() ast.Expr {
	return p.parseLeftAssocBin(p.parseUnary, token.STAR, token.SLASH, token.PERCENT)
}

func (p *parser) parseLeftAssocBin(next func() ast.Expr, ops ...token.Token) ast.Expr {
	left := next()
	for p.matchAny(ops...) {
		op, pos := p.tok(), p.curPos()
		p.advance()
		right := next()
		left = &ast.BinaryExpr{Left: left, Op: op, OpPos: pos, Right: right}
	}
	return left
}

func (p *parser) matchAny(ops ...token.Token) bool {
	for _, op := range ops {
		if p.at(op) {
			return true
		}
	}
	return false
}

func (p *parser) parseUnary() ast.Expr {
	switch p.tok() {
	case token.MINUS, token.PLUS, token.TILDE, token.BANG, token.TYPEOF, token.VOID, token.DELETE:
		op, pos := p.tok(), p.curPos()
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{OpPos: pos, Op: op, X: x}
	case token.INC, token.DEC:
		op, pos := p.tok(), p.curPos()
		p.advance()
		x := p.parseUnary()
		return &ast.UpdateExpr{OpPos: pos, Op: op, X: x, Prefix: true}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ast.Expr {
	x := p.parseCallOrMember()
	if p.at(token.INC) || p.at(token.DEC) {
		op, pos := p.tok(), p.curPos()
		p.advance()
		return &ast.UpdateExpr{OpPos: pos, Op: op, X: x, Prefix: false}
	}
	return x
}

func (p *parser) parseCallOrMember() ast.Expr {
	x := p.parsePrimary()
	for {
		switch {
		case p.at(token.DOT):
			p.advance()
			namePos := p.curPos()
			name := p.lit()
			if !p.at(token.IDENT) {
				// keywords are valid property names after a dot
				name = p.tok().String()
			}
			p.advance()
			x = &ast.MemberExpr{X: x, Prop: &ast.LiteralExpr{Start: namePos, Kind: token.STRING, Lit: name}, Computed: false, End: p.curPos()}
		case p.at(token.LBRACK):
			p.advance()
			idx := p.parseExpr()
			end := p.expect(token.RBRACK)
			x = &ast.MemberExpr{X: x, Prop: idx, Computed: true, End: end}
		case p.at(token.LPAREN):
			lp := p.curPos()
			args := p.parseArgs()
			rp := p.expect(token.RPAREN)
			x = &ast.CallExpr{Fn: x, Args: args, Lparen: lp, Rparen: rp}
		default:
			return x
		}
	}
}

func (p *parser) parseArgs() []ast.Expr {
	p.expect(token.LPAREN)
	var args []ast.Expr
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		args = append(args, p.parseAssign())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	return args
}

func (p *parser) parsePrimary() ast.Expr {
	switch p.tok() {
	case token.NUMBER:
		lit := p.lit()
		pos := p.curPos()
		p.advance()
		return &ast.LiteralExpr{Start: pos, Kind: token.NUMBER, Lit: lit}
	case token.STRING:
		lit := p.lit()
		pos := p.curPos()
		p.advance()
		return &ast.LiteralExpr{Start: pos, Kind: token.STRING, Lit: lit}
	case token.TRUE, token.FALSE, token.NULL, token.UNDEFINED:
		kind := p.tok()
		pos := p.curPos()
		p.advance()
		return &ast.LiteralExpr{Start: pos, Kind: kind}
	case token.THIS:
		pos := p.curPos()
		p.advance()
		return &ast.ThisExpr{Start: pos}
	case token.TEMPLATE:
		return p.parseTemplate()
	case token.IDENT:
		if p.toks[p.pos+1].Token == token.ARROW {
			return p.parseArrowSingleParam()
		}
		pos := p.curPos()
		lit := p.lit()
		p.advance()
		return &ast.IdentExpr{Start: pos, Lit: lit}
	case token.ASYNC:
		// "async" prefixing a function/arrow is accepted and recorded as
		// inert metadata (spec §9(iii)); it never changes lowering.
		p.advance()
		x := p.parsePrimary()
		switch v := x.(type) {
		case *ast.FuncExpr:
			v.IsAsync = true
		case *ast.ArrowFuncExpr:
			v.IsAsync = true
		}
		return x
	case token.FUNCTION:
		return p.parseFuncExpr()
	case token.LBRACK:
		return p.parseArrayLiteral()
	case token.LBRACE:
		return p.parseObjectLiteral()
	case token.LPAREN:
		if sig, ok := p.tryParseArrowParams(); ok {
			return p.finishArrow(p.curPos(), sig)
		}
		lp := p.curPos()
		p.advance()
		x := p.parseExpr()
		rp := p.expect(token.RPAREN)
		return &ast.ParenExpr{Lparen: lp, Rparen: rp, X: x}
	}

	p.errorf(p.curPos(), "unexpected token %s in expression", p.tok().GoString())
	pos := p.curPos()
	p.advance()
	return &ast.LiteralExpr{Start: pos, Kind: token.UNDEFINED}
}

func (p *parser) parseArrowSingleParam() ast.Expr {
	pos := p.curPos()
	param := &ast.IdentExpr{Start: pos, Lit: p.lit()}
	p.advance() // ident
	p.advance() // =>
	return p.finishArrow(pos, &ast.FuncSignature{Params: []*ast.IdentExpr{param}})
}

// tryParseArrowParams attempts to parse "(ident, ident, ...)" followed by
// "=>" starting at the current LPAREN, backtracking (via the token-index
// slice, which makes arbitrary lookahead free) if it is not an arrow
// function's parameter list.
func (p *parser) tryParseArrowParams() (*ast.FuncSignature, bool) {
	save := p.pos
	p.advance() // (
	var params []*ast.IdentExpr
	for !p.at(token.RPAREN) {
		if !p.at(token.IDENT) {
			p.pos = save
			return nil, false
		}
		params = append(params, &ast.IdentExpr{Start: p.curPos(), Lit: p.lit()})
		p.advance()
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	if !p.at(token.RPAREN) {
		p.pos = save
		return nil, false
	}
	p.advance()
	if !p.at(token.ARROW) {
		p.pos = save
		return nil, false
	}
	p.advance()
	return &ast.FuncSignature{Params: params}, true
}

func (p *parser) finishArrow(start token.Pos, sig *ast.FuncSignature) ast.Expr {
	if p.at(token.LBRACE) {
		body := p.parseBlock()
		return &ast.ArrowFuncExpr{Start: start, Sig: sig, Body: body}
	}
	body := p.parseAssign()
	return &ast.ArrowFuncExpr{Start: start, Sig: sig, BodyExpr: body}
}

func (p *parser) parseFuncExpr() ast.Expr {
	start := p.expect(token.FUNCTION)
	sig := p.parseFuncSignature()
	body := p.parseBlock()
	return &ast.FuncExpr{Start: start, Sig: sig, Body: body}
}

func (p *parser) parseFuncSignature() *ast.FuncSignature {
	p.expect(token.LPAREN)
	var params []*ast.IdentExpr
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		if !p.at(token.IDENT) {
			p.errorf(p.curPos(), "expected parameter name, got %s", p.tok().GoString())
			break
		}
		params = append(params, &ast.IdentExpr{Start: p.curPos(), Lit: p.lit()})
		p.advance()
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	p.expect(token.RPAREN)
	return &ast.FuncSignature{Params: params}
}

func (p *parser) parseArrayLiteral() ast.Expr {
	start := p.expect(token.LBRACK)
	var items []ast.Expr
	for !p.at(token.RBRACK) && !p.at(token.EOF) {
		items = append(items, p.parseAssign())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(token.RBRACK)
	return &ast.ArrayLikeExpr{Start: start, End: end, Items: items}
}

func (p *parser) parseObjectLiteral() ast.Expr {
	start := p.expect(token.LBRACE)
	var items []*ast.ObjectItem
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		items = append(items, p.parseObjectItem())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.expect(token.RBRACE)
	return &ast.ObjectExpr{Start: start, End: end, Items: items}
}

func (p *parser) parseObjectItem() *ast.ObjectItem {
	if _, ok := p.accept(token.LBRACK); ok {
		key := p.parseAssign()
		p.expect(token.RBRACK)
		p.expect(token.COLON)
		val := p.parseAssign()
		return &ast.ObjectItem{Key: key, Value: val, Computed: true}
	}

	var key ast.Expr
	pos := p.curPos()
	switch p.tok() {
	case token.STRING:
		key = &ast.LiteralExpr{Start: pos, Kind: token.STRING, Lit: p.lit()}
		p.advance()
	case token.NUMBER:
		key = &ast.LiteralExpr{Start: pos, Kind: token.STRING, Lit: p.lit()}
		p.advance()
	default:
		name := p.lit()
		if !p.at(token.IDENT) {
			name = p.tok().String()
		}
		ident := &ast.IdentExpr{Start: pos, Lit: name}
		p.advance()
		if !p.at(token.COLON) {
			// shorthand property: { x } means { x: x }
			return &ast.ObjectItem{Key: ident, Value: &ast.IdentExpr{Start: pos, Lit: name}}
		}
		key = ident
	}
	p.expect(token.COLON)
	val := p.parseAssign()
	return &ast.ObjectItem{Key: key, Value: val}
}

// parseTemplate splits the raw template text (quasis interleaved with
// "${expr}" substitutions) and recursively parses each embedded expression
// with a fresh parser instance over the same file/fileset.
func (p *parser) parseTemplate() ast.Expr {
	start := p.curPos()
	raw := p.lit()
	p.advance()
	end := p.curPos()

	lit := &ast.TemplateLiteral{Start: start, End: end}
	rest := raw
	for {
		idx := strings.Index(rest, "${")
		if idx < 0 {
			lit.Quasis = append(lit.Quasis, rest)
			break
		}
		lit.Quasis = append(lit.Quasis, rest[:idx])
		rest = rest[idx+2:]
		depth := 1
		end := 0
		for end < len(rest) && depth > 0 {
			switch rest[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth > 0 {
				end++
			}
		}
		exprSrc := rest[:end]
		sub := &parser{file: p.file, toks: tokenizeSub(p.file.Name(), exprSrc)}
		e := sub.parseExpr()
		p.errors = append(p.errors, sub.errors...)
		lit.Exprs = append(lit.Exprs, e)
		if end < len(rest) {
			rest = rest[end+1:]
		} else {
			rest = ""
		}
	}
	return lit
}
