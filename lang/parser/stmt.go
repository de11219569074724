package parser

import (
	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/token"
)

// parseStmt parses one statement. It returns nil for an empty statement
// (a bare ";"), which the caller simply skips.
func (p *parser) parseStmt() ast.Stmt {
	switch p.tok() {
	case token.SEMI:
		p.advance()
		return nil
	case token.LBRACE:
		return p.parseBlock()
	case token.VAR, token.LET, token.CONST:
		return p.parseVarDecl()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.DO:
		return p.parseDoWhile()
	case token.FOR:
		return p.parseFor()
	case token.BREAK:
		return p.parseBreak()
	case token.RETURN:
		return p.parseReturn()
	case token.SWITCH:
		return p.parseSwitch()
	case token.FUNCTION:
		return p.parseFunctionDecl()
	case token.IMPORT:
		return p.parseImport()
	case token.EXPORT:
		return p.parseExport()
	case token.EOF:
		return nil
	}

	stmt := p.parseExprStmt()
	return stmt
}

func (p *parser) declKind() ast.DeclKind {
	switch p.tok() {
	case token.LET:
		return ast.DeclLet
	case token.CONST:
		return ast.DeclConst
	default:
		return ast.DeclVar
	}
}

func (p *parser) parseVarDecl() *ast.VariableDeclaration {
	start := p.curPos()
	kind := p.declKind()
	p.advance()

	decl := &ast.VariableDeclaration{Start: start, Kind: kind}
	for {
		if !p.at(token.IDENT) {
			p.errorf(p.curPos(), "expected identifier, got %s", p.tok().GoString())
			p.syncAfterError()
			return decl
		}
		name := &ast.IdentExpr{Start: p.curPos(), Lit: p.lit()}
		p.advance()
		decl.Names = append(decl.Names, name)

		var init ast.Expr
		if _, ok := p.accept(token.ASSIGN); ok {
			init = p.parseAssign()
		} else if kind == ast.DeclConst {
			p.errorf(name.Start, "const declaration of %q requires an initializer", name.Lit)
		}
		decl.Inits = append(decl.Inits, init)

		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	p.expectSemi()
	return decl
}

func (p *parser) parseExprStmt() *ast.ExpressionStatement {
	x := p.parseExpr()
	p.expectSemi()
	if !ast.IsValidStmt(x) {
		start, _ := x.Span()
		p.errorf(start, "expression result unused")
	}
	return &ast.ExpressionStatement{X: x}
}

func (p *parser) parseIf() *ast.IfStatement {
	start := p.expect(token.IF)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	cons := p.parseBlock()

	stmt := &ast.IfStatement{Start: start, Cond: cond, Cons: cons}
	if _, ok := p.accept(token.ELSE); ok {
		if p.at(token.IF) {
			stmt.Alt = p.parseIf()
		} else {
			stmt.Alt = p.parseBlock()
		}
	}
	return stmt
}

func (p *parser) parseWhile() *ast.WhileStatement {
	start := p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseBlock()
	return &ast.WhileStatement{Start: start, Cond: cond, Body: body}
}

func (p *parser) parseDoWhile() *ast.DoWhileStatement {
	start := p.expect(token.DO)
	body := p.parseBlock()
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	end := p.curPos()
	p.expectSemi()
	return &ast.DoWhileStatement{Start: start, Body: body, Cond: cond, End: end}
}

// parseFor parses the classic three-part "for (init; cond; post) body".
// Init may be a var/let/const declaration or a bare expression statement.
func (p *parser) parseFor() *ast.ForStatement {
	start := p.expect(token.FOR)
	p.expect(token.LPAREN)

	stmt := &ast.ForStatement{Start: start}
	switch {
	case p.at(token.SEMI):
		p.advance()
	case p.at(token.VAR) || p.at(token.LET) || p.at(token.CONST):
		stmt.Init = p.parseVarDecl()
	default:
		x := p.parseExpr()
		p.expectSemi()
		stmt.Init = &ast.ExpressionStatement{X: x}
	}

	if !p.at(token.SEMI) {
		stmt.Cond = p.parseExpr()
	}
	p.expect(token.SEMI)

	if !p.at(token.RPAREN) {
		stmt.Post = p.parseExpr()
	}
	p.expect(token.RPAREN)

	stmt.Body = p.parseBlock()
	return stmt
}

func (p *parser) parseBreak() *ast.BreakStatement {
	start := p.expect(token.BREAK)
	p.expectSemi()
	return &ast.BreakStatement{Start: start}
}

func (p *parser) parseReturn() *ast.ReturnStatement {
	start := p.expect(token.RETURN)
	stmt := &ast.ReturnStatement{Start: start}
	if !p.at(token.SEMI) && !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt.X = p.parseExpr()
	}
	p.expectSemi()
	return stmt
}

func (p *parser) parseSwitch() *ast.SwitchStatement {
	start := p.expect(token.SWITCH)
	p.expect(token.LPAREN)
	disc := p.parseExpr()
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)

	stmt := &ast.SwitchStatement{Start: start, Disc: disc}
	seenDefault := false
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		c := &ast.SwitchCase{Start: p.curPos()}
		if _, ok := p.accept(token.CASE); ok {
			c.Test = p.parseExpr()
		} else if _, ok := p.accept(token.DEFAULT); ok {
			if seenDefault {
				p.errorf(c.Start, "switch statement may have at most one default case")
			}
			seenDefault = true
		} else {
			p.errorf(p.curPos(), "expected 'case' or 'default', got %s", p.tok().GoString())
			p.syncAfterError()
			continue
		}
		p.expect(token.COLON)
		for !p.at(token.CASE) && !p.at(token.DEFAULT) && !p.at(token.RBRACE) && !p.at(token.EOF) {
			if s := p.parseStmt(); s != nil {
				c.Body = append(c.Body, s)
			}
		}
		stmt.Cases = append(stmt.Cases, c)
	}
	stmt.End = p.expect(token.RBRACE)
	return stmt
}

func (p *parser) parseFunctionDecl() *ast.FunctionDeclaration {
	start := p.expect(token.FUNCTION)
	if !p.at(token.IDENT) {
		p.errorf(p.curPos(), "expected function name, got %s", p.tok().GoString())
	}
	name := &ast.IdentExpr{Start: p.curPos(), Lit: p.lit()}
	p.advance()
	sig := p.parseFuncSignature()
	body := p.parseBlock()
	return &ast.FunctionDeclaration{Start: start, Name: name, Sig: sig, Body: body}
}

// parseImport parses "import { a, b as c } from 'mod'" and the default-
// import form "import a from 'mod'".
func (p *parser) parseImport() *ast.ImportDeclaration {
	start := p.expect(token.IMPORT)
	decl := &ast.ImportDeclaration{Start: start}

	if p.at(token.IDENT) {
		name := &ast.IdentExpr{Start: p.curPos(), Lit: p.lit()}
		p.advance()
		decl.Names = append(decl.Names, name)
		decl.Imported = append(decl.Imported, "")
	} else {
		p.expect(token.LBRACE)
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			if !p.at(token.IDENT) {
				p.errorf(p.curPos(), "expected import name, got %s", p.tok().GoString())
				break
			}
			imported := p.lit()
			pos := p.curPos()
			p.advance()
			local := imported
			if _, ok := p.accept(token.AS); ok {
				local = p.lit()
				p.advance()
			}
			decl.Names = append(decl.Names, &ast.IdentExpr{Start: pos, Lit: local})
			decl.Imported = append(decl.Imported, imported)
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
		}
		p.expect(token.RBRACE)
	}

	p.expect(token.FROM)
	if p.at(token.STRING) {
		decl.Specifier = p.lit()
		p.advance()
	} else {
		p.errorf(p.curPos(), "expected module specifier string, got %s", p.tok().GoString())
	}
	p.expectSemi()
	return decl
}

// parseExport parses "export function/var/let/const ..." and the
// re-export form "export { a, b }".
func (p *parser) parseExport() *ast.ExportDeclaration {
	start := p.expect(token.EXPORT)
	decl := &ast.ExportDeclaration{Start: start}

	if p.at(token.LBRACE) {
		p.advance()
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			if !p.at(token.IDENT) {
				p.errorf(p.curPos(), "expected export name, got %s", p.tok().GoString())
				break
			}
			decl.Names = append(decl.Names, &ast.IdentExpr{Start: p.curPos(), Lit: p.lit()})
			p.advance()
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
		}
		p.expect(token.RBRACE)
		p.expectSemi()
		return decl
	}

	decl.Decl = p.parseStmt()
	return decl
}
