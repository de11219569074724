// Package parser implements the parser that transforms source text into an
// abstract syntax tree (AST). Together with lang/scanner it realizes the
// "AST Provider" of spec §6: the scope analyzer and IL compiler treat the
// resulting tree as an opaque input and never import this package.
package parser

import (
	"fmt"
	gotoken "go/token"
	"os"

	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/scanner"
	"github.com/mna/microvium/lang/token"
)

// ParseFiles parses the named source files and returns the fileset along
// with the resulting Programs and any error encountered. The error, if
// non-nil, is guaranteed to be a scanner.ErrorList.
func ParseFiles(fset *token.FileSet, files ...string) ([]*ast.Program, error) {
	progs := make([]*ast.Program, 0, len(files))
	var el scanner.ErrorList
	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			el.Add(toGoPos(token.Position{Filename: file}), err.Error())
			continue
		}
		prog, perr := ParseSource(fset, file, b)
		if perr != nil {
			if list, ok := perr.(scanner.ErrorList); ok {
				el = append(el, list...)
			}
		}
		progs = append(progs, prog)
	}
	el.Sort()
	return progs, el.Err()
}

// ParseSource parses a single in-memory source file under filename,
// registering it with fset, and returns the resulting Program. The error, if
// non-nil, is guaranteed to be a scanner.ErrorList.
func ParseSource(fset *token.FileSet, filename string, src []byte) (*ast.Program, error) {
	file, toks, scanErr := scanner.ScanFiles(fset, filename, src)

	p := &parser{file: file, toks: toks}
	if list, ok := scanErr.(scanner.ErrorList); ok {
		p.errors = append(p.errors, list...)
	}
	prog := p.parseProgram()
	prog.Name = filename
	p.errors.Sort()
	return prog, p.errors.Err()
}

type parser struct {
	file *token.File
	toks []scanner.TokenAndValue
	pos  int // index into toks of the current token

	errors scanner.ErrorList
}

func (p *parser) cur() scanner.TokenAndValue  { return p.toks[p.pos] }
func (p *parser) tok() token.Token            { return p.toks[p.pos].Token }
func (p *parser) lit() string                 { return p.toks[p.pos].Lit }
func (p *parser) curPos() token.Pos           { return p.toks[p.pos].Pos }
func (p *parser) advance() scanner.TokenAndValue {
	tv := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tv
}

func (p *parser) at(tok token.Token) bool { return p.tok() == tok }

func (p *parser) accept(tok token.Token) (token.Pos, bool) {
	if p.at(tok) {
		pos := p.curPos()
		p.advance()
		return pos, true
	}
	return 0, false
}

func (p *parser) expect(tok token.Token) token.Pos {
	if pos, ok := p.accept(tok); ok {
		return pos
	}
	p.errorf(p.curPos(), "expected %s, got %s", tok.GoString(), p.tok().GoString())
	return p.curPos()
}

// expectSemi consumes a statement-terminating ';' if present; per the
// scanner's automatic-semicolon-insertion, a SEMI token is always present at
// a valid statement boundary.
func (p *parser) expectSemi() {
	if _, ok := p.accept(token.SEMI); !ok {
		p.errorf(p.curPos(), "expected ';', got %s", p.tok().GoString())
	}
}

func (p *parser) errorf(pos token.Pos, format string, args ...interface{}) {
	p.errors.Add(toGoPos(p.file.Position(pos)), fmt.Sprintf(format, args...))
}

func toGoPos(pos token.Position) gotoken.Position {
	return gotoken.Position{Filename: pos.Filename, Line: pos.Line, Column: pos.Col}
}

func (p *parser) parseProgram() *ast.Program {
	start := p.curPos()
	prog := &ast.Program{Body: &ast.Block{Start: start}}
	for !p.at(token.EOF) {
		if s := p.parseStmt(); s != nil {
			prog.Body.Stmts = append(prog.Body.Stmts, s)
		}
	}
	prog.EOF = p.curPos()
	prog.Body.End = prog.EOF
	return prog
}

func (p *parser) parseBlock() *ast.Block {
	start := p.expect(token.LBRACE)
	b := &ast.Block{Start: start}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		if s := p.parseStmt(); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	b.End = p.expect(token.RBRACE)
	return b
}

func (p *parser) syncAfterError() {
	for !p.at(token.SEMI) && !p.at(token.RBRACE) && !p.at(token.EOF) {
		p.advance()
	}
	p.accept(token.SEMI)
}

// tokenizeSub scans an embedded template-literal expression in isolation.
// Positions are relative to the substring, which is good enough for error
// reporting purposes within the enclosing template's own diagnostics.
func tokenizeSub(filename, src string) []scanner.TokenAndValue {
	var s scanner.Scanner
	s.Init(filename, []byte(src), nil)
	var toks []scanner.TokenAndValue
	for {
		tok, lit, pos := s.Scan()
		toks = append(toks, scanner.TokenAndValue{Token: tok, Lit: lit, Pos: pos})
		if tok == token.EOF {
			break
		}
	}
	return toks
}
