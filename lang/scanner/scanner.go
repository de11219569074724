// Some of the scanner package is adapted from the Go source code:
// https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/go/scanner/scanner.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scanner tokenizes source text for the parser. It implements the
// "AST Provider" leaf of the pipeline together with lang/parser: the scope
// analyzer and IL compiler treat both packages as an opaque source of a
// typed syntax tree, so the scanner only needs to support the restricted
// grammar named in the external interfaces contract, not full language
// conformance.
package scanner

import (
	"fmt"
	"go/scanner"
	gotoken "go/token"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mna/microvium/lang/token"
)

// Error and ErrorList are reused from go/scanner, exactly as the teacher
// repo reuses the same stdlib types for its own error accumulation.
type (
	Error     = scanner.Error
	ErrorList = scanner.ErrorList
)

// PrintError prints each error in err (if it is a list) or err itself.
var PrintError = scanner.PrintError

// TokenAndValue pairs a scanned token with its literal text (for IDENT,
// NUMBER, STRING, TEMPLATE) and its starting position.
type TokenAndValue struct {
	Token token.Token
	Lit   string
	Pos   token.Pos
}

// ScanFiles tokenizes src under the given filename, registering it with
// fset, and returns the owning File, the full token stream (always
// terminated by token.EOF) and any scan errors, sorted the way
// go/scanner.ErrorList does.
func ScanFiles(fset *token.FileSet, filename string, src []byte) (*token.File, []TokenAndValue, error) {
	file := fset.AddFile(filename, -1, len(src))

	var s Scanner
	var el ErrorList
	s.Init(filename, src, func(pos token.Position, msg string) {
		el.Add(gotoken.Position{Filename: pos.Filename, Line: pos.Line, Column: pos.Col}, msg)
	})

	var toks []TokenAndValue
	for {
		tok, lit, pos := s.Scan()
		toks = append(toks, TokenAndValue{Token: tok, Lit: lit, Pos: pos})
		if tok == token.EOF {
			break
		}
	}
	el.Sort()
	return file, toks, el.Err()
}

// ErrorHandler is called for each lexical error encountered while scanning.
type ErrorHandler func(pos token.Position, msg string)

// Scanner tokenizes a single source file. It is adapted from the teacher's
// own Scanner (itself adapted from go/scanner): a single rune-at-a-time loop
// tracking line/column by hand instead of offset+line-table, since our
// token.Pos already packs line and column directly.
type Scanner struct {
	filename string
	src      []byte
	err      ErrorHandler

	offset   int
	rdOffset int
	ch       rune
	line     int
	col      int

	insertedSemi bool // true if the last token could end a statement (ASI)
}

// Init prepares s to scan src under filename, reporting errors to err (which
// may be nil).
func (s *Scanner) Init(filename string, src []byte, err ErrorHandler) {
	s.filename = filename
	s.src = src
	s.err = err
	s.offset = 0
	s.rdOffset = 0
	s.line = 1
	s.col = 0
	s.insertedSemi = false
	s.next()
}

const eof = -1

func (s *Scanner) next() {
	if s.ch == '\n' {
		s.line++
		s.col = 0
	}
	if s.rdOffset >= len(s.src) {
		s.offset = len(s.src)
		s.ch = eof
		return
	}
	s.offset = s.rdOffset
	r, w := rune(s.src[s.rdOffset]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(s.src[s.rdOffset:])
	}
	s.rdOffset += w
	s.ch = r
	s.col++
}

func (s *Scanner) peek() byte {
	if s.rdOffset < len(s.src) {
		return s.src[s.rdOffset]
	}
	return 0
}

func (s *Scanner) pos() token.Pos { return token.MakePos(s.line, s.col) }

func (s *Scanner) errorf(pos token.Pos, format string, args ...interface{}) {
	if s.err == nil {
		return
	}
	line, col := pos.LineCol()
	s.err(token.Position{Filename: s.filename, Line: line, Col: col}, fmt.Sprintf(format, args...))
}

func isLetter(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// Scan returns the next token, its literal text (for IDENT/NUMBER/STRING/
// TEMPLATE) and its starting position.
func (s *Scanner) Scan() (token.Token, string, token.Pos) {
	s.skipWhitespaceAndComments()

	pos := s.pos()
	prevInsertedSemi := s.insertedSemi
	s.insertedSemi = false

	if s.ch == eof {
		if prevInsertedSemi {
			return token.SEMI, "", pos
		}
		return token.EOF, "", pos
	}

	ch := s.ch
	switch {
	case isLetter(ch):
		lit := s.scanIdentifier()
		tok := token.Lookup(lit)
		switch tok {
		case token.IDENT, token.TRUE, token.FALSE, token.NULL, token.UNDEFINED, token.THIS,
			token.BREAK, token.RETURN:
			s.insertedSemi = true
		}
		return tok, lit, pos
	case isDigit(ch):
		lit := s.scanNumber()
		s.insertedSemi = true
		return token.NUMBER, lit, pos
	}

	switch ch {
	case '"', '\'':
		lit := s.scanString(byte(ch))
		s.insertedSemi = true
		return token.STRING, lit, pos
	case '`':
		lit := s.scanTemplate()
		s.insertedSemi = true
		return token.TEMPLATE, lit, pos
	}

	s.next()
	switch ch {
	case '\n':
		if prevInsertedSemi {
			return token.SEMI, "", pos
		}
		return s.Scan()
	case '+':
		if s.ch == '+' {
			s.next()
			s.insertedSemi = true
			return token.INC, "", pos
		}
		if s.ch == '=' {
			s.next()
			return token.PLUS_EQ, "", pos
		}
		return token.PLUS, "", pos
	case '-':
		if s.ch == '-' {
			s.next()
			s.insertedSemi = true
			return token.DEC, "", pos
		}
		if s.ch == '=' {
			s.next()
			return token.MINUS_EQ, "", pos
		}
		return token.MINUS, "", pos
	case '*':
		if s.ch == '=' {
			s.next()
			return token.STAR_EQ, "", pos
		}
		return token.STAR, "", pos
	case '/':
		if s.ch == '=' {
			s.next()
			return token.SLASH_EQ, "", pos
		}
		return token.SLASH, "", pos
	case '%':
		if s.ch == '=' {
			s.next()
			return token.PERCENT_EQ, "", pos
		}
		return token.PERCENT, "", pos
	case '&':
		if s.ch == '&' {
			s.next()
			return token.AND2, "", pos
		}
		if s.ch == '=' {
			s.next()
			return token.AMP_EQ, "", pos
		}
		return token.AMP, "", pos
	case '|':
		if s.ch == '|' {
			s.next()
			return token.OR2, "", pos
		}
		if s.ch == '=' {
			s.next()
			return token.PIPE_EQ, "", pos
		}
		return token.PIPE, "", pos
	case '^':
		if s.ch == '=' {
			s.next()
			return token.CARET_EQ, "", pos
		}
		return token.CARET, "", pos
	case '~':
		return token.TILDE, "", pos
	case '!':
		if s.ch == '=' {
			s.next()
			if s.ch == '=' {
				s.next()
				return token.NEQ3, "", pos
			}
			return token.NEQ2, "", pos
		}
		return token.BANG, "", pos
	case '<':
		if s.ch == '<' {
			s.next()
			if s.ch == '=' {
				s.next()
				return token.LTLT_EQ, "", pos
			}
			return token.LTLT, "", pos
		}
		if s.ch == '=' {
			s.next()
			return token.LE, "", pos
		}
		return token.LT, "", pos
	case '>':
		if s.ch == '>' {
			s.next()
			if s.ch == '=' {
				s.next()
				return token.GTGT_EQ, "", pos
			}
			return token.GTGT, "", pos
		}
		if s.ch == '=' {
			s.next()
			return token.GE, "", pos
		}
		return token.GT, "", pos
	case '=':
		if s.ch == '=' {
			s.next()
			if s.ch == '=' {
				s.next()
				return token.EQ3, "", pos
			}
			return token.EQ2, "", pos
		}
		if s.ch == '>' {
			s.next()
			return token.ARROW, "", pos
		}
		return token.ASSIGN, "", pos
	case '?':
		if s.ch == '?' {
			s.next()
			return token.QUESTION2, "", pos
		}
		return token.QUESTION, "", pos
	case '.':
		if s.ch == '.' && s.peek() == '.' {
			s.next()
			s.next()
			return token.SPREAD, "", pos
		}
		return token.DOT, "", pos
	case ',':
		return token.COMMA, "", pos
	case ':':
		return token.COLON, "", pos
	case ';':
		return token.SEMI, "", pos
	case '(':
		return token.LPAREN, "", pos
	case ')':
		s.insertedSemi = true
		return token.RPAREN, "", pos
	case '[':
		return token.LBRACK, "", pos
	case ']':
		s.insertedSemi = true
		return token.RBRACK, "", pos
	case '{':
		return token.LBRACE, "", pos
	case '}':
		s.insertedSemi = true
		return token.RBRACE, "", pos
	}

	s.errorf(pos, "illegal character %#U", ch)
	return token.ILLEGAL, string(ch), pos
}

func (s *Scanner) skipWhitespaceAndComments() {
	for {
		switch {
		case s.ch == ' ' || s.ch == '\t' || s.ch == '\r':
			s.next()
		case s.ch == '/' && s.peek() == '/':
			for s.ch != '\n' && s.ch != eof {
				s.next()
			}
		case s.ch == '/' && s.peek() == '*':
			s.next()
			s.next()
			for !(s.ch == '*' && s.peek() == '/') && s.ch != eof {
				s.next()
			}
			s.next()
			s.next()
		default:
			return
		}
	}
}

func (s *Scanner) scanIdentifier() string {
	start := s.offset
	for isLetter(s.ch) || isDigit(s.ch) {
		s.next()
	}
	return string(s.src[start:s.offset])
}

func (s *Scanner) scanNumber() string {
	start := s.offset
	for isDigit(s.ch) {
		s.next()
	}
	if s.ch == '.' && isDigit(rune(s.peek())) {
		s.next()
		for isDigit(s.ch) {
			s.next()
		}
	}
	if s.ch == 'e' || s.ch == 'E' {
		s.next()
		if s.ch == '+' || s.ch == '-' {
			s.next()
		}
		for isDigit(s.ch) {
			s.next()
		}
	}
	return string(s.src[start:s.offset])
}

func (s *Scanner) scanString(quote byte) string {
	var b strings.Builder
	s.next() // consume opening quote
	for s.ch != rune(quote) && s.ch != eof && s.ch != '\n' {
		if s.ch == '\\' {
			s.next()
			b.WriteRune(unescape(s.ch))
			s.next()
			continue
		}
		b.WriteRune(s.ch)
		s.next()
	}
	if s.ch == rune(quote) {
		s.next()
	} else {
		s.errorf(s.pos(), "unterminated string literal")
	}
	return b.String()
}

// scanTemplate returns the raw text between the backticks, unescaped except
// for \\ and the quote character, leaving ${...} substitutions intact for
// the parser to split and recursively parse as expressions.
func (s *Scanner) scanTemplate() string {
	var b strings.Builder
	s.next() // consume opening backtick
	depth := 0
	for s.ch != eof {
		if s.ch == '`' && depth == 0 {
			break
		}
		if s.ch == '$' && s.peek() == '{' {
			depth++
			b.WriteRune(s.ch)
			s.next()
			b.WriteRune(s.ch)
			s.next()
			continue
		}
		if s.ch == '{' && depth > 0 {
			depth++
		}
		if s.ch == '}' && depth > 0 {
			depth--
		}
		if s.ch == '\\' {
			s.next()
			b.WriteRune(unescape(s.ch))
			s.next()
			continue
		}
		b.WriteRune(s.ch)
		s.next()
	}
	if s.ch == '`' {
		s.next()
	} else {
		s.errorf(s.pos(), "unterminated template literal")
	}
	return b.String()
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return ch
	}
}
