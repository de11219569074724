package scanner_test

import (
	"testing"

	"github.com/mna/microvium/lang/scanner"
	"github.com/mna/microvium/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []scanner.TokenAndValue {
	t.Helper()
	fset := token.NewFileSet()
	_, toks, err := scanner.ScanFiles(fset, "test.mvm", []byte(src))
	require.NoError(t, err)
	return toks
}

func TestScanBasics(t *testing.T) {
	toks := scanAll(t, `let x = 1 + 2;`)
	want := []token.Token{token.LET, token.IDENT, token.ASSIGN, token.NUMBER, token.PLUS, token.NUMBER, token.SEMI, token.EOF}
	require.Len(t, toks, len(want))
	for i, w := range want {
		require.Equalf(t, w, toks[i].Token, "token %d", i)
	}
}

func TestScanStrictEquality(t *testing.T) {
	toks := scanAll(t, `a === b !== c`)
	require.Equal(t, token.EQ3, toks[1].Token)
	require.Equal(t, token.NEQ3, toks[3].Token)
}

func TestScanArrowAndTemplate(t *testing.T) {
	toks := scanAll(t, "() => `a${1}b`")
	require.Equal(t, token.ARROW, toks[2].Token)
	require.Equal(t, token.TEMPLATE, toks[3].Token)
	require.Equal(t, "a${1}b", toks[3].Lit)
}

func TestAutomaticSemicolonInsertion(t *testing.T) {
	toks := scanAll(t, "let x = 1\nlet y = 2")
	var semis int
	for _, tv := range toks {
		if tv.Token == token.SEMI {
			semis++
		}
	}
	require.GreaterOrEqual(t, semis, 1)
}
