package javascript

import (
	"testing"

	"github.com/chazu/jiki/vm"
)

func TestLexerPunctuation(t *testing.T) {
	input := `( ) [ ] { } , . ; : = += -= *= /= + - * / % ** ++ -- == === != !== < <= > >= && || !`
	expected := []TokenType{
		TokenLParen, TokenRParen, TokenLBracket, TokenRBracket, TokenLBrace, TokenRBrace,
		TokenComma, TokenDot, TokenSemicolon, TokenColon,
		TokenAssign, TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenSlashAssign,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenStarStar,
		TokenPlusPlus, TokenMinusMinus,
		TokenEqual, TokenStrictEqual, TokenNotEqual, TokenStrictNotEq,
		TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenAnd, TokenOr, TokenBang, TokenEOF,
	}

	l := NewLexer(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, want)
		}
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"let", TokenLet},
		{"const", TokenConst},
		{"function", TokenFunction},
		{"repeat", TokenRepeat},
		{"undefined", TokenUndefined},
		{"class", TokenReserved},
		{"typeof", TokenReserved},
		{"letter", TokenIdentifier},
		{"$el", TokenIdentifier},
		{"_x1", TokenIdentifier},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.input {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.input)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []string{"42", "0", "3.14", ".5", "1e3", "2.5E-4"}

	for _, input := range tests {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("Lexer(%q): type = %v, want NUMBER", input, tok.Type)
		}
		if tok.Literal != input {
			t.Errorf("Lexer(%q): literal = %q, want %q", input, tok.Literal, input)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'single'`, "single"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"quote\"d"`, `quote"d`},
		{`"\x41B\u{1F600}"`, "AB\U0001F600"},
		{`"😀"`, "\U0001F600"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%s): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%s): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerTemplateParts(t *testing.T) {
	tok := NewLexer("`a${x + 1}b${`in${y}`}`").NextToken()
	if tok.Type != TokenTemplate {
		t.Fatalf("type = %v, want TEMPLATE", tok.Type)
	}
	var got []string
	for _, p := range tok.Parts {
		if p.IsExpr {
			got = append(got, "${"+p.Text+"}")
		} else {
			got = append(got, p.Text)
		}
	}
	want := []string{"a", "${x + 1}", "b", "${`in${y}`}", ""}
	if len(got) != len(want) {
		t.Fatalf("parts = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		want  vm.ErrorType
	}{
		{`"open`, vm.UnterminatedString},
		{"\"line\nbreak\"", vm.UnterminatedString},
		{"`no end", vm.MissingBacktickToTerminateTemplateLiteral},
		{"`empty ${ }`", vm.EmptyTemplateLiteralInterpolation},
		{"#", vm.UnknownCharacter},
		{"12abc", vm.UnknownCharacter},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		var tok Token
		for tok = l.NextToken(); tok.Type != TokenError && tok.Type != TokenEOF; tok = l.NextToken() {
		}
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): no error token", tc.input)
			continue
		}
		if l.Err() == nil || l.Err().Type != tc.want {
			t.Errorf("Lexer(%q): error = %v, want %s", tc.input, l.Err(), tc.want)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("let a = 1;\n  a = 2;")
	// let a = 1 ; a = 2 ; EOF
	if len(toks) != 10 {
		t.Fatalf("got %d tokens, want 10", len(toks))
	}
	second := toks[5]
	if second.Literal != "a" || second.Pos.Line != 2 || second.Pos.Column != 3 {
		t.Errorf("token[5] = %s at %s, want a at 2:3", second, second.Pos)
	}
	// Comments are skipped.
	toks = Tokenize("// note\nx /* inline */ y")
	if len(toks) != 3 || toks[0].Literal != "x" || toks[1].Literal != "y" {
		t.Errorf("Tokenize with comments = %v", toks)
	}
}
