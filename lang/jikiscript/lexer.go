package jikiscript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes JikiScript source. Line ends outside brackets become
// NEWLINE tokens, collapsed so that blank and comment lines produce none.
type Lexer struct {
	input     string
	pos       int
	readPos   int
	ch        rune
	line      int
	lineStart int

	nesting  int
	lastType TokenType
	emitted  bool
	done     bool

	err *vm.SyntaxError
}

// NewLexer creates a lexer over the whole input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, lastType: TokenNewline}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() vm.Position {
	return vm.Position{Offset: l.pos, Line: l.line, Column: l.pos - l.lineStart + 1}
}

// Err returns the first lexical error, if any.
func (l *Lexer) Err() *vm.SyntaxError { return l.err }

func (l *Lexer) fail(typ vm.ErrorType, start vm.Position, ctx map[string]any) Token {
	end := l.position()
	if end.Offset <= start.Offset {
		end = vm.Position{Offset: start.Offset + 1, Line: start.Line, Column: start.Column + 1}
	}
	if l.err == nil {
		l.err = vm.NewSyntaxError(typ, vm.Span{Start: start, End: end}, ctx)
	}
	return Token{Type: TokenError, Literal: string(typ), Pos: start, End: end}
}

func (l *Lexer) token(typ TokenType, literal string, start vm.Position) Token {
	return Token{Type: typ, Literal: literal, Pos: start, End: l.position()}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	tok := l.next()
	if tok.Type != TokenError {
		l.lastType = tok.Type
		if tok.Type != TokenEOF {
			l.emitted = true
		}
	}
	return tok
}

func (l *Lexer) next() Token {
	if l.err != nil {
		return Token{Type: TokenError, Literal: string(l.err.Type), Pos: l.err.Location.Start, End: l.err.Location.End}
	}
	for {
		l.skipSpace()
		if l.ch != '\n' {
			break
		}
		start := l.position()
		l.readChar()
		if l.nesting == 0 && l.lastType != TokenNewline {
			return Token{Type: TokenNewline, Pos: start, End: l.position()}
		}
	}
	start := l.position()

	switch ch := l.ch; {
	case ch == 0:
		// The last line always ends with a NEWLINE.
		if l.emitted && l.lastType != TokenNewline && !l.done {
			l.done = true
			return Token{Type: TokenNewline, Pos: start, End: start}
		}
		return Token{Type: TokenEOF, Pos: start, End: start}
	case isLetter(ch):
		return l.readIdentifier(start)
	case isDigit(ch):
		return l.readNumber(start)
	case ch == '"':
		return l.readString(start)
	}
	return l.readPunctuation(start)
}

// skipSpace skips blanks and comments, stopping at a newline.
func (l *Lexer) skipSpace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '#' || (l.ch == '/' && l.peekChar() == '/'):
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier(start vm.Position) Token {
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	word := l.input[start.Offset:l.pos]
	if typ, ok := keywords[word]; ok {
		return l.token(typ, word, start)
	}
	if reservedWords[word] {
		return l.token(TokenReserved, word, start)
	}
	return l.token(TokenIdentifier, word, start)
}

func (l *Lexer) readNumber(start vm.Position) Token {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isLetter(l.ch) {
		return l.fail(vm.UnknownCharacter, l.position(), map[string]any{"character": string(l.ch)})
	}
	return l.token(TokenNumber, l.input[start.Offset:l.pos], start)
}

func (l *Lexer) readString(start vm.Position) Token {
	l.readChar()
	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case 0, '\n':
			return l.fail(vm.UnterminatedString, start, nil)
		case '\\':
			l.readChar()
			switch l.ch {
			case 0, '\n':
				return l.fail(vm.UnterminatedString, start, nil)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteRune(l.ch)
			default:
				sb.WriteByte('\\')
				sb.WriteRune(l.ch)
			}
		default:
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
	l.readChar()
	return l.token(TokenString, sb.String(), start)
}

var punctuation = []struct {
	text string
	typ  TokenType
}{
	// longest first
	{"==", TokenEqual}, {"!=", TokenNotEqual}, {"<=", TokenLessEqual},
	{">=", TokenGreaterEqual},
	{"(", TokenLParen}, {")", TokenRParen}, {"[", TokenLBracket},
	{"]", TokenRBracket}, {"{", TokenLBrace}, {"}", TokenRBrace},
	{",", TokenComma}, {":", TokenColon}, {"+", TokenPlus},
	{"-", TokenMinus}, {"*", TokenStar}, {"/", TokenSlash},
	{"%", TokenPercent}, {"!", TokenBang}, {"<", TokenLess},
	{">", TokenGreater},
}

func (l *Lexer) readPunctuation(start vm.Position) Token {
	rest := l.input[l.pos:]
	for _, p := range punctuation {
		if strings.HasPrefix(rest, p.text) {
			for range p.text {
				l.readChar()
			}
			switch p.typ {
			case TokenLParen, TokenLBracket, TokenLBrace:
				l.nesting++
			case TokenRParen, TokenRBracket, TokenRBrace:
				if l.nesting > 0 {
					l.nesting--
				}
			}
			return l.token(p.typ, p.text, start)
		}
	}
	ch := l.ch
	l.readChar()
	return l.fail(vm.UnknownCharacter, start, map[string]any{"character": string(ch)})
}

// Tokenize returns every token up to and including EOF or the first error.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return toks
		}
	}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
