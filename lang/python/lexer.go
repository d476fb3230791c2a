package python

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// IndentWidth is the number of spaces one block level is indented by.
const IndentWidth = 4

// Lexer tokenizes Python-dialect source. Leading whitespace becomes INDENT
// and DEDENT tokens; line ends outside brackets become NEWLINE tokens.
type Lexer struct {
	input     string
	limit     int
	pos       int
	readPos   int
	ch        rune
	line      int
	lineStart int

	indents     []int
	pending     []Token
	atLineStart bool
	nesting     int // open brackets; newlines inside them are ignored
	lastType    TokenType
	emitted     bool
	inline      bool // lexing an f-string expression: no layout tokens

	err *vm.SyntaxError
}

// NewLexer creates a lexer over the whole input.
func NewLexer(input string) *Lexer {
	l := newLexerAt(input, vm.Position{Offset: 0, Line: 1, Column: 1}, len(input))
	l.atLineStart = true
	return l
}

// newInlineLexer scans an f-string expression in place, reporting positions
// relative to the full input.
func newInlineLexer(input string, start vm.Position, limit int) *Lexer {
	l := newLexerAt(input, start, limit)
	l.inline = true
	return l
}

func newLexerAt(input string, start vm.Position, limit int) *Lexer {
	l := &Lexer{
		input:     input,
		limit:     limit,
		readPos:   start.Offset,
		line:      start.Line,
		lineStart: start.Offset - (start.Column - 1),
		indents:   []int{0},
		lastType:  TokenNewline,
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= l.limit {
		l.ch = 0
		l.pos = l.limit
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= l.limit {
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
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}
	if l.err != nil {
		return Token{Type: TokenError, Literal: string(l.err.Type), Pos: l.err.Location.Start, End: l.err.Location.End}
	}
	if l.atLineStart {
		l.atLineStart = false
		if tok, ok := l.readIndentation(); ok {
			return tok
		}
	}
	l.skipInlineSpace()
	start := l.position()

	switch ch := l.ch; {
	case ch == 0:
		return l.finish(start)
	case ch == '\n':
		l.readChar()
		if l.nesting > 0 || l.inline {
			return l.next()
		}
		l.atLineStart = true
		return Token{Type: TokenNewline, Pos: start, End: l.position()}
	case (ch == 'f' || ch == 'F') && (l.peekChar() == '"' || l.peekChar() == '\''):
		l.readChar()
		return l.readFString(start, l.ch)
	case isLetter(ch):
		return l.readIdentifier(start)
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(start)
	case ch == '"' || ch == '\'':
		return l.readString(start, ch)
	}
	return l.readPunctuation(start)
}

// finish closes the last logical line and every open block at EOF.
func (l *Lexer) finish(at vm.Position) Token {
	eof := Token{Type: TokenEOF, Pos: at, End: at}
	if l.inline {
		return eof
	}
	if l.emitted && l.lastType != TokenNewline && l.lastType != TokenDedent && l.lastType != TokenEOF {
		l.pending = append(l.pending, Token{Type: TokenNewline, Pos: at, End: at})
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.pending = append(l.pending, Token{Type: TokenDedent, Pos: at, End: at})
	}
	l.pending = append(l.pending, eof)
	return l.next()
}

// readIndentation measures a line's leading spaces. Blank and comment-only
// lines are skipped. ok is false when the indentation is unchanged.
func (l *Lexer) readIndentation() (Token, bool) {
	for {
		lineBegin := l.position()
		width := 0
		for l.ch == ' ' || l.ch == '\t' {
			if l.ch == '\t' {
				return l.fail(vm.TabIndentation, l.position(), nil), true
			}
			width++
			l.readChar()
		}
		if l.ch == '\r' {
			l.readChar()
		}
		switch l.ch {
		case '#':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			fallthrough
		case '\n':
			if l.ch == '\n' {
				l.readChar()
				continue
			}
			return Token{}, false
		case 0:
			return Token{}, false
		}
		return l.indent(lineBegin, width)
	}
}

func (l *Lexer) indent(lineBegin vm.Position, width int) (Token, bool) {
	at := l.position()
	top := l.indents[len(l.indents)-1]
	span := vm.Position{Offset: lineBegin.Offset, Line: lineBegin.Line, Column: 1}
	switch {
	case width == top:
		return Token{}, false
	case width%IndentWidth != 0:
		return l.fail(vm.IncorrectIndentation, span, map[string]any{"actual": width, "expected": l.expectedIndent(width)}), true
	case width > top:
		if width != top+IndentWidth {
			return l.fail(vm.IncorrectIndentation, span, map[string]any{"actual": width, "expected": top + IndentWidth}), true
		}
		l.indents = append(l.indents, width)
		return Token{Type: TokenIndent, Pos: at, End: at}, true
	}
	for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
		l.indents = l.indents[:len(l.indents)-1]
		l.pending = append(l.pending, Token{Type: TokenDedent, Pos: at, End: at})
	}
	if l.indents[len(l.indents)-1] != width {
		l.pending = nil
		return l.fail(vm.IncorrectIndentation, span, map[string]any{"actual": width, "expected": l.indents[len(l.indents)-1]}), true
	}
	return l.next(), true
}

// expectedIndent picks the nearest valid width for an error message.
func (l *Lexer) expectedIndent(width int) int {
	top := l.indents[len(l.indents)-1]
	if width > top {
		return top + IndentWidth
	}
	return width - width%IndentWidth
}

func (l *Lexer) skipInlineSpace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '\\' && l.peekChar() == '\n':
			l.readChar()
			l.readChar()
		case l.ch == '#':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '\n' && l.nesting > 0:
			l.readChar()
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
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return l.fail(vm.UnknownCharacter, l.position(), map[string]any{"character": string(l.ch)})
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	if isLetter(l.ch) {
		return l.fail(vm.UnknownCharacter, l.position(), map[string]any{"character": string(l.ch)})
	}
	return l.token(TokenNumber, l.input[start.Offset:l.pos], start)
}

func (l *Lexer) readString(start vm.Position, quote rune) Token {
	l.readChar()
	var sb strings.Builder
	for l.ch != quote {
		if l.ch == 0 || l.ch == '\n' {
			return l.fail(vm.UnterminatedString, start, nil)
		}
		if l.ch == '\\' {
			if !l.readEscape(&sb) {
				return l.fail(vm.UnterminatedString, start, nil)
			}
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar()
	return l.token(TokenString, sb.String(), start)
}

// readEscape decodes one backslash escape. Unknown escapes are kept
// verbatim, backslash included.
func (l *Lexer) readEscape(sb *strings.Builder) bool {
	l.readChar()
	switch l.ch {
	case 0:
		return false
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case '0':
		sb.WriteByte(0)
	case '\\', '\'', '"':
		sb.WriteRune(l.ch)
	case '\n':
		// line continuation
	case 'x', 'u':
		width := 2
		if l.ch == 'u' {
			width = 4
		}
		var hex strings.Builder
		for i := 0; i < width && isHexDigit(l.peekChar()); i++ {
			l.readChar()
			hex.WriteRune(l.ch)
		}
		n, err := strconv.ParseUint(hex.String(), 16, 32)
		if hex.Len() != width || err != nil {
			return false
		}
		sb.WriteRune(rune(n))
	default:
		sb.WriteByte('\\')
		sb.WriteRune(l.ch)
	}
	l.readChar()
	return true
}

// readFString scans f"..." into parts. l.ch is the opening quote. Doubled
// braces are literal; each {expr} is kept as source for the parser.
func (l *Lexer) readFString(start vm.Position, quote rune) Token {
	l.readChar()
	var parts []FStringPart
	var sb strings.Builder
	textPos := l.position()
	for {
		switch {
		case l.ch == 0 || l.ch == '\n':
			return l.fail(vm.UnterminatedString, start, nil)
		case l.ch == quote:
			parts = append(parts, FStringPart{Text: sb.String(), Pos: textPos})
			l.readChar()
			return Token{Type: TokenFString, Literal: l.input[start.Offset:l.pos], Pos: start, End: l.position(), Parts: parts}
		case l.ch == '\\':
			if !l.readEscape(&sb) {
				return l.fail(vm.UnterminatedString, start, nil)
			}
		case (l.ch == '{' && l.peekChar() == '{') || (l.ch == '}' && l.peekChar() == '}'):
			sb.WriteRune(l.ch)
			l.readChar()
			l.readChar()
		case l.ch == '{':
			parts = append(parts, FStringPart{Text: sb.String(), Pos: textPos})
			sb.Reset()
			open := l.position()
			l.readChar()
			exprPos := l.position()
			if !l.skipReplacement(quote) {
				return l.fail(vm.UnterminatedString, start, nil)
			}
			src := l.input[exprPos.Offset:l.pos]
			if strings.TrimSpace(src) == "" {
				l.readChar()
				return l.fail(vm.EmptyTemplateLiteralInterpolation, open, nil)
			}
			parts = append(parts, FStringPart{Text: src, IsExpr: true, Pos: exprPos})
			l.readChar() // }
			textPos = l.position()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// skipReplacement advances to the '}' closing a replacement field, stepping
// over nested brackets and strings in the other quote style.
func (l *Lexer) skipReplacement(quote rune) bool {
	depth := 0
	for {
		switch l.ch {
		case 0, '\n', quote:
			return false
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				return true
			}
			depth--
		case '"', '\'':
			inner := l.ch
			l.readChar()
			for l.ch != inner {
				if l.ch == 0 || l.ch == '\n' {
					return false
				}
				l.readChar()
			}
		}
		l.readChar()
	}
}

var punctuation = []struct {
	text string
	typ  TokenType
}{
	// longest first
	{"**", TokenStarStar}, {"//", TokenSlashSlash},
	{"==", TokenEqual}, {"!=", TokenNotEqual}, {"<=", TokenLessEqual},
	{">=", TokenGreaterEqual}, {"+=", TokenPlusAssign}, {"-=", TokenMinusAssign},
	{"*=", TokenStarAssign}, {"/=", TokenSlashAssign},
	{"(", TokenLParen}, {")", TokenRParen}, {"[", TokenLBracket},
	{"]", TokenRBracket}, {"{", TokenLBrace}, {"}", TokenRBrace},
	{",", TokenComma}, {".", TokenDot}, {":", TokenColon},
	{";", TokenSemicolon}, {"=", TokenAssign}, {"+", TokenPlus},
	{"-", TokenMinus}, {"*", TokenStar}, {"/", TokenSlash},
	{"%", TokenPercent}, {"<", TokenLess}, {">", TokenGreater},
}

func (l *Lexer) readPunctuation(start vm.Position) Token {
	rest := l.input[l.pos:l.limit]
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

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
