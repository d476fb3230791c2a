package javascript

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

// Lexer tokenizes JavaScript-dialect source. Newlines are not tokens; the
// parser uses token positions to find line ends.
type Lexer struct {
	input     string
	limit     int  // scanning stops here (end of an interpolation)
	pos       int  // offset of ch
	readPos   int  // offset after ch
	ch        rune // current character, 0 at the limit
	line      int
	lineStart int

	err *vm.SyntaxError
}

// NewLexer creates a lexer over the whole input.
func NewLexer(input string) *Lexer {
	return newLexerAt(input, vm.Position{Offset: 0, Line: 1, Column: 1}, len(input))
}

// newLexerAt scans input[start.Offset:limit], reporting positions relative
// to the full input.
func newLexerAt(input string, start vm.Position, limit int) *Lexer {
	l := &Lexer{
		input:     input,
		limit:     limit,
		readPos:   start.Offset,
		line:      start.Line,
		lineStart: start.Offset - (start.Column - 1),
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
	if l.err != nil {
		return Token{Type: TokenError, Literal: string(l.err.Type), Pos: l.err.Location.Start, End: l.err.Location.End}
	}
	l.skipWhitespaceAndComments()
	start := l.position()

	switch ch := l.ch; {
	case ch == 0:
		return Token{Type: TokenEOF, Pos: start, End: start}
	case isLetter(ch):
		return l.readIdentifier(start)
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(start)
	case ch == '"' || ch == '\'':
		return l.readString(start, ch)
	case ch == '`':
		return l.readTemplate(start)
	}
	return l.readPunctuation(start)
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
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

// readEscape decodes one backslash escape, leaving ch after it.
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
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0':
		sb.WriteByte(0)
	case '\n':
		// line continuation
	case 'x':
		hex := l.takeHex(2)
		n, err := strconv.ParseUint(hex, 16, 32)
		if len(hex) != 2 || err != nil {
			return false
		}
		sb.WriteRune(rune(n))
		return true
	case 'u':
		var hex string
		if l.peekChar() == '{' {
			l.readChar()
			l.readChar()
			for l.ch != '}' && l.ch != 0 {
				hex += string(l.ch)
				l.readChar()
			}
		} else {
			hex = l.takeHex(4)
			if len(hex) != 4 {
				return false
			}
			n, _ := strconv.ParseUint(hex, 16, 32)
			// A high surrogate followed by \uDC00-\uDFFF is one code point.
			if n >= 0xD800 && n <= 0xDBFF && l.ch == '\\' && l.peekChar() == 'u' {
				save := *l
				l.readChar()
				low := l.takeHex(4)
				m, err := strconv.ParseUint(low, 16, 32)
				if len(low) == 4 && err == nil && m >= 0xDC00 && m <= 0xDFFF {
					sb.WriteRune(rune((n-0xD800)<<10 + (m - 0xDC00) + 0x10000))
					return true
				}
				*l = save
			}
			sb.WriteRune(rune(n))
			return true
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return false
		}
		sb.WriteRune(rune(n))
	default:
		sb.WriteRune(l.ch)
	}
	l.readChar()
	return true
}

// takeHex reads up to n hex digits, starting after the current character.
func (l *Lexer) takeHex(n int) string {
	var sb strings.Builder
	l.readChar()
	for i := 0; i < n && isHexDigit(l.ch); i++ {
		sb.WriteRune(l.ch)
		l.readChar()
	}
	return sb.String()
}

// readTemplate scans a whole template literal into parts. Interpolated
// expressions are kept as source and parsed later by the parser.
func (l *Lexer) readTemplate(start vm.Position) Token {
	l.readChar()
	var parts []TemplatePart
	var sb strings.Builder
	textPos := l.position()
	for {
		switch {
		case l.ch == 0:
			return l.fail(vm.MissingBacktickToTerminateTemplateLiteral, start, nil)
		case l.ch == '`':
			parts = append(parts, TemplatePart{Text: sb.String(), Pos: textPos})
			l.readChar()
			return Token{Type: TokenTemplate, Literal: l.input[start.Offset:l.pos], Pos: start, End: l.position(), Parts: parts}
		case l.ch == '\\':
			if !l.readEscape(&sb) {
				return l.fail(vm.MissingBacktickToTerminateTemplateLiteral, start, nil)
			}
		case l.ch == '$' && l.peekChar() == '{':
			parts = append(parts, TemplatePart{Text: sb.String(), Pos: textPos})
			sb.Reset()
			open := l.position()
			l.readChar()
			l.readChar()
			exprPos := l.position()
			if !l.skipInterpolation() {
				return l.fail(vm.MissingBacktickToTerminateTemplateLiteral, start, nil)
			}
			src := l.input[exprPos.Offset:l.pos]
			if strings.TrimSpace(src) == "" {
				l.readChar()
				return l.fail(vm.EmptyTemplateLiteralInterpolation, open, nil)
			}
			parts = append(parts, TemplatePart{Text: src, IsExpr: true, Pos: exprPos})
			l.readChar() // }
			textPos = l.position()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// skipInterpolation advances to the '}' closing the current ${ ... },
// stepping over nested braces, strings and templates.
func (l *Lexer) skipInterpolation() bool {
	depth := 0
	for {
		switch l.ch {
		case 0:
			return false
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return true
			}
			depth--
		case '"', '\'':
			quote := l.ch
			l.readChar()
			for l.ch != quote {
				if l.ch == 0 {
					return false
				}
				if l.ch == '\\' {
					l.readChar()
				}
				l.readChar()
			}
		case '`':
			l.readChar()
			for l.ch != '`' {
				switch {
				case l.ch == 0:
					return false
				case l.ch == '\\':
					l.readChar()
				case l.ch == '$' && l.peekChar() == '{':
					l.readChar()
					l.readChar()
					if !l.skipInterpolation() {
						return false
					}
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
	{"===", TokenStrictEqual}, {"!==", TokenStrictNotEq},
	{"**", TokenStarStar}, {"++", TokenPlusPlus}, {"--", TokenMinusMinus},
	{"==", TokenEqual}, {"!=", TokenNotEqual}, {"<=", TokenLessEqual},
	{">=", TokenGreaterEqual}, {"&&", TokenAnd}, {"||", TokenOr},
	{"+=", TokenPlusAssign}, {"-=", TokenMinusAssign}, {"*=", TokenStarAssign},
	{"/=", TokenSlashAssign},
	{"(", TokenLParen}, {")", TokenRParen}, {"[", TokenLBracket},
	{"]", TokenRBracket}, {"{", TokenLBrace}, {"}", TokenRBrace},
	{",", TokenComma}, {".", TokenDot}, {";", TokenSemicolon},
	{":", TokenColon}, {"=", TokenAssign}, {"+", TokenPlus},
	{"-", TokenMinus}, {"*", TokenStar}, {"/", TokenSlash},
	{"%", TokenPercent}, {"<", TokenLess}, {">", TokenGreater},
	{"!", TokenBang},
}

func (l *Lexer) readPunctuation(start vm.Position) Token {
	rest := l.input[l.pos:l.limit]
	for _, p := range punctuation {
		if strings.HasPrefix(rest, p.text) {
			for range p.text {
				l.readChar()
			}
			return l.token(p.typ, p.text, start)
		}
	}
	ch := l.ch
	l.readChar()
	return l.fail(vm.UnknownCharacter, start, map[string]any{"character": string(ch)})
}

func isLetter(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Tokenize returns all tokens up to and including EOF or the first error.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}
