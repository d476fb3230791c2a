package python

import (
	"fmt"

	"github.com/chazu/jiki/vm"
)

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	// Layout
	TokenNewline
	TokenIndent
	TokenDedent

	// Literals
	TokenNumber
	TokenString
	TokenFString
	TokenIdentifier

	// Keywords
	TokenAnd
	TokenOr
	TokenNot
	TokenDef
	TokenIf
	TokenElif
	TokenElse
	TokenFor
	TokenIn
	TokenWhile
	TokenReturn
	TokenBreak
	TokenContinue
	TokenTrue
	TokenFalse
	TokenNone
	TokenReserved // Python keywords this dialect does not support

	// Delimiters
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenDot
	TokenColon
	TokenSemicolon

	// Operators
	TokenAssign       // =
	TokenPlusAssign   // +=
	TokenMinusAssign  // -=
	TokenStarAssign   // *=
	TokenSlashAssign  // /=
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenSlashSlash   // //
	TokenPercent      // %
	TokenStarStar     // **
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenNotIn        // "not in", built by the parser
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenNewline:      "NEWLINE",
	TokenIndent:       "INDENT",
	TokenDedent:       "DEDENT",
	TokenNumber:       "NUMBER",
	TokenString:       "STRING",
	TokenFString:      "FSTRING",
	TokenIdentifier:   "IDENTIFIER",
	TokenAnd:          "and",
	TokenOr:           "or",
	TokenNot:          "not",
	TokenDef:          "def",
	TokenIf:           "if",
	TokenElif:         "elif",
	TokenElse:         "else",
	TokenFor:          "for",
	TokenIn:           "in",
	TokenWhile:        "while",
	TokenReturn:       "return",
	TokenBreak:        "break",
	TokenContinue:     "continue",
	TokenTrue:         "True",
	TokenFalse:        "False",
	TokenNone:         "None",
	TokenReserved:     "RESERVED",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBracket:     "[",
	TokenRBracket:     "]",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenColon:        ":",
	TokenSemicolon:    ";",
	TokenAssign:       "=",
	TokenPlusAssign:   "+=",
	TokenMinusAssign:  "-=",
	TokenStarAssign:   "*=",
	TokenSlashAssign:  "/=",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenSlashSlash:   "//",
	TokenPercent:      "%",
	TokenStarStar:     "**",
	TokenEqual:        "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenNotIn:        "not in",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// FStringPart is one chunk of an f-string: literal text or the source of a
// braced expression.
type FStringPart struct {
	Text   string
	IsExpr bool
	Pos    vm.Position
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     vm.Position
	End     vm.Position
	Parts   []FStringPart
}

func (t Token) Span() vm.Span { return vm.Span{Start: t.Pos, End: t.End} }

func (t Token) String() string {
	switch t.Type {
	case TokenEOF, TokenNewline, TokenIndent, TokenDedent:
		return t.Type.String()
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

var keywords = map[string]TokenType{
	"and":      TokenAnd,
	"or":       TokenOr,
	"not":      TokenNot,
	"def":      TokenDef,
	"if":       TokenIf,
	"elif":     TokenElif,
	"else":     TokenElse,
	"for":      TokenFor,
	"in":       TokenIn,
	"while":    TokenWhile,
	"return":   TokenReturn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"True":     TokenTrue,
	"False":    TokenFalse,
	"None":     TokenNone,
}

var reservedWords = map[string]bool{
	"class": true, "try": true, "except": true, "finally": true,
	"raise": true, "with": true, "as": true, "pass": true, "yield": true,
	"lambda": true, "global": true, "nonlocal": true, "import": true,
	"from": true, "is": true, "del": true, "assert": true, "async": true,
	"await": true,
}

// Keywords lists every implemented keyword, for completion.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}
