package javascript

import (
	"fmt"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber
	TokenString
	TokenTemplate
	TokenIdentifier

	// Keywords
	TokenLet
	TokenConst
	TokenFunction
	TokenIf
	TokenElse
	TokenFor
	TokenOf
	TokenIn
	TokenWhile
	TokenRepeat
	TokenReturn
	TokenBreak
	TokenContinue
	TokenTrue
	TokenFalse
	TokenNull
	TokenUndefined
	TokenReserved // recognised but unimplemented keywords

	// Delimiters
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenDot
	TokenSemicolon
	TokenColon

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
	TokenPercent      // %
	TokenStarStar     // **
	TokenPlusPlus     // ++
	TokenMinusMinus   // --
	TokenEqual        // ==
	TokenStrictEqual  // ===
	TokenNotEqual     // !=
	TokenStrictNotEq  // !==
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenAnd          // &&
	TokenOr           // ||
	TokenBang         // !
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenNumber:       "NUMBER",
	TokenString:       "STRING",
	TokenTemplate:     "TEMPLATE",
	TokenIdentifier:   "IDENTIFIER",
	TokenLet:          "let",
	TokenConst:        "const",
	TokenFunction:     "function",
	TokenIf:           "if",
	TokenElse:         "else",
	TokenFor:          "for",
	TokenOf:           "of",
	TokenIn:           "in",
	TokenWhile:        "while",
	TokenRepeat:       "repeat",
	TokenReturn:       "return",
	TokenBreak:        "break",
	TokenContinue:     "continue",
	TokenTrue:         "true",
	TokenFalse:        "false",
	TokenNull:         "null",
	TokenUndefined:    "undefined",
	TokenReserved:     "RESERVED",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBracket:     "[",
	TokenRBracket:     "]",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenSemicolon:    ";",
	TokenColon:        ":",
	TokenAssign:       "=",
	TokenPlusAssign:   "+=",
	TokenMinusAssign:  "-=",
	TokenStarAssign:   "*=",
	TokenSlashAssign:  "/=",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenPercent:      "%",
	TokenStarStar:     "**",
	TokenPlusPlus:     "++",
	TokenMinusMinus:   "--",
	TokenEqual:        "==",
	TokenStrictEqual:  "===",
	TokenNotEqual:     "!=",
	TokenStrictNotEq:  "!==",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenAnd:          "&&",
	TokenOr:           "||",
	TokenBang:         "!",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// TemplatePart is one chunk of a template literal: either literal text or
// the source of an interpolated expression.
type TemplatePart struct {
	Text   string
	IsExpr bool
	Pos    vm.Position // start of Text in the source
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string      // the raw text, or the decoded value for strings
	Pos     vm.Position // start position
	End     vm.Position // position just past the token
	Parts   []TemplatePart
}

func (t Token) Span() vm.Span { return vm.Span{Start: t.Pos, End: t.End} }

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

var keywords = map[string]TokenType{
	"let":       TokenLet,
	"const":     TokenConst,
	"function":  TokenFunction,
	"if":        TokenIf,
	"else":      TokenElse,
	"for":       TokenFor,
	"of":        TokenOf,
	"in":        TokenIn,
	"while":     TokenWhile,
	"repeat":    TokenRepeat,
	"return":    TokenReturn,
	"break":     TokenBreak,
	"continue":  TokenContinue,
	"true":      TokenTrue,
	"false":     TokenFalse,
	"null":      TokenNull,
	"undefined": TokenUndefined,
}

var reservedWords = map[string]bool{
	"class": true, "var": true, "new": true, "this": true, "typeof": true,
	"switch": true, "case": true, "do": true, "try": true, "catch": true,
	"finally": true, "throw": true, "delete": true, "void": true,
	"yield": true, "async": true, "await": true, "import": true,
	"export": true, "instanceof": true, "default": true, "super": true,
}

// Keywords lists every implemented keyword, for completion.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}
