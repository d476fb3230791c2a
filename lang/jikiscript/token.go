package jikiscript

import (
	"fmt"

	"github.com/chazu/jiki/vm"
)

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenNumber
	TokenString
	TokenIdentifier

	// Keywords
	TokenSet
	TokenChange
	TokenTo
	TokenLog
	TokenIf
	TokenElse
	TokenDo
	TokenEnd
	TokenRepeat
	TokenTimes
	TokenRepeatUntilGameOver
	TokenFor
	TokenEach
	TokenIn
	TokenWhile
	TokenFunction
	TokenWith
	TokenReturn
	TokenBreak
	TokenContinue // "continue" or "next"
	TokenAnd
	TokenOr
	TokenNot
	TokenIs // "is" or "equals"
	TokenTrue
	TokenFalse
	TokenNull
	TokenReserved // words kept for later language levels

	// Delimiters
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenColon

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenBang         // !
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=
)

var tokenNames = map[TokenType]string{
	TokenEOF:                 "EOF",
	TokenError:               "ERROR",
	TokenNewline:             "NEWLINE",
	TokenNumber:              "NUMBER",
	TokenString:              "STRING",
	TokenIdentifier:          "IDENTIFIER",
	TokenSet:                 "set",
	TokenChange:              "change",
	TokenTo:                  "to",
	TokenLog:                 "log",
	TokenIf:                  "if",
	TokenElse:                "else",
	TokenDo:                  "do",
	TokenEnd:                 "end",
	TokenRepeat:              "repeat",
	TokenTimes:               "times",
	TokenRepeatUntilGameOver: "repeat_until_game_over",
	TokenFor:                 "for",
	TokenEach:                "each",
	TokenIn:                  "in",
	TokenWhile:               "while",
	TokenFunction:            "function",
	TokenWith:                "with",
	TokenReturn:              "return",
	TokenBreak:               "break",
	TokenContinue:            "continue",
	TokenAnd:                 "and",
	TokenOr:                  "or",
	TokenNot:                 "not",
	TokenIs:                  "is",
	TokenTrue:                "true",
	TokenFalse:               "false",
	TokenNull:                "null",
	TokenReserved:            "RESERVED",
	TokenLParen:              "(",
	TokenRParen:              ")",
	TokenLBracket:            "[",
	TokenRBracket:            "]",
	TokenLBrace:              "{",
	TokenRBrace:              "}",
	TokenComma:               ",",
	TokenColon:               ":",
	TokenPlus:                "+",
	TokenMinus:               "-",
	TokenStar:                "*",
	TokenSlash:               "/",
	TokenPercent:             "%",
	TokenBang:                "!",
	TokenEqual:               "==",
	TokenNotEqual:            "!=",
	TokenLess:                "<",
	TokenLessEqual:           "<=",
	TokenGreater:             ">",
	TokenGreaterEqual:        ">=",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     vm.Position
	End     vm.Position
}

func (t Token) Span() vm.Span { return vm.Span{Start: t.Pos, End: t.End} }

func (t Token) String() string {
	switch t.Type {
	case TokenEOF, TokenNewline:
		return t.Type.String()
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

var keywords = map[string]TokenType{
	"set":                    TokenSet,
	"change":                 TokenChange,
	"to":                     TokenTo,
	"log":                    TokenLog,
	"if":                     TokenIf,
	"else":                   TokenElse,
	"do":                     TokenDo,
	"end":                    TokenEnd,
	"repeat":                 TokenRepeat,
	"times":                  TokenTimes,
	"repeat_until_game_over": TokenRepeatUntilGameOver,
	"for":                    TokenFor,
	"each":                   TokenEach,
	"in":                     TokenIn,
	"while":                  TokenWhile,
	"function":               TokenFunction,
	"with":                   TokenWith,
	"return":                 TokenReturn,
	"break":                  TokenBreak,
	"continue":               TokenContinue,
	"next":                   TokenContinue,
	"and":                    TokenAnd,
	"or":                     TokenOr,
	"not":                    TokenNot,
	"is":                     TokenIs,
	"equals":                 TokenIs,
	"true":                   TokenTrue,
	"false":                  TokenFalse,
	"null":                   TokenNull,
}

var reservedWords = map[string]bool{
	"class": true, "method": true, "new": true, "this": true,
	"constructor": true, "property": true, "private": true, "public": true,
	"getter": true, "setter": true, "indexed": true, "by": true,
	"from": true, "until": true, "import": true,
}

// Keywords lists every implemented keyword, for completion.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}
