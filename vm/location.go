package vm

import (
	"fmt"
	"strings"
)

// Position is a point in source text. Offset is a 0-based byte offset;
// Line and Column are 1-based, Column counted in bytes.
type Position struct {
	Offset int `json:"offset" cbor:"1,keyasint"`
	Line   int `json:"line" cbor:"2,keyasint"`
	Column int `json:"column" cbor:"3,keyasint"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open source range [Start, End).
type Span struct {
	Start Position `json:"start" cbor:"1,keyasint"`
	End   Position `json:"end" cbor:"2,keyasint"`
}

// Join returns the smallest span covering both a and b.
func Join(a, b Span) Span {
	out := a
	if b.Start.Offset < out.Start.Offset {
		out.Start = b.Start
	}
	if b.End.Offset > out.End.Offset {
		out.End = b.End
	}
	return out
}

// Code returns the source text covered by the span.
func (s Span) Code(source string) string {
	start, end := s.Start.Offset, s.End.Offset
	if start < 0 {
		start = 0
	}
	if end > len(source) {
		end = len(source)
	}
	if start >= end {
		return ""
	}
	return source[start:end]
}

func (s Span) String() string {
	return s.Start.String() + "-" + s.End.String()
}

// EndOfSource returns an empty span just past the last non-blank character
// of source. Blank source yields 1:1.
func EndOfSource(source string) Span {
	trimmed := strings.TrimRight(source, " \t\r\n")
	p := Position{
		Offset: len(trimmed),
		Line:   1 + strings.Count(trimmed, "\n"),
		Column: len(trimmed) - strings.LastIndexByte(trimmed, '\n'),
	}
	return Span{Start: p, End: p}
}
