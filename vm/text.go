package vm

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Case mapping uses the full Unicode special-casing rules, so "ß" upper-cases
// to "SS" and "İ" lower-cases to "i̇", matching what browsers and CPython do.
// cases.Caser is stateful, so each call builds its own.

func ToUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}

func ToLower(s string) string {
	return cases.Lower(language.Und).String(s)
}
