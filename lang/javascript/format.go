package javascript

import (
	"strconv"
	"strings"

	"github.com/chazu/jiki/vm"
)

// ToString converts a value the way String(v) does. An array inside itself
// joins as the empty string.
func ToString(v vm.Value) string {
	return toString(v, make(map[vm.Value]bool))
}

func toString(v vm.Value, open map[vm.Value]bool) string {
	switch t := v.(type) {
	case vm.String:
		return string(t)
	case vm.Number:
		return vm.FormatNumber(float64(t))
	case vm.Boolean:
		return strconv.FormatBool(bool(t))
	case vm.Null:
		return "null"
	case vm.Undefined:
		return "undefined"
	case *vm.List:
		if open[t] {
			return ""
		}
		open[t] = true
		defer delete(open, t)
		parts := make([]string, len(t.Elements))
		for i, e := range t.Elements {
			if !vm.IsNullish(e) {
				parts[i] = toString(e, open)
			}
		}
		return strings.Join(parts, ",")
	case *vm.Dict, *namespace:
		return "[object Object]"
	case *vm.Function:
		return "function " + t.Name + "() { [native code] }"
	}
	return ""
}

// Inspect renders a value for descriptions and console output: strings are
// quoted, containers are shown structurally. A container inside itself
// prints as [Circular].
func Inspect(v vm.Value) string {
	var sb strings.Builder
	inspect(&sb, v, make(map[vm.Value]bool))
	return sb.String()
}

func inspect(sb *strings.Builder, v vm.Value, open map[vm.Value]bool) {
	switch t := v.(type) {
	case *vm.List, *vm.Dict:
		if open[t] {
			sb.WriteString(vm.Circular)
			return
		}
	}
	switch t := v.(type) {
	case vm.String:
		sb.WriteString(strconv.Quote(string(t)))
	case *vm.List:
		open[t] = true
		defer delete(open, t)
		sb.WriteByte('[')
		for i, e := range t.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			inspect(sb, e, open)
		}
		sb.WriteByte(']')
	case *vm.Dict:
		if t.Len() == 0 {
			sb.WriteString("{}")
			return
		}
		open[t] = true
		defer delete(open, t)
		sb.WriteString("{ ")
		for i, k := range t.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			if isIdentifierName(k) {
				sb.WriteString(k)
			} else {
				sb.WriteString(strconv.Quote(k))
			}
			sb.WriteString(": ")
			e, _ := t.Get(k)
			inspect(sb, e, open)
		}
		sb.WriteString(" }")
	case *vm.Function:
		sb.WriteString("[Function: " + t.Name + "]")
	case *namespace:
		sb.WriteString(t.name)
	default:
		sb.WriteString(ToString(v))
	}
}

func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if !isLetter(r) && (i == 0 || !isDigit(r)) {
			return false
		}
	}
	return true
}

// logString renders console.log arguments: strings print raw.
func logString(args []vm.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(vm.String); ok {
			parts[i] = string(s)
		} else {
			parts[i] = Inspect(a)
		}
	}
	return strings.Join(parts, " ")
}
