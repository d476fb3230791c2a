package javascript

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Built-in members
// ---------------------------------------------------------------------------

// builtin is one member of a library: a method when call is set, otherwise
// a property read through get.
type builtin struct {
	arity vm.Arity
	call  vm.NativeFunc
	get   func(recv vm.Value) vm.Value
}

// library groups the members reachable through one receiver type. Its name
// is the key used by Policy.AllowedStdlib.
type library struct {
	name    string
	members map[string]builtin
	// pending names real members that are not implemented yet.
	pending map[string]bool
}

func (l *library) names() []string {
	out := make([]string, 0, len(l.members))
	for name := range l.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func pendingSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// StdlibMembers lists the implemented members of every built-in library,
// keyed by library name.
func StdlibMembers() map[string][]string {
	out := make(map[string][]string)
	for _, lib := range []*library{stringLib, arrayLib, mathLib, consoleLib} {
		out[lib.name] = lib.names()
	}
	return out
}

func builtins() map[string]*namespace {
	return map[string]*namespace{
		"Math":    {name: "Math", lib: mathLib},
		"console": {name: "console", lib: consoleLib},
	}
}

// typeError builds a TypeError whose location is filled in by the caller.
func typeError(format string, args ...any) *vm.RuntimeError {
	return vm.NewRuntimeError(vm.TypeError, vm.Span{}, map[string]any{"message": fmt.Sprintf(format, args...)})
}

func arg(args []vm.Value, i int) vm.Value {
	if i < len(args) {
		return args[i]
	}
	return vm.Undefined{}
}

// intArg converts an optional positional argument; def is used when it is
// missing or undefined.
func intArg(args []vm.Value, i int, def float64) float64 {
	v := arg(args, i)
	if _, missing := v.(vm.Undefined); missing {
		return def
	}
	return toIntegerOrInfinity(toNumber(v))
}

// relativeIndex resolves a possibly negative index against length.
func relativeIndex(f float64, length int) int {
	if f < 0 {
		return clamp(f+float64(length), 0, length)
	}
	return clamp(f, 0, length)
}

// ---------------------------------------------------------------------------
// Strings, in UTF-16 code units
// ---------------------------------------------------------------------------

func units(s vm.Value) []uint16 {
	return utf16.Encode([]rune(string(s.(vm.String))))
}

func fromUnits(u []uint16) vm.String {
	return vm.String(string(utf16.Decode(u)))
}

func unitsEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func indexUnits(hay, needle []uint16, from int) int {
	for i := from; i+len(needle) <= len(hay); i++ {
		if unitsEqual(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// compareUnits orders strings the way relational operators do.
func compareUnits(a, b string) int {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}

func isJSSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

var stringLib = &library{
	name: "string",
	members: map[string]builtin{
		"length": {get: func(recv vm.Value) vm.Value {
			return vm.Number(len(units(recv)))
		}},
		"at": {arity: vm.Between(0, 1), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			i := intArg(args, 0, 0)
			if i < 0 {
				i += float64(len(u))
			}
			if i < 0 || i >= float64(len(u)) {
				return vm.Undefined{}, nil
			}
			return fromUnits(u[int(i) : int(i)+1]), nil
		}},
		"charAt": {arity: vm.Between(0, 1), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			i := intArg(args, 0, 0)
			if i < 0 || i >= float64(len(u)) {
				return vm.String(""), nil
			}
			return fromUnits(u[int(i) : int(i)+1]), nil
		}},
		"concat": {arity: vm.AtLeast(0), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			var sb strings.Builder
			sb.WriteString(string(recv.(vm.String)))
			for _, a := range args {
				sb.WriteString(ToString(a))
			}
			return vm.String(sb.String()), nil
		}},
		"endsWith": {arity: vm.Between(1, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			needle := units(vm.String(ToString(arg(args, 0))))
			end := clamp(intArg(args, 1, float64(len(u))), 0, len(u))
			start := end - len(needle)
			if start < 0 {
				return vm.Boolean(false), nil
			}
			return vm.Boolean(unitsEqual(u[start:end], needle)), nil
		}},
		"includes": {arity: vm.Between(1, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			needle := units(vm.String(ToString(arg(args, 0))))
			from := clamp(intArg(args, 1, 0), 0, len(u))
			return vm.Boolean(indexUnits(u, needle, from) >= 0), nil
		}},
		"indexOf": {arity: vm.Between(1, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			needle := units(vm.String(ToString(arg(args, 0))))
			from := clamp(intArg(args, 1, 0), 0, len(u))
			return vm.Number(indexUnits(u, needle, from)), nil
		}},
		"lastIndexOf": {arity: vm.Between(1, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			needle := units(vm.String(ToString(arg(args, 0))))
			pos := math.Inf(1)
			if _, missing := arg(args, 1).(vm.Undefined); !missing {
				if n := toNumber(args[1]); !math.IsNaN(n) {
					pos = toIntegerOrInfinity(n)
				}
			}
			start := clamp(pos, 0, len(u))
			if start > len(u)-len(needle) {
				start = len(u) - len(needle)
			}
			for i := start; i >= 0; i-- {
				if unitsEqual(u[i:i+len(needle)], needle) {
					return vm.Number(i), nil
				}
			}
			return vm.Number(-1), nil
		}},
		"repeat": {arity: vm.Exactly(1), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			n := intArg(args, 0, 0)
			if n < 0 || math.IsInf(n, 1) {
				return nil, typeError("Invalid count value: %s", vm.FormatNumber(n))
			}
			return vm.String(strings.Repeat(string(recv.(vm.String)), int(n))), nil
		}},
		"slice": {arity: vm.Between(0, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			from := relativeIndex(intArg(args, 0, 0), len(u))
			to := relativeIndex(intArg(args, 1, float64(len(u))), len(u))
			if from >= to {
				return vm.String(""), nil
			}
			return fromUnits(u[from:to]), nil
		}},
		"split": {arity: vm.Between(0, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			s := string(recv.(vm.String))
			limit := math.MaxInt32
			if _, missing := arg(args, 1).(vm.Undefined); !missing {
				if n := toIntegerOrInfinity(toNumber(args[1])); n >= 0 && n < float64(limit) {
					limit = int(n)
				}
			}
			var parts []vm.Value
			switch sep := arg(args, 0).(type) {
			case vm.Undefined:
				parts = []vm.Value{vm.String(s)}
			default:
				sepStr := ToString(sep)
				if sepStr == "" {
					for _, c := range units(recv) {
						parts = append(parts, fromUnits([]uint16{c}))
					}
				} else {
					for _, p := range strings.Split(s, sepStr) {
						parts = append(parts, vm.String(p))
					}
				}
			}
			if len(parts) > limit {
				parts = parts[:limit]
			}
			return vm.NewList(parts...), nil
		}},
		"startsWith": {arity: vm.Between(1, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			u := units(recv)
			needle := units(vm.String(ToString(arg(args, 0))))
			start := clamp(intArg(args, 1, 0), 0, len(u))
			if start+len(needle) > len(u) {
				return vm.Boolean(false), nil
			}
			return vm.Boolean(unitsEqual(u[start:start+len(needle)], needle)), nil
		}},
		"toLowerCase": {arity: vm.Exactly(0), call: func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			return vm.String(vm.ToLower(string(recv.(vm.String)))), nil
		}},
		"toUpperCase": {arity: vm.Exactly(0), call: func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			return vm.String(vm.ToUpper(string(recv.(vm.String)))), nil
		}},
		"trim": {arity: vm.Exactly(0), call: func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			return vm.String(strings.TrimFunc(string(recv.(vm.String)), isJSSpace)), nil
		}},
	},
	pending: pendingSet("charCodeAt", "codePointAt", "localeCompare", "match", "matchAll",
		"normalize", "padEnd", "padStart", "replace", "replaceAll", "search", "substring",
		"substr", "trimEnd", "trimStart"),
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func listOf(recv vm.Value) *vm.List { return recv.(*vm.List) }

// fromIndex resolves the optional start position of includes/indexOf.
func fromIndex(args []vm.Value, length int) int {
	return relativeIndex(intArg(args, 1, 0), length)
}

var arrayLib = &library{
	name: "array",
	members: map[string]builtin{
		"length": {get: func(recv vm.Value) vm.Value {
			return vm.Number(listOf(recv).Len())
		}},
		"at": {arity: vm.Between(0, 1), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			i := intArg(args, 0, 0)
			if i < 0 {
				i += float64(l.Len())
			}
			if i < 0 || i >= float64(l.Len()) {
				return vm.Undefined{}, nil
			}
			return l.Elements[int(i)], nil
		}},
		"includes": {arity: vm.Between(1, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			for i := fromIndex(args, l.Len()); i < l.Len(); i++ {
				if sameValueZero(l.Elements[i], args[0]) {
					return vm.Boolean(true), nil
				}
			}
			return vm.Boolean(false), nil
		}},
		"indexOf": {arity: vm.Between(1, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			for i := fromIndex(args, l.Len()); i < l.Len(); i++ {
				if strictEquals(l.Elements[i], args[0]) {
					return vm.Number(i), nil
				}
			}
			return vm.Number(-1), nil
		}},
		"join": {arity: vm.Between(0, 1), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			sep := ","
			if _, missing := arg(args, 0).(vm.Undefined); !missing {
				sep = ToString(args[0])
			}
			l := listOf(recv)
			parts := make([]string, l.Len())
			for i, e := range l.Elements {
				if !vm.IsNullish(e) {
					parts[i] = ToString(e)
				}
			}
			return vm.String(strings.Join(parts, sep)), nil
		}},
		"pop": {arity: vm.Exactly(0), call: func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			if l.Len() == 0 {
				return vm.Undefined{}, nil
			}
			last := l.Elements[l.Len()-1]
			l.Elements = l.Elements[:l.Len()-1]
			return last, nil
		}},
		"push": {arity: vm.AtLeast(0), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			l.Elements = append(l.Elements, args...)
			return vm.Number(l.Len()), nil
		}},
		"reverse": {arity: vm.Exactly(0), call: func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			for i, j := 0, l.Len()-1; i < j; i, j = i+1, j-1 {
				l.Elements[i], l.Elements[j] = l.Elements[j], l.Elements[i]
			}
			return l, nil
		}},
		"shift": {arity: vm.Exactly(0), call: func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			if l.Len() == 0 {
				return vm.Undefined{}, nil
			}
			first := l.Elements[0]
			l.Elements = append([]vm.Value(nil), l.Elements[1:]...)
			return first, nil
		}},
		"slice": {arity: vm.Between(0, 2), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			from := relativeIndex(intArg(args, 0, 0), l.Len())
			to := relativeIndex(intArg(args, 1, float64(l.Len())), l.Len())
			if from >= to {
				return vm.NewList(), nil
			}
			return vm.NewList(append([]vm.Value(nil), l.Elements[from:to]...)...), nil
		}},
		"unshift": {arity: vm.AtLeast(0), call: func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := listOf(recv)
			l.Elements = append(append([]vm.Value(nil), args...), l.Elements...)
			return vm.Number(l.Len()), nil
		}},
	},
	pending: pendingSet("concat", "entries", "every", "fill", "filter", "find", "findIndex",
		"findLast", "flat", "forEach", "keys", "lastIndexOf", "map", "reduce", "some",
		"sort", "splice", "values"),
}

// ---------------------------------------------------------------------------
// Math and console
// ---------------------------------------------------------------------------

func mathUnary(f func(float64) float64) builtin {
	return builtin{arity: vm.Exactly(1), call: func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
		return vm.Number(f(toNumber(args[0]))), nil
	}}
}

func mathFold(start float64, better func(a, b float64) bool) builtin {
	return builtin{arity: vm.AtLeast(0), call: func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
		acc := start
		for _, a := range args {
			n := toNumber(a)
			if math.IsNaN(n) {
				return vm.Number(math.NaN()), nil
			}
			if better(n, acc) {
				acc = n
			}
		}
		return vm.Number(acc), nil
	}}
}

func jsRound(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	return r
}

func jsSign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return x
}

// jsPow differs from math.Pow where the exponent is NaN or the base is ±1
// with an infinite exponent.
func jsPow(a, b float64) float64 {
	if math.IsNaN(b) || (math.Abs(a) == 1 && math.IsInf(b, 0)) {
		return math.NaN()
	}
	return math.Pow(a, b)
}

var mathLib = &library{
	name: "Math",
	members: map[string]builtin{
		"abs":   mathUnary(math.Abs),
		"ceil":  mathUnary(math.Ceil),
		"floor": mathUnary(math.Floor),
		"round": mathUnary(jsRound),
		"sign":  mathUnary(jsSign),
		"sqrt":  mathUnary(math.Sqrt),
		"trunc": mathUnary(math.Trunc),
		"max":   mathFold(math.Inf(-1), func(a, b float64) bool { return a > b }),
		"min":   mathFold(math.Inf(1), func(a, b float64) bool { return a < b }),
		"pow": {arity: vm.Exactly(2), call: func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			return vm.Number(jsPow(toNumber(args[0]), toNumber(args[1]))), nil
		}},
	},
	// random is left out so traces stay deterministic.
	pending: pendingSet("random", "atan2", "cbrt", "cos", "exp", "hypot", "log", "log10",
		"log2", "sin", "tan"),
}

var consoleLib = &library{
	name: "console",
	members: map[string]builtin{
		"log": {arity: vm.AtLeast(0), call: func(ctx *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			ctx.Log(logString(args))
			return vm.Undefined{}, nil
		}},
	},
	pending: pendingSet("error", "info", "warn"),
}
