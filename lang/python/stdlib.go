package python

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Built-in functions and methods
// ---------------------------------------------------------------------------

type builtin struct {
	arity vm.Arity
	call  vm.NativeFunc
}

// library groups the members reachable through one receiver type. Its name
// is the key used by Policy.AllowedStdlib; free functions live in
// "builtins".
type library struct {
	name    string
	members map[string]builtin
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

// StdlibMembers lists the implemented members of every library.
func StdlibMembers() map[string][]string {
	out := make(map[string][]string)
	for _, lib := range []*library{builtinLib, strLib, listLib, dictLib} {
		out[lib.name] = lib.names()
	}
	return out
}

func pyError(typ vm.ErrorType, ctx map[string]any) *vm.RuntimeError {
	return vm.NewRuntimeError(typ, vm.Span{}, ctx)
}

func typeError(format string, args ...any) *vm.RuntimeError {
	return pyError(vm.TypeError, map[string]any{"message": fmt.Sprintf(format, args...)})
}

func valueError(format string, args ...any) *vm.RuntimeError {
	return pyError(vm.ValueError, map[string]any{"message": fmt.Sprintf(format, args...)})
}

// toInt reads a value used as an integer.
func toInt(v vm.Value) (int, error) {
	switch t := v.(type) {
	case vm.Number:
		if t.IsInteger() {
			return int(t), nil
		}
	case vm.Boolean:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, typeError("'%s' object cannot be interpreted as an integer", typeName(v))
}

func toStr(v vm.Value, method string) (string, error) {
	if s, ok := v.(vm.String); ok {
		return string(s), nil
	}
	return "", typeError("%s() argument must be str, not %s", method, typeName(v))
}

// sliceBounds clamps Python-style start and stop indexes to [0, n].
func sliceBounds(start, stop, n int) (int, int) {
	norm := func(i int) int {
		if i < 0 {
			i += n
		}
		return min(max(i, 0), n)
	}
	start, stop = norm(start), norm(stop)
	if stop < start {
		stop = start
	}
	return start, stop
}

// optionalBounds reads the optional start/end arguments of str.find and
// friends, beginning at args[from].
func optionalBounds(args []vm.Value, from, n int) (int, int, error) {
	start, stop := 0, n
	if len(args) > from {
		i, err := toInt(args[from])
		if err != nil {
			return 0, 0, err
		}
		start = i
	}
	if len(args) > from+1 {
		i, err := toInt(args[from+1])
		if err != nil {
			return 0, 0, err
		}
		stop = i
	}
	start, stop = sliceBounds(start, stop, n)
	return start, stop, nil
}

// ---------------------------------------------------------------------------
// builtins
// ---------------------------------------------------------------------------

var builtinLib = &library{
	name: "builtins",
	members: map[string]builtin{
		"print": {vm.AtLeast(0), func(ctx *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			ctx.Log(printString(args))
			return vm.Null{}, nil
		}},
		"len": {vm.Exactly(1), func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			switch t := args[0].(type) {
			case vm.String:
				return vm.Number(len([]rune(string(t)))), nil
			case *vm.List:
				return vm.Number(t.Len()), nil
			case *vm.Dict:
				return vm.Number(t.Len()), nil
			}
			return nil, typeError("object of type '%s' has no len()", typeName(args[0]))
		}},
		"range": {vm.Between(1, 3), pyRange},
		"str": {vm.Between(0, 1), func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			if len(args) == 0 {
				return vm.String(""), nil
			}
			return vm.String(Str(args[0])), nil
		}},
		"abs": {vm.Exactly(1), func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			if f, ok := numeric(args[0]); ok {
				if f < 0 {
					f = -f
				}
				return vm.Number(f), nil
			}
			return nil, typeError("bad operand type for abs(): '%s'", typeName(args[0]))
		}},
		"min": {vm.AtLeast(1), func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			return extreme("min", args, -1)
		}},
		"max": {vm.AtLeast(1), func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
			return extreme("max", args, 1)
		}},
	},
	pending: pendingSet("int", "float", "sum", "sorted", "round", "input", "type", "bool", "list", "dict", "enumerate", "zip"),
}

// maxRangeLength caps the list range() materializes.
const maxRangeLength = 1_000_000

func pyRange(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
	bounds := make([]int, len(args))
	for i, a := range args {
		n, err := toInt(a)
		if err != nil {
			return nil, err
		}
		bounds[i] = n
	}
	start, stop, step := 0, 0, 1
	switch len(bounds) {
	case 1:
		stop = bounds[0]
	case 2:
		start, stop = bounds[0], bounds[1]
	default:
		start, stop, step = bounds[0], bounds[1], bounds[2]
	}
	if step == 0 {
		return nil, valueError("range() arg 3 must not be zero")
	}
	var out []vm.Value
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(out) == maxRangeLength {
			return nil, valueError("range() is limited to %d numbers", maxRangeLength)
		}
		out = append(out, vm.Number(i))
	}
	return vm.NewList(out...), nil
}

// extreme implements min (sign -1) and max (sign 1) over either one
// iterable argument or the arguments themselves.
func extreme(name string, args []vm.Value, sign int) (vm.Value, error) {
	items := args
	if len(args) == 1 {
		switch t := args[0].(type) {
		case *vm.List:
			items = t.Elements
		case vm.String:
			items = nil
			for _, r := range string(t) {
				items = append(items, vm.String(string(r)))
			}
		default:
			return nil, typeError("'%s' object is not iterable", typeName(args[0]))
		}
	}
	if len(items) == 0 {
		return nil, valueError("%s() arg is an empty sequence", name)
	}
	best := items[0]
	for _, v := range items[1:] {
		c, err := order(v, best)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best = v
		}
	}
	return best, nil
}

// order compares two numbers or two strings.
func order(a, b vm.Value) (int, error) {
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	as, aok := a.(vm.String)
	bs, bok := b.(vm.String)
	if aok && bok {
		return strings.Compare(string(as), string(bs)), nil
	}
	return 0, typeError("'<' not supported between instances of '%s' and '%s'", typeName(a), typeName(b))
}

// ---------------------------------------------------------------------------
// str
// ---------------------------------------------------------------------------

func recvStr(recv vm.Value) string { return string(recv.(vm.String)) }

var strLib = &library{
	name: "str",
	members: map[string]builtin{
		"upper": {vm.Exactly(0), func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			return vm.String(vm.ToUpper(recvStr(recv))), nil
		}},
		"lower": {vm.Exactly(0), func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			return vm.String(vm.ToLower(recvStr(recv))), nil
		}},
		"strip": {vm.Between(0, 1), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			if len(args) == 0 || vm.IsNullish(args[0]) {
				return vm.String(strings.TrimFunc(recvStr(recv), unicode.IsSpace)), nil
			}
			chars, err := toStr(args[0], "strip")
			if err != nil {
				return nil, err
			}
			return vm.String(strings.Trim(recvStr(recv), chars)), nil
		}},
		"startswith": {vm.Between(1, 3), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			return affix(recv, args, "startswith", strings.HasPrefix)
		}},
		"endswith": {vm.Between(1, 3), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			return affix(recv, args, "endswith", strings.HasSuffix)
		}},
		"find": {vm.Between(1, 3), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			s := []rune(recvStr(recv))
			sub, err := toStr(args[0], "find")
			if err != nil {
				return nil, err
			}
			start, stop, err := optionalBounds(args, 1, len(s))
			if err != nil {
				return nil, err
			}
			i := strings.Index(string(s[start:stop]), sub)
			if i < 0 {
				return vm.Number(-1), nil
			}
			return vm.Number(start + len([]rune(string(s[start:stop])[:i]))), nil
		}},
		"count": {vm.Between(1, 3), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			s := []rune(recvStr(recv))
			sub, err := toStr(args[0], "count")
			if err != nil {
				return nil, err
			}
			start, stop, err := optionalBounds(args, 1, len(s))
			if err != nil {
				return nil, err
			}
			part := string(s[start:stop])
			if sub == "" {
				return vm.Number(len([]rune(part)) + 1), nil
			}
			return vm.Number(strings.Count(part, sub)), nil
		}},
		"replace": {vm.Between(2, 3), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			old, err := toStr(args[0], "replace")
			if err != nil {
				return nil, err
			}
			repl, err := toStr(args[1], "replace")
			if err != nil {
				return nil, err
			}
			n := -1
			if len(args) == 3 {
				if n, err = toInt(args[2]); err != nil {
					return nil, err
				}
			}
			return vm.String(strings.Replace(recvStr(recv), old, repl, n)), nil
		}},
		"split": {vm.Between(0, 2), pySplit},
		"join": {vm.Exactly(1), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			list, ok := args[0].(*vm.List)
			if !ok {
				return nil, typeError("can only join an iterable")
			}
			parts := make([]string, list.Len())
			for i, e := range list.Elements {
				s, isStr := e.(vm.String)
				if !isStr {
					return nil, typeError("sequence item %d: expected str instance, %s found", i, typeName(e))
				}
				parts[i] = string(s)
			}
			return vm.String(strings.Join(parts, recvStr(recv))), nil
		}},
	},
	pending: pendingSet("capitalize", "title", "isdigit", "isalpha", "isupper", "islower",
		"lstrip", "rstrip", "index", "rfind", "format", "zfill", "center", "splitlines"),
}

func affix(recv vm.Value, args []vm.Value, method string, test func(s, affix string) bool) (vm.Value, error) {
	s := []rune(recvStr(recv))
	want, err := toStr(args[0], method)
	if err != nil {
		return nil, err
	}
	start, stop, err := optionalBounds(args, 1, len(s))
	if err != nil {
		return nil, err
	}
	return vm.Boolean(test(string(s[start:stop]), want)), nil
}

func pySplit(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
	s := recvStr(recv)
	limit := -1
	if len(args) == 2 {
		n, err := toInt(args[1])
		if err != nil {
			return nil, err
		}
		limit = n
	}
	var parts []string
	if len(args) == 0 || vm.IsNullish(args[0]) {
		parts = strings.Fields(s)
		if limit >= 0 && len(parts) > limit {
			// Re-split keeping the remainder intact after limit cuts.
			parts = splitFieldsN(s, limit)
		}
	} else {
		sep, err := toStr(args[0], "split")
		if err != nil {
			return nil, err
		}
		if sep == "" {
			return nil, valueError("empty separator")
		}
		n := -1
		if limit >= 0 {
			n = limit + 1
		}
		parts = strings.SplitN(s, sep, n)
	}
	out := make([]vm.Value, len(parts))
	for i, p := range parts {
		out[i] = vm.String(p)
	}
	return vm.NewList(out...), nil
}

// splitFieldsN splits on whitespace runs at most n times; the rest of the
// string, left-trimmed, is the last part.
func splitFieldsN(s string, n int) []string {
	var parts []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for len(parts) < n && rest != "" {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			break
		}
		parts = append(parts, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func recvList(recv vm.Value) *vm.List { return recv.(*vm.List) }

var listLib = &library{
	name: "list",
	members: map[string]builtin{
		"append": {vm.Exactly(1), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := recvList(recv)
			l.Elements = append(l.Elements, args[0])
			return vm.Null{}, nil
		}},
		"pop": {vm.Between(0, 1), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := recvList(recv)
			if l.Len() == 0 {
				return nil, pyError(vm.IndexError, map[string]any{"type": "pop"})
			}
			i := l.Len() - 1
			if len(args) == 1 {
				n, err := toInt(args[0])
				if err != nil {
					return nil, err
				}
				if n < 0 {
					n += l.Len()
				}
				if n < 0 || n >= l.Len() {
					return nil, pyError(vm.IndexError, map[string]any{"type": "pop"})
				}
				i = n
			}
			v := l.Elements[i]
			l.Elements = append(l.Elements[:i:i], l.Elements[i+1:]...)
			return v, nil
		}},
		"index": {vm.Between(1, 3), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := recvList(recv)
			start, stop, err := optionalBounds(args, 1, l.Len())
			if err != nil {
				return nil, err
			}
			for i := start; i < stop; i++ {
				if equals(l.Elements[i], args[0]) {
					return vm.Number(i), nil
				}
			}
			return nil, valueError("%s is not in list", Repr(args[0]))
		}},
		"count": {vm.Exactly(1), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			n := 0
			for _, e := range recvList(recv).Elements {
				if equals(e, args[0]) {
					n++
				}
			}
			return vm.Number(n), nil
		}},
		"insert": {vm.Exactly(2), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			l := recvList(recv)
			i, err := toInt(args[0])
			if err != nil {
				return nil, err
			}
			i, _ = sliceBounds(i, l.Len(), l.Len())
			l.Elements = append(l.Elements, nil)
			copy(l.Elements[i+1:], l.Elements[i:])
			l.Elements[i] = args[1]
			return vm.Null{}, nil
		}},
	},
	pending: pendingSet("extend", "remove", "sort", "reverse", "clear", "copy"),
}

// ---------------------------------------------------------------------------
// dict
// ---------------------------------------------------------------------------

var dictLib = &library{
	name: "dict",
	members: map[string]builtin{
		"get": {vm.Between(1, 2), func(_ *vm.ExecutionContext, recv vm.Value, args []vm.Value) (vm.Value, error) {
			if key, ok := args[0].(vm.String); ok {
				if v, found := recv.(*vm.Dict).Get(string(key)); found {
					return v, nil
				}
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return vm.Null{}, nil
		}},
		"keys": {vm.Exactly(0), func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			d := recv.(*vm.Dict)
			out := make([]vm.Value, 0, d.Len())
			for _, k := range d.Keys() {
				out = append(out, vm.String(k))
			}
			return vm.NewList(out...), nil
		}},
		"values": {vm.Exactly(0), func(_ *vm.ExecutionContext, recv vm.Value, _ []vm.Value) (vm.Value, error) {
			d := recv.(*vm.Dict)
			out := make([]vm.Value, 0, d.Len())
			for _, k := range d.Keys() {
				v, _ := d.Get(k)
				out = append(out, v)
			}
			return vm.NewList(out...), nil
		}},
	},
	pending: pendingSet("items", "pop", "update", "setdefault", "clear", "copy"),
}
