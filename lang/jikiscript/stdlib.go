package jikiscript

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Standard library functions
// ---------------------------------------------------------------------------

// StdlibLibrary is the Policy.AllowedStdlib key that gates these functions.
const StdlibLibrary = "functions"

type builtin struct {
	arity vm.Arity
	call  vm.NativeFunc
}

var stdlib = map[string]builtin{
	"concatenate":      {vm.AtLeast(1), concatenate},
	"to_upper_case":    {vm.Exactly(1), caseMapper("to_upper_case", vm.ToUpper)},
	"to_lower_case":    {vm.Exactly(1), caseMapper("to_lower_case", vm.ToLower)},
	"number_to_string": {vm.Exactly(1), numberToString},
	"length":           {vm.Exactly(1), length},
	"push":             {vm.Exactly(2), push},
}

// pending names are reserved for later exercises.
var pending = map[string]bool{
	"random_number": true,
	"join":          true,
	"split":         true,
}

// StdlibMembers lists the implemented functions.
func StdlibMembers() map[string][]string {
	names := make([]string, 0, len(stdlib))
	for name := range stdlib {
		names = append(names, name)
	}
	sort.Strings(names)
	return map[string][]string{StdlibLibrary: names}
}

func typeError(format string, args ...any) *vm.RuntimeError {
	return vm.NewRuntimeError(vm.TypeError, vm.Span{}, map[string]any{"message": fmt.Sprintf(format, args...)})
}

func concatenate(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
	var sb strings.Builder
	for i, a := range args {
		s, ok := a.(vm.String)
		if !ok {
			return nil, typeError("concatenate only joins strings, but input %d was %s.", i+1, vm.WithArticle(typeName(a)))
		}
		sb.WriteString(string(s))
	}
	return vm.String(sb.String()), nil
}

func caseMapper(name string, mapping func(string) string) vm.NativeFunc {
	return func(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
		s, ok := args[0].(vm.String)
		if !ok {
			return nil, typeError("%s needs a string, but got %s.", name, vm.WithArticle(typeName(args[0])))
		}
		return vm.String(mapping(string(s))), nil
	}
}

func numberToString(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
	n, ok := args[0].(vm.Number)
	if !ok {
		return nil, typeError("number_to_string needs a number, but got %s.", vm.WithArticle(typeName(args[0])))
	}
	return vm.String(vm.FormatNumber(float64(n))), nil
}

// length counts list elements, dictionary entries or characters.
func length(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
	switch t := args[0].(type) {
	case *vm.List:
		return vm.Number(t.Len()), nil
	case *vm.Dict:
		return vm.Number(t.Len()), nil
	case vm.String:
		return vm.Number(utf8.RuneCountInString(string(t))), nil
	}
	return nil, typeError("length needs a list, dictionary or string, but got %s.", vm.WithArticle(typeName(args[0])))
}

// push appends to the list in place and returns it.
func push(_ *vm.ExecutionContext, _ vm.Value, args []vm.Value) (vm.Value, error) {
	list, ok := args[0].(*vm.List)
	if !ok {
		return nil, typeError("push needs a list, but got %s.", vm.WithArticle(typeName(args[0])))
	}
	list.Elements = append(list.Elements, args[1])
	return list, nil
}
