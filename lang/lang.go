// Package lang puts the three dialects behind one interface so hosts can
// pick a front-end by name or file extension.
package lang

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/jiki/lang/javascript"
	"github.com/chazu/jiki/lang/jikiscript"
	"github.com/chazu/jiki/lang/python"
	"github.com/chazu/jiki/vm"
)

// Dialect names a front-end.
type Dialect string

const (
	JavaScript Dialect = "javascript"
	Python     Dialect = "python"
	JikiScript Dialect = "jikiscript"
)

// ErrUnknownDialect is returned by Lookup and ForFile.
var ErrUnknownDialect = errors.New("unknown dialect")

// Module is the capability set every dialect provides.
type Module interface {
	Dialect() Dialect
	Compile(source string, opts *vm.Options) *vm.CompileResult
	Interpret(source string, opts *vm.Options) *vm.InterpretResult
	EvaluateFunction(source string, opts *vm.Options, name string, args ...any) *vm.EvaluateResult

	// Keywords and StdlibMembers feed editor completion.
	Keywords() []string
	StdlibMembers() map[string][]string
	// Render shows a value the way the dialect writes it.
	Render(v vm.Value) string
	Extension() string
}

type module struct {
	dialect   Dialect
	ext       string
	compile   func(string, *vm.Options) *vm.CompileResult
	interpret func(string, *vm.Options) *vm.InterpretResult
	evaluate  func(string, *vm.Options, string, ...any) *vm.EvaluateResult
	keywords  func() []string
	stdlib    func() map[string][]string
	render    func(vm.Value) string
}

func (m *module) Dialect() Dialect  { return m.dialect }
func (m *module) Extension() string { return m.ext }

func (m *module) Compile(source string, opts *vm.Options) *vm.CompileResult {
	return m.compile(source, opts)
}

func (m *module) Interpret(source string, opts *vm.Options) *vm.InterpretResult {
	return m.interpret(source, opts)
}

func (m *module) EvaluateFunction(source string, opts *vm.Options, name string, args ...any) *vm.EvaluateResult {
	return m.evaluate(source, opts, name, args...)
}

func (m *module) Keywords() []string {
	kw := m.keywords()
	sort.Strings(kw)
	return kw
}

func (m *module) StdlibMembers() map[string][]string { return m.stdlib() }

func (m *module) Render(v vm.Value) string {
	if v == nil {
		return ""
	}
	return m.render(v)
}

var modules = map[Dialect]*module{
	JavaScript: {
		dialect:   JavaScript,
		ext:       ".js",
		compile:   javascript.Compile,
		interpret: javascript.Interpret,
		evaluate:  javascript.EvaluateFunction,
		keywords:  javascript.Keywords,
		stdlib:    javascript.StdlibMembers,
		render:    javascript.Inspect,
	},
	Python: {
		dialect:   Python,
		ext:       ".py",
		compile:   python.Compile,
		interpret: python.Interpret,
		evaluate:  python.EvaluateFunction,
		keywords:  python.Keywords,
		stdlib:    python.StdlibMembers,
		render:    python.Repr,
	},
	JikiScript: {
		dialect:   JikiScript,
		ext:       ".jiki",
		compile:   jikiscript.Compile,
		interpret: jikiscript.Interpret,
		evaluate:  jikiscript.EvaluateFunction,
		keywords:  jikiscript.Keywords,
		stdlib:    jikiscript.StdlibMembers,
		render:    jikiscript.Repr,
	},
}

var aliases = map[string]Dialect{
	"javascript": JavaScript,
	"js":         JavaScript,
	"python":     Python,
	"py":         Python,
	"jikiscript": JikiScript,
	"jiki":       JikiScript,
}

// Lookup resolves a dialect name or alias, ignoring case.
func Lookup(key string) (Module, error) {
	d, ok := aliases[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, key)
	}
	return modules[d], nil
}

// ForFile picks the dialect from a file extension.
func ForFile(path string) (Module, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, m := range modules {
		if m.ext == ext {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: no dialect for %q", ErrUnknownDialect, filepath.Base(path))
}

// All returns every module in a stable order.
func All() []Module {
	return []Module{modules[JavaScript], modules[Python], modules[JikiScript]}
}
