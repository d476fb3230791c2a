package lang

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/chazu/jiki/vm"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		key  string
		want Dialect
	}{
		{"javascript", JavaScript},
		{"JS", JavaScript},
		{"py", Python},
		{" python ", Python},
		{"jiki", JikiScript},
		{"jikiscript", JikiScript},
	}

	for _, tc := range tests {
		m, err := Lookup(tc.key)
		if err != nil {
			t.Errorf("Lookup(%q): %v", tc.key, err)
			continue
		}
		if m.Dialect() != tc.want {
			t.Errorf("Lookup(%q) = %s, want %s", tc.key, m.Dialect(), tc.want)
		}
	}

	if _, err := Lookup("cobol"); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Lookup(cobol) error = %v, want ErrUnknownDialect", err)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		path string
		want Dialect
	}{
		{"ex/solution.js", JavaScript},
		{"solution.PY", Python},
		{"/tmp/a/b.jiki", JikiScript},
	}

	for _, tc := range tests {
		m, err := ForFile(tc.path)
		if err != nil {
			t.Errorf("ForFile(%q): %v", tc.path, err)
			continue
		}
		if m.Dialect() != tc.want {
			t.Errorf("ForFile(%q) = %s, want %s", tc.path, m.Dialect(), tc.want)
		}
	}

	if _, err := ForFile("notes.txt"); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("ForFile(notes.txt) error = %v, want ErrUnknownDialect", err)
	}
}

func TestModuleCompletionData(t *testing.T) {
	for _, m := range All() {
		kw := m.Keywords()
		if len(kw) == 0 {
			t.Errorf("%s: no keywords", m.Dialect())
		}
		for i := 1; i < len(kw); i++ {
			if kw[i-1] > kw[i] {
				t.Errorf("%s: keywords not sorted at %q", m.Dialect(), kw[i])
				break
			}
		}
		if len(m.StdlibMembers()) == 0 {
			t.Errorf("%s: no stdlib members", m.Dialect())
		}
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		dialect Dialect
		value   vm.Value
		want    string
	}{
		{Python, vm.Null{}, "None"},
		{Python, vm.Boolean(true), "True"},
		{JikiScript, vm.Null{}, "null"},
		{JikiScript, vm.Boolean(true), "true"},
		{JavaScript, vm.Boolean(true), "true"},
	}

	for _, tc := range tests {
		m, _ := Lookup(string(tc.dialect))
		if got := m.Render(tc.value); got != tc.want {
			t.Errorf("%s Render(%v) = %q, want %q", tc.dialect, tc.value, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Conformance fixtures
// ---------------------------------------------------------------------------

type conformanceCase struct {
	Name        string     `yaml:"name"`
	Dialect     string     `yaml:"dialect"`
	Lenient     bool       `yaml:"lenient"`
	Source      string     `yaml:"source"`
	Call        string     `yaml:"call"`
	Args        []any      `yaml:"args"`
	Value       *yaml.Node `yaml:"value"`
	Frames      *int       `yaml:"frames"`
	Error       string     `yaml:"error"`
	Logs        []string   `yaml:"logs"`
	SyntaxError bool       `yaml:"syntaxError"`
}

// normalize maps decoded YAML onto the shapes ToNative produces.
func normalize(t *testing.T, v any) any {
	t.Helper()
	rv, err := vm.FromNative(v)
	if err != nil {
		t.Fatalf("fixture value %v: %v", v, err)
	}
	return vm.ToNative(rv)
}

func loadCases(t *testing.T) []conformanceCase {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no conformance fixtures")
	}
	var all []conformanceCase
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var cases []conformanceCase
		if err := yaml.Unmarshal(data, &cases); err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		all = append(all, cases...)
	}
	return all
}

func TestConformance(t *testing.T) {
	for _, tc := range loadCases(t) {
		t.Run(tc.Dialect+"/"+tc.Name, func(t *testing.T) {
			m, err := Lookup(tc.Dialect)
			if err != nil {
				t.Fatal(err)
			}
			policy := vm.DefaultPolicy()
			policy.AllowTruthiness = tc.Lenient
			opts := &vm.Options{Policy: &policy}

			var (
				frames []*vm.Frame
				logs   []vm.LogLine
				syntax *vm.SyntaxError
				value  any
			)
			if tc.Call != "" {
				res := m.EvaluateFunction(tc.Source, opts, tc.Call, tc.Args...)
				frames, logs, syntax, value = res.Frames, res.LogLines, res.Error, res.Value
			} else {
				res := m.Interpret(tc.Source, opts)
				frames, logs, syntax = res.Frames, res.LogLines, res.Error
			}

			if tc.SyntaxError {
				if syntax == nil {
					t.Fatal("no syntax error")
				}
				if c := m.Compile(tc.Source, opts); c.Success || c.Error == nil {
					t.Error("Compile accepted the source")
				}
				return
			}
			if syntax != nil {
				t.Fatalf("syntax error: %v", syntax)
			}

			if tc.Frames != nil && len(frames) != *tc.Frames {
				t.Errorf("frames = %d, want %d", len(frames), *tc.Frames)
			}
			succeeded := vm.FramesSucceeded(frames)
			if tc.Error != "" {
				if succeeded {
					t.Fatalf("run succeeded, want %s", tc.Error)
				}
				if got := frames[len(frames)-1].Error.Type; string(got) != tc.Error {
					t.Errorf("error = %s, want %s", got, tc.Error)
				}
			} else if !succeeded {
				t.Fatalf("run failed: %s", frames[len(frames)-1].Error.Message)
			}

			if tc.Value != nil {
				var want any
				if err := tc.Value.Decode(&want); err != nil {
					t.Fatal(err)
				}
				if want = normalize(t, want); !reflect.DeepEqual(value, want) {
					t.Errorf("value = %#v, want %#v", value, want)
				}
			}
			if tc.Logs != nil {
				got := make([]string, len(logs))
				for i, l := range logs {
					got[i] = l.Output
				}
				if !reflect.DeepEqual(got, tc.Logs) {
					t.Errorf("logs = %v, want %v", got, tc.Logs)
				}
			}
		})
	}
}
