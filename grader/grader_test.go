package grader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/jiki/vm"
)

const adderSuite = `
name: adder
dialect: js
source: |
  function add(a, b) {
    return a + b;
  }
  function shout(s) {
    console.log(s);
    return s;
  }
tests:
  - name: small numbers
    function: add
    args: [5, 3]
    expect: 8
    frames: 1
  - name: wrong answer
    function: add
    args: [1, 1]
    expect: 3
  - function: shout
    args: ["hi"]
    expect: hi
    logs: ["hi"]
  - name: missing function
    function: subtract
    args: [1, 2]
    error: FunctionNotFound
  - name: unexpected error
    function: subtract
`

func mustSuite(t *testing.T, src string) *Suite {
	t.Helper()
	s, err := ParseSuite([]byte(src))
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Suites
// ---------------------------------------------------------------------------

func TestParseSuite(t *testing.T) {
	s := mustSuite(t, adderSuite)
	if s.Name != "adder" || s.Dialect != "js" {
		t.Errorf("suite = %q/%q, want adder/js", s.Name, s.Dialect)
	}
	if len(s.Tests) != 5 {
		t.Fatalf("tests = %d, want 5", len(s.Tests))
	}
	if s.Tests[2].Name != "shout#3" {
		t.Errorf("default name = %q, want shout#3", s.Tests[2].Name)
	}
	if s.Tests[0].Frames == nil || *s.Tests[0].Frames != 1 {
		t.Errorf("frames = %v, want 1", s.Tests[0].Frames)
	}
	if s.Tests[3].Expect != nil {
		t.Error("missing expect: should stay nil")
	}
}

func TestParseSuiteErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"no tests", "name: empty\n", ErrNoTests},
		{"no function", "tests:\n  - name: x\n", nil},
		{"bad yaml", "tests: [\n", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tc.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	solution := "def double(x):\n    return x * 2\n"
	if err := os.WriteFile(filepath.Join(dir, "solution.py"), []byte(solution), 0644); err != nil {
		t.Fatal(err)
	}
	suite := "name: doubler\nfile: solution.py\ntests:\n  - function: double\n    args: [21]\n    expect: 42\n"
	path := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(path, []byte(suite), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite failed: %v", err)
	}
	if s.Source != solution {
		t.Errorf("source = %q, want %q", s.Source, solution)
	}
	mod, err := s.Module()
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	if mod.Dialect() != "python" {
		t.Errorf("dialect = %q, want python", mod.Dialect())
	}

	report, err := New().Grade(context.Background(), s)
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("report failed: %+v", report.Results)
	}
}

func TestLoadSuiteNoSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(path, []byte("dialect: js\ntests:\n  - function: f\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSuite(path); !errors.Is(err, ErrNoSource) {
		t.Errorf("LoadSuite error = %v, want ErrNoSource", err)
	}
}

// ---------------------------------------------------------------------------
// Grading
// ---------------------------------------------------------------------------

func TestGrade(t *testing.T) {
	report, err := New(WithConcurrency(2)).Grade(context.Background(), mustSuite(t, adderSuite))
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if report.Dialect != "javascript" {
		t.Errorf("dialect = %q, want javascript", report.Dialect)
	}
	if report.Passed != 3 || report.Failed != 2 {
		t.Errorf("passed/failed = %d/%d, want 3/2", report.Passed, report.Failed)
	}

	tests := []struct {
		name    string
		passed  bool
		failure string
	}{
		{"small numbers", true, ""},
		{"wrong answer", false, "value = 2, want 3"},
		{"shout#3", true, ""},
		{"missing function", true, ""},
		{"unexpected error", false, "runtime error FunctionNotFound"},
	}
	for i, tc := range tests {
		r := report.Results[i]
		if r.Name != tc.name {
			t.Errorf("result %d name = %q, want %q", i, r.Name, tc.name)
			continue
		}
		if r.Passed != tc.passed {
			t.Errorf("%s: passed = %v, want %v (%v)", tc.name, r.Passed, tc.passed, r.Failures)
		}
		if tc.failure != "" && (len(r.Failures) == 0 || !strings.Contains(r.Failures[0], tc.failure)) {
			t.Errorf("%s: failures = %q, want %q", tc.name, r.Failures, tc.failure)
		}
		if r.Trace == nil || len(r.Trace.Frames) != r.Frames {
			t.Errorf("%s: trace does not match frame count %d", tc.name, r.Frames)
		}
	}
}

func TestGradeCompileError(t *testing.T) {
	s := mustSuite(t, "dialect: jiki\nsource: \"log length([1]\"\ntests:\n  - function: f\n")
	_, err := New().Grade(context.Background(), s)
	if err == nil {
		t.Fatal("expected compile error")
	}
	var syn *vm.SyntaxError
	if !errors.As(err, &syn) {
		t.Errorf("error %v does not wrap a SyntaxError", err)
	}
}

func TestGradeUnknownDialect(t *testing.T) {
	s := mustSuite(t, "dialect: cobol\nsource: x\ntests:\n  - function: f\n")
	if _, err := New().Grade(context.Background(), s); err == nil {
		t.Fatal("expected unknown dialect error")
	}
}

func TestGradeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Grade(ctx, mustSuite(t, adderSuite)); !errors.Is(err, context.Canceled) {
		t.Errorf("Grade error = %v, want context.Canceled", err)
	}
}

func TestGradeExternals(t *testing.T) {
	x, err := vm.NewExternals(&vm.ExternalFunction{
		Name:  "step",
		Arity: 0,
		Func: func(ctx *vm.ExecutionContext, _ []vm.Value) (vm.Value, error) {
			n, _ := ctx.State["steps"].(int)
			ctx.State["steps"] = n + 1
			return vm.Number(n + 1), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	s := mustSuite(t, `
dialect: jikiscript
source: |
  function walk with n do
    set last to 0
    repeat n times do
      change last to step()
    end
    return last
  end
tests:
  - function: walk
    args: [3]
    expect: 3
  - function: walk
    args: [5]
    expect: 5
`)
	// Each scenario starts from empty state, so the counts do not leak.
	report, err := New(WithExternals(x), WithConcurrency(1)).Grade(context.Background(), s)
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("report failed: %+v", report.Results)
	}
}

func TestGradePolicy(t *testing.T) {
	s := mustSuite(t, `
dialect: jikiscript
source: |
  function pick with x do
    if x do
      return "yes"
    end
    return "no"
  end
tests:
  - function: pick
    args: [1]
    expect: "yes"
`)
	report, err := New().Grade(context.Background(), s)
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if report.OK() || report.Results[0].Error != string(vm.TruthinessDisabled) {
		t.Errorf("strict policy: result = %+v, want TruthinessDisabled", report.Results[0])
	}

	p := vm.DefaultPolicy()
	p.AllowTruthiness = true
	report, err = New(WithPolicy(&p)).Grade(context.Background(), s)
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("lenient policy: result = %+v", report.Results[0])
	}
}

func TestReportWriteText(t *testing.T) {
	report, err := New().Grade(context.Background(), mustSuite(t, adderSuite))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := report.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"PASS  small numbers", "FAIL  wrong answer", "value = 2, want 3", "adder: 3 passed, 2 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
