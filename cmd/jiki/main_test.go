package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/trace"
)

func flags(dialect string) *commonFlags {
	return &commonFlags{dialect: &dialect, verbose: new(int)}
}

// ---------------------------------------------------------------------------
// Argument parsing and output
// ---------------------------------------------------------------------------

func TestParseArgs(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"3", 3},
		{"2.5", 2.5},
		{"hello", "hello"},
		{`"42"`, "42"},
		{"true", true},
		{"[1, 2]", []any{1, 2}},
		{"{a: 1}", map[string]any{"a": 1}},
		{"null", nil},
	}

	for _, tt := range tests {
		got, err := parseArgs([]string{tt.in})
		if err != nil {
			t.Errorf("parseArgs(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got[0], tt.want) {
			t.Errorf("parseArgs(%q) = %#v, want %#v", tt.in, got[0], tt.want)
		}
	}

	if _, err := parseArgs([]string{"[1, 2"}); err == nil {
		t.Error("parseArgs should reject an unterminated list")
	}
}

func sampleTrace() *trace.Trace {
	return &trace.Trace{
		Dialect: "jikiscript",
		Success: true,
		Frames: []trace.Frame{{
			Line:      1,
			Code:      "log 1",
			Status:    "SUCCESS",
			Variables: map[string]any{},
		}},
		LogLines: []trace.LogLine{{Output: "1"}},
	}
}

func TestWriteTrace(t *testing.T) {
	var text bytes.Buffer
	if err := writeTrace(&text, "text", sampleTrace()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "log 1") || !strings.Contains(text.String(), "--- log") {
		t.Errorf("text output = %q", text.String())
	}

	var js bytes.Buffer
	if err := writeTrace(&js, "json", sampleTrace()); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if decoded["dialect"] != "jikiscript" {
		t.Errorf("json dialect = %v", decoded["dialect"])
	}

	var cb bytes.Buffer
	if err := writeTrace(&cb, "cbor", sampleTrace()); err != nil {
		t.Fatal(err)
	}
	back, err := trace.Unmarshal(cb.Bytes())
	if err != nil {
		t.Fatalf("cbor output does not decode: %v", err)
	}
	if len(back.Frames) != 1 || back.LogLines[0].Output != "1" {
		t.Errorf("cbor trace = %+v", back)
	}

	if err := writeTrace(&text, "xml", sampleTrace()); err == nil {
		t.Error("writeTrace should reject an unknown format")
	}
}

func TestExitCode(t *testing.T) {
	ok := sampleTrace()
	if exitCode(ok) != 0 {
		t.Error("successful trace should exit 0")
	}
	failed := sampleTrace()
	failed.Success = false
	if exitCode(failed) != 1 {
		t.Error("failed trace should exit 1")
	}
}

// ---------------------------------------------------------------------------
// Program loading
// ---------------------------------------------------------------------------

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "jiki.toml"), `
[exercise]
name = "maze"
dialect = "py"
entry = "solution.txt"

[[externals]]
name = "move"
arity = 0
`)
	writeFile(t, filepath.Join(dir, "solution.txt"), "move()\n")
	sub := filepath.Join(dir, "extra")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(sub, "other.js"), "let x = 1;\n")

	// The manifest's dialect beats the file extension.
	p, err := loadProgram(flags(""), filepath.Join(dir, "solution.txt"))
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if p.module.Dialect() != lang.Python {
		t.Errorf("dialect = %s, want python", p.module.Dialect())
	}
	opts, err := p.options()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := opts.Externals.Lookup("move"); !ok {
		t.Error("manifest externals should be available to the program")
	}
	res := p.module.Interpret(p.source, opts)
	if !res.Success {
		t.Errorf("program using an external failed: %+v", res.LastFrame())
	}

	// -dialect beats the manifest, which is found from a subdirectory.
	p, err = loadProgram(flags("js"), filepath.Join(sub, "other.js"))
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if p.module.Dialect() != lang.JavaScript || p.manifest == nil {
		t.Errorf("dialect = %s, manifest = %v", p.module.Dialect(), p.manifest)
	}
}

func TestLoadProgramEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "jiki.toml"), `
[exercise]
name = "counter"
dialect = "jiki"
entry = "main.jiki"
`)
	writeFile(t, filepath.Join(dir, "main.jiki"), "set x to 1\n")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	p, err := loadProgram(flags(""), "")
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if filepath.Base(p.path) != "main.jiki" || p.source != "set x to 1\n" {
		t.Errorf("program = %s %q", p.path, p.source)
	}
}

func TestLoadProgramErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	if _, err := loadProgram(flags(""), filepath.Join(dir, "notes.txt")); !errors.Is(err, lang.ErrUnknownDialect) {
		t.Errorf("unknown extension: err = %v, want ErrUnknownDialect", err)
	}
	if _, err := loadProgram(flags("cobol"), filepath.Join(dir, "notes.txt")); !errors.Is(err, lang.ErrUnknownDialect) {
		t.Errorf("bad -dialect: err = %v, want ErrUnknownDialect", err)
	}
	if _, err := loadProgram(flags("js"), filepath.Join(dir, "missing.js")); err == nil {
		t.Error("missing file should fail")
	}
}

// ---------------------------------------------------------------------------
// REPL session
// ---------------------------------------------------------------------------

func newSession(t *testing.T, dialect string) *session {
	t.Helper()
	mod, err := lang.Lookup(dialect)
	if err != nil {
		t.Fatal(err)
	}
	return &session{module: mod}
}

func TestSessionEval(t *testing.T) {
	s := newSession(t, "jiki")

	var out bytes.Buffer
	s.eval(&out, "set x to 1")
	s.eval(&out, "log x")
	if got := out.String(); got != "1\n" {
		t.Errorf("output = %q, want %q", got, "1\n")
	}

	// Only new log lines are shown on later runs.
	out.Reset()
	s.eval(&out, "change x to x + 1\nlog x")
	if got := out.String(); got != "2\n" {
		t.Errorf("output = %q, want %q", got, "2\n")
	}

	// A failing entry is reported and dropped.
	before := s.source
	out.Reset()
	s.eval(&out, "log y")
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("output = %q, want an error", out.String())
	}
	if s.source != before {
		t.Errorf("failing entry was kept: %q", s.source)
	}

	out.Reset()
	s.eval(&out, "set to")
	if !strings.HasPrefix(out.String(), "syntax error:") {
		t.Errorf("output = %q, want a syntax error", out.String())
	}

	s.reset()
	if s.source != "" || s.logs != 0 || s.last != nil {
		t.Error("reset should clear the session")
	}
}

func TestSessionComplete(t *testing.T) {
	s := newSession(t, "jiki")

	got := s.complete("rep")
	found := false
	for _, c := range got {
		if c == "repeat" {
			found = true
		}
	}
	if !found {
		t.Errorf("complete(rep) = %v, want repeat", got)
	}

	for _, c := range s.complete("set x to tr") {
		if !strings.HasPrefix(c, "set x to tr") {
			t.Errorf("completion %q should keep the line", c)
		}
	}
	if got := s.complete("set x to "); got != nil {
		t.Errorf("complete at a space = %v, want nil", got)
	}
}

func TestDispatch(t *testing.T) {
	if code := dispatch(nil); code != 2 {
		t.Errorf("dispatch() = %d, want 2", code)
	}
	if code := dispatch([]string{"frobnicate"}); code != 2 {
		t.Errorf("dispatch(frobnicate) = %d, want 2", code)
	}
	if code := dispatch([]string{"help"}); code != 0 {
		t.Errorf("dispatch(help) = %d, want 0", code)
	}
}
