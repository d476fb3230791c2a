package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/manifest"
	"github.com/chazu/jiki/trace"
	"github.com/chazu/jiki/vm"
)

var errNoProgram = errors.New("no program given and the manifest names no entry file")

// program is a source file together with the dialect and manifest that
// govern it.
type program struct {
	path     string
	source   string
	module   lang.Module
	manifest *manifest.Manifest
}

// loadProgram reads path, or the manifest's entry file when path is empty.
// The manifest is found by walking up from the program's directory; the
// -dialect flag beats the manifest, which beats the file extension.
func loadProgram(cf *commonFlags, path string) (*program, error) {
	startDir := "."
	if path != "" {
		startDir = filepath.Dir(path)
	}
	m, err := manifest.FindAndLoad(startDir)
	if err != nil {
		return nil, err
	}
	if path == "" && m != nil {
		path = m.EntryPath()
	}
	if path == "" {
		return nil, errNoProgram
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	mod, err := resolveModule(cf, m, path)
	if err != nil {
		return nil, err
	}
	return &program{path: path, source: string(data), module: mod, manifest: m}, nil
}

func resolveModule(cf *commonFlags, m *manifest.Manifest, path string) (lang.Module, error) {
	switch {
	case *cf.dialect != "":
		return lang.Lookup(*cf.dialect)
	case m != nil && m.Exercise.Dialect != "":
		return m.Module()
	case path != "":
		return lang.ForFile(path)
	}
	return nil, fmt.Errorf("%w: pass -dialect", lang.ErrUnknownDialect)
}

// options builds interpreter options with fresh external state.
func (p *program) options() (*vm.Options, error) {
	if p.manifest == nil {
		return &vm.Options{}, nil
	}
	return p.manifest.Options(map[string]any{})
}

func (p *program) dialect() string {
	return string(p.module.Dialect())
}

// writeTrace renders t as text, indented JSON or CBOR.
func writeTrace(w io.Writer, format string, t *trace.Trace) error {
	switch format {
	case "text", "":
		return trace.WriteText(w, t)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case "cbor":
		data, err := trace.Marshal(t)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown format %q (want text, json or cbor)", format)
}

// exitCode is 0 when the program compiled and no frame failed.
func exitCode(t *trace.Trace) int {
	if t.Error != nil || !t.Success {
		return 1
	}
	return 0
}

// --- run ---

func cmdRun(args []string) int {
	fs, cf := newFlagSet("run", "[options] [file]")
	format := fs.String("format", "text", "Output format: text, json or cbor")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cf.configureLogging()

	p, err := loadProgram(cf, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	opts, err := p.options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	res := p.module.Interpret(p.source, opts)
	t := trace.FromInterpret(p.dialect(), res)
	if err := writeTrace(os.Stdout, *format, t); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if last := res.LastFrame(); last != nil && last.Error != nil && *format == "text" {
		fmt.Fprintf(os.Stderr, "%v\n", last.Error)
	}
	return exitCode(t)
}

// --- compile ---

func cmdCompile(args []string) int {
	fs, cf := newFlagSet("compile", "[options] [file]")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cf.configureLogging()

	p, err := loadProgram(cf, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	opts, err := p.options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	res := p.module.Compile(p.source, opts)
	if !res.Success {
		fmt.Fprintf(os.Stderr, "%s:%d:%d: %s: %s\n", p.path,
			res.Error.Location.Start.Line, res.Error.Location.Start.Column,
			res.Error.Type, res.Error.Message)
		return 1
	}
	fmt.Printf("%s: ok (%s)\n", p.path, p.dialect())
	return 0
}

// --- call ---

func cmdCall(args []string) int {
	fs, cf := newFlagSet("call", "[options] file function [args...]")
	format := fs.String("format", "text", "Output format: text, json or cbor")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cf.configureLogging()

	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}
	p, err := loadProgram(cf, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	callArgs, err := parseArgs(fs.Args()[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	opts, err := p.options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	res := p.module.EvaluateFunction(p.source, opts, fs.Arg(1), callArgs...)
	t := trace.FromEvaluate(p.dialect(), res)
	if err := writeTrace(os.Stdout, *format, t); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *format == "text" && t.Success {
		v, err := vm.FromNative(res.Value)
		if err == nil {
			fmt.Printf("=> %s\n", p.module.Render(v))
		}
	}
	return exitCode(t)
}

// parseArgs reads each argument as a YAML scalar or flow collection, so
// 3 is a number, [1, 2] a list and hello a string.
func parseArgs(raw []string) ([]any, error) {
	out := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i+1, s, err)
		}
		out[i] = v
	}
	return out, nil
}
