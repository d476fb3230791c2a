package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/manifest"
	"github.com/chazu/jiki/trace"
	"github.com/chazu/jiki/vm"
)

const (
	historyFile = ".jiki_history"
	promptMain  = ">> "
	promptCont  = ".. "
)

// session accumulates the statements entered so far. Every input reruns
// the whole program, so only the new log output is shown.
type session struct {
	module   lang.Module
	manifest *manifest.Manifest
	source   string
	logs     int
	last     *trace.Trace
}

func cmdRepl(args []string) int {
	fs, cf := newFlagSet("repl", "[options]")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cf.configureLogging()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *cf.dialect == "" && (m == nil || m.Exercise.Dialect == "") {
		*cf.dialect = string(lang.JikiScript)
	}
	mod, err := resolveModule(cf, m, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	s := &session{module: mod, manifest: m}

	fmt.Printf("jiki REPL, %s (type ':help' for commands)\n\n", mod.Dialect())

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(s.complete)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		input, ok := s.read(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := s.command(trimmed); quit {
				return 0
			}
			continue
		}
		s.eval(os.Stdout, input)
	}
}

// read collects lines until the buffer compiles or an empty line ends it.
func (s *session) read(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		if line == "" {
			return b.String(), true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if s.module.Compile(s.join(b.String()), s.options()).Success {
			return b.String(), true
		}
	}
}

func (s *session) join(input string) string {
	if s.source == "" {
		return input
	}
	return s.source + "\n" + input
}

func (s *session) options() *vm.Options {
	if s.manifest == nil {
		return &vm.Options{}
	}
	opts, err := s.manifest.Options(map[string]any{})
	if err != nil {
		return &vm.Options{}
	}
	return opts
}

// eval reruns the session plus input. The input is kept only when it
// compiles and runs cleanly.
func (s *session) eval(w io.Writer, input string) {
	full := s.join(input)
	res := s.module.Interpret(full, s.options())
	t := trace.FromInterpret(string(s.module.Dialect()), res)
	s.last = t

	if res.Error != nil {
		fmt.Fprintf(w, "syntax error: %s\n", res.Error.Message)
		return
	}
	for _, l := range res.LogLines[min(s.logs, len(res.LogLines)):] {
		fmt.Fprintln(w, l.Output)
	}
	if last := res.LastFrame(); last != nil && last.Error != nil {
		fmt.Fprintf(w, "error: %s\n", last.Error.Message)
		return
	}
	s.source = full
	s.logs = len(res.LogLines)
}

// command handles a REPL meta-command and reports whether to quit.
func (s *session) command(cmd string) bool {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?       Show this help")
		fmt.Println("  :trace              Show the frames of the last run")
		fmt.Println("  :source             Show the session's program")
		fmt.Println("  :reset              Forget everything entered so far")
		fmt.Println("  :dialect NAME       Switch dialect (resets the session)")
		fmt.Println("  :quit, :q           Exit REPL")
		fmt.Println("An empty line runs an incomplete multi-line entry.")
	case ":trace":
		if s.last == nil {
			fmt.Println("nothing has run yet")
			return false
		}
		if err := trace.WriteText(os.Stdout, s.last); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	case ":source":
		fmt.Println(s.source)
	case ":reset":
		s.reset()
	case ":dialect":
		if len(fields) < 2 {
			fmt.Println(s.module.Dialect())
			return false
		}
		mod, err := lang.Lookup(fields[1])
		if err != nil {
			fmt.Printf("%v\n", err)
			return false
		}
		s.module = mod
		s.reset()
		fmt.Printf("switched to %s\n", mod.Dialect())
	case ":quit", ":q":
		return true
	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}

func (s *session) reset() {
	s.source = ""
	s.logs = 0
	s.last = nil
}

// complete offers keywords and library members for the word at the end of
// the line.
func (s *session) complete(line string) []string {
	start := len(line)
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	prefix := line[start:]
	if prefix == "" {
		return nil
	}

	var out []string
	add := func(name string) {
		if strings.HasPrefix(name, prefix) {
			out = append(out, line[:start]+name)
		}
	}
	for _, kw := range s.module.Keywords() {
		add(kw)
	}
	for _, names := range s.module.StdlibMembers() {
		for _, name := range names {
			add(name)
		}
	}
	if s.manifest != nil {
		for _, ext := range s.manifest.Externals {
			add(ext.Name)
		}
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
