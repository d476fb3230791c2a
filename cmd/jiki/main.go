// jiki CLI - runs, grades and serves programs in the teaching dialects
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

type command struct {
	name    string
	summary string
	run     func(args []string) int
}

var commands []command

func init() {
	commands = []command{
		{"run", "interpret a program and print its trace", cmdRun},
		{"compile", "check a program for syntax errors", cmdCompile},
		{"call", "run a program, then call one of its functions", cmdCall},
		{"grade", "grade a solution against a YAML test suite", cmdGrade},
		{"serve", "start the interpreter service (Connect HTTP)", cmdServe},
		{"lsp", "start the language server on stdio", cmdLSP},
		{"repl", "start an interactive session", cmdRepl},
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: jiki <command> [options] [args...]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  jiki run maze.jiki                   # Print the frame trace\n")
	fmt.Fprintf(os.Stderr, "  jiki run -format json main.js        # Trace as JSON\n")
	fmt.Fprintf(os.Stderr, "  jiki call solution.py add 2 3        # Call add(2, 3)\n")
	fmt.Fprintf(os.Stderr, "  jiki grade tests.yaml                # Grade the suite's solution\n")
	fmt.Fprintf(os.Stderr, "  jiki serve -addr :4567 -cache jiki.db\n")
	fmt.Fprintf(os.Stderr, "  jiki repl -dialect python\n")
	fmt.Fprintf(os.Stderr, "\nRun 'jiki <command> -h' for command options.\n")
}

func main() {
	os.Exit(dispatch(os.Args[1:]))
}

func dispatch(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		usage()
		return 0
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:])
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
	usage()
	return 2
}

// commonFlags are shared by every command.
type commonFlags struct {
	dialect *string
	verbose *int
}

func newFlagSet(name, usageLine string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cf := &commonFlags{
		dialect: fs.String("dialect", "", "Dialect: javascript (js), python (py) or jikiscript (jiki); default from manifest or file extension"),
		verbose: fs.Int("v", 0, "Log verbosity (0 = notices, 1 = info, 2 = debug)"),
	}
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: jiki %s %s\n\nOptions:\n", name, usageLine)
		fs.PrintDefaults()
	}
	return fs, cf
}

// configureLogging routes commonlog to stderr at the requested verbosity.
func (cf *commonFlags) configureLogging() {
	commonlog.Configure(*cf.verbose, nil)
}
