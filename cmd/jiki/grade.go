package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/chazu/jiki/grader"
	"github.com/chazu/jiki/manifest"
)

func cmdGrade(args []string) int {
	fs, cf := newFlagSet("grade", "[options] suite.yaml")
	format := fs.String("format", "text", "Output format: text or json")
	concurrency := fs.Int("j", 0, "Scenarios to run at once (default GOMAXPROCS)")
	traces := fs.Bool("traces", false, "Include each scenario's trace in JSON output")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cf.configureLogging()

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	suite, err := grader.LoadSuite(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *cf.dialect != "" {
		suite.Dialect = *cf.dialect
	}

	opts := []grader.Option{grader.WithConcurrency(*concurrency)}
	m, err := manifest.FindAndLoad(filepath.Dir(fs.Arg(0)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if m != nil {
		if suite.Dialect == "" && suite.File == "" {
			suite.Dialect = m.Exercise.Dialect
		}
		x, err := m.Bridge()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		policy := m.Policy
		opts = append(opts, grader.WithPolicy(&policy), grader.WithExternals(x))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := grader.New(opts...).Grade(ctx, suite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch *format {
	case "text":
		err = report.WriteText(os.Stdout)
	case "json":
		if !*traces {
			for i := range report.Results {
				report.Results[i].Trace = nil
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	default:
		err = fmt.Errorf("unknown format %q (want text or json)", *format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !report.OK() {
		return 1
	}
	return 0
}
