// Package grader runs YAML suites of function-call scenarios against a
// student's solution. Each scenario is an independent EvaluateFunction run,
// so scenarios are graded in parallel.
package grader

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/trace"
	"github.com/chazu/jiki/vm"
)

var log = commonlog.GetLogger("jiki.grader")

// Grader holds the policy and externals every scenario runs with.
type Grader struct {
	policy      *vm.Policy
	externals   *vm.Externals
	concurrency int
}

// Option configures a Grader.
type Option func(*Grader)

// WithPolicy sets the dialect policy. The default is vm.DefaultPolicy.
func WithPolicy(p *vm.Policy) Option {
	return func(g *Grader) { g.policy = p }
}

// WithExternals exposes host functions to the solution.
func WithExternals(x *vm.Externals) Option {
	return func(g *Grader) { g.externals = x }
}

// WithConcurrency bounds the number of scenarios run at once.
func WithConcurrency(n int) Option {
	return func(g *Grader) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func New(opts ...Option) *Grader {
	g := &Grader{concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result is the outcome of one scenario.
type Result struct {
	Name     string       `json:"name"`
	Function string       `json:"function"`
	Passed   bool         `json:"passed"`
	Value    any          `json:"value"`
	Expected any          `json:"expected,omitempty"`
	Frames   int          `json:"frames"`
	Error    string       `json:"error,omitempty"`
	Failures []string     `json:"failures,omitempty"`
	Trace    *trace.Trace `json:"trace,omitempty"`
}

// Report collects a suite's results in suite order.
type Report struct {
	Suite   string   `json:"suite"`
	Dialect string   `json:"dialect"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

// OK reports whether every scenario passed.
func (r *Report) OK() bool { return r.Failed == 0 }

// Grade runs every scenario of s. It fails outright when the dialect is
// unknown or the solution does not compile; scenario failures are reported
// in the Report.
func (g *Grader) Grade(ctx context.Context, s *Suite) (*Report, error) {
	mod, err := s.Module()
	if err != nil {
		return nil, err
	}
	if res := mod.Compile(s.Source, g.options(nil)); !res.Success {
		return nil, fmt.Errorf("suite %s: solution does not compile: %w", s.Name, res.Error)
	}

	log.Infof("grading %q: %d tests in %s", s.Name, len(s.Tests), mod.Dialect())

	results := make([]Result, len(s.Tests))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i := range s.Tests {
		i := i
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			r, err := g.run(mod, s.Source, &s.Tests[i])
			if err != nil {
				return fmt.Errorf("test %s: %w", s.Tests[i].Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Suite: s.Name, Dialect: string(mod.Dialect()), Results: results}
	for _, r := range results {
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	log.Infof("graded %q: %d passed, %d failed", s.Name, report.Passed, report.Failed)
	return report, nil
}

// options gives each run its own external state.
func (g *Grader) options(state map[string]any) *vm.Options {
	if state == nil {
		state = make(map[string]any)
	}
	return &vm.Options{Policy: g.policy, Externals: g.externals, State: state}
}

func (g *Grader) run(mod lang.Module, source string, tc *Case) (Result, error) {
	want, err := tc.expected()
	if err != nil {
		return Result{}, fmt.Errorf("bad expect: %w", err)
	}
	args := make([]any, len(tc.Args))
	for i, a := range tc.Args {
		if args[i], err = normalize(a); err != nil {
			return Result{}, fmt.Errorf("bad argument %d: %w", i+1, err)
		}
	}

	res := mod.EvaluateFunction(source, g.options(nil), tc.Function, args...)
	r := Result{
		Name:     tc.Name,
		Function: tc.Function,
		Value:    res.Value,
		Expected: want,
		Frames:   len(res.Frames),
		Trace:    trace.FromEvaluate(string(mod.Dialect()), res),
	}

	var fault *vm.RuntimeError
	if n := len(res.Frames); n > 0 {
		fault = res.Frames[n-1].Error
	}
	if fault != nil {
		r.Error = string(fault.Type)
	}

	switch {
	case res.Error != nil:
		r.fail("syntax error: %s", res.Error.Message)
	case tc.Error != "":
		if r.Error != tc.Error {
			r.fail("error = %q, want %q", r.Error, tc.Error)
		}
	case fault != nil:
		r.fail("runtime error %s: %s", fault.Type, fault.Message)
	}

	if tc.Expect != nil && fault == nil {
		got, err := normalize(res.Value)
		if err != nil {
			return Result{}, err
		}
		if !reflect.DeepEqual(got, want) {
			r.fail("value = %s, want %s", mod.Render(mustValue(got)), mod.Render(mustValue(want)))
		}
	}
	if tc.Frames != nil && r.Frames != *tc.Frames {
		r.fail("frames = %d, want %d", r.Frames, *tc.Frames)
	}
	if tc.Logs != nil {
		logs := make([]string, len(res.LogLines))
		for i, l := range res.LogLines {
			logs[i] = l.Output
		}
		if !reflect.DeepEqual(logs, tc.Logs) {
			r.fail("logs = %q, want %q", logs, tc.Logs)
		}
	}

	r.Passed = len(r.Failures) == 0
	if r.Passed {
		log.Debugf("%s: pass", tc.Name)
	} else {
		log.Debugf("%s: fail: %v", tc.Name, r.Failures)
	}
	return r, nil
}

func (r *Result) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// mustValue converts an already-normalized value back for rendering.
func mustValue(x any) vm.Value {
	v, err := vm.FromNative(x)
	if err != nil {
		return vm.String(fmt.Sprint(x))
	}
	return v
}

// WriteText prints one line per scenario and a summary.
func (r *Report) WriteText(w io.Writer) error {
	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", status, res.Name); err != nil {
			return err
		}
		for _, f := range res.Failures {
			if _, err := fmt.Fprintf(w, "      %s\n", f); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%s: %d passed, %d failed\n", r.Suite, r.Passed, r.Failed)
	return err
}
