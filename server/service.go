package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/chazu/jiki/grader"
	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/trace"
	"github.com/chazu/jiki/vm"
)

const InterpreterServiceName = "jiki.v1.InterpreterService"

const (
	CompileProcedure          = "/jiki.v1.InterpreterService/Compile"
	InterpretProcedure        = "/jiki.v1.InterpreterService/Interpret"
	EvaluateFunctionProcedure = "/jiki.v1.InterpreterService/EvaluateFunction"
	CreateProgramProcedure    = "/jiki.v1.InterpreterService/CreateProgram"
	ReleaseProgramProcedure   = "/jiki.v1.InterpreterService/ReleaseProgram"
	GradeProcedure            = "/jiki.v1.InterpreterService/Grade"
)

// InterpreterService implements the InterpreterService Connect handler.
type InterpreterService struct {
	runner    *Runner
	programs  *ProgramStore
	cache     *ResultCache
	policy    vm.Policy
	externals *vm.Externals
}

// NewInterpreterService creates an InterpreterService. cache may be nil.
func NewInterpreterService(runner *Runner, programs *ProgramStore, cache *ResultCache, policy vm.Policy, externals *vm.Externals) *InterpreterService {
	return &InterpreterService{
		runner:    runner,
		programs:  programs,
		cache:     cache,
		policy:    policy,
		externals: externals,
	}
}

// Compile checks source without running it.
func (s *InterpreterService) Compile(
	ctx context.Context,
	req *connect.Request[CompileRequest],
) (*connect.Response[CompileResponse], error) {
	mod, err := s.module(req.Msg.Dialect)
	if err != nil {
		return nil, err
	}
	policy, err := s.resolvePolicy(req.Msg.Policy)
	if err != nil {
		return nil, err
	}

	out, err := s.runner.Do(ctx, func() any {
		return mod.Compile(req.Msg.Source, s.options(policy))
	})
	if err != nil {
		return nil, runError(err)
	}
	res := out.(*vm.CompileResult)
	return connect.NewResponse(&CompileResponse{Success: res.Success, Error: res.Error}), nil
}

// Interpret runs a whole program and returns its trace.
func (s *InterpreterService) Interpret(
	ctx context.Context,
	req *connect.Request[InterpretRequest],
) (*connect.Response[RunResponse], error) {
	mod, source, policy, err := s.resolveProgram(req.Msg.Dialect, req.Msg.Source, req.Msg.ProgramID, req.Msg.Policy)
	if err != nil {
		return nil, err
	}

	resp, err := s.run(ctx, mod, source, policy, "", nil, func() *trace.Trace {
		return trace.FromInterpret(string(mod.Dialect()), mod.Interpret(source, s.options(policy)))
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

// EvaluateFunction runs the program's top level and then calls one
// function with the given arguments.
func (s *InterpreterService) EvaluateFunction(
	ctx context.Context,
	req *connect.Request[EvaluateFunctionRequest],
) (*connect.Response[RunResponse], error) {
	if req.Msg.Function == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("function is required"))
	}
	mod, source, policy, err := s.resolveProgram(req.Msg.Dialect, req.Msg.Source, req.Msg.ProgramID, req.Msg.Policy)
	if err != nil {
		return nil, err
	}

	fn, args := req.Msg.Function, req.Msg.Args
	resp, err := s.run(ctx, mod, source, policy, fn, args, func() *trace.Trace {
		return trace.FromEvaluate(string(mod.Dialect()), mod.EvaluateFunction(source, s.options(policy), fn, args...))
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

// CreateProgram compiles source once and returns a handle for later runs.
// Source that does not compile gets no handle.
func (s *InterpreterService) CreateProgram(
	ctx context.Context,
	req *connect.Request[CreateProgramRequest],
) (*connect.Response[CreateProgramResponse], error) {
	mod, err := s.module(req.Msg.Dialect)
	if err != nil {
		return nil, err
	}
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	policy, err := s.resolvePolicy(req.Msg.Policy)
	if err != nil {
		return nil, err
	}

	out, err := s.runner.Do(ctx, func() any {
		return mod.Compile(req.Msg.Source, s.options(policy))
	})
	if err != nil {
		return nil, runError(err)
	}
	res := out.(*vm.CompileResult)
	if !res.Success {
		return connect.NewResponse(&CreateProgramResponse{Error: res.Error}), nil
	}

	id := s.programs.Create(mod, req.Msg.Source, policy)
	log.Debugf("created program %s (%s)", id, mod.Dialect())
	return connect.NewResponse(&CreateProgramResponse{ProgramID: id, Success: true}), nil
}

// ReleaseProgram drops a program handle.
func (s *InterpreterService) ReleaseProgram(
	ctx context.Context,
	req *connect.Request[ReleaseProgramRequest],
) (*connect.Response[ReleaseProgramResponse], error) {
	if req.Msg.ProgramID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("program id is required"))
	}
	return connect.NewResponse(&ReleaseProgramResponse{Released: s.programs.Release(req.Msg.ProgramID)}), nil
}

// Grade runs a YAML suite. The suite must carry its solution inline.
func (s *InterpreterService) Grade(
	ctx context.Context,
	req *connect.Request[GradeRequest],
) (*connect.Response[GradeResponse], error) {
	suite, err := grader.ParseSuite([]byte(req.Msg.Suite))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if suite.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, grader.ErrNoSource)
	}
	policy, err := s.resolvePolicy(req.Msg.Policy)
	if err != nil {
		return nil, err
	}

	g := grader.New(grader.WithPolicy(policy), grader.WithExternals(s.externals))
	report, err := g.Grade(ctx, suite)
	if err != nil {
		var syn *vm.SyntaxError
		switch {
		case errors.Is(err, lang.ErrUnknownDialect):
			return nil, connect.NewError(connect.CodeNotFound, err)
		case errors.As(err, &syn):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, runError(err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&GradeResponse{Report: report}), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *InterpreterService) module(dialect string) (lang.Module, error) {
	if dialect == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("dialect is required"))
	}
	mod, err := lang.Lookup(dialect)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return mod, nil
}

// resolvePolicy returns a private copy of the request policy, or of the
// server default when the request has none.
func (s *InterpreterService) resolvePolicy(p *vm.Policy) (*vm.Policy, error) {
	var policy vm.Policy
	if p != nil {
		policy = *p
	} else {
		policy = s.policy
	}
	if err := policy.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return &policy, nil
}

// resolveProgram picks inline source or a stored program. A stored program
// runs with the policy it was created with.
func (s *InterpreterService) resolveProgram(dialect, source, programID string, p *vm.Policy) (lang.Module, string, *vm.Policy, error) {
	if programID != "" {
		prog, ok := s.programs.Lookup(programID)
		if !ok {
			return nil, "", nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("program %q not found", programID))
		}
		return prog.module, prog.source, prog.policy, nil
	}
	if source == "" {
		return nil, "", nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source or program id is required"))
	}
	mod, err := s.module(dialect)
	if err != nil {
		return nil, "", nil, err
	}
	policy, err := s.resolvePolicy(p)
	if err != nil {
		return nil, "", nil, err
	}
	return mod, source, policy, nil
}

func (s *InterpreterService) options(policy *vm.Policy) *vm.Options {
	return &vm.Options{Policy: policy, Externals: s.externals, State: make(map[string]any)}
}

// run executes fn on the runner pool, going through the result cache when
// the run cannot reach host functions.
func (s *InterpreterService) run(ctx context.Context, mod lang.Module, source string, policy *vm.Policy, fn string, args []any, exec func() *trace.Trace) (*RunResponse, error) {
	var key string
	if s.cache != nil && s.externals == nil {
		var err error
		key, err = trace.Key(string(mod.Dialect()), source, policy, fn, args...)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		t, runID, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			cacheLog.Warningf("lookup %s: %v", key, err)
		} else if ok {
			cacheLog.Debugf("hit %s", key)
			return &RunResponse{RunID: runID, Cached: true, Trace: t}, nil
		}
	}

	out, err := s.runner.Do(ctx, func() any { return exec() })
	if err != nil {
		return nil, runError(err)
	}
	resp := &RunResponse{RunID: uuid.NewString(), Trace: out.(*trace.Trace)}

	if key != "" {
		if err := s.cache.Put(ctx, key, resp.RunID, resp.Trace); err != nil {
			cacheLog.Warningf("store %s: %v", key, err)
		}
	}
	return resp, nil
}

// runError maps a Runner failure onto a Connect code.
func runError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrRunnerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// ---------------------------------------------------------------------------
// Handler and client
// ---------------------------------------------------------------------------

// NewInterpreterServiceHandler builds an HTTP handler serving every
// procedure with the JSON and CBOR codecs. It returns the path to mount it
// on.
func NewInterpreterServiceHandler(svc *InterpreterService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithCodec(cborCodec{}),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile, opts...))
	mux.Handle(InterpretProcedure, connect.NewUnaryHandler(InterpretProcedure, svc.Interpret, opts...))
	mux.Handle(EvaluateFunctionProcedure, connect.NewUnaryHandler(EvaluateFunctionProcedure, svc.EvaluateFunction, opts...))
	mux.Handle(CreateProgramProcedure, connect.NewUnaryHandler(CreateProgramProcedure, svc.CreateProgram, opts...))
	mux.Handle(ReleaseProgramProcedure, connect.NewUnaryHandler(ReleaseProgramProcedure, svc.ReleaseProgram, opts...))
	mux.Handle(GradeProcedure, connect.NewUnaryHandler(GradeProcedure, svc.Grade, opts...))
	return "/" + InterpreterServiceName + "/", mux
}

// WithCBOR makes a client send and accept application/cbor.
func WithCBOR() connect.ClientOption {
	return connect.WithCodec(cborCodec{})
}

// InterpreterServiceClient calls an InterpreterService over HTTP. It speaks
// JSON unless created with WithCBOR.
type InterpreterServiceClient struct {
	compile          *connect.Client[CompileRequest, CompileResponse]
	interpret        *connect.Client[InterpretRequest, RunResponse]
	evaluateFunction *connect.Client[EvaluateFunctionRequest, RunResponse]
	createProgram    *connect.Client[CreateProgramRequest, CreateProgramResponse]
	releaseProgram   *connect.Client[ReleaseProgramRequest, ReleaseProgramResponse]
	grade            *connect.Client[GradeRequest, GradeResponse]
}

func NewInterpreterServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *InterpreterServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &InterpreterServiceClient{
		compile:          connect.NewClient[CompileRequest, CompileResponse](httpClient, baseURL+CompileProcedure, opts...),
		interpret:        connect.NewClient[InterpretRequest, RunResponse](httpClient, baseURL+InterpretProcedure, opts...),
		evaluateFunction: connect.NewClient[EvaluateFunctionRequest, RunResponse](httpClient, baseURL+EvaluateFunctionProcedure, opts...),
		createProgram:    connect.NewClient[CreateProgramRequest, CreateProgramResponse](httpClient, baseURL+CreateProgramProcedure, opts...),
		releaseProgram:   connect.NewClient[ReleaseProgramRequest, ReleaseProgramResponse](httpClient, baseURL+ReleaseProgramProcedure, opts...),
		grade:            connect.NewClient[GradeRequest, GradeResponse](httpClient, baseURL+GradeProcedure, opts...),
	}
}

func (c *InterpreterServiceClient) Compile(ctx context.Context, req *connect.Request[CompileRequest]) (*connect.Response[CompileResponse], error) {
	return c.compile.CallUnary(ctx, req)
}

func (c *InterpreterServiceClient) Interpret(ctx context.Context, req *connect.Request[InterpretRequest]) (*connect.Response[RunResponse], error) {
	return c.interpret.CallUnary(ctx, req)
}

func (c *InterpreterServiceClient) EvaluateFunction(ctx context.Context, req *connect.Request[EvaluateFunctionRequest]) (*connect.Response[RunResponse], error) {
	return c.evaluateFunction.CallUnary(ctx, req)
}

func (c *InterpreterServiceClient) CreateProgram(ctx context.Context, req *connect.Request[CreateProgramRequest]) (*connect.Response[CreateProgramResponse], error) {
	return c.createProgram.CallUnary(ctx, req)
}

func (c *InterpreterServiceClient) ReleaseProgram(ctx context.Context, req *connect.Request[ReleaseProgramRequest]) (*connect.Response[ReleaseProgramResponse], error) {
	return c.releaseProgram.CallUnary(ctx, req)
}

func (c *InterpreterServiceClient) Grade(ctx context.Context, req *connect.Request[GradeRequest]) (*connect.Response[GradeResponse], error) {
	return c.grade.CallUnary(ctx, req)
}
