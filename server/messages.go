package server

import (
	"github.com/chazu/jiki/grader"
	"github.com/chazu/jiki/trace"
	"github.com/chazu/jiki/vm"
)

// Messages are plain structs carried by the JSON and CBOR codecs. A nil
// Policy means the server's default policy.

type CompileRequest struct {
	Dialect string     `json:"dialect" cbor:"1,keyasint"`
	Source  string     `json:"source" cbor:"2,keyasint"`
	Policy  *vm.Policy `json:"policy,omitempty" cbor:"3,keyasint,omitempty"`
}

type CompileResponse struct {
	Success bool            `json:"success" cbor:"1,keyasint"`
	Error   *vm.SyntaxError `json:"error,omitempty" cbor:"2,keyasint,omitempty"`
}

// InterpretRequest runs either inline source or a program created with
// CreateProgram.
type InterpretRequest struct {
	Dialect   string     `json:"dialect,omitempty" cbor:"1,keyasint,omitempty"`
	Source    string     `json:"source,omitempty" cbor:"2,keyasint,omitempty"`
	ProgramID string     `json:"programId,omitempty" cbor:"3,keyasint,omitempty"`
	Policy    *vm.Policy `json:"policy,omitempty" cbor:"4,keyasint,omitempty"`
}

type EvaluateFunctionRequest struct {
	Dialect   string     `json:"dialect,omitempty" cbor:"1,keyasint,omitempty"`
	Source    string     `json:"source,omitempty" cbor:"2,keyasint,omitempty"`
	ProgramID string     `json:"programId,omitempty" cbor:"3,keyasint,omitempty"`
	Policy    *vm.Policy `json:"policy,omitempty" cbor:"4,keyasint,omitempty"`
	Function  string     `json:"function" cbor:"5,keyasint"`
	Args      []any      `json:"args,omitempty" cbor:"6,keyasint,omitempty"`
}

// RunResponse answers Interpret and EvaluateFunction. Cached runs carry
// the RunID of the run that produced them.
type RunResponse struct {
	RunID  string       `json:"runId" cbor:"1,keyasint"`
	Cached bool         `json:"cached" cbor:"2,keyasint"`
	Trace  *trace.Trace `json:"trace" cbor:"3,keyasint"`
}

type CreateProgramRequest struct {
	Dialect string     `json:"dialect" cbor:"1,keyasint"`
	Source  string     `json:"source" cbor:"2,keyasint"`
	Policy  *vm.Policy `json:"policy,omitempty" cbor:"3,keyasint,omitempty"`
}

type CreateProgramResponse struct {
	ProgramID string          `json:"programId,omitempty" cbor:"1,keyasint,omitempty"`
	Success   bool            `json:"success" cbor:"2,keyasint"`
	Error     *vm.SyntaxError `json:"error,omitempty" cbor:"3,keyasint,omitempty"`
}

type ReleaseProgramRequest struct {
	ProgramID string `json:"programId" cbor:"1,keyasint"`
}

type ReleaseProgramResponse struct {
	Released bool `json:"released" cbor:"1,keyasint"`
}

// GradeRequest carries a grader suite as YAML text.
type GradeRequest struct {
	Suite  string     `json:"suite" cbor:"1,keyasint"`
	Policy *vm.Policy `json:"policy,omitempty" cbor:"2,keyasint,omitempty"`
}

type GradeResponse struct {
	Report *grader.Report `json:"report" cbor:"1,keyasint"`
}
