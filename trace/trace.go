// Package trace is the wire form of a run. Frames are flattened into plain
// structs and encoded with canonical CBOR, so identical runs produce
// identical bytes and the same digest.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/jiki/vm"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	// Decode maps with string keys so values survive a later JSON encoding.
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Trace is one Interpret or EvaluateFunction result.
type Trace struct {
	Dialect  string          `cbor:"1,keyasint" json:"dialect"`
	Success  bool            `cbor:"2,keyasint" json:"success"`
	Error    *vm.SyntaxError `cbor:"3,keyasint,omitempty" json:"error,omitempty"`
	Frames   []Frame         `cbor:"4,keyasint" json:"frames"`
	LogLines []LogLine       `cbor:"5,keyasint" json:"logLines"`
	Value    any             `cbor:"6,keyasint,omitempty" json:"value,omitempty"`
}

type Frame struct {
	Time        int64            `cbor:"1,keyasint" json:"time"`
	TimeInMs    float64          `cbor:"2,keyasint" json:"timeInMs"`
	Line        int              `cbor:"3,keyasint" json:"line"`
	Code        string           `cbor:"4,keyasint" json:"code"`
	Location    vm.Span          `cbor:"5,keyasint" json:"location"`
	Status      string           `cbor:"6,keyasint" json:"status"`
	Kind        string           `cbor:"7,keyasint" json:"kind"`
	Result      any              `cbor:"8,keyasint,omitempty" json:"result,omitempty"`
	Variables   map[string]any   `cbor:"9,keyasint" json:"variables"`
	Description string           `cbor:"10,keyasint" json:"description"`
	Error       *vm.RuntimeError `cbor:"11,keyasint,omitempty" json:"error,omitempty"`
	Calls       []Call           `cbor:"12,keyasint,omitempty" json:"calls,omitempty"`
}

type Call struct {
	Function    string `cbor:"1,keyasint" json:"function"`
	Args        []any  `cbor:"2,keyasint" json:"args"`
	Return      any    `cbor:"3,keyasint,omitempty" json:"return,omitempty"`
	Description string `cbor:"4,keyasint,omitempty" json:"description,omitempty"`
}

type LogLine struct {
	Time   int64  `cbor:"1,keyasint" json:"time"`
	Output string `cbor:"2,keyasint" json:"output"`
}

// FromInterpret flattens an Interpret result.
func FromInterpret(dialect string, res *vm.InterpretResult) *Trace {
	return &Trace{
		Dialect:  dialect,
		Success:  res.Success,
		Error:    res.Error,
		Frames:   frames(res.Frames),
		LogLines: logLines(res.LogLines),
	}
}

// FromEvaluate flattens an EvaluateFunction result.
func FromEvaluate(dialect string, res *vm.EvaluateResult) *Trace {
	return &Trace{
		Dialect:  dialect,
		Success:  res.Success,
		Error:    res.Error,
		Frames:   frames(res.Frames),
		LogLines: logLines(res.LogLines),
		Value:    res.Value,
	}
}

func frames(in []*vm.Frame) []Frame {
	out := make([]Frame, len(in))
	for i, f := range in {
		vars := make(map[string]any, len(f.Variables))
		for name, v := range f.Variables {
			vars[name] = vm.ToNative(v)
		}
		out[i] = Frame{
			Time:        f.Time,
			TimeInMs:    f.TimeInMs,
			Line:        f.Line,
			Code:        f.Code,
			Location:    f.Location,
			Status:      string(f.Status),
			Kind:        string(f.Kind),
			Variables:   vars,
			Description: f.Description(),
			Error:       f.Error,
		}
		if f.Result != nil {
			out[i].Result = vm.ToNative(f.Result)
		}
		for _, c := range f.Calls {
			call := Call{Function: c.Function, Description: c.Description, Args: make([]any, len(c.Args))}
			for j, a := range c.Args {
				call.Args[j] = vm.ToNative(a)
			}
			if c.Return != nil {
				call.Return = vm.ToNative(c.Return)
			}
			out[i].Calls = append(out[i].Calls, call)
		}
	}
	return out
}

func logLines(in []vm.LogLine) []LogLine {
	out := make([]LogLine, len(in))
	for i, l := range in {
		out[i] = LogLine{Time: l.Time, Output: l.Output}
	}
	return out
}

// Marshal encodes t as canonical CBOR.
func Marshal(t *Trace) ([]byte, error) {
	return encMode.Marshal(t)
}

// Unmarshal decodes a trace written by Marshal.
func Unmarshal(data []byte) (*Trace, error) {
	var t Trace
	if err := decMode.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("trace: unmarshal: %w", err)
	}
	return &t, nil
}

// Encode writes any value with the canonical encoding used for traces.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode is the inverse of Encode.
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Digest is the SHA-256 of the canonical encoding.
func Digest(t *Trace) ([32]byte, error) {
	data, err := Marshal(t)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

type runKey struct {
	Dialect  string     `cbor:"1,keyasint"`
	Source   string     `cbor:"2,keyasint"`
	Policy   *vm.Policy `cbor:"3,keyasint"`
	Function string     `cbor:"4,keyasint,omitempty"`
	Args     []any      `cbor:"5,keyasint,omitempty"`
}

// Key identifies a run by everything its outcome depends on. Runs that
// use external functions have no stable key.
func Key(dialect, source string, policy *vm.Policy, function string, args ...any) (string, error) {
	data, err := encMode.Marshal(runKey{Dialect: dialect, Source: source, Policy: policy, Function: function, Args: args})
	if err != nil {
		return "", fmt.Errorf("trace: key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
