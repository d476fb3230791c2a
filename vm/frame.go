package vm

import "sync"

// TimePerFrame is the fixed clock advance between consecutive frames, in
// microseconds.
const TimePerFrame = 100

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// CallRecord notes an external function invoked while evaluating a frame.
type CallRecord struct {
	Function    string
	Args        []Value
	Return      Value
	Description string
}

// Describer renders a human description of a frame. It must only read the
// frame it is given.
type Describer func(f *Frame) string

// Frame is one recorded execution step. Everything reachable from a Frame
// is a private copy; later execution never changes it.
type Frame struct {
	Time      int64
	TimeInMs  float64
	Line      int
	Code      string
	Location  Span
	Status    Status
	Kind      NodeKind
	Name      string
	Result    Value
	Variables map[string]Value
	Error     *RuntimeError
	Calls     []CallRecord

	describe    Describer
	once        sync.Once
	description string
}

// Description is computed on first use and memoized.
func (f *Frame) Description() string {
	f.once.Do(func() {
		if f.describe != nil {
			f.description = f.describe(f)
		}
	})
	return f.description
}

// Step is what an executor hands the Recorder at an evaluation point.
type Step struct {
	Location  Span
	Code      string
	Kind      NodeKind
	Name      string
	Result    Value
	Variables map[string]Value
	Calls     []CallRecord
}

// Recorder appends frames and owns the run's clock.
type Recorder struct {
	frames   []*Frame
	time     int64
	describe Describer
	halted   bool
}

// NewRecorder starts a clock at start.
func NewRecorder(start int64, describe Describer) *Recorder {
	return &Recorder{time: start, describe: describe}
}

func (r *Recorder) newFrame(s Step, status Status) *Frame {
	f := &Frame{
		Time:      r.time,
		TimeInMs:  float64(r.time) / 1000,
		Line:      s.Location.Start.Line,
		Code:      s.Code,
		Location:  s.Location,
		Status:    status,
		Kind:      s.Kind,
		Name:      s.Name,
		Variables: s.Variables,
		Calls:     cloneCalls(s.Calls),
		describe:  r.describe,
	}
	if s.Result != nil {
		f.Result = s.Result.Clone()
	}
	if f.Variables == nil {
		f.Variables = map[string]Value{}
	}
	r.time += TimePerFrame
	return f
}

// Record appends a SUCCESS frame. Nothing is recorded once the run halted.
func (r *Recorder) Record(s Step) *Frame {
	if r.halted {
		return nil
	}
	f := r.newFrame(s, StatusSuccess)
	r.frames = append(r.frames, f)
	return f
}

// Fail appends the terminal ERROR frame.
func (r *Recorder) Fail(s Step, err *RuntimeError) *Frame {
	if r.halted {
		return nil
	}
	f := r.newFrame(s, StatusError)
	f.Error = err
	r.frames = append(r.frames, f)
	r.halted = true
	return f
}

// Halted reports whether an ERROR frame has been recorded.
func (r *Recorder) Halted() bool { return r.halted }

// Frames returns the recorded frames.
func (r *Recorder) Frames() []*Frame {
	if r.frames == nil {
		return []*Frame{}
	}
	return r.frames
}

// Time returns the timestamp the next frame would receive.
func (r *Recorder) Time() int64 { return r.time }

// Discard drops the recorded frames but keeps the clock running.
func (r *Recorder) Discard() {
	r.frames = nil
}

func cloneCalls(calls []CallRecord) []CallRecord {
	if len(calls) == 0 {
		return nil
	}
	out := make([]CallRecord, len(calls))
	for i, c := range calls {
		out[i] = CallRecord{Function: c.Function, Description: c.Description}
		out[i].Args = make([]Value, len(c.Args))
		for j, a := range c.Args {
			out[i].Args[j] = a.Clone()
		}
		if c.Return != nil {
			out[i].Return = c.Return.Clone()
		}
	}
	return out
}
