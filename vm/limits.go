package vm

// Limits tracks the safety valves of one run: the loop-iteration counter
// shared by every loop construct, and the call depth.
type Limits struct {
	loops    int
	depth    int
	maxLoops int
	maxDepth int
}

func NewLimits(p *Policy) *Limits {
	return &Limits{maxLoops: p.LoopLimit(), maxDepth: p.CallDepthLimit()}
}

// Tick counts one loop iteration.
func (l *Limits) Tick(loc Span) *RuntimeError {
	l.loops++
	if l.loops > l.maxLoops {
		return NewRuntimeError(MaxIterationsReached, loc, map[string]any{"max": l.maxLoops})
	}
	return nil
}

// Enter counts one active call. Every successful Enter must be paired with
// Leave.
func (l *Limits) Enter(loc Span) *RuntimeError {
	if l.depth >= l.maxDepth {
		return NewRuntimeError(MaxCallDepthExceeded, loc, map[string]any{"max": l.maxDepth})
	}
	l.depth++
	return nil
}

func (l *Limits) Leave() {
	if l.depth > 0 {
		l.depth--
	}
}

func (l *Limits) Depth() int { return l.depth }

func (l *Limits) Iterations() int { return l.loops }
