package vm

type binding struct {
	value   Value
	isConst bool
}

// Environment is one lexical scope. Lookups walk the parent chain.
type Environment struct {
	parent *Environment
	names  []string
	vars   map[string]*binding
}

func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, vars: make(map[string]*binding)}
}

func (e *Environment) Parent() *Environment { return e.parent }

// Define creates or overwrites a binding in this scope.
func (e *Environment) Define(name string, v Value, isConst bool) {
	if b, ok := e.vars[name]; ok {
		b.value = v
		b.isConst = isConst
		return
	}
	e.names = append(e.names, name)
	e.vars[name] = &binding{value: v, isConst: isConst}
}

// Has reports whether name is bound in this scope, ignoring parents.
func (e *Environment) Has(name string) bool {
	_, ok := e.vars[name]
	return ok
}

// Lookup finds name in this scope or any ancestor.
func (e *Environment) Lookup(name string) (Value, bool) {
	if env := e.Resolve(name); env != nil {
		return env.vars[name].value, true
	}
	return nil, false
}

// Resolve returns the scope that binds name, or nil.
func (e *Environment) Resolve(name string) *Environment {
	for env := e; env != nil; env = env.parent {
		if _, ok := env.vars[name]; ok {
			return env
		}
	}
	return nil
}

// IsConst reports whether the nearest binding of name is constant.
func (e *Environment) IsConst(name string) bool {
	if env := e.Resolve(name); env != nil {
		return env.vars[name].isConst
	}
	return false
}

// Assign updates the nearest binding of name. found is false if no scope
// binds it; isConst is true (and nothing is written) for a constant.
func (e *Environment) Assign(name string, v Value) (found, isConst bool) {
	env := e.Resolve(name)
	if env == nil {
		return false, false
	}
	b := env.vars[name]
	if b.isConst {
		return true, true
	}
	b.value = v
	return true, false
}

// Undefine removes name from this scope only.
func (e *Environment) Undefine(name string) {
	if _, ok := e.vars[name]; !ok {
		return
	}
	delete(e.vars, name)
	for i, n := range e.names {
		if n == name {
			e.names = append(e.names[:i:i], e.names[i+1:]...)
			break
		}
	}
}

// Names returns this scope's own names in definition order.
func (e *Environment) Names() []string {
	return append([]string(nil), e.names...)
}

// Snapshot deep-copies every visible non-function binding. Inner scopes
// shadow outer ones.
func (e *Environment) Snapshot() map[string]Value {
	out := make(map[string]Value)
	seen := make(map[string]bool)
	cloner := NewCloner()
	for env := e; env != nil; env = env.parent {
		for _, name := range env.names {
			if seen[name] {
				continue
			}
			seen[name] = true
			v := env.vars[name].value
			if v == nil {
				continue
			}
			if _, isFn := v.(*Function); isFn {
				continue
			}
			out[name] = cloner.Clone(v)
		}
	}
	return out
}
