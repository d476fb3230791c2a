package manifest

import (
	"github.com/chazu/jiki/vm"
)

// Bridge turns the declared externals into a registry the interpreters can
// call. Every run gets fresh call counters through ExecutionContext.State.
func (m *Manifest) Bridge() (*vm.Externals, error) {
	fns := make([]*vm.ExternalFunction, 0, len(m.Externals))
	for i := range m.Externals {
		ext := m.Externals[i]
		fns = append(fns, &vm.ExternalFunction{
			Name:        ext.Name,
			Arity:       ext.Arity,
			Description: ext.Description,
			Func:        ext.call,
		})
	}
	return vm.NewExternals(fns...)
}

// CallsKey is the state key counting calls to the named external.
func CallsKey(name string) string { return "calls." + name }

func (ext External) call(ctx *vm.ExecutionContext, args []vm.Value) (vm.Value, error) {
	key := CallsKey(ext.Name)
	n, _ := ctx.State[key].(int)
	n++
	ctx.State[key] = n

	if ext.Record != "" {
		recorded, _ := ctx.State[ext.Record].([]any)
		call := make([]any, len(args))
		for i, a := range args {
			call[i] = vm.ToNative(a)
		}
		ctx.State[ext.Record] = append(recorded, call)
	}

	if ext.FinishAfter > 0 && n >= ext.FinishAfter {
		ctx.FinishExercise()
	}

	switch {
	case ext.Echo > 0:
		return args[ext.Echo-1], nil
	case ext.Returns != nil:
		return vm.FromNative(ext.Returns)
	}
	return nil, nil
}
