package jikiscript

import (
	"fmt"
	"strings"

	"github.com/chazu/jiki/vm"
)

func describeFrame(f *vm.Frame) string {
	if f.Error != nil {
		return f.Error.Message
	}
	var sb strings.Builder
	switch f.Kind {
	case vm.SetVariableStatement:
		fmt.Fprintf(&sb, "Set %s to %s.", f.Name, render(f.Result))
	case vm.ChangeVariableStatement:
		fmt.Fprintf(&sb, "Changed %s to %s.", f.Name, render(f.Result))
	case vm.ChangeElementStatement:
		if f.Name != "" {
			fmt.Fprintf(&sb, "Changed an element of %s to %s.", f.Name, render(f.Result))
		} else {
			fmt.Fprintf(&sb, "Changed an element to %s.", render(f.Result))
		}
	case vm.LogStatement:
		fmt.Fprintf(&sb, "Logged %s.", render(f.Result))
	case vm.ExpressionStatement:
		if len(f.Calls) == 0 {
			fmt.Fprintf(&sb, "Called %s.", f.Code)
		}
	case vm.IfStatement:
		fmt.Fprintf(&sb, "The condition %s was %s.", f.Code, render(f.Result))
	case vm.WhileStatement:
		fmt.Fprintf(&sb, "%s evaluated to %s.", f.Code, render(f.Result))
	case vm.RepeatStatement:
		if n, ok := f.Result.(vm.Number); ok && n == 0 {
			sb.WriteString("The loop ran zero times.")
		} else {
			fmt.Fprintf(&sb, "Starting iteration %s.", render(f.Result))
		}
	case vm.ForeachStatement:
		if f.Result == nil {
			sb.WriteString("There was nothing to loop over.")
		} else {
			fmt.Fprintf(&sb, "This iteration sets %s to %s.", f.Name, render(f.Result))
		}
	case vm.ReturnStatement:
		fmt.Fprintf(&sb, "Returned %s.", render(f.Result))
	case vm.BreakStatement:
		sb.WriteString("Left the loop.")
	case vm.ContinueStatement:
		sb.WriteString("Skipped to the next iteration.")
	}
	for _, c := range f.Calls {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if c.Description != "" {
			sb.WriteString(c.Description)
		} else {
			fmt.Fprintf(&sb, "Called %s.", c.Function)
		}
	}
	return sb.String()
}

func render(v vm.Value) string {
	if v == nil {
		return "nothing"
	}
	return Repr(v)
}
