package python

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
	case vm.AssignmentStatement:
		if f.Name != "" {
			fmt.Fprintf(&sb, "Set %s to %s.", f.Name, render(f.Result))
		} else {
			fmt.Fprintf(&sb, "Stored %s.", render(f.Result))
		}
	case vm.ExpressionStatement:
		if len(f.Calls) == 0 {
			fmt.Fprintf(&sb, "Evaluated %s.", f.Code)
		}
	case vm.IfStatement:
		fmt.Fprintf(&sb, "The condition %s was %s.", f.Code, render(f.Result))
	case vm.WhileStatement:
		fmt.Fprintf(&sb, "%s evaluated to %s.", f.Code, render(f.Result))
	case vm.ForInStatement:
		fmt.Fprintf(&sb, "This iteration sets %s to %s.", f.Name, render(f.Result))
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
