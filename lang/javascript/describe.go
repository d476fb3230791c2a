package javascript

import (
	"fmt"
	"strings"

	"github.com/chazu/jiki/vm"
)

// describeFrame narrates a frame from its own captured state.
func describeFrame(f *vm.Frame) string {
	if f.Error != nil {
		return f.Error.Message
	}
	var sb strings.Builder
	switch f.Kind {
	case vm.VariableDeclaration:
		fmt.Fprintf(&sb, "Created a variable called %s and set it to %s.", f.Name, render(f.Result))
	case vm.ExpressionStatement:
		switch {
		case f.Name != "":
			fmt.Fprintf(&sb, "Updated %s to %s.", f.Name, render(f.Result))
		case len(f.Calls) == 0:
			fmt.Fprintf(&sb, "Evaluated %s.", strings.TrimRight(f.Code, "; \t"))
		}
	case vm.IfStatement:
		fmt.Fprintf(&sb, "The condition %s was %s.", f.Code, render(f.Result))
	case vm.WhileStatement, vm.ForStatement:
		fmt.Fprintf(&sb, "%s evaluated to %s.", f.Code, render(f.Result))
	case vm.ForOfStatement, vm.ForInStatement:
		fmt.Fprintf(&sb, "This iteration sets %s to %s.", f.Name, render(f.Result))
	case vm.RepeatStatement:
		fmt.Fprintf(&sb, "Starting repetition %s.", render(f.Result))
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
	return Inspect(v)
}
