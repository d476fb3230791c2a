package jikiscript

import "github.com/chazu/jiki/vm"

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() vm.Span
	Kind() vm.NodeKind
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt()
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

type LiteralExpr struct {
	SpanVal vm.Span
	Value   vm.Value
}

type IdentifierExpr struct {
	SpanVal vm.Span
	Name    string
}

// UnaryExpr is "-", "not" or "!".
type UnaryExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Operand Expr
}

// BinaryExpr covers arithmetic, comparison and equality.
type BinaryExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

// LogicalExpr is "and" or "or".
type LogicalExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

type GroupingExpr struct {
	SpanVal vm.Span
	Inner   Expr
}

type ListExpr struct {
	SpanVal  vm.Span
	Elements []Expr
}

// DictExpr keeps its entries in source order. Keys are string literals.
type DictExpr struct {
	SpanVal vm.Span
	Keys    []string
	Values  []Expr
}

// IndexExpr is obj[index]. List and string indexes start at 1.
type IndexExpr struct {
	SpanVal vm.Span
	Object  Expr
	Index   Expr
}

// CallExpr calls a function by name. Synthetic marks the call
// EvaluateFunction builds.
type CallExpr struct {
	SpanVal   vm.Span
	Callee    *IdentifierExpr
	Args      []Expr
	Synthetic bool
}

func (n *LiteralExpr) Span() vm.Span    { return n.SpanVal }
func (n *IdentifierExpr) Span() vm.Span { return n.SpanVal }
func (n *UnaryExpr) Span() vm.Span      { return n.SpanVal }
func (n *BinaryExpr) Span() vm.Span     { return n.SpanVal }
func (n *LogicalExpr) Span() vm.Span    { return n.SpanVal }
func (n *GroupingExpr) Span() vm.Span   { return n.SpanVal }
func (n *ListExpr) Span() vm.Span       { return n.SpanVal }
func (n *DictExpr) Span() vm.Span       { return n.SpanVal }
func (n *IndexExpr) Span() vm.Span      { return n.SpanVal }
func (n *CallExpr) Span() vm.Span       { return n.SpanVal }

func (n *LiteralExpr) Kind() vm.NodeKind    { return vm.LiteralExpression }
func (n *IdentifierExpr) Kind() vm.NodeKind { return vm.IdentifierExpression }
func (n *UnaryExpr) Kind() vm.NodeKind      { return vm.UnaryExpression }
func (n *BinaryExpr) Kind() vm.NodeKind     { return vm.BinaryExpression }
func (n *LogicalExpr) Kind() vm.NodeKind    { return vm.LogicalExpression }
func (n *GroupingExpr) Kind() vm.NodeKind   { return vm.GroupingExpression }
func (n *ListExpr) Kind() vm.NodeKind       { return vm.ListExpression }
func (n *DictExpr) Kind() vm.NodeKind       { return vm.DictionaryExpression }
func (n *IndexExpr) Kind() vm.NodeKind      { return vm.SubscriptExpression }
func (n *CallExpr) Kind() vm.NodeKind       { return vm.CallExpression }

func (n *LiteralExpr) expr()    {}
func (n *IdentifierExpr) expr() {}
func (n *UnaryExpr) expr()      {}
func (n *BinaryExpr) expr()     {}
func (n *LogicalExpr) expr()    {}
func (n *GroupingExpr) expr()   {}
func (n *ListExpr) expr()       {}
func (n *DictExpr) expr()       {}
func (n *IndexExpr) expr()      {}
func (n *CallExpr) expr()       {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// ExpressionStmt is a bare call on its own line.
type ExpressionStmt struct {
	SpanVal vm.Span
	Expr    Expr
}

// SetVariableStmt is "set name to value" and declares name.
type SetVariableStmt struct {
	SpanVal  vm.Span
	Name     string
	NameSpan vm.Span
	Value    Expr
}

// ChangeVariableStmt is "change name to value" and needs name declared.
type ChangeVariableStmt struct {
	SpanVal  vm.Span
	Name     string
	NameSpan vm.Span
	Value    Expr
}

// ChangeElementStmt is "change obj[index] to value".
type ChangeElementStmt struct {
	SpanVal vm.Span
	Object  Expr
	Index   Expr
	Value   Expr
}

type LogStmt struct {
	SpanVal vm.Span
	Value   Expr
}

// IfStmt chains "else if" clauses through Else.
type IfStmt struct {
	SpanVal   vm.Span
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

// RepeatStmt is "repeat count times do ... end".
type RepeatStmt struct {
	SpanVal vm.Span
	Count   Expr
	Body    []Stmt
}

// RepeatUntilGameOverStmt loops until an external function finishes the
// exercise.
type RepeatUntilGameOverStmt struct {
	SpanVal vm.Span
	Body    []Stmt
}

// ForeachStmt is "for each name in iterable do ... end".
type ForeachStmt struct {
	SpanVal  vm.Span
	Name     string
	NameSpan vm.Span
	Iterable Expr
	Body     []Stmt
}

// BlockStmt is a bare "do ... end" block.
type BlockStmt struct {
	SpanVal vm.Span
	Body    []Stmt
}

type WhileStmt struct {
	SpanVal   vm.Span
	Condition Expr
	Body      []Stmt
}

type FunctionDecl struct {
	SpanVal vm.Span
	Name    string
	Params  []string
	Body    []Stmt
}

type ReturnStmt struct {
	SpanVal vm.Span
	Value   Expr
}

type BreakStmt struct {
	SpanVal vm.Span
}

type ContinueStmt struct {
	SpanVal vm.Span
}

func (n *ExpressionStmt) Span() vm.Span          { return n.SpanVal }
func (n *SetVariableStmt) Span() vm.Span         { return n.SpanVal }
func (n *ChangeVariableStmt) Span() vm.Span      { return n.SpanVal }
func (n *ChangeElementStmt) Span() vm.Span       { return n.SpanVal }
func (n *LogStmt) Span() vm.Span                 { return n.SpanVal }
func (n *IfStmt) Span() vm.Span                  { return n.SpanVal }
func (n *RepeatStmt) Span() vm.Span              { return n.SpanVal }
func (n *RepeatUntilGameOverStmt) Span() vm.Span { return n.SpanVal }
func (n *ForeachStmt) Span() vm.Span             { return n.SpanVal }
func (n *BlockStmt) Span() vm.Span               { return n.SpanVal }
func (n *WhileStmt) Span() vm.Span               { return n.SpanVal }
func (n *FunctionDecl) Span() vm.Span            { return n.SpanVal }
func (n *ReturnStmt) Span() vm.Span              { return n.SpanVal }
func (n *BreakStmt) Span() vm.Span               { return n.SpanVal }
func (n *ContinueStmt) Span() vm.Span            { return n.SpanVal }

func (n *ExpressionStmt) Kind() vm.NodeKind     { return vm.ExpressionStatement }
func (n *SetVariableStmt) Kind() vm.NodeKind    { return vm.SetVariableStatement }
func (n *ChangeVariableStmt) Kind() vm.NodeKind { return vm.ChangeVariableStatement }
func (n *ChangeElementStmt) Kind() vm.NodeKind  { return vm.ChangeElementStatement }
func (n *LogStmt) Kind() vm.NodeKind            { return vm.LogStatement }
func (n *IfStmt) Kind() vm.NodeKind             { return vm.IfStatement }
func (n *RepeatStmt) Kind() vm.NodeKind         { return vm.RepeatStatement }
func (n *RepeatUntilGameOverStmt) Kind() vm.NodeKind {
	return vm.RepeatUntilGameOverStatement
}
func (n *ForeachStmt) Kind() vm.NodeKind  { return vm.ForeachStatement }
func (n *BlockStmt) Kind() vm.NodeKind    { return vm.BlockStatement }
func (n *WhileStmt) Kind() vm.NodeKind    { return vm.WhileStatement }
func (n *FunctionDecl) Kind() vm.NodeKind { return vm.FunctionDeclaration }
func (n *ReturnStmt) Kind() vm.NodeKind   { return vm.ReturnStatement }
func (n *BreakStmt) Kind() vm.NodeKind    { return vm.BreakStatement }
func (n *ContinueStmt) Kind() vm.NodeKind { return vm.ContinueStatement }

func (n *ExpressionStmt) stmt()          {}
func (n *SetVariableStmt) stmt()         {}
func (n *ChangeVariableStmt) stmt()      {}
func (n *ChangeElementStmt) stmt()       {}
func (n *LogStmt) stmt()                 {}
func (n *IfStmt) stmt()                  {}
func (n *RepeatStmt) stmt()              {}
func (n *RepeatUntilGameOverStmt) stmt() {}
func (n *ForeachStmt) stmt()             {}
func (n *BlockStmt) stmt()               {}
func (n *WhileStmt) stmt()               {}
func (n *FunctionDecl) stmt()            {}
func (n *ReturnStmt) stmt()              {}
func (n *BreakStmt) stmt()               {}
func (n *ContinueStmt) stmt()            {}

// Program is a parsed source file.
type Program struct {
	Source    string
	Body      []Stmt
	Functions []*FunctionDecl
}
