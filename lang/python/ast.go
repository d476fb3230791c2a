package python

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

// UnaryExpr is "-", "+" or "not".
type UnaryExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Operand Expr
}

// BinaryExpr is an arithmetic operator.
type BinaryExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

// CompareExpr is a comparison chain: a < b <= c holds when every adjacent
// pair does. Each operand is evaluated at most once.
type CompareExpr struct {
	SpanVal  vm.Span
	Operands []Expr
	Ops      []TokenType
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

// DictExpr keeps its entries in source order.
type DictExpr struct {
	SpanVal vm.Span
	Keys    []Expr
	Values  []Expr
}

// SubscriptExpr is obj[index] or, when Slice is set, obj[lower:upper]
// where either bound may be nil.
type SubscriptExpr struct {
	SpanVal vm.Span
	Object  Expr
	Index   Expr
	Slice   bool
	Upper   Expr
}

// AttributeExpr is obj.name.
type AttributeExpr struct {
	SpanVal  vm.Span
	Object   Expr
	Name     string
	NameSpan vm.Span
}

// CallExpr calls a function. Synthetic marks the call EvaluateFunction
// builds.
type CallExpr struct {
	SpanVal   vm.Span
	Callee    Expr
	Args      []Expr
	Synthetic bool
}

// FStringExpr alternates literal text and expressions:
// Texts[0] Exprs[0] Texts[1] ... Texts[len(Exprs)].
type FStringExpr struct {
	SpanVal vm.Span
	Texts   []string
	Exprs   []Expr
}

func (n *LiteralExpr) Span() vm.Span    { return n.SpanVal }
func (n *IdentifierExpr) Span() vm.Span { return n.SpanVal }
func (n *UnaryExpr) Span() vm.Span      { return n.SpanVal }
func (n *BinaryExpr) Span() vm.Span     { return n.SpanVal }
func (n *CompareExpr) Span() vm.Span    { return n.SpanVal }
func (n *LogicalExpr) Span() vm.Span    { return n.SpanVal }
func (n *GroupingExpr) Span() vm.Span   { return n.SpanVal }
func (n *ListExpr) Span() vm.Span       { return n.SpanVal }
func (n *DictExpr) Span() vm.Span       { return n.SpanVal }
func (n *SubscriptExpr) Span() vm.Span  { return n.SpanVal }
func (n *AttributeExpr) Span() vm.Span  { return n.SpanVal }
func (n *CallExpr) Span() vm.Span       { return n.SpanVal }
func (n *FStringExpr) Span() vm.Span    { return n.SpanVal }

func (n *LiteralExpr) Kind() vm.NodeKind    { return vm.LiteralExpression }
func (n *IdentifierExpr) Kind() vm.NodeKind { return vm.IdentifierExpression }
func (n *UnaryExpr) Kind() vm.NodeKind      { return vm.UnaryExpression }
func (n *BinaryExpr) Kind() vm.NodeKind     { return vm.BinaryExpression }
func (n *CompareExpr) Kind() vm.NodeKind    { return vm.BinaryExpression }
func (n *LogicalExpr) Kind() vm.NodeKind    { return vm.LogicalExpression }
func (n *GroupingExpr) Kind() vm.NodeKind   { return vm.GroupingExpression }
func (n *ListExpr) Kind() vm.NodeKind       { return vm.ListExpression }
func (n *DictExpr) Kind() vm.NodeKind       { return vm.DictionaryExpression }
func (n *SubscriptExpr) Kind() vm.NodeKind  { return vm.SubscriptExpression }
func (n *AttributeExpr) Kind() vm.NodeKind  { return vm.AttributeExpression }
func (n *CallExpr) Kind() vm.NodeKind       { return vm.CallExpression }
func (n *FStringExpr) Kind() vm.NodeKind    { return vm.FStringExpression }

func (n *LiteralExpr) expr()    {}
func (n *IdentifierExpr) expr() {}
func (n *UnaryExpr) expr()      {}
func (n *BinaryExpr) expr()     {}
func (n *CompareExpr) expr()    {}
func (n *LogicalExpr) expr()    {}
func (n *GroupingExpr) expr()   {}
func (n *ListExpr) expr()       {}
func (n *DictExpr) expr()       {}
func (n *SubscriptExpr) expr()  {}
func (n *AttributeExpr) expr()  {}
func (n *CallExpr) expr()       {}
func (n *FStringExpr) expr()    {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

type ExpressionStmt struct {
	SpanVal vm.Span
	Expr    Expr
}

// AssignmentStmt is "a = b = value" or an augmented "a += value". Each
// target is an identifier or a subscript.
type AssignmentStmt struct {
	SpanVal vm.Span
	Targets []Expr
	Op      TokenType
	Value   Expr
}

// IfStmt chains elif clauses through Else.
type IfStmt struct {
	SpanVal   vm.Span
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

type WhileStmt struct {
	SpanVal   vm.Span
	Condition Expr
	Body      []Stmt
}

// ForInStmt is "for name in iterable:".
type ForInStmt struct {
	SpanVal  vm.Span
	Name     string
	NameSpan vm.Span
	Iterable Expr
	Body     []Stmt
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

func (n *ExpressionStmt) Span() vm.Span { return n.SpanVal }
func (n *AssignmentStmt) Span() vm.Span { return n.SpanVal }
func (n *IfStmt) Span() vm.Span         { return n.SpanVal }
func (n *WhileStmt) Span() vm.Span      { return n.SpanVal }
func (n *ForInStmt) Span() vm.Span      { return n.SpanVal }
func (n *FunctionDecl) Span() vm.Span   { return n.SpanVal }
func (n *ReturnStmt) Span() vm.Span     { return n.SpanVal }
func (n *BreakStmt) Span() vm.Span      { return n.SpanVal }
func (n *ContinueStmt) Span() vm.Span   { return n.SpanVal }

func (n *ExpressionStmt) Kind() vm.NodeKind { return vm.ExpressionStatement }
func (n *AssignmentStmt) Kind() vm.NodeKind { return vm.AssignmentStatement }
func (n *IfStmt) Kind() vm.NodeKind         { return vm.IfStatement }
func (n *WhileStmt) Kind() vm.NodeKind      { return vm.WhileStatement }
func (n *ForInStmt) Kind() vm.NodeKind      { return vm.ForInStatement }
func (n *FunctionDecl) Kind() vm.NodeKind   { return vm.FunctionDeclaration }
func (n *ReturnStmt) Kind() vm.NodeKind     { return vm.ReturnStatement }
func (n *BreakStmt) Kind() vm.NodeKind      { return vm.BreakStatement }
func (n *ContinueStmt) Kind() vm.NodeKind   { return vm.ContinueStatement }

func (n *ExpressionStmt) stmt() {}
func (n *AssignmentStmt) stmt() {}
func (n *IfStmt) stmt()         {}
func (n *WhileStmt) stmt()      {}
func (n *ForInStmt) stmt()      {}
func (n *FunctionDecl) stmt()   {}
func (n *ReturnStmt) stmt()     {}
func (n *BreakStmt) stmt()      {}
func (n *ContinueStmt) stmt()   {}

// Program is a parsed source file.
type Program struct {
	Source string
	Body   []Stmt
}
