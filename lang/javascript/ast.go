package javascript

import "github.com/chazu/jiki/vm"

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

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

// LiteralExpr is a number, string, boolean, null or undefined literal.
type LiteralExpr struct {
	SpanVal vm.Span
	Value   vm.Value
}

// IdentifierExpr references a variable or function by name.
type IdentifierExpr struct {
	SpanVal vm.Span
	Name    string
}

// UnaryExpr is a prefix "-", "+" or "!".
type UnaryExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Operand Expr
}

// BinaryExpr covers arithmetic, comparison, equality and "in".
type BinaryExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

// LogicalExpr is "&&" or "||".
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

// AssignmentExpr assigns to an identifier or member target. Op is
// TokenAssign or one of the compound assignment operators.
type AssignmentExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Target  Expr
	Value   Expr
}

// UpdateExpr is "++" or "--", prefix or postfix.
type UpdateExpr struct {
	SpanVal vm.Span
	Op      TokenType
	Prefix  bool
	Target  Expr
}

// TemplateLiteralExpr alternates literal text and expressions:
// Quasis[0] Exprs[0] Quasis[1] ... Quasis[len(Exprs)].
type TemplateLiteralExpr struct {
	SpanVal vm.Span
	Quasis  []string
	Exprs   []Expr
}

type ArrayExpr struct {
	SpanVal  vm.Span
	Elements []Expr
}

// DictionaryExpr is an object literal. Keys keep source order.
type DictionaryExpr struct {
	SpanVal vm.Span
	Keys    []string
	Values  []Expr
}

// MemberExpr is obj.name or obj[expr].
type MemberExpr struct {
	SpanVal  vm.Span
	Object   Expr
	Property Expr // LiteralExpr holding the name when not Computed
	Computed bool
}

// CallExpr calls a function. Synthetic marks the call built by
// EvaluateFunction, which is exempt from node whitelisting.
type CallExpr struct {
	SpanVal   vm.Span
	Callee    Expr
	Args      []Expr
	Synthetic bool
}

func (n *LiteralExpr) Span() vm.Span         { return n.SpanVal }
func (n *IdentifierExpr) Span() vm.Span      { return n.SpanVal }
func (n *UnaryExpr) Span() vm.Span           { return n.SpanVal }
func (n *BinaryExpr) Span() vm.Span          { return n.SpanVal }
func (n *LogicalExpr) Span() vm.Span         { return n.SpanVal }
func (n *GroupingExpr) Span() vm.Span        { return n.SpanVal }
func (n *AssignmentExpr) Span() vm.Span      { return n.SpanVal }
func (n *UpdateExpr) Span() vm.Span          { return n.SpanVal }
func (n *TemplateLiteralExpr) Span() vm.Span { return n.SpanVal }
func (n *ArrayExpr) Span() vm.Span           { return n.SpanVal }
func (n *DictionaryExpr) Span() vm.Span      { return n.SpanVal }
func (n *MemberExpr) Span() vm.Span          { return n.SpanVal }
func (n *CallExpr) Span() vm.Span            { return n.SpanVal }

func (n *LiteralExpr) Kind() vm.NodeKind         { return vm.LiteralExpression }
func (n *IdentifierExpr) Kind() vm.NodeKind      { return vm.IdentifierExpression }
func (n *UnaryExpr) Kind() vm.NodeKind           { return vm.UnaryExpression }
func (n *BinaryExpr) Kind() vm.NodeKind          { return vm.BinaryExpression }
func (n *LogicalExpr) Kind() vm.NodeKind         { return vm.LogicalExpression }
func (n *GroupingExpr) Kind() vm.NodeKind        { return vm.GroupingExpression }
func (n *AssignmentExpr) Kind() vm.NodeKind      { return vm.AssignmentExpression }
func (n *UpdateExpr) Kind() vm.NodeKind          { return vm.UpdateExpression }
func (n *TemplateLiteralExpr) Kind() vm.NodeKind { return vm.TemplateLiteralExpression }
func (n *ArrayExpr) Kind() vm.NodeKind           { return vm.ArrayExpression }
func (n *DictionaryExpr) Kind() vm.NodeKind      { return vm.DictionaryExpression }
func (n *MemberExpr) Kind() vm.NodeKind          { return vm.MemberExpression }
func (n *CallExpr) Kind() vm.NodeKind            { return vm.CallExpression }

func (n *LiteralExpr) expr()         {}
func (n *IdentifierExpr) expr()      {}
func (n *UnaryExpr) expr()           {}
func (n *BinaryExpr) expr()          {}
func (n *LogicalExpr) expr()         {}
func (n *GroupingExpr) expr()        {}
func (n *AssignmentExpr) expr()      {}
func (n *UpdateExpr) expr()          {}
func (n *TemplateLiteralExpr) expr() {}
func (n *ArrayExpr) expr()           {}
func (n *DictionaryExpr) expr()      {}
func (n *MemberExpr) expr()          {}
func (n *CallExpr) expr()            {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

type ExpressionStmt struct {
	SpanVal vm.Span
	Expr    Expr
}

// VariableDecl is "let name = init" or "const name = init". Init is nil for
// a bare "let name".
type VariableDecl struct {
	SpanVal  vm.Span
	Name     string
	NameSpan vm.Span
	Const    bool
	Init     Expr
}

type BlockStmt struct {
	SpanVal vm.Span
	Body    []Stmt
}

// IfStmt's Else is nil, another *IfStmt, or a block.
type IfStmt struct {
	SpanVal   vm.Span
	Condition Expr
	Then      Stmt
	Else      Stmt
}

type WhileStmt struct {
	SpanVal   vm.Span
	Condition Expr
	Body      Stmt
}

// ForStmt is a C-style loop; each clause may be nil.
type ForStmt struct {
	SpanVal vm.Span
	Init    Stmt
	Test    Expr
	Update  Expr
	Body    Stmt
}

type ForOfStmt struct {
	SpanVal  vm.Span
	Name     string
	Iterable Expr
	Body     Stmt
}

type ForInStmt struct {
	SpanVal vm.Span
	Name    string
	Object  Expr
	Body    Stmt
}

type RepeatStmt struct {
	SpanVal vm.Span
	Count   Expr
	Body    Stmt
}

type FunctionDecl struct {
	SpanVal vm.Span
	Name    string
	Params  []string
	Body    *BlockStmt
}

type ReturnStmt struct {
	SpanVal vm.Span
	Value   Expr // may be nil
}

type BreakStmt struct {
	SpanVal vm.Span
}

type ContinueStmt struct {
	SpanVal vm.Span
}

func (n *ExpressionStmt) Span() vm.Span { return n.SpanVal }
func (n *VariableDecl) Span() vm.Span   { return n.SpanVal }
func (n *BlockStmt) Span() vm.Span      { return n.SpanVal }
func (n *IfStmt) Span() vm.Span         { return n.SpanVal }
func (n *WhileStmt) Span() vm.Span      { return n.SpanVal }
func (n *ForStmt) Span() vm.Span        { return n.SpanVal }
func (n *ForOfStmt) Span() vm.Span      { return n.SpanVal }
func (n *ForInStmt) Span() vm.Span      { return n.SpanVal }
func (n *RepeatStmt) Span() vm.Span     { return n.SpanVal }
func (n *FunctionDecl) Span() vm.Span   { return n.SpanVal }
func (n *ReturnStmt) Span() vm.Span     { return n.SpanVal }
func (n *BreakStmt) Span() vm.Span      { return n.SpanVal }
func (n *ContinueStmt) Span() vm.Span   { return n.SpanVal }

func (n *ExpressionStmt) Kind() vm.NodeKind { return vm.ExpressionStatement }
func (n *VariableDecl) Kind() vm.NodeKind   { return vm.VariableDeclaration }
func (n *BlockStmt) Kind() vm.NodeKind      { return vm.BlockStatement }
func (n *IfStmt) Kind() vm.NodeKind         { return vm.IfStatement }
func (n *WhileStmt) Kind() vm.NodeKind      { return vm.WhileStatement }
func (n *ForStmt) Kind() vm.NodeKind        { return vm.ForStatement }
func (n *ForOfStmt) Kind() vm.NodeKind      { return vm.ForOfStatement }
func (n *ForInStmt) Kind() vm.NodeKind      { return vm.ForInStatement }
func (n *RepeatStmt) Kind() vm.NodeKind     { return vm.RepeatStatement }
func (n *FunctionDecl) Kind() vm.NodeKind   { return vm.FunctionDeclaration }
func (n *ReturnStmt) Kind() vm.NodeKind     { return vm.ReturnStatement }
func (n *BreakStmt) Kind() vm.NodeKind      { return vm.BreakStatement }
func (n *ContinueStmt) Kind() vm.NodeKind   { return vm.ContinueStatement }

func (n *ExpressionStmt) stmt() {}
func (n *VariableDecl) stmt()   {}
func (n *BlockStmt) stmt()      {}
func (n *IfStmt) stmt()         {}
func (n *WhileStmt) stmt()      {}
func (n *ForStmt) stmt()        {}
func (n *ForOfStmt) stmt()      {}
func (n *ForInStmt) stmt()      {}
func (n *RepeatStmt) stmt()     {}
func (n *FunctionDecl) stmt()   {}
func (n *ReturnStmt) stmt()     {}
func (n *BreakStmt) stmt()      {}
func (n *ContinueStmt) stmt()   {}

// Program is a parsed source file.
type Program struct {
	Source string
	Body   []Stmt
}
