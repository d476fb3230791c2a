package vm

import (
	"fmt"
	"sort"
)

// NodeKind names an AST node variant. The set is closed: every dialect maps
// each of its node types onto one of these constants, so a single Policy
// whitelist means the same thing to every front-end.
type NodeKind string

const (
	// Expressions
	LiteralExpression         NodeKind = "LiteralExpression"
	IdentifierExpression      NodeKind = "IdentifierExpression"
	UnaryExpression           NodeKind = "UnaryExpression"
	BinaryExpression          NodeKind = "BinaryExpression"
	LogicalExpression         NodeKind = "LogicalExpression"
	GroupingExpression        NodeKind = "GroupingExpression"
	AssignmentExpression      NodeKind = "AssignmentExpression"
	UpdateExpression          NodeKind = "UpdateExpression"
	TemplateLiteralExpression NodeKind = "TemplateLiteralExpression"
	ArrayExpression           NodeKind = "ArrayExpression"
	DictionaryExpression      NodeKind = "DictionaryExpression"
	MemberExpression          NodeKind = "MemberExpression"
	CallExpression            NodeKind = "CallExpression"

	// Python-flavoured expressions
	ListExpression      NodeKind = "ListExpression"
	SubscriptExpression NodeKind = "SubscriptExpression"
	AttributeExpression NodeKind = "AttributeExpression"
	FStringExpression   NodeKind = "FStringExpression"

	// Statements
	ExpressionStatement NodeKind = "ExpressionStatement"
	VariableDeclaration NodeKind = "VariableDeclaration"
	AssignmentStatement NodeKind = "AssignmentStatement"
	BlockStatement      NodeKind = "BlockStatement"
	IfStatement         NodeKind = "IfStatement"
	WhileStatement      NodeKind = "WhileStatement"
	ForStatement        NodeKind = "ForStatement"
	ForOfStatement      NodeKind = "ForOfStatement"
	ForInStatement      NodeKind = "ForInStatement"
	RepeatStatement     NodeKind = "RepeatStatement"
	FunctionDeclaration NodeKind = "FunctionDeclaration"
	ReturnStatement     NodeKind = "ReturnStatement"
	BreakStatement      NodeKind = "BreakStatement"
	ContinueStatement   NodeKind = "ContinueStatement"

	// JikiScript statements
	SetVariableStatement         NodeKind = "SetVariableStatement"
	ChangeVariableStatement      NodeKind = "ChangeVariableStatement"
	ChangeElementStatement       NodeKind = "ChangeElementStatement"
	LogStatement                 NodeKind = "LogStatement"
	ForeachStatement             NodeKind = "ForeachStatement"
	RepeatUntilGameOverStatement NodeKind = "RepeatUntilGameOverStatement"
)

var allNodeKinds = []NodeKind{
	LiteralExpression, IdentifierExpression, UnaryExpression, BinaryExpression,
	LogicalExpression, GroupingExpression, AssignmentExpression, UpdateExpression,
	TemplateLiteralExpression, ArrayExpression, DictionaryExpression,
	MemberExpression, CallExpression,
	ListExpression, SubscriptExpression, AttributeExpression, FStringExpression,
	ExpressionStatement, VariableDeclaration, AssignmentStatement, BlockStatement,
	IfStatement, WhileStatement, ForStatement, ForOfStatement, ForInStatement,
	RepeatStatement, FunctionDeclaration, ReturnStatement, BreakStatement,
	ContinueStatement,
	SetVariableStatement, ChangeVariableStatement, ChangeElementStatement,
	LogStatement, ForeachStatement, RepeatUntilGameOverStatement,
}

var nodeKindSet = func() map[NodeKind]bool {
	m := make(map[NodeKind]bool, len(allNodeKinds))
	for _, k := range allNodeKinds {
		m[k] = true
	}
	return m
}()

// AllNodeKinds returns every known node kind, sorted by name.
func AllNodeKinds() []NodeKind {
	out := append([]NodeKind(nil), allNodeKinds...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseNodeKind validates a node kind name.
func ParseNodeKind(s string) (NodeKind, error) {
	k := NodeKind(s)
	if !nodeKindSet[k] {
		return "", fmt.Errorf("unknown node kind %q", s)
	}
	return k, nil
}

// NotAllowedType is the syntax error type reported when a node kind is
// missing from the whitelist, e.g. "IfStatementNotAllowed". At runtime the
// same condition is reported as NodeNotAllowed.
func (k NodeKind) NotAllowedType() ErrorType {
	return ErrorType(string(k) + "NotAllowed")
}

func init() {
	for _, k := range allNodeKinds {
		messageTemplates[k.NotAllowedType()] = messageTemplates[NodeNotAllowed]
	}
}
