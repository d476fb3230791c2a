package jikiscript

import (
	"strconv"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent, one statement per line
// ---------------------------------------------------------------------------

type bailout struct{}

// Parser parses JikiScript source into an AST, stopping at the first
// syntax error.
type Parser struct {
	lexer     *Lexer
	input     string
	policy    *vm.Policy
	curToken  Token
	peekToken Token
	prevEnd   vm.Position
	depth     int // 0 at top level, 1 inside a function
	functions []*FunctionDecl
	err       *vm.SyntaxError
}

func NewParser(input string, policy *vm.Policy) *Parser {
	return &Parser{lexer: NewLexer(input), input: input, policy: policy}
}

// Parse parses a whole program.
func Parse(input string, policy *vm.Policy) (*Program, *vm.SyntaxError) {
	return NewParser(input, policy).ParseProgram()
}

func (p *Parser) ParseProgram() (prog *Program, err *vm.SyntaxError) {
	defer p.recoverBailout(&err)
	p.nextToken()
	p.nextToken()
	var body []Stmt
	for !p.curTokenIs(TokenEOF) {
		body = append(body, p.parseStatement())
	}
	return &Program{Source: p.input, Body: body, Functions: p.functions}, nil
}

func (p *Parser) recoverBailout(err **vm.SyntaxError) {
	if r := recover(); r != nil {
		if _, ok := r.(bailout); !ok {
			panic(r)
		}
		*err = p.err
	}
}

func (p *Parser) nextToken() {
	if p.curToken.Type != TokenNewline {
		p.prevEnd = p.curToken.End
	}
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.err = p.lexer.Err()
		panic(bailout{})
	}
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) fail(typ vm.ErrorType, span vm.Span, ctx map[string]any) {
	if p.err == nil {
		p.err = vm.NewSyntaxError(typ, span, ctx)
	}
	panic(bailout{})
}

// unexpected fails on the current token.
func (p *Parser) unexpected() {
	tok := p.curToken
	switch tok.Type {
	case TokenReserved:
		p.fail(vm.UnimplementedToken, tok.Span(), map[string]any{"token": tok.Literal})
	case TokenNewline, TokenEOF:
		p.fail(vm.MissingExpression, tok.Span(), nil)
	}
	p.fail(vm.UnexpectedToken, tok.Span(), map[string]any{"token": tok.Literal})
}

func (p *Parser) expect(t TokenType, typ vm.ErrorType, ctx map[string]any) Token {
	if !p.curTokenIs(t) {
		if p.curTokenIs(TokenReserved) {
			p.unexpected()
		}
		p.fail(typ, p.curToken.Span(), ctx)
	}
	tok := p.curToken
	p.nextToken()
	return tok
}

func (p *Parser) expectIdentifier() Token {
	return p.expect(TokenIdentifier, vm.MissingIdentifier, nil)
}

func (p *Parser) allow(kind vm.NodeKind, at vm.Span) {
	if !p.policy.NodeAllowed(kind) {
		p.fail(kind.NotAllowedType(), at, map[string]any{"nodeType": string(kind)})
	}
}

func (p *Parser) spanFrom(start vm.Position) vm.Span {
	return vm.Span{Start: start, End: p.prevEnd}
}

// endLine consumes the NEWLINE that ends a line. Anything else on the line
// is a second statement.
func (p *Parser) endLine() {
	switch p.curToken.Type {
	case TokenNewline:
		p.nextToken()
	case TokenEOF:
	case TokenReserved:
		p.unexpected()
	default:
		p.fail(vm.MultipleStatementsPerLine, p.curToken.Span(), map[string]any{"line": p.curToken.Pos.Line})
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() Stmt {
	tok := p.curToken
	var stmt Stmt
	switch tok.Type {
	case TokenSet:
		stmt = p.parseSet()
	case TokenChange:
		stmt = p.parseChange()
	case TokenLog:
		p.allow(vm.LogStatement, tok.Span())
		p.nextToken()
		value := p.parseExpression()
		stmt = &LogStmt{SpanVal: p.spanFrom(tok.Pos), Value: value}
	case TokenIf:
		stmt = p.parseIf()
	case TokenRepeat:
		stmt = p.parseRepeat()
	case TokenRepeatUntilGameOver:
		p.allow(vm.RepeatUntilGameOverStatement, tok.Span())
		p.nextToken()
		body := p.parseBlock(tok)
		stmt = &RepeatUntilGameOverStmt{SpanVal: p.spanFrom(tok.Pos), Body: body}
	case TokenFor:
		stmt = p.parseForeach()
	case TokenDo:
		p.allow(vm.BlockStatement, tok.Span())
		body := p.parseBlock(tok)
		stmt = &BlockStmt{SpanVal: p.spanFrom(tok.Pos), Body: body}
	case TokenWhile:
		p.allow(vm.WhileStatement, tok.Span())
		p.nextToken()
		cond := p.parseExpression()
		body := p.parseBlock(tok)
		stmt = &WhileStmt{SpanVal: p.spanFrom(tok.Pos), Condition: cond, Body: body}
	case TokenFunction:
		if p.depth > 0 {
			p.fail(vm.NestedFunctionDeclaration, tok.Span(), nil)
		}
		stmt = p.parseFunctionDecl()
	case TokenReturn:
		p.allow(vm.ReturnStatement, tok.Span())
		p.nextToken()
		ret := &ReturnStmt{}
		if !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
			ret.Value = p.parseExpression()
		}
		ret.SpanVal = p.spanFrom(tok.Pos)
		stmt = ret
	case TokenBreak:
		p.allow(vm.BreakStatement, tok.Span())
		p.nextToken()
		stmt = &BreakStmt{SpanVal: tok.Span()}
	case TokenContinue:
		p.allow(vm.ContinueStatement, tok.Span())
		p.nextToken()
		stmt = &ContinueStmt{SpanVal: tok.Span()}
	case TokenIdentifier:
		p.allow(vm.ExpressionStatement, tok.Span())
		expr := p.parseExpression()
		stmt = &ExpressionStmt{SpanVal: p.spanFrom(tok.Pos), Expr: expr}
	default:
		p.unexpected()
	}
	p.endLine()
	return stmt
}

func (p *Parser) parseSet() Stmt {
	tok := p.curToken
	p.allow(vm.SetVariableStatement, tok.Span())
	p.nextToken()
	name := p.expectIdentifier()
	p.expect(TokenTo, vm.MissingToAfterVariableName, nil)
	value := p.parseExpression()
	return &SetVariableStmt{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, NameSpan: name.Span(), Value: value}
}

// parseChange parses "change name to v" or "change name[i]...[j] to v",
// where the last index is the element written.
func (p *Parser) parseChange() Stmt {
	tok := p.curToken
	p.nextToken()
	name := p.expectIdentifier()
	if !p.curTokenIs(TokenLBracket) {
		p.allow(vm.ChangeVariableStatement, tok.Span())
		p.expect(TokenTo, vm.MissingToAfterVariableName, nil)
		value := p.parseExpression()
		return &ChangeVariableStmt{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, NameSpan: name.Span(), Value: value}
	}

	p.allow(vm.ChangeElementStatement, tok.Span())
	var object Expr = &IdentifierExpr{SpanVal: name.Span(), Name: name.Literal}
	index := p.parseIndex()
	for p.curTokenIs(TokenLBracket) {
		p.allow(vm.SubscriptExpression, p.curToken.Span())
		object = &IndexExpr{SpanVal: p.spanFrom(name.Pos), Object: object, Index: index}
		index = p.parseIndex()
	}
	p.expect(TokenTo, vm.MissingToAfterVariableName, nil)
	value := p.parseExpression()
	return &ChangeElementStmt{SpanVal: p.spanFrom(tok.Pos), Object: object, Index: index, Value: value}
}

// parseIndex parses "[expr]".
func (p *Parser) parseIndex() Expr {
	p.nextToken()
	index := p.parseExpression()
	p.expect(TokenRBracket, vm.MissingRightBracketAfterExpression, nil)
	return index
}

// parseBlock parses "do NEWLINE stmts end". open is the token that starts
// the construct, reported when the end is missing.
func (p *Parser) parseBlock(open Token) []Stmt {
	p.expect(TokenDo, vm.MissingDoToStartBlock, nil)
	body := p.parseBody(open, TokenEnd)
	p.nextToken()
	return body
}

// parseBody parses statements up to, but not including, one of the
// terminators.
func (p *Parser) parseBody(open Token, terminators ...TokenType) []Stmt {
	p.endLine()
	var body []Stmt
	for {
		for _, t := range terminators {
			if p.curTokenIs(t) {
				return body
			}
		}
		if p.curTokenIs(TokenEOF) {
			p.fail(vm.MissingEndAfterBlock, open.Span(), nil)
		}
		body = append(body, p.parseStatement())
	}
}

// parseIf parses an if statement. Every "else if" clause shares the single
// closing end.
func (p *Parser) parseIf() Stmt {
	tok := p.curToken
	stmt := p.parseIfClause(tok)
	p.nextToken()
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

func (p *Parser) parseIfClause(open Token) *IfStmt {
	p.allow(vm.IfStatement, p.curToken.Span())
	p.nextToken()
	stmt := &IfStmt{Condition: p.parseExpression()}
	p.expect(TokenDo, vm.MissingDoToStartBlock, nil)
	stmt.Then = p.parseBody(open, TokenEnd, TokenElse)
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			start := p.curToken.Pos
			inner := p.parseIfClause(open)
			inner.SpanVal = p.spanFrom(start)
			stmt.Else = []Stmt{inner}
		} else {
			if p.curTokenIs(TokenDo) {
				p.nextToken()
			}
			stmt.Else = p.parseBody(open, TokenEnd)
		}
	}
	stmt.SpanVal = p.spanFrom(open.Pos)
	return stmt
}

func (p *Parser) parseRepeat() Stmt {
	tok := p.curToken
	p.allow(vm.RepeatStatement, tok.Span())
	p.nextToken()
	count := p.parseExpression()
	p.expect(TokenTimes, vm.MissingTimesInRepeat, nil)
	body := p.parseBlock(tok)
	return &RepeatStmt{SpanVal: p.spanFrom(tok.Pos), Count: count, Body: body}
}

func (p *Parser) parseForeach() Stmt {
	tok := p.curToken
	p.allow(vm.ForeachStatement, tok.Span())
	p.nextToken()
	p.expect(TokenEach, vm.MissingEachAfterFor, nil)
	name := p.expectIdentifier()
	p.expect(TokenIn, vm.MissingInAfterLoopVariable, nil)
	iterable := p.parseExpression()
	body := p.parseBlock(tok)
	return &ForeachStmt{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, NameSpan: name.Span(), Iterable: iterable, Body: body}
}

func (p *Parser) parseFunctionDecl() Stmt {
	tok := p.curToken
	p.allow(vm.FunctionDeclaration, tok.Span())
	p.nextToken()
	name := p.expectIdentifier()

	var params []string
	switch p.curToken.Type {
	case TokenWith:
		p.nextToken()
		seen := map[string]bool{}
		for {
			param := p.expectIdentifier()
			if seen[param.Literal] {
				p.fail(vm.DuplicateParameterName, param.Span(), map[string]any{"name": param.Literal})
			}
			seen[param.Literal] = true
			params = append(params, param.Literal)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	case TokenIdentifier:
		p.fail(vm.MissingWithBeforeParameters, p.curToken.Span(), nil)
	}

	p.depth++
	body := p.parseBlock(tok)
	p.depth--
	decl := &FunctionDecl{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, Params: params, Body: body}
	p.functions = append(p.functions, decl)
	return decl
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() Expr {
	return p.parseOr()
}

func (p *Parser) logicalLevel(op TokenType, next func() Expr) Expr {
	left := next()
	for p.curTokenIs(op) {
		tok := p.curToken
		p.allow(vm.LogicalExpression, tok.Span())
		p.nextToken()
		right := next()
		left = &LogicalExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseOr() Expr {
	return p.logicalLevel(TokenOr, p.parseAnd)
}

func (p *Parser) parseAnd() Expr {
	return p.logicalLevel(TokenAnd, p.parseEquality)
}

func (p *Parser) binaryLevel(next func() Expr, ops ...TokenType) Expr {
	left := next()
	for {
		matched := false
		for _, op := range ops {
			if p.curTokenIs(op) {
				matched = true
				break
			}
		}
		if !matched {
			return left
		}
		op := p.curToken
		p.allow(vm.BinaryExpression, op.Span())
		p.nextToken()
		right := next()
		typ := op.Type
		if typ == TokenIs {
			typ = TokenEqual
		}
		left = &BinaryExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: typ, Left: left, Right: right}
	}
}

func (p *Parser) parseEquality() Expr {
	return p.binaryLevel(p.parseComparison, TokenIs, TokenEqual, TokenNotEqual)
}

func (p *Parser) parseComparison() Expr {
	return p.binaryLevel(p.parseAdditive, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual)
}

func (p *Parser) parseAdditive() Expr {
	return p.binaryLevel(p.parseMultiplicative, TokenPlus, TokenMinus)
}

func (p *Parser) parseMultiplicative() Expr {
	return p.binaryLevel(p.parseUnary, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) parseUnary() Expr {
	switch p.curToken.Type {
	case TokenMinus, TokenNot, TokenBang:
		op := p.curToken
		p.allow(vm.UnaryExpression, op.Span())
		p.nextToken()
		operand := p.parseUnary()
		typ := op.Type
		if typ == TokenBang {
			typ = TokenNot
		}
		return &UnaryExpr{SpanVal: vm.Join(op.Span(), operand.Span()), Op: typ, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for {
		switch p.curToken.Type {
		case TokenLBracket:
			p.allow(vm.SubscriptExpression, p.curToken.Span())
			index := p.parseIndex()
			expr = &IndexExpr{SpanVal: p.spanFrom(expr.Span().Start), Object: expr, Index: index}
		case TokenLParen:
			id, ok := expr.(*IdentifierExpr)
			if !ok {
				p.unexpected()
			}
			p.allow(vm.CallExpression, p.curToken.Span())
			p.nextToken()
			args := p.parseArguments(id.Name)
			expr = &CallExpr{SpanVal: p.spanFrom(id.SpanVal.Start), Callee: id, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArguments(callee string) []Expr {
	var args []Expr
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		args = append(args, p.parseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen, vm.MissingRightParenthesisAfterFunctionCall, map[string]any{"function": callee})
	return args
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		p.allow(vm.LiteralExpression, tok.Span())
		p.nextToken()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.fail(vm.UnknownCharacter, tok.Span(), map[string]any{"character": tok.Literal})
		}
		return &LiteralExpr{SpanVal: tok.Span(), Value: vm.Number(f)}
	case TokenString:
		p.allow(vm.LiteralExpression, tok.Span())
		p.nextToken()
		return &LiteralExpr{SpanVal: tok.Span(), Value: vm.String(tok.Literal)}
	case TokenTrue, TokenFalse:
		p.allow(vm.LiteralExpression, tok.Span())
		p.nextToken()
		return &LiteralExpr{SpanVal: tok.Span(), Value: vm.Boolean(tok.Type == TokenTrue)}
	case TokenNull:
		p.allow(vm.LiteralExpression, tok.Span())
		p.nextToken()
		return &LiteralExpr{SpanVal: tok.Span(), Value: vm.Null{}}
	case TokenIdentifier:
		p.allow(vm.IdentifierExpression, tok.Span())
		p.nextToken()
		return &IdentifierExpr{SpanVal: tok.Span(), Name: tok.Literal}
	case TokenLParen:
		p.allow(vm.GroupingExpression, tok.Span())
		p.nextToken()
		inner := p.parseExpression()
		p.expect(TokenRParen, vm.MissingRightParenthesisAfterExpression, nil)
		return &GroupingExpr{SpanVal: p.spanFrom(tok.Pos), Inner: inner}
	case TokenLBracket:
		return p.parseList()
	case TokenLBrace:
		return p.parseDict()
	}
	p.unexpected()
	return nil
}

func (p *Parser) parseList() Expr {
	lb := p.curToken
	p.allow(vm.ListExpression, lb.Span())
	p.nextToken()
	var elems []Expr
	for !p.curTokenIs(TokenRBracket) {
		elems = append(elems, p.parseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		comma := p.curToken
		p.nextToken()
		if p.curTokenIs(TokenRBracket) {
			p.fail(vm.TrailingCommaInArray, comma.Span(), nil)
		}
	}
	p.expect(TokenRBracket, vm.MissingRightBracketAfterExpression, nil)
	return &ListExpr{SpanVal: p.spanFrom(lb.Pos), Elements: elems}
}

// parseDict parses {"key": value, ...}. Keys are string literals.
func (p *Parser) parseDict() Expr {
	lb := p.curToken
	p.allow(vm.DictionaryExpression, lb.Span())
	p.nextToken()
	dict := &DictExpr{}
	seen := map[string]bool{}
	for !p.curTokenIs(TokenRBrace) {
		key := p.curToken
		if key.Type != TokenString {
			p.fail(vm.InvalidDictionaryKey, key.Span(), nil)
		}
		if seen[key.Literal] {
			p.fail(vm.DuplicateDictionaryKey, key.Span(), map[string]any{"key": key.Literal})
		}
		seen[key.Literal] = true
		p.nextToken()
		p.expect(TokenColon, vm.MissingColonInDictionary, nil)
		dict.Keys = append(dict.Keys, key.Literal)
		dict.Values = append(dict.Values, p.parseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		comma := p.curToken
		p.nextToken()
		if p.curTokenIs(TokenRBrace) {
			p.fail(vm.TrailingCommaInDictionary, comma.Span(), nil)
		}
	}
	p.expect(TokenRBrace, vm.MissingRightBraceToEndBlock, nil)
	dict.SpanVal = p.spanFrom(lb.Pos)
	return dict
}
