package javascript

import (
	"fmt"
	"strconv"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with dialect checks
// ---------------------------------------------------------------------------

// bailout unwinds the parser on the first syntax error.
type bailout struct{}

// Parser parses JavaScript-dialect source into an AST. It stops at the first
// syntax error.
type Parser struct {
	lexer     *Lexer
	input     string
	policy    *vm.Policy
	curToken  Token
	peekToken Token
	prevEnd   vm.Position // end of the last consumed token
	depth     int         // block nesting, 0 at top level
	err       *vm.SyntaxError
}

// NewParser creates a parser for input under policy.
func NewParser(input string, policy *vm.Policy) *Parser {
	return &Parser{lexer: NewLexer(input), input: input, policy: policy}
}

// Parse parses a whole program.
func Parse(input string, policy *vm.Policy) (*Program, *vm.SyntaxError) {
	return NewParser(input, policy).ParseProgram()
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() (prog *Program, err *vm.SyntaxError) {
	defer p.recoverBailout(&err)
	p.nextToken()
	p.nextToken()
	body := p.parseStatementList(0)
	if !p.curTokenIs(TokenEOF) {
		p.fail(vm.UnexpectedToken, p.curToken.Span(), map[string]any{"token": p.curToken.Literal})
	}
	return &Program{Source: p.input, Body: body}, nil
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
	p.prevEnd = p.curToken.End
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

// expect consumes a token of type t or fails with typ.
func (p *Parser) expect(t TokenType, typ vm.ErrorType, ctx map[string]any) Token {
	if !p.curTokenIs(t) {
		if p.curTokenIs(TokenReserved) {
			p.failReserved()
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

func (p *Parser) failReserved() {
	p.fail(vm.UnimplementedToken, p.curToken.Span(), map[string]any{"token": p.curToken.Literal})
}

// allow rejects node kinds outside the policy's whitelist.
func (p *Parser) allow(kind vm.NodeKind, at vm.Span) {
	if !p.policy.NodeAllowed(kind) {
		p.fail(kind.NotAllowedType(), at, map[string]any{"nodeType": string(kind)})
	}
}

func (p *Parser) spanFrom(start vm.Position) vm.Span {
	return vm.Span{Start: start, End: p.prevEnd}
}

// lineIndent counts the leading spaces of a 1-based source line.
func (p *Parser) lineIndent(line int) int {
	cur := 1
	i := 0
	for i < len(p.input) && cur < line {
		if p.input[i] == '\n' {
			cur++
		}
		i++
	}
	n := 0
	for i+n < len(p.input) && p.input[i+n] == ' ' {
		n++
	}
	return n
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseStatementList parses statements up to '}' or EOF. With formatting
// enforced, statements must be indented by at least minIndent spaces; a
// minIndent of 0 means top level, where they must start in column 1.
func (p *Parser) parseStatementList(minIndent int) []Stmt {
	var stmts []Stmt
	lastLine := 0
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			continue
		}
		start := p.curToken
		if p.policy.OneStatementPerLine && start.Pos.Line == lastLine {
			p.fail(vm.MultipleStatementsPerLine, start.Span(), map[string]any{"line": start.Pos.Line})
		}
		if p.policy.EnforceFormatting && start.Pos.Line > p.prevEnd.Line {
			p.checkIndent(start, minIndent)
		}
		stmts = append(stmts, p.parseStatement())
		lastLine = p.prevEnd.Line
	}
	return stmts
}

func (p *Parser) checkIndent(tok Token, minIndent int) {
	actual := tok.Pos.Column - 1
	switch {
	case minIndent == 0 && actual != 0:
		p.fail(vm.IncorrectIndentation, tok.Span(), map[string]any{"actual": actual, "expected": 0})
	case minIndent > 0 && actual < minIndent:
		p.fail(vm.IncorrectIndentation, tok.Span(), map[string]any{"actual": actual, "expected": fmt.Sprintf("at least %d", minIndent)})
	}
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenFunction:
		if p.depth > 0 {
			p.fail(vm.NestedFunctionDeclaration, p.curToken.Span(), nil)
		}
		return p.parseFunctionDecl()
	case TokenLet, TokenConst:
		decl := p.parseVariableDecl()
		p.endStatement()
		decl.SpanVal = p.spanFrom(decl.SpanVal.Start)
		return decl
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenRepeat:
		return p.parseRepeat()
	case TokenReturn:
		return p.parseReturn()
	case TokenBreak:
		tok := p.curToken
		p.allow(vm.BreakStatement, tok.Span())
		p.nextToken()
		p.endStatement()
		return &BreakStmt{SpanVal: p.spanFrom(tok.Pos)}
	case TokenContinue:
		tok := p.curToken
		p.allow(vm.ContinueStatement, tok.Span())
		p.nextToken()
		p.endStatement()
		return &ContinueStmt{SpanVal: p.spanFrom(tok.Pos)}
	case TokenLBrace:
		return p.parseBlock()
	case TokenReserved:
		p.failReserved()
	}

	start := p.curToken
	p.allow(vm.ExpressionStatement, start.Span())
	expr := p.parseExpression()
	p.endStatement()
	return &ExpressionStmt{SpanVal: p.spanFrom(start.Pos), Expr: expr}
}

// endStatement consumes a statement terminator: ';' or, unless semicolons
// are required, a line break, '}' or EOF.
func (p *Parser) endStatement() {
	switch {
	case p.curTokenIs(TokenSemicolon):
		p.nextToken()
	case p.policy.RequireSemicolons:
		p.fail(vm.MissingSemicolon, vm.Span{Start: p.prevEnd, End: p.prevEnd}, nil)
	case p.curTokenIs(TokenEOF), p.curTokenIs(TokenRBrace), p.curToken.Pos.Line > p.prevEnd.Line:
	default:
		p.fail(vm.UnexpectedToken, p.curToken.Span(), map[string]any{"token": p.curToken.Literal})
	}
}

// parseVariableDecl parses "let|const name [= expr]" without a terminator.
func (p *Parser) parseVariableDecl() *VariableDecl {
	kw := p.curToken
	p.allow(vm.VariableDeclaration, kw.Span())
	p.nextToken()
	name := p.expectIdentifier()
	decl := &VariableDecl{Name: name.Literal, NameSpan: name.Span(), Const: kw.Type == TokenConst}
	switch {
	case p.curTokenIs(TokenAssign):
		p.nextToken()
		decl.Init = p.parseExpression()
	case decl.Const:
		p.fail(vm.MissingInitializerInConstDeclaration, p.spanFrom(kw.Pos), map[string]any{"name": name.Literal})
	case p.policy.RequireVariableInstantiation:
		p.fail(vm.MissingInitializerInVariableDeclaration, p.spanFrom(kw.Pos), map[string]any{"name": name.Literal})
	}
	decl.SpanVal = p.spanFrom(kw.Pos)
	return decl
}

func (p *Parser) parseBlock() *BlockStmt {
	lbrace := p.curToken
	p.allow(vm.BlockStatement, lbrace.Span())
	p.nextToken()

	p.depth++
	body := p.parseStatementList(p.lineIndent(lbrace.Pos.Line) + 1)
	p.depth--

	if !p.curTokenIs(TokenRBrace) {
		p.fail(vm.MissingRightBraceToEndBlock, p.curToken.Span(), nil)
	}
	rbrace := p.curToken
	if p.policy.EnforceFormatting && len(body) > 0 && rbrace.Pos.Line == p.prevEnd.Line {
		p.fail(vm.ClosingBraceNotOnOwnLine, rbrace.Span(), nil)
	}
	p.nextToken()
	return &BlockStmt{SpanVal: p.spanFrom(lbrace.Pos), Body: body}
}

// parseBody parses the statement governed by a control-flow header.
func (p *Parser) parseBody(header string) Stmt {
	if p.curTokenIs(TokenLBrace) {
		return p.parseBlock()
	}
	if p.policy.EnforceFormatting {
		p.fail(vm.BlockRequired, p.curToken.Span(), map[string]any{"statement": header})
	}
	p.depth++
	defer func() { p.depth-- }()
	return p.parseStatement()
}

// parseCondition parses "( expr )".
func (p *Parser) parseCondition() Expr {
	p.expect(TokenLParen, vm.UnexpectedToken, map[string]any{"token": p.curToken.Literal})
	cond := p.parseExpression()
	p.expect(TokenRParen, vm.MissingRightParenthesisAfterExpression, nil)
	return cond
}

func (p *Parser) parseIf() Stmt {
	tok := p.curToken
	p.allow(vm.IfStatement, tok.Span())
	p.nextToken()
	stmt := &IfStmt{Condition: p.parseCondition()}
	stmt.Then = p.parseBody("if")
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBody("else")
		}
	}
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	tok := p.curToken
	p.allow(vm.WhileStatement, tok.Span())
	p.nextToken()
	stmt := &WhileStmt{Condition: p.parseCondition()}
	stmt.Body = p.parseBody("while")
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

func (p *Parser) parseRepeat() Stmt {
	tok := p.curToken
	p.allow(vm.RepeatStatement, tok.Span())
	p.nextToken()
	stmt := &RepeatStmt{Count: p.parseCondition()}
	stmt.Body = p.parseBody("repeat")
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

func (p *Parser) parseFor() Stmt {
	tok := p.curToken
	p.nextToken()
	p.expect(TokenLParen, vm.UnexpectedToken, map[string]any{"token": p.curToken.Literal})

	var init Stmt
	if p.curTokenIs(TokenLet) || p.curTokenIs(TokenConst) {
		kw := p.curToken
		p.nextToken()
		name := p.expectIdentifier()
		switch {
		case p.curTokenIs(TokenOf):
			p.allow(vm.ForOfStatement, tok.Span())
			p.nextToken()
			iterable := p.parseExpression()
			p.expect(TokenRParen, vm.MissingRightParenthesisAfterExpression, nil)
			body := p.parseBody("for")
			return &ForOfStmt{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, Iterable: iterable, Body: body}
		case p.curTokenIs(TokenIn):
			p.allow(vm.ForInStatement, tok.Span())
			p.nextToken()
			object := p.parseExpression()
			p.expect(TokenRParen, vm.MissingRightParenthesisAfterExpression, nil)
			body := p.parseBody("for")
			return &ForInStmt{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, Object: object, Body: body}
		}
		p.allow(vm.ForStatement, tok.Span())
		if kw.Type == TokenConst {
			p.fail(vm.ConstInForLoopInit, kw.Span(), nil)
		}
		p.allow(vm.VariableDeclaration, kw.Span())
		decl := &VariableDecl{Name: name.Literal, NameSpan: name.Span()}
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			decl.Init = p.parseExpression()
		} else if p.policy.RequireVariableInstantiation {
			p.fail(vm.MissingInitializerInVariableDeclaration, p.spanFrom(kw.Pos), map[string]any{"name": name.Literal})
		}
		decl.SpanVal = p.spanFrom(kw.Pos)
		init = decl
	} else {
		p.allow(vm.ForStatement, tok.Span())
		if !p.curTokenIs(TokenSemicolon) {
			start := p.curToken.Pos
			init = &ExpressionStmt{Expr: p.parseExpression()}
			init.(*ExpressionStmt).SpanVal = p.spanFrom(start)
		}
	}
	p.expect(TokenSemicolon, vm.MissingSemicolon, nil)

	stmt := &ForStmt{Init: init}
	if !p.curTokenIs(TokenSemicolon) {
		stmt.Test = p.parseExpression()
	}
	p.expect(TokenSemicolon, vm.MissingSemicolon, nil)
	if !p.curTokenIs(TokenRParen) {
		stmt.Update = p.parseExpression()
	}
	p.expect(TokenRParen, vm.MissingRightParenthesisAfterExpression, nil)
	stmt.Body = p.parseBody("for")
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

func (p *Parser) parseFunctionDecl() Stmt {
	tok := p.curToken
	p.allow(vm.FunctionDeclaration, tok.Span())
	p.nextToken()
	name := p.expectIdentifier()
	p.expect(TokenLParen, vm.UnexpectedToken, map[string]any{"token": p.curToken.Literal})

	var params []string
	seen := map[string]bool{}
	for !p.curTokenIs(TokenRParen) {
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
	p.expect(TokenRParen, vm.MissingRightParenthesisAfterExpression, nil)
	if !p.curTokenIs(TokenLBrace) {
		p.fail(vm.MissingLeftBraceToStartBlock, p.curToken.Span(), nil)
	}
	body := p.parseBlock()
	return &FunctionDecl{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, Params: params, Body: body}
}

func (p *Parser) parseReturn() Stmt {
	tok := p.curToken
	p.allow(vm.ReturnStatement, tok.Span())
	p.nextToken()
	stmt := &ReturnStmt{}
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) &&
		p.curToken.Pos.Line == p.prevEnd.Line {
		stmt.Value = p.parseExpression()
	}
	p.endStatement()
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) parseExpression() Expr {
	return p.parseAssignment()
}

var assignOps = map[TokenType]bool{
	TokenAssign: true, TokenPlusAssign: true, TokenMinusAssign: true,
	TokenStarAssign: true, TokenSlashAssign: true,
}

func (p *Parser) parseAssignment() Expr {
	left := p.parseLogicalOr()
	if !assignOps[p.curToken.Type] {
		return left
	}
	op := p.curToken
	switch left.(type) {
	case *IdentifierExpr, *MemberExpr:
	default:
		p.fail(vm.InvalidAssignmentTarget, left.Span(), nil)
	}
	p.allow(vm.AssignmentExpression, op.Span())
	p.nextToken()
	value := p.parseAssignment() // right-associative
	return &AssignmentExpr{SpanVal: vm.Join(left.Span(), value.Span()), Op: op.Type, Target: left, Value: value}
}

func (p *Parser) parseLogicalOr() Expr {
	left := p.parseLogicalAnd()
	for p.curTokenIs(TokenOr) {
		op := p.curToken
		p.allow(vm.LogicalExpression, op.Span())
		p.nextToken()
		right := p.parseLogicalAnd()
		left = &LogicalExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() Expr {
	left := p.parseEquality()
	for p.curTokenIs(TokenAnd) {
		op := p.curToken
		p.allow(vm.LogicalExpression, op.Span())
		p.nextToken()
		right := p.parseEquality()
		left = &LogicalExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: op.Type, Left: left, Right: right}
	}
	return left
}

// binaryLevel parses a left-associative level of binary operators.
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
		left = &BinaryExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: op.Type, Left: left, Right: right}
	}
}

func (p *Parser) parseEquality() Expr {
	return p.binaryLevel(p.parseRelational, TokenEqual, TokenNotEqual, TokenStrictEqual, TokenStrictNotEq)
}

func (p *Parser) parseRelational() Expr {
	return p.binaryLevel(p.parseAdditive, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual, TokenIn)
}

func (p *Parser) parseAdditive() Expr {
	return p.binaryLevel(p.parseMultiplicative, TokenPlus, TokenMinus)
}

func (p *Parser) parseMultiplicative() Expr {
	return p.binaryLevel(p.parsePower, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) parsePower() Expr {
	left := p.parseUnary()
	if !p.curTokenIs(TokenStarStar) {
		return left
	}
	op := p.curToken
	p.allow(vm.BinaryExpression, op.Span())
	p.nextToken()
	right := p.parsePower()
	return &BinaryExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: op.Type, Left: left, Right: right}
}

func (p *Parser) parseUnary() Expr {
	switch p.curToken.Type {
	case TokenMinus, TokenPlus, TokenBang:
		op := p.curToken
		p.allow(vm.UnaryExpression, op.Span())
		p.nextToken()
		operand := p.parseUnary()
		return &UnaryExpr{SpanVal: vm.Join(op.Span(), operand.Span()), Op: op.Type, Operand: operand}
	case TokenPlusPlus, TokenMinusMinus:
		op := p.curToken
		p.allow(vm.UpdateExpression, op.Span())
		p.nextToken()
		target := p.parseUnary()
		p.checkUpdateTarget(target)
		return &UpdateExpr{SpanVal: vm.Join(op.Span(), target.Span()), Op: op.Type, Prefix: true, Target: target}
	}
	return p.parsePostfix()
}

func (p *Parser) checkUpdateTarget(target Expr) {
	switch target.(type) {
	case *IdentifierExpr, *MemberExpr:
	default:
		p.fail(vm.InvalidAssignmentTarget, target.Span(), nil)
	}
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parseCall()
	if (p.curTokenIs(TokenPlusPlus) || p.curTokenIs(TokenMinusMinus)) && p.curToken.Pos.Line == p.prevEnd.Line {
		op := p.curToken
		p.allow(vm.UpdateExpression, op.Span())
		p.checkUpdateTarget(expr)
		p.nextToken()
		return &UpdateExpr{SpanVal: vm.Join(expr.Span(), op.Span()), Op: op.Type, Target: expr}
	}
	return expr
}

func (p *Parser) parseCall() Expr {
	expr := p.parsePrimary()
	for {
		switch p.curToken.Type {
		case TokenDot:
			dot := p.curToken
			p.allow(vm.MemberExpression, dot.Span())
			p.nextToken()
			name := p.curToken
			if !isPropertyName(name) {
				p.fail(vm.MissingIdentifier, name.Span(), nil)
			}
			p.nextToken()
			prop := &LiteralExpr{SpanVal: name.Span(), Value: vm.String(name.Literal)}
			expr = &MemberExpr{SpanVal: vm.Join(expr.Span(), name.Span()), Object: expr, Property: prop}
		case TokenLBracket:
			lb := p.curToken
			p.allow(vm.MemberExpression, lb.Span())
			p.nextToken()
			prop := p.parseExpression()
			p.expect(TokenRBracket, vm.MissingRightBracketAfterExpression, nil)
			expr = &MemberExpr{SpanVal: p.spanFrom(expr.Span().Start), Object: expr, Property: prop, Computed: true}
		case TokenLParen:
			lp := p.curToken
			p.allow(vm.CallExpression, lp.Span())
			p.nextToken()
			args := p.parseArguments(calleeName(expr))
			expr = &CallExpr{SpanVal: p.spanFrom(expr.Span().Start), Callee: expr, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArguments(callee string) []Expr {
	var args []Expr
	for !p.curTokenIs(TokenRParen) {
		if p.curTokenIs(TokenEOF) {
			break
		}
		args = append(args, p.parseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen, vm.MissingRightParenthesisAfterFunctionCall, map[string]any{"function": callee})
	return args
}

func calleeName(e Expr) string {
	switch c := e.(type) {
	case *IdentifierExpr:
		return c.Name
	case *MemberExpr:
		if lit, ok := c.Property.(*LiteralExpr); ok && !c.Computed {
			return calleeName(c.Object) + "." + string(lit.Value.(vm.String))
		}
	}
	return "the function"
}

// isPropertyName accepts identifiers and keywords after a dot.
func isPropertyName(t Token) bool {
	if t.Type == TokenIdentifier || t.Type == TokenReserved {
		return true
	}
	typ, isKeyword := keywords[t.Literal]
	return isKeyword && typ == t.Type
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
	case TokenUndefined:
		p.allow(vm.LiteralExpression, tok.Span())
		p.nextToken()
		return &LiteralExpr{SpanVal: tok.Span(), Value: vm.Undefined{}}
	case TokenIdentifier:
		p.allow(vm.IdentifierExpression, tok.Span())
		p.nextToken()
		return &IdentifierExpr{SpanVal: tok.Span(), Name: tok.Literal}
	case TokenTemplate:
		return p.parseTemplate()
	case TokenLParen:
		p.allow(vm.GroupingExpression, tok.Span())
		p.nextToken()
		inner := p.parseExpression()
		p.expect(TokenRParen, vm.MissingRightParenthesisAfterExpression, nil)
		return &GroupingExpr{SpanVal: p.spanFrom(tok.Pos), Inner: inner}
	case TokenLBracket:
		return p.parseArray()
	case TokenLBrace:
		return p.parseDictionary()
	case TokenReserved:
		p.failReserved()
	case TokenEOF:
		p.fail(vm.MissingExpression, tok.Span(), nil)
	}
	p.fail(vm.MissingExpression, tok.Span(), map[string]any{"token": tok.Literal})
	return nil
}

func (p *Parser) parseArray() Expr {
	lb := p.curToken
	p.allow(vm.ArrayExpression, lb.Span())
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
	return &ArrayExpr{SpanVal: p.spanFrom(lb.Pos), Elements: elems}
}

func (p *Parser) parseDictionary() Expr {
	lb := p.curToken
	p.allow(vm.DictionaryExpression, lb.Span())
	p.nextToken()
	dict := &DictionaryExpr{}
	seen := map[string]bool{}
	for !p.curTokenIs(TokenRBrace) {
		keyTok := p.curToken
		var key string
		switch {
		case keyTok.Type == TokenString || isPropertyName(keyTok):
			key = keyTok.Literal
		case keyTok.Type == TokenNumber:
			f, _ := strconv.ParseFloat(keyTok.Literal, 64)
			key = vm.FormatNumber(f)
		default:
			p.fail(vm.InvalidDictionaryKey, keyTok.Span(), nil)
		}
		p.nextToken()
		if seen[key] {
			p.fail(vm.DuplicateDictionaryKey, keyTok.Span(), map[string]any{"key": key})
		}
		seen[key] = true
		p.expect(TokenColon, vm.MissingColonInDictionary, nil)
		dict.Keys = append(dict.Keys, key)
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

// parseTemplate parses each interpolation with a sub-parser positioned on
// the interpolation's source text.
func (p *Parser) parseTemplate() Expr {
	tok := p.curToken
	p.allow(vm.TemplateLiteralExpression, tok.Span())
	tmpl := &TemplateLiteralExpr{SpanVal: tok.Span()}
	for _, part := range tok.Parts {
		if !part.IsExpr {
			tmpl.Quasis = append(tmpl.Quasis, part.Text)
			continue
		}
		sub := &Parser{
			lexer:  newLexerAt(p.input, part.Pos, part.Pos.Offset+len(part.Text)),
			input:  p.input,
			policy: p.policy,
			depth:  p.depth,
		}
		expr, err := sub.parseStandalone()
		if err != nil {
			p.err = err
			panic(bailout{})
		}
		tmpl.Exprs = append(tmpl.Exprs, expr)
	}
	p.nextToken()
	return tmpl
}

// parseStandalone parses exactly one expression filling the whole input.
func (p *Parser) parseStandalone() (expr Expr, err *vm.SyntaxError) {
	defer p.recoverBailout(&err)
	p.nextToken()
	p.nextToken()
	expr = p.parseExpression()
	if !p.curTokenIs(TokenEOF) {
		p.fail(vm.UnexpectedToken, p.curToken.Span(), map[string]any{"token": p.curToken.Literal})
	}
	return expr, nil
}

// ParseExpressionSource parses source holding a single expression, for
// callers such as the REPL and EvaluateFunction's synthetic call.
func ParseExpressionSource(source string, policy *vm.Policy) (Expr, *vm.SyntaxError) {
	return NewParser(source, policy).parseStandalone()
}
