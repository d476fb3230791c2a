package python

import (
	"strconv"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over the layout-token stream
// ---------------------------------------------------------------------------

type bailout struct{}

// Parser parses Python-dialect source into an AST, stopping at the first
// syntax error.
type Parser struct {
	lexer     *Lexer
	input     string
	policy    *vm.Policy
	curToken  Token
	peekToken Token
	prevEnd   vm.Position
	depth     int // 0 at top level, 1 inside a def
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
	if p.curToken.Type != TokenNewline && p.curToken.Type != TokenIndent && p.curToken.Type != TokenDedent {
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

// unexpected fails on the current token, naming unsupported keywords and
// ';' as unimplemented.
func (p *Parser) unexpected() {
	tok := p.curToken
	switch tok.Type {
	case TokenReserved, TokenSemicolon:
		p.fail(vm.UnimplementedToken, tok.Span(), map[string]any{"token": tok.Literal})
	case TokenIndent:
		actual := tok.Pos.Column - 1
		p.fail(vm.IncorrectIndentation, tok.Span(), map[string]any{"actual": actual, "expected": actual - IndentWidth})
	case TokenNewline, TokenEOF, TokenDedent:
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

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenDef:
		if p.depth > 0 {
			p.fail(vm.NestedFunctionDeclaration, p.curToken.Span(), nil)
		}
		return p.parseFunctionDecl()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenIndent, TokenReserved, TokenSemicolon:
		p.unexpected()
	}
	return p.parseSimpleStatement()
}

// parseSimpleStatement parses a one-line statement and its NEWLINE.
func (p *Parser) parseSimpleStatement() Stmt {
	tok := p.curToken
	var stmt Stmt
	switch tok.Type {
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
	default:
		stmt = p.parseExpressionStatement()
	}
	p.endLine()
	return stmt
}

func (p *Parser) parseExpressionStatement() Stmt {
	start := p.curToken
	expr := p.parseExpression()
	if _, compound := compoundOps[p.curToken.Type]; !compound && !p.curTokenIs(TokenAssign) {
		p.allow(vm.ExpressionStatement, start.Span())
		return &ExpressionStmt{SpanVal: p.spanFrom(start.Pos), Expr: expr}
	}

	p.allow(vm.AssignmentStatement, p.curToken.Span())
	stmt := &AssignmentStmt{Op: p.curToken.Type}
	if stmt.Op != TokenAssign {
		p.checkTarget(expr)
		p.nextToken()
		stmt.Targets = []Expr{expr}
		stmt.Value = p.parseExpression()
		stmt.SpanVal = p.spanFrom(start.Pos)
		return stmt
	}
	for p.curTokenIs(TokenAssign) {
		p.checkTarget(expr)
		stmt.Targets = append(stmt.Targets, expr)
		p.nextToken()
		expr = p.parseExpression()
	}
	stmt.Value = expr
	stmt.SpanVal = p.spanFrom(start.Pos)
	return stmt
}

func (p *Parser) checkTarget(target Expr) {
	switch t := target.(type) {
	case *IdentifierExpr:
		return
	case *SubscriptExpr:
		if !t.Slice {
			return
		}
	}
	p.fail(vm.InvalidAssignmentTarget, target.Span(), nil)
}

// endLine consumes the NEWLINE that ends a simple statement.
func (p *Parser) endLine() {
	switch p.curToken.Type {
	case TokenNewline:
		p.nextToken()
	case TokenEOF:
	default:
		p.unexpected()
	}
}

// parseBlock parses ": NEWLINE INDENT stmts DEDENT", or a single simple
// statement on the header line.
func (p *Parser) parseBlock() []Stmt {
	if !p.curTokenIs(TokenColon) {
		if p.curTokenIs(TokenReserved) || p.curTokenIs(TokenSemicolon) {
			p.unexpected()
		}
		p.fail(vm.MissingColon, p.curToken.Span(), nil)
	}
	p.nextToken()
	if !p.curTokenIs(TokenNewline) {
		return []Stmt{p.parseSimpleStatement()}
	}
	p.nextToken()
	if !p.curTokenIs(TokenIndent) {
		p.fail(vm.MissingIndent, p.curToken.Span(), nil)
	}
	p.nextToken()
	var body []Stmt
	for !p.curTokenIs(TokenDedent) && !p.curTokenIs(TokenEOF) {
		body = append(body, p.parseStatement())
	}
	if p.curTokenIs(TokenDedent) {
		p.nextToken()
	}
	return body
}

// parseIf parses an if or elif clause. An elif chain nests in Else.
func (p *Parser) parseIf() Stmt {
	tok := p.curToken
	p.allow(vm.IfStatement, tok.Span())
	p.nextToken()
	stmt := &IfStmt{Condition: p.parseExpression()}
	stmt.Then = p.parseBlock()
	switch p.curToken.Type {
	case TokenElif:
		stmt.Else = []Stmt{p.parseIf()}
	case TokenElse:
		p.nextToken()
		stmt.Else = p.parseBlock()
	}
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	tok := p.curToken
	p.allow(vm.WhileStatement, tok.Span())
	p.nextToken()
	stmt := &WhileStmt{Condition: p.parseExpression()}
	stmt.Body = p.parseBlock()
	stmt.SpanVal = p.spanFrom(tok.Pos)
	return stmt
}

func (p *Parser) parseFor() Stmt {
	tok := p.curToken
	p.allow(vm.ForInStatement, tok.Span())
	p.nextToken()
	name := p.expectIdentifier()
	p.expect(TokenIn, vm.MissingInAfterLoopVariable, nil)
	stmt := &ForInStmt{Name: name.Literal, NameSpan: name.Span(), Iterable: p.parseExpression()}
	stmt.Body = p.parseBlock()
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

	p.depth++
	body := p.parseBlock()
	p.depth--
	return &FunctionDecl{SpanVal: p.spanFrom(tok.Pos), Name: name.Literal, Params: params, Body: body}
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
	return p.logicalLevel(TokenAnd, p.parseNot)
}

func (p *Parser) parseNot() Expr {
	if !p.curTokenIs(TokenNot) {
		return p.parseComparison()
	}
	op := p.curToken
	p.allow(vm.UnaryExpression, op.Span())
	p.nextToken()
	operand := p.parseNot()
	return &UnaryExpr{SpanVal: vm.Join(op.Span(), operand.Span()), Op: TokenNot, Operand: operand}
}

var comparisonOps = map[TokenType]bool{
	TokenEqual: true, TokenNotEqual: true, TokenLess: true, TokenLessEqual: true,
	TokenGreater: true, TokenGreaterEqual: true, TokenIn: true,
}

func (p *Parser) parseComparison() Expr {
	first := p.parseAdditive()
	cmp := &CompareExpr{Operands: []Expr{first}}
	for {
		op := p.curToken
		switch {
		case comparisonOps[op.Type]:
			p.nextToken()
		case op.Type == TokenNot && p.peekToken.Type == TokenIn:
			p.nextToken()
			p.nextToken()
			op.Type = TokenNotIn
		default:
			if len(cmp.Ops) == 0 {
				return first
			}
			last := cmp.Operands[len(cmp.Operands)-1]
			cmp.SpanVal = vm.Join(first.Span(), last.Span())
			return cmp
		}
		p.allow(vm.BinaryExpression, op.Span())
		cmp.Ops = append(cmp.Ops, op.Type)
		cmp.Operands = append(cmp.Operands, p.parseAdditive())
	}
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
		left = &BinaryExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: op.Type, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() Expr {
	return p.binaryLevel(p.parseMultiplicative, TokenPlus, TokenMinus)
}

func (p *Parser) parseMultiplicative() Expr {
	return p.binaryLevel(p.parseUnary, TokenStar, TokenSlash, TokenSlashSlash, TokenPercent)
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenMinus) || p.curTokenIs(TokenPlus) {
		op := p.curToken
		p.allow(vm.UnaryExpression, op.Span())
		p.nextToken()
		operand := p.parseUnary()
		return &UnaryExpr{SpanVal: vm.Join(op.Span(), operand.Span()), Op: op.Type, Operand: operand}
	}
	return p.parsePower()
}

// parsePower binds tighter than a unary minus on its left, so -2 ** 2 is
// -(2 ** 2), and accepts a signed right operand.
func (p *Parser) parsePower() Expr {
	left := p.parsePostfix()
	if !p.curTokenIs(TokenStarStar) {
		return left
	}
	op := p.curToken
	p.allow(vm.BinaryExpression, op.Span())
	p.nextToken()
	right := p.parseUnary()
	return &BinaryExpr{SpanVal: vm.Join(left.Span(), right.Span()), Op: op.Type, Left: left, Right: right}
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for {
		switch p.curToken.Type {
		case TokenDot:
			dot := p.curToken
			p.allow(vm.AttributeExpression, dot.Span())
			p.nextToken()
			name := p.expectIdentifier()
			expr = &AttributeExpr{SpanVal: vm.Join(expr.Span(), name.Span()), Object: expr, Name: name.Literal, NameSpan: name.Span()}
		case TokenLBracket:
			lb := p.curToken
			p.allow(vm.SubscriptExpression, lb.Span())
			p.nextToken()
			sub := &SubscriptExpr{Object: expr}
			if !p.curTokenIs(TokenColon) {
				sub.Index = p.parseExpression()
			}
			if p.curTokenIs(TokenColon) {
				sub.Slice = true
				p.nextToken()
				if !p.curTokenIs(TokenRBracket) {
					sub.Upper = p.parseExpression()
				}
			}
			p.expect(TokenRBracket, vm.MissingRightBracketAfterExpression, nil)
			sub.SpanVal = p.spanFrom(expr.Span().Start)
			expr = sub
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

func calleeName(e Expr) string {
	switch c := e.(type) {
	case *IdentifierExpr:
		return c.Name
	case *AttributeExpr:
		return calleeName(c.Object) + "." + c.Name
	}
	return "the function"
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
	case TokenNone:
		p.allow(vm.LiteralExpression, tok.Span())
		p.nextToken()
		return &LiteralExpr{SpanVal: tok.Span(), Value: vm.Null{}}
	case TokenIdentifier:
		p.allow(vm.IdentifierExpression, tok.Span())
		p.nextToken()
		return &IdentifierExpr{SpanVal: tok.Span(), Name: tok.Literal}
	case TokenFString:
		return p.parseFString()
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

// parseList accepts a trailing comma, as Python does.
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
		p.nextToken()
	}
	p.expect(TokenRBracket, vm.MissingRightBracketAfterExpression, nil)
	return &ListExpr{SpanVal: p.spanFrom(lb.Pos), Elements: elems}
}

func (p *Parser) parseDict() Expr {
	lb := p.curToken
	p.allow(vm.DictionaryExpression, lb.Span())
	p.nextToken()
	dict := &DictExpr{}
	for !p.curTokenIs(TokenRBrace) {
		dict.Keys = append(dict.Keys, p.parseExpression())
		p.expect(TokenColon, vm.MissingColonInDictionary, nil)
		dict.Values = append(dict.Values, p.parseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRBrace, vm.MissingRightBraceToEndBlock, nil)
	dict.SpanVal = p.spanFrom(lb.Pos)
	return dict
}

// parseFString parses each replacement field with a sub-parser positioned
// on the field's source text.
func (p *Parser) parseFString() Expr {
	tok := p.curToken
	p.allow(vm.FStringExpression, tok.Span())
	fs := &FStringExpr{SpanVal: tok.Span()}
	for _, part := range tok.Parts {
		if !part.IsExpr {
			fs.Texts = append(fs.Texts, part.Text)
			continue
		}
		sub := &Parser{
			lexer:  newInlineLexer(p.input, part.Pos, part.Pos.Offset+len(part.Text)),
			input:  p.input,
			policy: p.policy,
			depth:  p.depth,
		}
		expr, err := sub.parseStandalone()
		if err != nil {
			p.err = err
			panic(bailout{})
		}
		fs.Exprs = append(fs.Exprs, expr)
	}
	p.nextToken()
	return fs
}

func (p *Parser) parseStandalone() (expr Expr, err *vm.SyntaxError) {
	defer p.recoverBailout(&err)
	p.nextToken()
	p.nextToken()
	expr = p.parseExpression()
	if p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
	if !p.curTokenIs(TokenEOF) {
		p.unexpected()
	}
	return expr, nil
}

// ParseExpressionSource parses source holding a single expression.
func ParseExpressionSource(source string, policy *vm.Policy) (Expr, *vm.SyntaxError) {
	return NewParser(source, policy).parseStandalone()
}
