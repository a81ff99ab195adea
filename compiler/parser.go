package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Syntax errors
// ---------------------------------------------------------------------------

// SyntaxError is a single parse or code generation error.
type SyntaxError struct {
	Filename string
	Pos      Position
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Pos.Line, e.Pos.Column, e.Msg)
}

// ErrorList collects every error found in one source.
type ErrorList []*SyntaxError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns nil for an empty list, the single error for one entry, and
// the list otherwise.
func (l ErrorList) Err() error {
	switch len(l) {
	case 0:
		return nil
	case 1:
		return l[0]
	}
	return l
}

// maxErrors stops parsing once this many errors have been collected.
const maxErrors = 20

// ---------------------------------------------------------------------------
// Parser: recursive descent over the token stream
// ---------------------------------------------------------------------------

type scope struct {
	names []string
	set   map[string]bool
}

func newScope(params ...string) *scope {
	sc := &scope{set: make(map[string]bool)}
	for _, p := range params {
		sc.declare(p)
	}
	return sc
}

func (sc *scope) declare(name string) {
	if !sc.set[name] {
		sc.set[name] = true
		sc.names = append(sc.names, name)
	}
}

// Parser parses script source into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    ErrorList
	filename  string
	scopes    []*scope
}

// NewParser creates a new parser for the given input. filename is used in
// error messages.
func NewParser(input, filename string) *Parser {
	p := &Parser{
		lexer:    NewLexer(input),
		filename: filename,
		scopes:   []*scope{newScope()},
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) curTokenIn(ts ...TokenType) bool {
	for _, t := range ts {
		if p.curToken.Type == t {
			return true
		}
	}
	return false
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.describe(p.curToken))
	return false
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TokenIdentifier, TokenConstant, TokenIvar, TokenGlobal, TokenInteger, TokenFloat:
		return fmt.Sprintf("%s '%s'", tok.Type, tok.Literal)
	}
	return tok.Type.String()
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...any) {
	p.errorAt(p.curToken.Pos, fmt.Sprintf(format, args...))
}

func (p *Parser) errorAt(pos Position, msg string) {
	if len(p.errors) >= maxErrors {
		return
	}
	p.errors = append(p.errors, &SyntaxError{Filename: p.filename, Pos: pos, Msg: msg})
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() ErrorList {
	return p.errors
}

func (p *Parser) scope() *scope { return p.scopes[len(p.scopes)-1] }

func (p *Parser) isLocal(name string) bool { return p.scope().set[name] }

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

func (p *Parser) skipTerminators() {
	for p.curTokenIn(TokenNewline, TokenSemicolon) {
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses the whole input. The returned error is an ErrorList
// (or a single *SyntaxError) when the source is malformed.
func (p *Parser) ParseProgram() (*Program, error) {
	body := p.parseStatements()
	if !p.curTokenIs(TokenEOF) && len(p.errors) == 0 {
		p.errorf("unexpected %s", p.describe(p.curToken))
	}
	if err := p.errors.Err(); err != nil {
		return nil, err
	}
	return &Program{Body: body, Locals: p.scopes[0].names}, nil
}

// parseStatements parses statements until EOF or one of the terminators.
func (p *Parser) parseStatements(terminators ...TokenType) []Node {
	var stmts []Node
	for {
		p.skipTerminators()
		if p.curTokenIs(TokenEOF) || p.curTokenIn(terminators...) || len(p.errors) >= maxErrors {
			return stmts
		}
		start := p.curToken.Pos.Offset
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
		if p.curTokenIn(TokenNewline, TokenSemicolon, TokenEOF) || p.curTokenIn(terminators...) {
			continue
		}
		p.errorf("unexpected %s, expecting end of statement", p.describe(p.curToken))
		// resynchronize at the next statement boundary
		for !p.curTokenIn(TokenNewline, TokenSemicolon, TokenEOF) {
			p.nextToken()
		}
		if p.curToken.Pos.Offset == start {
			p.nextToken()
		}
	}
}

// parseStatement parses an expression with trailing modifiers.
func (p *Parser) parseStatement() Node {
	n := p.parseLogical()
	for n != nil {
		pos := p.curToken.Pos
		switch p.curToken.Type {
		case TokenIf, TokenUnless:
			negate := p.curTokenIs(TokenUnless)
			p.nextToken()
			cond := p.parseLogical()
			if negate {
				n = &IfExpr{base: base{pos}, Cond: cond, Else: []Node{n}}
			} else {
				n = &IfExpr{base: base{pos}, Cond: cond, Then: []Node{n}}
			}
		case TokenWhile, TokenUntil:
			until := p.curTokenIs(TokenUntil)
			p.nextToken()
			cond := p.parseLogical()
			n = &WhileExpr{base: base{pos}, Cond: cond, Body: []Node{n}, Until: until}
		default:
			return n
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

// parseLogical handles the keyword forms 'and' and 'or'.
func (p *Parser) parseLogical() Node {
	left := p.parseNot()
	for left != nil && p.curTokenIn(TokenAnd, TokenOr) {
		tok := p.curToken
		p.nextToken()
		p.skipNewlines()
		right := p.parseNot()
		if tok.Type == TokenAnd {
			left = &AndExpr{base: base{tok.Pos}, Left: left, Right: right}
		} else {
			left = &OrExpr{base: base{tok.Pos}, Left: left, Right: right}
		}
	}
	return left
}

func (p *Parser) parseNot() Node {
	if p.curTokenIs(TokenNot) {
		pos := p.curToken.Pos
		p.nextToken()
		return &NotExpr{base: base{pos}, Expr: p.parseNot()}
	}
	return p.parseExpr()
}

// parseExpr parses an assignment or an operator expression.
func (p *Parser) parseExpr() Node {
	tok := p.curToken
	if p.peekToken.Type == TokenAssign {
		var target Node
		switch tok.Type {
		case TokenIdentifier:
			p.scope().declare(tok.Literal)
			target = &LocalVar{base: base{tok.Pos}, Name: tok.Literal}
		case TokenIvar:
			target = &IvarRef{base: base{tok.Pos}, Name: tok.Literal}
		case TokenGlobal:
			target = &GlobalRef{base: base{tok.Pos}, Name: tok.Literal}
		case TokenConstant:
			target = &ConstRef{base: base{tok.Pos}, Name: tok.Literal}
		}
		if target != nil {
			p.nextToken()
			p.nextToken()
			p.skipNewlines()
			return &Assign{base: base{tok.Pos}, Target: target, Value: p.parseExpr()}
		}
	}

	left := p.parseOrOr()
	if left == nil || !p.curTokenIs(TokenAssign) {
		return left
	}
	pos := p.curToken.Pos
	switch t := left.(type) {
	case *IndexExpr:
		p.nextToken()
		p.skipNewlines()
		return &Assign{base: base{pos}, Target: t, Value: p.parseExpr()}
	case *Call:
		if t.Recv != nil && len(t.Args) == 0 {
			p.nextToken()
			p.skipNewlines()
			return &Call{base: t.base, Recv: t.Recv, Name: t.Name + "=", Args: []Node{p.parseExpr()}}
		}
	}
	p.errorf("unexpected '=', cannot assign to this expression")
	p.nextToken()
	p.parseExpr()
	return left
}

func (p *Parser) parseOrOr() Node {
	left := p.parseAndAnd()
	for left != nil && p.curTokenIs(TokenOrOr) {
		pos := p.curToken.Pos
		p.nextToken()
		p.skipNewlines()
		left = &OrExpr{base: base{pos}, Left: left, Right: p.parseAndAnd()}
	}
	return left
}

func (p *Parser) parseAndAnd() Node {
	left := p.parseEquality()
	for left != nil && p.curTokenIs(TokenAndAnd) {
		pos := p.curToken.Pos
		p.nextToken()
		p.skipNewlines()
		left = &AndExpr{base: base{pos}, Left: left, Right: p.parseEquality()}
	}
	return left
}

// parseBinary parses a left-associative level whose operators are ops.
func (p *Parser) parseBinary(next func() Node, ops ...TokenType) Node {
	left := next()
	for left != nil && p.curTokenIn(ops...) {
		tok := p.curToken
		p.nextToken()
		p.skipNewlines()
		right := next()
		if right == nil {
			return left
		}
		left = &BinaryOp{base: base{tok.Pos}, Op: tok.Literal, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() Node {
	return p.parseBinary(p.parseComparison, TokenEQ, TokenNEQ)
}

func (p *Parser) parseComparison() Node {
	return p.parseBinary(p.parseAdditive, TokenLT, TokenLE, TokenGT, TokenGE)
}

func (p *Parser) parseAdditive() Node {
	return p.parseBinary(p.parseMultiplicative, TokenPlus, TokenMinus)
}

func (p *Parser) parseMultiplicative() Node {
	return p.parseBinary(p.parseUnary, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) parseUnary() Node {
	pos := p.curToken.Pos
	switch p.curToken.Type {
	case TokenMinus:
		p.nextToken()
		operand := p.parseUnary()
		switch lit := operand.(type) {
		case *IntLiteral:
			lit.Value = -lit.Value
			lit.P = pos
			return lit
		case *FloatLiteral:
			lit.Value = -lit.Value
			lit.P = pos
			return lit
		case nil:
			return nil
		}
		return &NegExpr{base: base{pos}, Expr: operand}
	case TokenBang:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &NotExpr{base: base{pos}, Expr: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Node {
	n := p.parsePrimary()
	for n != nil {
		switch {
		case p.curTokenIs(TokenDot):
			p.nextToken()
			p.skipNewlines()
			tok := p.curToken
			if !p.curTokenIn(TokenIdentifier, TokenConstant) {
				p.errorf("expected method name after '.', got %s", p.describe(tok))
				return n
			}
			p.nextToken()
			n = &Call{base: base{tok.Pos}, Recv: n, Name: tok.Literal, Args: p.parseCallArgs()}
		case p.curTokenIs(TokenLBracket) && !p.curToken.SpaceBefore:
			pos := p.curToken.Pos
			p.nextToken()
			p.skipNewlines()
			idx := p.parseExpr()
			p.skipNewlines()
			p.expect(TokenRBracket)
			n = &IndexExpr{base: base{pos}, Recv: n, Index: idx}
		default:
			return n
		}
	}
	return n
}

// parseCallArgs parses (a, b) directly after a method name, or a command
// argument list separated from the name by whitespace.
func (p *Parser) parseCallArgs() []Node {
	if p.curTokenIs(TokenLParen) && !p.curToken.SpaceBefore {
		p.nextToken()
		return p.parseList(TokenRParen)
	}
	if !p.curToken.SpaceBefore {
		return nil
	}
	negative := p.curTokenIs(TokenMinus) && !p.peekToken.SpaceBefore
	if !p.curToken.startsArgument() && !negative {
		return nil
	}
	var args []Node
	for {
		arg := p.parseNot()
		if arg == nil {
			return args
		}
		args = append(args, arg)
		if !p.curTokenIs(TokenComma) {
			return args
		}
		p.nextToken()
		p.skipNewlines()
	}
}

// parseList parses comma-separated expressions up to and including close.
func (p *Parser) parseList(close TokenType) []Node {
	var items []Node
	p.skipNewlines()
	for !p.curTokenIs(close) {
		item := p.parseNot()
		if item == nil {
			return items
		}
		items = append(items, item)
		p.skipNewlines()
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
		p.skipNewlines()
	}
	p.expect(close)
	return items
}

// ---------------------------------------------------------------------------
// Primary expressions
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() Node {
	tok := p.curToken
	b := base{tok.Pos}
	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		i, f, isFloat, err := parseIntLiteral(tok.Literal)
		if err != nil {
			p.errorAt(tok.Pos, err.Error())
			return &IntLiteral{base: b}
		}
		if isFloat {
			return &FloatLiteral{base: b, Value: f}
		}
		return &IntLiteral{base: b, Value: i}
	case TokenFloat:
		p.nextToken()
		f, err := strconv.ParseFloat(strings.ReplaceAll(tok.Literal, "_", ""), 64)
		if err != nil {
			p.errorAt(tok.Pos, fmt.Sprintf("invalid float %s", tok.Literal))
		}
		return &FloatLiteral{base: b, Value: f}
	case TokenString:
		p.nextToken()
		return &StringLiteral{base: b, Value: tok.Literal}
	case TokenSymbol:
		p.nextToken()
		return &SymbolLiteral{base: b, Name: tok.Literal}
	case TokenNil:
		p.nextToken()
		return &NilLiteral{b}
	case TokenTrue:
		p.nextToken()
		return &TrueLiteral{b}
	case TokenFalse:
		p.nextToken()
		return &FalseLiteral{b}
	case TokenSelf:
		p.nextToken()
		return &SelfNode{b}
	case TokenIvar:
		p.nextToken()
		return &IvarRef{base: b, Name: tok.Literal}
	case TokenGlobal:
		p.nextToken()
		return &GlobalRef{base: b, Name: tok.Literal}
	case TokenConstant:
		p.nextToken()
		if p.curTokenIs(TokenLParen) && !p.curToken.SpaceBefore {
			return &Call{base: b, Name: tok.Literal, Args: p.parseCallArgs()}
		}
		return &ConstRef{base: b, Name: tok.Literal}
	case TokenIdentifier:
		p.nextToken()
		if p.isLocal(tok.Literal) && !(p.curTokenIs(TokenLParen) && !p.curToken.SpaceBefore) {
			return &LocalVar{base: b, Name: tok.Literal}
		}
		return &Call{base: b, Name: tok.Literal, Args: p.parseCallArgs()}
	case TokenLParen:
		p.nextToken()
		body := p.parseStatements(TokenRParen)
		p.expect(TokenRParen)
		switch len(body) {
		case 0:
			return &NilLiteral{b}
		case 1:
			return body[0]
		}
		return &SeqExpr{base: b, Body: body}
	case TokenLBracket:
		p.nextToken()
		return &ArrayLiteral{base: b, Elems: p.parseList(TokenRBracket)}
	case TokenIf, TokenUnless:
		p.nextToken()
		return p.parseIfRest(tok)
	case TokenWhile, TokenUntil:
		return p.parseWhile()
	case TokenDef:
		return p.parseDef()
	case TokenReturn:
		p.nextToken()
		var value Node
		if !p.curTokenIn(TokenNewline, TokenSemicolon, TokenEOF, TokenEnd, TokenRParen,
			TokenIf, TokenUnless, TokenWhile, TokenUntil) {
			value = p.parseExpr()
		}
		return &ReturnExpr{base: b, Value: value}
	case TokenError:
		p.errorAt(tok.Pos, tok.Literal)
		p.nextToken()
		return nil
	case TokenEOF:
		p.errorf("unexpected end-of-input")
		return nil
	}
	p.errorf("unexpected %s", p.describe(tok))
	p.nextToken()
	return nil
}

// parseIfRest parses the remainder of if/unless/elsif after its keyword.
func (p *Parser) parseIfRest(kw Token) Node {
	cond := p.parseLogical()
	if p.curTokenIs(TokenThen) {
		p.nextToken()
	}
	n := &IfExpr{base: base{kw.Pos}, Cond: cond}
	body := p.parseStatements(TokenElsif, TokenElse, TokenEnd)

	var rest []Node
	switch p.curToken.Type {
	case TokenElsif:
		if kw.Type == TokenUnless {
			p.errorf("unless cannot have elsif")
		}
		elsif := p.curToken
		p.nextToken()
		rest = []Node{p.parseIfRest(elsif)}
		if kw.Type == TokenUnless {
			n.Then, n.Else = rest, body
		} else {
			n.Then, n.Else = body, rest
		}
		// the nested branch consumed the shared 'end'
		return n
	case TokenElse:
		p.nextToken()
		rest = p.parseStatements(TokenEnd)
	}
	p.expect(TokenEnd)
	if kw.Type == TokenUnless {
		n.Then, n.Else = rest, body
	} else {
		n.Then, n.Else = body, rest
	}
	return n
}

func (p *Parser) parseWhile() Node {
	tok := p.curToken
	p.nextToken()
	cond := p.parseLogical()
	if p.curTokenIs(TokenDo) {
		p.nextToken()
	}
	body := p.parseStatements(TokenEnd)
	p.expect(TokenEnd)
	return &WhileExpr{base: base{tok.Pos}, Cond: cond, Body: body, Until: tok.Type == TokenUntil}
}

var operatorMethods = map[TokenType]bool{
	TokenPlus: true, TokenMinus: true, TokenStar: true, TokenSlash: true,
	TokenPercent: true, TokenEQ: true, TokenNEQ: true, TokenLT: true,
	TokenLE: true, TokenGT: true, TokenGE: true, TokenBang: true,
}

func (p *Parser) parseDef() Node {
	pos := p.curToken.Pos
	p.nextToken()

	name := p.curToken.Literal
	switch {
	case p.curTokenIn(TokenIdentifier, TokenConstant):
		p.nextToken()
		if p.curTokenIs(TokenAssign) && !p.curToken.SpaceBefore {
			name += "="
			p.nextToken()
		}
	case operatorMethods[p.curToken.Type]:
		p.nextToken()
	case p.curTokenIs(TokenLBracket) && p.peekToken.Type == TokenRBracket:
		p.nextToken()
		p.nextToken()
		name = "[]"
		if p.curTokenIs(TokenAssign) && !p.curToken.SpaceBefore {
			name += "="
			p.nextToken()
		}
	default:
		p.errorf("expected method name after 'def', got %s", p.describe(p.curToken))
		return nil
	}

	var params []string
	param := func() {
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name, got %s", p.describe(p.curToken))
			p.nextToken()
			return
		}
		for _, existing := range params {
			if existing == p.curToken.Literal {
				p.errorf("duplicated argument name")
			}
		}
		params = append(params, p.curToken.Literal)
		p.nextToken()
	}
	switch {
	case p.curTokenIs(TokenLParen):
		p.nextToken()
		p.skipNewlines()
		for !p.curTokenIn(TokenRParen, TokenEOF) && len(p.errors) < maxErrors {
			param()
			p.skipNewlines()
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
			p.skipNewlines()
		}
		p.expect(TokenRParen)
	case p.curTokenIs(TokenIdentifier):
		for {
			param()
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}

	p.scopes = append(p.scopes, newScope(params...))
	body := p.parseStatements(TokenEnd)
	sc := p.scope()
	p.scopes = p.scopes[:len(p.scopes)-1]
	p.expect(TokenEnd)

	return &DefExpr{base: base{pos}, Name: name, Params: params, Locals: sc.names, Body: body}
}

// parseIntLiteral decodes an integer token. Decimal literals too large for
// int64 become floats.
func parseIntLiteral(text string) (int64, float64, bool, error) {
	clean := strings.ReplaceAll(text, "_", "")
	base := 10
	if len(clean) > 2 && clean[0] == '0' {
		switch clean[1] {
		case 'x', 'X':
			base = 16
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		}
		if base != 10 {
			clean = clean[2:]
		}
	}
	i, err := strconv.ParseInt(clean, base, 64)
	if err == nil {
		return i, 0, false, nil
	}
	if base == 10 {
		if f, ferr := strconv.ParseFloat(clean, 64); ferr == nil {
			return 0, f, true, nil
		}
	}
	return 0, 0, false, fmt.Errorf("integer literal %s out of range", text)
}
