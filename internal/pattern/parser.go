package pattern

import (
	"fmt"
	"strings"
)

// Parser parses pattern strings into Pattern ASTs.
type Parser struct {
	lexer *Lexer
	curr  Token
	peek  Token
	refs  []Reference
}

// Parse parses a pattern string and returns its AST, or a *SyntaxError.
func Parse(input string) (*Pattern, error) {
	p := &Parser{lexer: NewLexer(input)}
	p.advance()
	p.advance()

	root, err := p.parseObsOr()
	if err != nil {
		return nil, err
	}

	var qual *Qualifier
	if p.curr.Type == TokenIdent && p.curr.Value == "START" {
		qual, err = p.parseQualifier()
		if err != nil {
			return nil, err
		}
	}

	if p.curr.Type != TokenEOF {
		return nil, p.errf("unexpected %s", p.curr.Type)
	}

	return &Pattern{Root: root, Qualifier: qual, refs: p.refs}, nil
}

func (p *Parser) advance() {
	p.curr = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) expect(t TokenType) error {
	if p.curr.Type != t {
		return p.errf("expected %s, got %s", t, p.curr.Type)
	}
	p.advance()
	return nil
}

func (p *Parser) errf(format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Pos:       p.curr.Pos,
		Msg:       fmt.Sprintf(format, args...),
		Remainder: p.lexer.Remainder(p.curr.Pos),
	}
}

// isKeyword reports whether the current token is the given word keyword.
func (p *Parser) isKeyword(kw string) bool {
	return p.curr.Type == TokenIdent && p.curr.Value == kw
}

func (p *Parser) parseObsOr() (ObservationExpr, error) {
	left, err := p.parseObsAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseObsAnd()
		if err != nil {
			return nil, err
		}
		left = ObservationOr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseObsAnd() (ObservationExpr, error) {
	left, err := p.parseObsExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseObsExpr()
		if err != nil {
			return nil, err
		}
		left = ObservationAnd{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseObsExpr() (ObservationExpr, error) {
	switch p.curr.Type {
	case TokenLBracket:
		p.advance()
		expr, err := p.parseCompOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		return Observation{Expr: expr}, nil
	case TokenLParen:
		p.advance()
		expr, err := p.parseObsOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.errf("expected '[' or '(', got %s", p.curr.Type)
	}
}

func (p *Parser) parseCompOr() (ComparisonExpr, error) {
	left, err := p.parseCompAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseCompAnd()
		if err != nil {
			return nil, err
		}
		left = ComparisonOr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseCompAnd() (ComparisonExpr, error) {
	left, err := p.parseCompExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseCompExpr()
		if err != nil {
			return nil, err
		}
		left = ComparisonAnd{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseCompExpr() (ComparisonExpr, error) {
	if p.curr.Type == TokenLParen {
		p.advance()
		expr, err := p.parseCompOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}

	path, err := p.parseObjectPath()
	if err != nil {
		return nil, err
	}
	op, negated, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if op == OpIn {
		if _, ok := value.(ListValue); !ok {
			if _, isRef := value.(Reference); !isRef {
				return nil, p.errf("IN requires a literal list or reference")
			}
		}
	}
	return Comparison{Path: path, Op: op, Negated: negated, Value: value}, nil
}

func (p *Parser) parseObjectPath() (ObjectPath, error) {
	if p.curr.Type != TokenIdent {
		return ObjectPath{}, p.errf("expected object type name, got %s", p.curr.Type)
	}
	path := ObjectPath{Type: p.curr.Value}
	p.advance()
	if err := p.expect(TokenColon); err != nil {
		return ObjectPath{}, err
	}
	for {
		if p.curr.Type != TokenIdent {
			return ObjectPath{}, p.errf("expected property name, got %s", p.curr.Type)
		}
		seg := PathSegment{Name: p.curr.Value}
		p.advance()
		if p.curr.Type == TokenListMarker {
			seg.List = true
			p.advance()
		}
		path.Segments = append(path.Segments, seg)
		if p.curr.Type != TokenDot {
			break
		}
		// [*] marks the terminal list; it cannot qualify a hop.
		if seg.List {
			return ObjectPath{}, p.errf("[*] is only valid on the final path segment")
		}
		p.advance()
	}
	return path, nil
}

var extendedOps = map[string]CompareOp{
	"IN":         OpIn,
	"LIKE":       OpLike,
	"MATCHES":    OpMatches,
	"ISSUBSET":   OpIsSubset,
	"ISSUPERSET": OpIsSuperset,
}

func (p *Parser) parseOperator() (CompareOp, bool, error) {
	if p.curr.Type == TokenOp {
		var op CompareOp
		switch p.curr.Value {
		case "=":
			op = OpEq
		case "!=":
			op = OpNe
		case "<":
			op = OpLt
		case "<=":
			op = OpLe
		case ">":
			op = OpGt
		case ">=":
			op = OpGe
		}
		p.advance()
		return op, false, nil
	}

	negated := false
	if p.isKeyword("NOT") {
		negated = true
		p.advance()
	}
	if p.curr.Type == TokenIdent {
		if op, ok := extendedOps[p.curr.Value]; ok {
			p.advance()
			return op, negated, nil
		}
	}
	return 0, false, p.errf("expected comparison operator, got %s", p.curr.Type)
}

func (p *Parser) parseValue() (Value, error) {
	switch p.curr.Type {
	case TokenString:
		v := StringValue{V: p.curr.Value}
		p.advance()
		return v, nil
	case TokenNumber:
		v := NumberValue{Raw: p.curr.Value, IsFloat: strings.Contains(p.curr.Value, ".")}
		p.advance()
		return v, nil
	case TokenTimestamp:
		t, err := ParseTimestamp(p.curr.Value)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		v := TimestampValue{Raw: p.curr.Value, T: t}
		p.advance()
		return v, nil
	case TokenLParen:
		return p.parseListValue()
	case TokenIdent:
		return p.parseReference()
	default:
		return nil, p.errf("expected value, got %s", p.curr.Type)
	}
}

func (p *Parser) parseListValue() (Value, error) {
	p.advance() // consume (
	var items []Value
	for {
		switch p.curr.Type {
		case TokenString:
			items = append(items, StringValue{V: p.curr.Value})
		case TokenNumber:
			items = append(items, NumberValue{Raw: p.curr.Value, IsFloat: strings.Contains(p.curr.Value, ".")})
		default:
			return nil, p.errf("expected literal in list, got %s", p.curr.Type)
		}
		p.advance()
		if p.curr.Type == TokenComma {
			p.advance()
			continue
		}
		break
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return ListValue{Items: items}, nil
}

// parseReference parses a value-position cross-object reference
// (name.dotted.path) and records it on the parser.
func (p *Parser) parseReference() (Value, error) {
	name := p.curr.Value
	p.advance()
	if err := p.expect(TokenDot); err != nil {
		return nil, err
	}
	var parts []string
	for {
		if p.curr.Type != TokenIdent {
			return nil, p.errf("expected reference path segment, got %s", p.curr.Type)
		}
		parts = append(parts, p.curr.Value)
		p.advance()
		if p.curr.Type != TokenDot {
			break
		}
		p.advance()
	}
	ref := Reference{Type: name, Path: strings.Join(parts, ".")}
	p.refs = append(p.refs, ref)
	return ref, nil
}

func (p *Parser) parseQualifier() (*Qualifier, error) {
	p.advance() // consume START
	if p.curr.Type != TokenTimestamp {
		return nil, p.errf("expected timestamp after START, got %s", p.curr.Type)
	}
	startRaw := p.curr.Value
	start, err := ParseTimestamp(startRaw)
	if err != nil {
		return nil, p.errf("%v", err)
	}
	p.advance()

	if !p.isKeyword("STOP") {
		return nil, p.errf("expected STOP, got %s", p.curr.Type)
	}
	p.advance()
	if p.curr.Type != TokenTimestamp {
		return nil, p.errf("expected timestamp after STOP, got %s", p.curr.Type)
	}
	stopRaw := p.curr.Value
	stop, err := ParseTimestamp(stopRaw)
	if err != nil {
		return nil, p.errf("%v", err)
	}
	p.advance()

	return &Qualifier{Start: start, Stop: stop, StartRaw: startRaw, StopRaw: stopRaw}, nil
}
