// Package pattern implements the observation pattern language parser.
//
// A pattern is a boolean combination of bracketed comparison expressions
// over object paths, optionally qualified by a START/STOP time window:
//
//	[network-traffic:src_ref.value = '10.0.0.1' AND network-traffic:dst_port > 1024]
//	  START t'2019-01-01T00:00:00Z' STOP t'2019-12-31T23:59:59Z'
//
// Parsing produces an AST plus every cross-object reference the pattern
// contains; it performs no schema validation, which happens at compile time.
package pattern

import (
	"fmt"
	"strings"
	"time"
)

// CompareOp is a comparison operator in a pattern leaf.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpLike
	OpMatches
	OpIsSubset
	OpIsSuperset
)

func (op CompareOp) String() string {
	switch op {
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpIn:
		return "IN"
	case OpLike:
		return "LIKE"
	case OpMatches:
		return "MATCHES"
	case OpIsSubset:
		return "ISSUBSET"
	case OpIsSuperset:
		return "ISSUPERSET"
	default:
		return "="
	}
}

// Extended reports whether the operator is one of the word operators that
// may carry a NOT prefix.
func (op CompareOp) Extended() bool {
	switch op {
	case OpIn, OpLike, OpMatches, OpIsSubset, OpIsSuperset:
		return true
	}
	return false
}

// PathSegment is one dotted step of an object path. List marks a trailing
// [*], meaning the segment names a list-valued column.
type PathSegment struct {
	Name string
	List bool
}

func (s PathSegment) String() string {
	if s.List {
		return s.Name + "[*]"
	}
	return s.Name
}

// ObjectPath identifies a property of an observable type, possibly through
// one or more reference hops (e.g. network-traffic:src_ref.value).
type ObjectPath struct {
	Type     string
	Segments []PathSegment
}

func (p ObjectPath) String() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		parts[i] = s.String()
	}
	return p.Type + ":" + strings.Join(parts, ".")
}

// Property returns the dotted property path without the type prefix.
func (p ObjectPath) Property() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		parts[i] = s.Name
	}
	return strings.Join(parts, ".")
}

// Value is a comparison right-hand side: a literal, a literal list, or a
// cross-object reference.
type Value interface {
	valueNode()
	String() string
}

// StringValue is a quoted string literal.
type StringValue struct {
	V string
}

func (StringValue) valueNode() {}

func (v StringValue) String() string {
	escaped := strings.ReplaceAll(v.V, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}

// NumberValue is a numeric literal. Raw preserves the source text so
// canonical re-serialization round-trips.
type NumberValue struct {
	Raw     string
	IsFloat bool
}

func (NumberValue) valueNode() {}

func (v NumberValue) String() string { return v.Raw }

// TimestampValue is a t'...' literal. Raw preserves the source text.
type TimestampValue struct {
	Raw string
	T   time.Time
}

func (TimestampValue) valueNode() {}

func (v TimestampValue) String() string { return "t'" + v.Raw + "'" }

// ListValue is a parenthesized literal list.
type ListValue struct {
	Items []Value
}

func (ListValue) valueNode() {}

func (v ListValue) String() string {
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Reference is a value-position pointer at another object's property
// (view-name.path), expressing an explicit join inside the pattern.
type Reference struct {
	Type string
	Path string
}

func (Reference) valueNode() {}

func (r Reference) String() string { return r.Type + "." + r.Path }

// ComparisonExpr is a node of the comparison expression inside brackets.
type ComparisonExpr interface {
	comparisonNode()
	String() string
}

// Comparison is a leaf: path operator value.
type Comparison struct {
	Path    ObjectPath
	Op      CompareOp
	Negated bool // NOT prefix on an extended operator
	Value   Value
}

func (Comparison) comparisonNode() {}

func (c Comparison) String() string {
	op := c.Op.String()
	if c.Negated {
		op = "NOT " + op
	}
	return fmt.Sprintf("%s %s %s", c.Path, op, c.Value)
}

// ComparisonAnd is a conjunction of comparison expressions.
type ComparisonAnd struct {
	Left, Right ComparisonExpr
}

func (ComparisonAnd) comparisonNode() {}

func (e ComparisonAnd) String() string {
	return "(" + e.Left.String() + " AND " + e.Right.String() + ")"
}

// ComparisonOr is a disjunction of comparison expressions.
type ComparisonOr struct {
	Left, Right ComparisonExpr
}

func (ComparisonOr) comparisonNode() {}

func (e ComparisonOr) String() string {
	return "(" + e.Left.String() + " OR " + e.Right.String() + ")"
}

// ObservationExpr is a node of the top-level bracketed expression.
type ObservationExpr interface {
	observationNode()
	String() string
}

// Observation is one bracketed comparison disjunction.
type Observation struct {
	Expr ComparisonExpr
}

func (Observation) observationNode() {}

func (o Observation) String() string { return "[" + o.Expr.String() + "]" }

// ObservationAnd combines observation expressions with AND.
type ObservationAnd struct {
	Left, Right ObservationExpr
}

func (ObservationAnd) observationNode() {}

func (e ObservationAnd) String() string {
	return "(" + e.Left.String() + " AND " + e.Right.String() + ")"
}

// ObservationOr combines observation expressions with OR.
type ObservationOr struct {
	Left, Right ObservationExpr
}

func (ObservationOr) observationNode() {}

func (e ObservationOr) String() string {
	return "(" + e.Left.String() + " OR " + e.Right.String() + ")"
}

// Qualifier is the optional trailing time window. It binds to the whole
// pattern and compiles to range predicates on the envelope columns.
type Qualifier struct {
	Start time.Time
	Stop  time.Time

	// Raw source forms, kept for canonical re-serialization.
	StartRaw string
	StopRaw  string
}

func (q Qualifier) String() string {
	return fmt.Sprintf("START t'%s' STOP t'%s'", q.StartRaw, q.StopRaw)
}

// Pattern is a parsed pattern: the expression tree, the optional time
// qualifier, and every cross-object reference collected during the parse.
type Pattern struct {
	Root      ObservationExpr
	Qualifier *Qualifier

	refs []Reference
}

// References returns the cross-object references the pattern contains, in
// source order, without re-parsing.
func (p *Pattern) References() []Reference {
	return p.refs
}

// String renders the canonical form of the pattern. Re-parsing the result
// yields an equivalent AST.
func (p *Pattern) String() string {
	s := p.Root.String()
	if p.Qualifier != nil {
		s += " " + p.Qualifier.String()
	}
	return s
}

// SyntaxError reports input that does not match the grammar, carrying the
// offending position and the unconsumed remainder.
type SyntaxError struct {
	Pos       int
	Msg       string
	Remainder string
}

func (e *SyntaxError) Error() string {
	if e.Remainder != "" {
		return fmt.Sprintf("syntax error at position %d: %s (unparsed: %q)", e.Pos, e.Msg, e.Remainder)
	}
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// ParseTimestamp validates a strict ISO-8601 UTC timestamp
// (YYYY-MM-DDThh:mm:ss[.fraction]Z).
func ParseTimestamp(s string) (time.Time, error) {
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("timestamp %q must be UTC (trailing Z)", s)
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999Z", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
	}
	return t, nil
}
