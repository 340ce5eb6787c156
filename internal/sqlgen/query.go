package sqlgen

import (
	"errors"
	"fmt"
	"strings"
)

// The composable query builder: a list of stages rendered into a single
// SELECT. Identifiers are structural (never raw user text); literal values
// ride along as bound parameters.

var (
	// ErrInvalidOperator reports a comparison operator outside the
	// whitelist.
	ErrInvalidOperator = errors.New("invalid comparison operator")
	// ErrInvalidQuery reports an impossible stage combination.
	ErrInvalidQuery = errors.New("invalid query composition")
)

var compOps = map[string]struct{}{
	"=": {}, "!=": {}, "<>": {}, "<": {}, ">": {}, "<=": {}, ">=": {},
	"LIKE": {}, "NOT LIKE": {}, "IN": {}, "NOT IN": {}, "IS": {}, "IS NOT": {},
}

// Predicate is a simple row-value predicate. RHS semantics:
//   - nil compiles to IS NULL / IS NOT NULL
//   - a []any with op IN compiles to a placeholder list
//   - anything else compiles to a single placeholder
type Predicate struct {
	Alias  string
	Column string
	Op     string
	RHS    any
}

// NewPredicate validates the operator and builds a predicate.
func NewPredicate(column, op string, rhs any) (Predicate, error) {
	if _, ok := compOps[op]; !ok {
		return Predicate{}, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	return Predicate{Column: column, Op: op, RHS: rhs}, nil
}

func (p Predicate) render() (string, []any) {
	lhs := QuoteQualified(p.Alias, p.Column)
	switch {
	case p.RHS == nil:
		if p.Op == "!=" || p.Op == "<>" || p.Op == "IS NOT" {
			return "(" + lhs + " IS NOT NULL)", nil
		}
		return "(" + lhs + " IS NULL)", nil
	case p.Op == "IN" || p.Op == "NOT IN":
		items, ok := p.RHS.([]any)
		if !ok {
			items = []any{p.RHS}
		}
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")
		return fmt.Sprintf("(%s %s (%s))", lhs, p.Op, ph), items
	default:
		return fmt.Sprintf("(%s %s ?)", lhs, p.Op), []any{p.RHS}
	}
}

// Expr is a pre-rendered condition with its arguments, used for dialect
// idioms (regex match, list membership) produced by the pattern compiler.
type Expr struct {
	SQL  string
	Args []any
}

// Filter is a WHERE clause: predicates and raw exprs combined with one
// boolean operator.
type Filter struct {
	Preds []Predicate
	Exprs []Expr
	Or    bool
}

func (f Filter) render() (string, []any) {
	var parts []string
	var args []any
	for _, p := range f.Preds {
		text, a := p.render()
		parts = append(parts, text)
		args = append(args, a...)
	}
	for _, e := range f.Exprs {
		parts = append(parts, e.SQL)
		args = append(args, e.Args...)
	}
	op := " AND "
	if f.Or {
		op = " OR "
	}
	text := strings.Join(parts, op)
	if f.Or && len(parts) > 1 {
		text = "(" + text + ")"
	}
	return text, args
}

// Column is a projected column, optionally table-qualified and aliased.
type Column struct {
	Name  string
	Table string
	Alias string
}

func (c Column) render() string {
	if c.Name == "*" {
		if c.Table == "" {
			return "*"
		}
		return QuoteIdent(c.Table) + ".*"
	}
	expr := QuoteQualified(c.Table, c.Name)
	if c.Alias != "" {
		expr += " AS " + QuoteIdent(c.Alias)
	}
	return expr
}

// Coalesced projects the first non-null of several qualified columns,
// used when a reference can land in more than one table. COALESCE works
// on both supported engines.
type Coalesced struct {
	Parts []Column
	Alias string
}

func (c Coalesced) render() string {
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = QuoteQualified(p.Table, p.Name)
	}
	return fmt.Sprintf("COALESCE(%s) AS %s", strings.Join(parts, ", "), QuoteIdent(c.Alias))
}

// Projected is either a Column or a Coalesced.
type Projected interface{ render() string }

// Join is an aliased join step.
type Join struct {
	Table    string
	Alias    string
	LHS      string // alias of the left side
	LeftCol  string
	RightCol string
	Outer    bool
}

func (j Join) render() string {
	how := "INNER"
	if j.Outer {
		how = "LEFT OUTER"
	}
	target := QuoteIdent(j.Table)
	rhsAlias := j.Table
	if j.Alias != "" && j.Alias != j.Table {
		target += " AS " + QuoteIdent(j.Alias)
		rhsAlias = j.Alias
	}
	return fmt.Sprintf("%s JOIN %s ON %s = %s",
		how, target,
		QuoteQualified(j.LHS, j.LeftCol),
		QuoteQualified(rhsAlias, j.RightCol))
}

// Aggregation is one aggregate output column.
type Aggregation struct {
	Func   string // COUNT, SUM, MIN, MAX, AVG, NUNIQUE
	Column string
	Alias  string
}

func (a Aggregation) render() string {
	col := "*"
	if a.Column != "" && a.Column != "*" {
		col = QuoteIdent(a.Column)
	}
	alias := a.Alias
	if alias == "" {
		alias = strings.ToLower(a.Func)
	}
	// NUNIQUE is not SQL; expand to COUNT DISTINCT.
	if a.Func == "NUNIQUE" {
		return fmt.Sprintf("COUNT(DISTINCT %s) AS %s", col, QuoteIdent(alias))
	}
	return fmt.Sprintf("%s(%s) AS %s", a.Func, col, QuoteIdent(alias))
}

// OrderCol is one ORDER BY column.
type OrderCol struct {
	Name string
	Desc bool
}

// Query composes a SELECT over one source table/view.
type Query struct {
	Source      string
	SourceAlias string
	SourceSQL   string // subquery text; overrides Source when set
	Cols        []Projected
	Joins       []Join
	Filters     []Filter
	GroupBy     []string
	Aggs        []Aggregation
	OrderBy     []OrderCol
	Distinct    bool
	CountOnly   bool
	LimitN      int
	OffsetN     int
}

// Render produces the SQL text (with '?' placeholders) and arguments.
func (q *Query) Render() (string, []any, error) {
	if q.Source == "" && q.SourceSQL == "" {
		return "", nil, fmt.Errorf("%w: no source", ErrInvalidQuery)
	}
	if len(q.Aggs) > 0 && len(q.Cols) > 0 {
		return "", nil, fmt.Errorf("%w: aggregation with projection", ErrInvalidQuery)
	}

	var sel string
	switch {
	case q.CountOnly:
		sel = `COUNT(*) AS "count"`
	case len(q.Aggs) > 0:
		parts := make([]string, 0, len(q.GroupBy)+len(q.Aggs))
		for _, g := range q.GroupBy {
			parts = append(parts, QuoteIdent(g))
		}
		for _, a := range q.Aggs {
			parts = append(parts, a.render())
		}
		sel = strings.Join(parts, ", ")
	case len(q.Cols) > 0:
		parts := make([]string, len(q.Cols))
		for i, c := range q.Cols {
			parts[i] = c.render()
		}
		sel = strings.Join(parts, ", ")
	default:
		sel = "*"
	}
	if q.Distinct && !q.CountOnly {
		sel = "DISTINCT " + sel
	}

	from := q.SourceSQL
	if from == "" {
		from = QuoteIdent(q.Source)
		if q.SourceAlias != "" && q.SourceAlias != q.Source {
			from += " AS " + QuoteIdent(q.SourceAlias)
		}
	} else {
		from = "(" + from + ") AS tmp"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", sel, from)

	for _, j := range q.Joins {
		sb.WriteString(" ")
		sb.WriteString(j.render())
	}

	var args []any
	inWhere := false
	for _, f := range q.Filters {
		text, a := f.render()
		if text == "" {
			continue
		}
		if !inWhere {
			sb.WriteString(" WHERE ")
			inWhere = true
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(text)
		args = append(args, a...)
	}

	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			cols[i] = QuoteIdent(g)
		}
		fmt.Fprintf(&sb, " GROUP BY %s", strings.Join(cols, ", "))
	}

	if len(q.OrderBy) > 0 {
		cols := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			cols[i] = QuoteIdent(o.Name) + " " + dir
		}
		fmt.Fprintf(&sb, " ORDER BY %s", strings.Join(cols, ", "))
	}

	if q.LimitN > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.LimitN)
	}
	if q.OffsetN > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.OffsetN)
	}

	return sb.String(), args, nil
}
