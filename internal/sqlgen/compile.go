package sqlgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pyritedb/pyrite/internal/pattern"
	"github.com/pyritedb/pyrite/internal/resolve"
	"github.com/pyritedb/pyrite/internal/schema"
)

// ErrNoApplicableComparisons means no comparison in the pattern named the
// target type. Compiling such a pattern must fail rather than silently
// matching every row.
var ErrNoApplicableComparisons = errors.New("pattern has no comparisons for target type")

// TypeMismatchError reports an operator applied to a column kind that
// cannot support it, e.g. ISSUBSET on a scalar.
type TypeMismatchError struct {
	Path string
	Op   pattern.CompareOp
	Kind schema.Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("operator %s cannot apply to %s column %s", e.Op, e.Kind, e.Path)
}

// SourceCatalog validates cross-object references against the known views
// and resolves them to a selectable view column.
type SourceCatalog interface {
	// ReferenceColumn returns the view and column a value-position
	// reference selects from, or an error if the view is unknown or the
	// path does not land on one of its columns.
	ReferenceColumn(view, path string) (table, column string, err error)
}

// Compiled is the relational form of a pattern against one target type:
// a WHERE clause with bound args and the reference joins it depends on.
type Compiled struct {
	Where string
	Args  []any
	Joins []resolve.JoinStep
}

type compiler struct {
	target  string
	res     *resolve.Resolver
	views   SourceCatalog
	dialect Dialect

	joinOrder []string
	joins     map[string]resolve.JoinStep
}

// CompilePattern lowers a parsed pattern to SQL for one target type.
// Comparisons naming other types contribute nothing; if every comparison
// is on another type the compile fails with ErrNoApplicableComparisons.
// Joins are deduplicated by alias across the whole pattern.
func CompilePattern(pat *pattern.Pattern, targetType string, res *resolve.Resolver, views SourceCatalog, d Dialect) (*Compiled, error) {
	c := &compiler{
		target:  targetType,
		res:     res,
		views:   views,
		dialect: d,
		joins:   make(map[string]resolve.JoinStep),
	}

	where, args, applied, err := c.observation(pat.Root)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w %q", ErrNoApplicableComparisons, targetType)
	}

	if q := pat.Qualifier; q != nil {
		bound := fmt.Sprintf("(%s >= ? AND %s <= ?)",
			QuoteQualified(targetType, "first_observed"),
			QuoteQualified(targetType, "last_observed"))
		where = "(" + where + " AND " + bound + ")"
		args = append(args, q.StartRaw, q.StopRaw)
	}

	out := &Compiled{Where: where, Args: args}
	for _, alias := range c.joinOrder {
		out.Joins = append(out.Joins, c.joins[alias])
	}
	return out, nil
}

// observation walks the bracketed expression tree. Observation AND/OR both
// lower to boolean combinators over the same table; a side with no
// applicable comparisons drops out of the combination.
func (c *compiler) observation(expr pattern.ObservationExpr) (string, []any, bool, error) {
	switch e := expr.(type) {
	case pattern.Observation:
		return c.comparison(e.Expr)
	case pattern.ObservationAnd:
		return c.combine(e.Left, e.Right, "AND")
	case pattern.ObservationOr:
		return c.combine(e.Left, e.Right, "OR")
	default:
		return "", nil, false, fmt.Errorf("unhandled observation node %T", expr)
	}
}

func (c *compiler) combine(left, right pattern.ObservationExpr, op string) (string, []any, bool, error) {
	ls, la, lok, err := c.observation(left)
	if err != nil {
		return "", nil, false, err
	}
	rs, ra, rok, err := c.observation(right)
	if err != nil {
		return "", nil, false, err
	}
	switch {
	case lok && rok:
		return "(" + ls + " " + op + " " + rs + ")", append(la, ra...), true, nil
	case lok:
		return ls, la, true, nil
	case rok:
		return rs, ra, true, nil
	default:
		return "", nil, false, nil
	}
}

func (c *compiler) comparison(expr pattern.ComparisonExpr) (string, []any, bool, error) {
	switch e := expr.(type) {
	case pattern.Comparison:
		if e.Path.Type != c.target {
			return "", nil, false, nil
		}
		sql, args, err := c.leaf(e)
		if err != nil {
			return "", nil, false, err
		}
		return sql, args, true, nil
	case pattern.ComparisonAnd:
		return c.combineComp(e.Left, e.Right, "AND")
	case pattern.ComparisonOr:
		return c.combineComp(e.Left, e.Right, "OR")
	default:
		return "", nil, false, fmt.Errorf("unhandled comparison node %T", expr)
	}
}

func (c *compiler) combineComp(left, right pattern.ComparisonExpr, op string) (string, []any, bool, error) {
	ls, la, lok, err := c.comparison(left)
	if err != nil {
		return "", nil, false, err
	}
	rs, ra, rok, err := c.comparison(right)
	if err != nil {
		return "", nil, false, err
	}
	switch {
	case lok && rok:
		return "(" + ls + " " + op + " " + rs + ")", append(la, ra...), true, nil
	case lok:
		return ls, la, true, nil
	case rok:
		return rs, ra, true, nil
	default:
		return "", nil, false, nil
	}
}

func (c *compiler) leaf(cmp pattern.Comparison) (string, []any, error) {
	rp, err := c.res.Resolve(c.target, cmp.Path)
	if err != nil {
		return "", nil, err
	}
	for _, j := range rp.Joins {
		if _, seen := c.joins[j.Alias]; !seen {
			c.joins[j.Alias] = j
			c.joinOrder = append(c.joinOrder, j.Alias)
		}
	}

	lhs := terminalExpr(rp)
	pathText := cmp.Path.String()

	if ref, ok := cmp.Value.(pattern.Reference); ok {
		return c.referenceLeaf(cmp, lhs, pathText, ref)
	}

	var sql string
	var args []any

	switch cmp.Op {
	case pattern.OpIsSubset, pattern.OpIsSuperset:
		if !listShaped(rp) {
			return "", nil, &TypeMismatchError{Path: pathText, Op: cmp.Op, Kind: rp.Column.Kind}
		}
		list, ok := cmp.Value.(pattern.ListValue)
		if !ok {
			return "", nil, fmt.Errorf("%s requires a literal list at %s", cmp.Op, pathText)
		}
		enc, err := encodeList(list)
		if err != nil {
			return "", nil, err
		}
		if cmp.Op == pattern.OpIsSubset {
			sql = c.dialect.ListSubset(lhs)
		} else {
			sql = c.dialect.ListSuperset(lhs)
		}
		args = []any{enc}

	case pattern.OpMatches:
		if rp.Column.Kind != schema.KindText {
			return "", nil, &TypeMismatchError{Path: pathText, Op: cmp.Op, Kind: rp.Column.Kind}
		}
		sv, ok := cmp.Value.(pattern.StringValue)
		if !ok {
			return "", nil, fmt.Errorf("MATCHES requires a string literal at %s", pathText)
		}
		sql = c.dialect.Match(lhs)
		args = []any{sv.V}

	case pattern.OpLike:
		if rp.Column.Kind != schema.KindText {
			return "", nil, &TypeMismatchError{Path: pathText, Op: cmp.Op, Kind: rp.Column.Kind}
		}
		sv, ok := cmp.Value.(pattern.StringValue)
		if !ok {
			return "", nil, fmt.Errorf("LIKE requires a string literal at %s", pathText)
		}
		sql = "(" + lhs + " LIKE ?)"
		args = []any{sv.V}

	case pattern.OpIn:
		list, ok := cmp.Value.(pattern.ListValue)
		if !ok {
			return "", nil, fmt.Errorf("IN requires a literal list at %s", pathText)
		}
		for _, item := range list.Items {
			v, err := bindValue(item)
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
		}
		sql = "(" + lhs + " IN (" + placeholders(len(args)) + "))"

	case pattern.OpLt, pattern.OpLe, pattern.OpGt, pattern.OpGe:
		if listShaped(rp) || rp.Column.Kind == schema.KindBoolean {
			return "", nil, &TypeMismatchError{Path: pathText, Op: cmp.Op, Kind: rp.Column.Kind}
		}
		v, err := bindValue(cmp.Value)
		if err != nil {
			return "", nil, err
		}
		sql = fmt.Sprintf("(%s %s ?)", lhs, cmp.Op)
		args = []any{v}

	case pattern.OpEq, pattern.OpNe:
		if listShaped(rp) {
			return c.listEquality(cmp, lhs, rp)
		}
		v, err := bindValue(cmp.Value)
		if err != nil {
			return "", nil, err
		}
		sql = fmt.Sprintf("(%s %s ?)", lhs, cmp.Op)
		args = []any{v}

	default:
		return "", nil, fmt.Errorf("unhandled operator %s at %s", cmp.Op, pathText)
	}

	if cmp.Negated {
		sql = "NOT " + parenthesized(sql)
	}
	return sql, args, nil
}

// listEquality handles = and != against a list-shaped terminal: a scalar
// literal tests membership, a list literal compares the stored encoding.
func (c *compiler) listEquality(cmp pattern.Comparison, lhs string, rp *resolve.ResolvedPath) (string, []any, error) {
	if list, ok := cmp.Value.(pattern.ListValue); ok {
		enc, err := encodeList(list)
		if err != nil {
			return "", nil, err
		}
		sql := fmt.Sprintf("(%s %s ?)", lhs, cmp.Op)
		return sql, []any{enc}, nil
	}
	v, err := bindValue(cmp.Value)
	if err != nil {
		return "", nil, err
	}
	sql := c.dialect.ListContains(lhs)
	if cmp.Op == pattern.OpNe {
		sql = "NOT (" + sql + ")"
	}
	return sql, []any{v}, nil
}

// referenceLeaf compiles a value-position reference into a subselect
// against the referenced view, validated through the catalog so the
// emitted identifiers never come from raw pattern text.
func (c *compiler) referenceLeaf(cmp pattern.Comparison, lhs, pathText string, ref pattern.Reference) (string, []any, error) {
	if cmp.Op != pattern.OpEq && cmp.Op != pattern.OpIn {
		return "", nil, fmt.Errorf("reference value requires = or IN at %s", pathText)
	}
	table, column, err := c.views.ReferenceColumn(ref.Type, ref.Path)
	if err != nil {
		return "", nil, err
	}
	if !ValidName(table) || !ValidName(column) {
		return "", nil, fmt.Errorf("invalid reference target %s.%s", table, column)
	}
	sql := fmt.Sprintf("(%s IN (SELECT %s FROM %s))", lhs, QuoteIdent(column), QuoteIdent(table))
	if cmp.Negated {
		sql = "NOT " + sql
	}
	return sql, nil, nil
}

// terminalExpr renders the terminal column. A multi-candidate hop holds
// the column under several outer-joined aliases, at most one non-null per
// row, so the comparison reads the coalesced value.
func terminalExpr(rp *resolve.ResolvedPath) string {
	if len(rp.ColumnAliases) > 1 {
		parts := make([]string, len(rp.ColumnAliases))
		for i, alias := range rp.ColumnAliases {
			parts[i] = QuoteQualified(alias, rp.Column.Name)
		}
		return "COALESCE(" + strings.Join(parts, ", ") + ")"
	}
	return QuoteQualified(rp.ColumnAlias, rp.Column.Name)
}

func listShaped(rp *resolve.ResolvedPath) bool {
	return rp.IsList || rp.Column.Kind == schema.KindList
}

func bindValue(v pattern.Value) (any, error) {
	switch val := v.(type) {
	case pattern.StringValue:
		return val.V, nil
	case pattern.TimestampValue:
		return val.Raw, nil
	case pattern.NumberValue:
		if val.IsFloat {
			f, err := strconv.ParseFloat(val.Raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number literal %q", val.Raw)
			}
			return f, nil
		}
		n, err := strconv.ParseInt(val.Raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number literal %q", val.Raw)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("value %s cannot bind as a scalar", v)
	}
}

// encodeList JSON-encodes a literal list the same way list columns are
// stored, so subset and equality comparisons line up.
func encodeList(list pattern.ListValue) (string, error) {
	items := make([]any, len(list.Items))
	for i, item := range list.Items {
		v, err := bindValue(item)
		if err != nil {
			return "", err
		}
		items[i] = v
	}
	enc, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(enc), nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = append(out, '?')
	}
	return string(out)
}

func parenthesized(s string) string {
	if len(s) > 0 && s[0] == '(' {
		return s
	}
	return "(" + s + ")"
}
