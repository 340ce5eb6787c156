package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pyritedb/pyrite/internal/pattern"
	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
)

// Extract compiles a pattern against one observable type and names the
// matching rows, optionally restricted to the rows a batch touched.
func (s *Session) Extract(ctx context.Context, name, otype, batchID, patternText string, overwrite bool) error {
	defn, err := s.patternDefinition(otype, otype, batchID, patternText)
	if err != nil {
		return err
	}
	if err := s.views.Create(ctx, name, otype, defn, batchID, overwrite); err != nil {
		return err
	}
	return s.recordMembership(ctx, name, otype)
}

// Filter derives a view from an existing view by applying a pattern to it.
func (s *Session) Filter(ctx context.Context, name, sourceView, patternText string, overwrite bool) error {
	otype, err := s.views.SourceType(sourceView)
	if err != nil {
		return err
	}
	defn, err := s.patternDefinition(sourceView, otype, "", patternText)
	if err != nil {
		return err
	}
	if err := s.views.Create(ctx, name, otype, defn, "", overwrite); err != nil {
		return err
	}
	return s.recordMembership(ctx, name, otype)
}

// patternDefinition compiles a pattern into a standalone SELECT over the
// source (a base table or view), inlining the bound values so the result
// can back a CREATE VIEW.
func (s *Session) patternDefinition(source, otype, batchID, patternText string) (string, error) {
	pat, err := pattern.Parse(patternText)
	if err != nil {
		return "", err
	}
	compiled, err := sqlgen.CompilePattern(pat, otype, s.Resolver(), s.views, s.dialect)
	if err != nil {
		return "", err
	}

	q := sqlgen.Query{
		Source:      source,
		SourceAlias: otype,
		Distinct:    true,
		Cols:        []sqlgen.Projected{sqlgen.Column{Table: otype, Name: "*"}},
	}
	for _, j := range compiled.Joins {
		q.Joins = append(q.Joins, sqlgen.Join{
			Table: j.Table, Alias: j.Alias, LHS: j.FromAlias,
			LeftCol: j.LeftCol, RightCol: j.RightCol, Outer: j.Outer,
		})
	}
	filter := sqlgen.Filter{Exprs: []sqlgen.Expr{{SQL: compiled.Where, Args: compiled.Args}}}
	if batchID != "" {
		filter.Exprs = append(filter.Exprs, sqlgen.Expr{
			SQL: fmt.Sprintf("%s IN (SELECT \"sco_id\" FROM %s WHERE \"query_id\" = ?)",
				sqlgen.QuoteQualified(otype, "id"), sqlgen.QuoteIdent(schema.QueriesTable)),
			Args: []any{batchID},
		})
	}
	q.Filters = []sqlgen.Filter{filter}

	text, args, err := q.Render()
	if err != nil {
		return "", err
	}
	return sqlgen.Inline(text, args)
}

// AssignOptions transform a source view into a derived one.
type AssignOptions struct {
	GroupBy  []string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// Assign names a reshaped projection of an existing view: sorting, paging,
// or grouping with automatic aggregation of the ungrouped columns.
func (s *Session) Assign(ctx context.Context, name, sourceView string, opts AssignOptions, overwrite bool) error {
	otype, err := s.views.SourceType(sourceView)
	if err != nil {
		return err
	}

	q := sqlgen.Query{Source: sourceView, LimitN: opts.Limit, OffsetN: opts.Offset}
	if len(opts.GroupBy) > 0 {
		for _, g := range opts.GroupBy {
			if _, ok := s.schema.Lookup(otype, g); !ok {
				return fmt.Errorf("no column %q on %s", g, otype)
			}
		}
		q.GroupBy = opts.GroupBy
		q.Aggs = s.autoAggs(otype, opts.GroupBy)
	}
	if opts.SortBy != "" {
		if _, ok := s.schema.Lookup(otype, opts.SortBy); !ok {
			return fmt.Errorf("no column %q on %s", opts.SortBy, otype)
		}
		q.OrderBy = []sqlgen.OrderCol{{Name: opts.SortBy, Desc: opts.SortDesc}}
	}

	text, args, err := q.Render()
	if err != nil {
		return err
	}
	defn, err := sqlgen.Inline(text, args)
	if err != nil {
		return err
	}
	if err := s.views.Create(ctx, name, otype, defn, "", overwrite); err != nil {
		return err
	}
	if len(opts.GroupBy) == 0 {
		return s.recordMembership(ctx, name, otype)
	}
	return nil
}

// autoAggs picks an aggregate per ungrouped column: envelope counters keep
// their merge semantics, everything else reports distinct cardinality.
func (s *Session) autoAggs(otype string, groupBy []string) []sqlgen.Aggregation {
	grouped := make(map[string]struct{}, len(groupBy))
	for _, g := range groupBy {
		grouped[g] = struct{}{}
	}
	var aggs []sqlgen.Aggregation
	for _, col := range s.schema.Columns(otype) {
		if _, ok := grouped[col.Name]; ok {
			continue
		}
		switch col.Name {
		case "id":
			continue
		case "first_observed":
			aggs = append(aggs, sqlgen.Aggregation{Func: "MIN", Column: col.Name, Alias: col.Name})
		case "last_observed":
			aggs = append(aggs, sqlgen.Aggregation{Func: "MAX", Column: col.Name, Alias: col.Name})
		case "number_observed":
			aggs = append(aggs, sqlgen.Aggregation{Func: "SUM", Column: col.Name, Alias: col.Name})
		default:
			aggs = append(aggs, sqlgen.Aggregation{Func: "NUNIQUE", Column: col.Name, Alias: col.Name})
		}
	}
	return aggs
}

// Merge names the union of several views over the same observable type,
// projecting the columns they share.
func (s *Session) Merge(ctx context.Context, name string, sources []string, overwrite bool) error {
	if len(sources) == 0 {
		return fmt.Errorf("merge requires at least one source view")
	}
	otype, err := s.views.SourceType(sources[0])
	if err != nil {
		return err
	}
	for _, src := range sources[1:] {
		t, err := s.views.SourceType(src)
		if err != nil {
			return err
		}
		if t != otype {
			return fmt.Errorf("cannot merge %s view %q into %s views", t, src, otype)
		}
	}

	cols := s.schema.Columns(otype)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqlgen.QuoteIdent(c.Name)
	}
	selects := make([]string, len(sources))
	for i, src := range sources {
		selects[i] = fmt.Sprintf("SELECT %s FROM %s",
			strings.Join(quoted, ", "), sqlgen.QuoteIdent(src))
	}
	defn := strings.Join(selects, " UNION ")

	if err := s.views.Create(ctx, name, otype, defn, "", overwrite); err != nil {
		return err
	}
	return s.recordMembership(ctx, name, otype)
}

// JoinViews names an inner join of two views on one column each. The
// result keeps the left type; right-side columns absent on the left are
// projected alongside.
func (s *Session) JoinViews(ctx context.Context, name, left, leftCol, right, rightCol string, overwrite bool) error {
	ltype, err := s.views.SourceType(left)
	if err != nil {
		return err
	}
	rtype, err := s.views.SourceType(right)
	if err != nil {
		return err
	}
	if _, ok := s.schema.Lookup(ltype, leftCol); !ok {
		return fmt.Errorf("no column %q on %s", leftCol, ltype)
	}
	if _, ok := s.schema.Lookup(rtype, rightCol); !ok {
		return fmt.Errorf("no column %q on %s", rightCol, rtype)
	}

	lcols := make(map[string]struct{})
	proj := []string{sqlgen.QuoteIdent(left) + ".*"}
	for _, c := range s.schema.Columns(ltype) {
		lcols[c.Name] = struct{}{}
	}
	for _, c := range s.schema.Columns(rtype) {
		if _, dup := lcols[c.Name]; dup {
			continue
		}
		proj = append(proj, sqlgen.QuoteQualified(right, c.Name))
	}

	defn := fmt.Sprintf("SELECT %s FROM %s INNER JOIN %s ON %s = %s",
		strings.Join(proj, ", "),
		sqlgen.QuoteIdent(left), sqlgen.QuoteIdent(right),
		sqlgen.QuoteQualified(left, leftCol), sqlgen.QuoteQualified(right, rightCol))

	return s.views.Create(ctx, name, ltype, defn, "", overwrite)
}

// recordMembership refreshes the __membership rows for a view that still
// projects row identifiers.
func (s *Session) recordMembership(ctx context.Context, name, otype string) error {
	if _, ok := s.schema.Lookup(otype, "id"); !ok {
		return nil
	}
	return s.Tx(ctx, func(tx *sql.Tx) error {
		del := "DELETE FROM " + sqlgen.QuoteIdent(schema.MembershipTable) + ` WHERE "view_name" = ?`
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(del), name); err != nil {
			return err
		}
		ins := "INSERT INTO " + sqlgen.QuoteIdent(schema.MembershipTable) +
			` ("sco_id", "view_name") SELECT DISTINCT "id", ? FROM ` + sqlgen.QuoteIdent(name)
		_, err := tx.ExecContext(ctx, s.dialect.Rebind(ins), name)
		return err
	})
}

// RemoveBatch deletes the rows only the given batch observed, keeps rows
// other batches still reference, and prunes dangling edges.
func (s *Session) RemoveBatch(ctx context.Context, batchID string) error {
	queries := sqlgen.QuoteIdent(schema.QueriesTable)
	return s.Tx(ctx, func(tx *sql.Tx) error {
		for _, otype := range s.schema.Types() {
			del := fmt.Sprintf(
				`DELETE FROM %s WHERE "id" IN (SELECT "sco_id" FROM %s WHERE "query_id" = ?)
				 AND "id" NOT IN (SELECT "sco_id" FROM %s WHERE "query_id" != ?)`,
				sqlgen.QuoteIdent(otype), queries, queries)
			if _, err := tx.ExecContext(ctx, s.dialect.Rebind(del), batchID, batchID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			s.dialect.Rebind("DELETE FROM "+queries+` WHERE "query_id" = ?`), batchID); err != nil {
			return err
		}
		prune := []string{
			"DELETE FROM " + sqlgen.QuoteIdent(schema.ContainsTable) +
				` WHERE "source_ref" NOT IN (SELECT "sco_id" FROM ` + queries + `)
				 OR "target_ref" NOT IN (SELECT "sco_id" FROM ` + queries + `)`,
			"DELETE FROM " + sqlgen.QuoteIdent(schema.RefListTable) +
				` WHERE "source_ref" NOT IN (SELECT "sco_id" FROM ` + queries + `)`,
			"DELETE FROM " + sqlgen.QuoteIdent(schema.MembershipTable) +
				` WHERE "sco_id" NOT IN (SELECT "sco_id" FROM ` + queries + `)`,
		}
		for _, stmt := range prune {
			if _, err := tx.ExecContext(ctx, s.dialect.Rebind(stmt)); err != nil {
				return err
			}
		}
		return nil
	})
}
