package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pyritedb/pyrite/internal/pattern"
	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
	"github.com/pyritedb/pyrite/internal/sqlutil"
)

// LookupOptions shape a Lookup call.
type LookupOptions struct {
	Columns []string
	Limit   int
	Offset  int
	// Deref joins referenced rows and projects their columns under
	// "<ref>.<column>" keys, one hop deep.
	Deref bool
}

// Lookup returns rows from a view or base table as name-keyed maps.
func (s *Session) Lookup(ctx context.Context, view string, opts LookupOptions) ([]map[string]any, error) {
	otype, err := s.views.SourceType(view)
	if err != nil {
		return nil, err
	}

	q := sqlgen.Query{Source: view, SourceAlias: otype, LimitN: opts.Limit, OffsetN: opts.Offset}

	if len(opts.Columns) > 0 {
		for _, name := range opts.Columns {
			if _, ok := s.schema.Lookup(otype, name); !ok {
				return nil, fmt.Errorf("no column %q on %s", name, otype)
			}
			q.Cols = append(q.Cols, sqlgen.Column{Table: otype, Name: name})
		}
	} else if opts.Deref {
		s.derefProjection(&q, otype)
	}

	text, args, err := q.Render()
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	return sqlutil.ScanMaps(rows)
}

// derefProjection projects the base columns plus, for every resolvable
// reference column, the referenced row's terminal columns one hop deep,
// aliased "<ref>.<column>". A reference that can land in more than one
// table joins every candidate and coalesces the columns they share.
func (s *Session) derefProjection(q *sqlgen.Query, otype string) {
	res := s.Resolver()
	for _, col := range s.schema.Columns(otype) {
		q.Cols = append(q.Cols, sqlgen.Column{Table: otype, Name: col.Name})
		if col.Kind != schema.KindRef {
			continue
		}
		targets, err := res.RefTargets(otype, col.Name)
		if err != nil {
			continue
		}
		if len(targets) == 1 {
			s.derefSingle(q, otype, col.Name, targets[0])
			continue
		}
		s.derefFanOut(q, otype, col.Name, targets)
	}
}

func (s *Session) derefSingle(q *sqlgen.Query, otype, refName, target string) {
	q.Joins = append(q.Joins, sqlgen.Join{
		Table:    target,
		Alias:    refName,
		LHS:      otype,
		LeftCol:  refName,
		RightCol: "id",
		Outer:    true,
	})
	for _, tc := range s.schema.Columns(target) {
		if tc.Name == "id" || tc.Kind == schema.KindRef {
			continue
		}
		q.Cols = append(q.Cols, sqlgen.Column{
			Table: refName,
			Name:  tc.Name,
			Alias: refName + "." + tc.Name,
		})
	}
}

// derefFanOut outer-joins each candidate table under a per-candidate
// alias. Columns the candidates share project as one coalesced value;
// columns exclusive to one candidate project directly.
func (s *Session) derefFanOut(q *sqlgen.Query, otype, refName string, targets []string) {
	parts := make(map[string][]sqlgen.Column)
	var order []string
	for _, target := range targets {
		alias := refName + "__" + target
		q.Joins = append(q.Joins, sqlgen.Join{
			Table:    target,
			Alias:    alias,
			LHS:      otype,
			LeftCol:  refName,
			RightCol: "id",
			Outer:    true,
		})
		for _, tc := range s.schema.Columns(target) {
			if tc.Name == "id" || tc.Kind == schema.KindRef {
				continue
			}
			if _, ok := parts[tc.Name]; !ok {
				order = append(order, tc.Name)
			}
			parts[tc.Name] = append(parts[tc.Name], sqlgen.Column{Table: alias, Name: tc.Name})
		}
	}
	for _, name := range order {
		cols := parts[name]
		if len(cols) == 1 {
			q.Cols = append(q.Cols, sqlgen.Column{
				Table: cols[0].Table,
				Name:  name,
				Alias: refName + "." + name,
			})
			continue
		}
		q.Cols = append(q.Cols, sqlgen.Coalesced{Parts: cols, Alias: refName + "." + name})
	}
}

// Values returns the distinct values of one object path evaluated against
// a view, following reference hops where the path requires them.
func (s *Session) Values(ctx context.Context, view, pathText string) ([]any, error) {
	otype, err := s.views.SourceType(view)
	if err != nil {
		return nil, err
	}
	path, err := parsePathText(otype, pathText)
	if err != nil {
		return nil, err
	}
	rp, err := s.Resolver().Resolve(otype, path)
	if err != nil {
		return nil, err
	}

	var proj sqlgen.Projected = sqlgen.Column{Table: rp.ColumnAlias, Name: rp.Column.Name}
	if len(rp.ColumnAliases) > 1 {
		parts := make([]sqlgen.Column, len(rp.ColumnAliases))
		for i, alias := range rp.ColumnAliases {
			parts[i] = sqlgen.Column{Table: alias, Name: rp.Column.Name}
		}
		proj = sqlgen.Coalesced{Parts: parts, Alias: rp.Column.Name}
	}
	q := sqlgen.Query{
		Source:      view,
		SourceAlias: otype,
		Distinct:    true,
		Cols:        []sqlgen.Projected{proj},
	}
	for _, j := range rp.Joins {
		q.Joins = append(q.Joins, sqlgen.Join{
			Table: j.Table, Alias: j.Alias, LHS: j.FromAlias,
			LeftCol: j.LeftCol, RightCol: j.RightCol, Outer: j.Outer,
		})
	}

	text, args, err := q.Render()
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	maps, err := sqlutil.ScanMaps(rows)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(maps))
	for _, row := range maps {
		out = append(out, row[rp.Column.Name])
	}
	return out, nil
}

// Count returns the row count of a view or base table.
func (s *Session) Count(ctx context.Context, view string) (int64, error) {
	if _, err := s.views.SourceType(view); err != nil {
		return 0, err
	}
	var n int64
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM "+sqlgen.QuoteIdent(view)).Scan(&n)
	return n, err
}

// Types returns the observable types with data in the store.
func (s *Session) Types() []string { return s.schema.Types() }

// Tables returns every queryable name: base type tables plus views,
// sorted, excluding the reserved metadata tables.
func (s *Session) Tables() []string {
	names := s.schema.Types()
	for _, e := range s.views.List("") {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// TableType returns the observable type behind a view or table name.
func (s *Session) TableType(name string) (string, error) {
	return s.views.SourceType(name)
}

// TableSchema describes one column of a type for callers.
type TableSchema struct {
	Column string
	Kind   string
}

// Columns returns the schema of an observable type, using the original
// property paths for mangled physical names.
func (s *Session) Columns(typeName string) ([]TableSchema, error) {
	if !s.schema.HasType(typeName) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, typeName)
	}
	cols := s.schema.Columns(typeName)
	out := make([]TableSchema, 0, len(cols))
	for _, col := range cols {
		out = append(out, TableSchema{
			Column: s.cols.Original(typeName, col.Name),
			Kind:   col.Kind.String(),
		})
	}
	return out, nil
}

// parsePathText parses a dotted property path, optionally carrying the
// "type:" prefix already implied by the view.
func parsePathText(otype, pathText string) (pattern.ObjectPath, error) {
	if i := strings.IndexByte(pathText, ':'); i >= 0 {
		prefix := pathText[:i]
		if prefix != otype {
			return pattern.ObjectPath{}, fmt.Errorf("path type %q does not match view type %q", prefix, otype)
		}
		pathText = pathText[i+1:]
	}
	if pathText == "" {
		return pattern.ObjectPath{}, fmt.Errorf("empty property path")
	}
	path := pattern.ObjectPath{Type: otype}
	for _, part := range strings.Split(pathText, ".") {
		seg := pattern.PathSegment{Name: part}
		if strings.HasSuffix(part, "[*]") {
			seg.Name = strings.TrimSuffix(part, "[*]")
			seg.List = true
		}
		if seg.Name == "" {
			return pattern.ObjectPath{}, fmt.Errorf("invalid property path %q", pathText)
		}
		path.Segments = append(path.Segments, seg)
	}
	return path, nil
}
