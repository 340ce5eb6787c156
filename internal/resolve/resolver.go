// Package resolve maps dotted object paths onto tables, columns, and join
// chains using the session's inferred schema.
package resolve

import (
	"fmt"
	"strings"

	"github.com/pyritedb/pyrite/internal/pattern"
	"github.com/pyritedb/pyrite/internal/schema"
)

// JoinStep is one reference hop: FromAlias."LeftCol" = Alias."RightCol".
// Aliases are derived from the reference path, so a chain that revisits the
// same table still produces distinct joins. Outer marks the joins of a
// multi-candidate hop, where a row matches at most one candidate table.
type JoinStep struct {
	FromAlias string
	Table     string
	Alias     string
	LeftCol   string
	RightCol  string
	Outer     bool
}

// ResolvedPath is the relational location of an object path: the base
// table, the ordered reference joins, and the terminal column with the
// alias it must be read through. A hop whose reference can land in more
// than one table (src_ref over mixed ipv4/ipv6 stores) fans out into one
// outer join per candidate; ColumnAliases then lists every alias carrying
// the terminal column, and readers coalesce across them.
type ResolvedPath struct {
	BaseType      string
	Joins         []JoinStep
	Column        schema.ColumnDef
	ColumnAlias   string   // first alias holding the terminal column
	ColumnAliases []string // all aliases holding it, in candidate order
	IsList        bool
}

// UnresolvedPathError indicates a path segment has no matching column or a
// reference hop has no resolvable target type.
type UnresolvedPathError struct {
	Type    string
	Path    string
	Segment string
	Reason  string
}

func (e *UnresolvedPathError) Error() string {
	return fmt.Sprintf("cannot resolve %s:%s at %q: %s", e.Type, e.Path, e.Segment, e.Reason)
}

// Resolver resolves object paths against a schema registry.
type Resolver struct {
	reg *schema.Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(reg *schema.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve walks the path's segments left to right. Reference columns emit
// join steps; the final segment must land on a terminal (non-reference)
// column. Nested properties flattened at ingest (e.g. hashes.SHA-1) are
// matched longest-first, so a dotted remainder is tried as a single column
// before any hop.
func (r *Resolver) Resolve(baseType string, path pattern.ObjectPath) (*ResolvedPath, error) {
	if !r.reg.HasType(baseType) {
		return nil, &UnresolvedPathError{Type: baseType, Path: path.Property(), Segment: baseType, Reason: "unknown observable type"}
	}

	resolved := &ResolvedPath{BaseType: baseType, ColumnAlias: baseType}
	curType := baseType
	curAlias := baseType
	var hops []string

	segs := path.Segments
	for i := 0; i < len(segs); i++ {
		remainder := joinSegments(segs[i:])

		// Longest match: a flattened column spanning the remaining
		// segments wins over a hop.
		if col, ok := r.reg.Lookup(curType, remainder); ok && col.Kind != schema.KindRef {
			resolved.Column = col
			resolved.ColumnAlias = curAlias
			resolved.ColumnAliases = []string{curAlias}
			resolved.IsList = col.Kind == schema.KindList || segs[len(segs)-1].List
			return resolved, nil
		}

		seg := segs[i]
		col, ok := r.reg.Lookup(curType, seg.Name)
		if !ok {
			return nil, &UnresolvedPathError{Type: baseType, Path: path.Property(), Segment: seg.Name, Reason: "no such column on " + curType}
		}

		if col.Kind != schema.KindRef {
			if i != len(segs)-1 {
				return nil, &UnresolvedPathError{Type: baseType, Path: path.Property(), Segment: seg.Name, Reason: "cannot descend into non-reference column"}
			}
			resolved.Column = col
			resolved.ColumnAlias = curAlias
			resolved.ColumnAliases = []string{curAlias}
			resolved.IsList = col.Kind == schema.KindList || seg.List
			return resolved, nil
		}

		if i == len(segs)-1 {
			return nil, &UnresolvedPathError{Type: baseType, Path: path.Property(), Segment: seg.Name, Reason: "path ends on a reference column"}
		}

		targets, err := r.refTargets(curType, seg.Name, col)
		if err != nil {
			return nil, &UnresolvedPathError{Type: baseType, Path: path.Property(), Segment: seg.Name, Reason: err.Error()}
		}

		hops = append(hops, seg.Name)
		alias := strings.Join(hops, "__")

		if len(targets) > 1 {
			if done := r.fanOut(resolved, segs[i+1:], targets, curAlias, alias, seg.Name); done {
				return resolved, nil
			}
		}

		// Single candidate, or a deeper chain that keeps the preferred one.
		resolved.Joins = append(resolved.Joins, JoinStep{
			FromAlias: curAlias,
			Table:     targets[0],
			Alias:     alias,
			LeftCol:   seg.Name,
			RightCol:  "id",
		})
		curType = targets[0]
		curAlias = alias
	}

	return nil, &UnresolvedPathError{Type: baseType, Path: path.Property(), Segment: "", Reason: "empty path"}
}

// fanOut resolves a multi-candidate hop by outer-joining every candidate
// whose table carries the rest of the path as a terminal column. It
// applies only when the remainder is terminal; deeper chains report false
// and keep the preferred single candidate.
func (r *Resolver) fanOut(resolved *ResolvedPath, rest []pattern.PathSegment, targets []string, fromAlias, baseAlias, refName string) bool {
	if len(rest) == 0 {
		return false
	}
	remainder := joinSegments(rest)
	var aliases []string
	var term schema.ColumnDef
	for _, cand := range targets {
		col, ok := r.reg.Lookup(cand, remainder)
		if !ok || col.Kind == schema.KindRef {
			continue
		}
		alias := baseAlias + "__" + cand
		resolved.Joins = append(resolved.Joins, JoinStep{
			FromAlias: fromAlias,
			Table:     cand,
			Alias:     alias,
			LeftCol:   refName,
			RightCol:  "id",
			Outer:     true,
		})
		if len(aliases) == 0 {
			term = col
		}
		aliases = append(aliases, alias)
	}
	if len(aliases) == 0 {
		return false
	}
	resolved.Column = term
	resolved.ColumnAlias = aliases[0]
	resolved.ColumnAliases = aliases
	resolved.IsList = term.Kind == schema.KindList || rest[len(rest)-1].List
	return true
}

// refTargets returns the candidate target types for a reference hop, in
// preference order: the exact recorded target when known, otherwise every
// observed declared candidate, otherwise the first observed type carrying
// an id column — always in a stable sorted order.
func (r *Resolver) refTargets(curType, refName string, col schema.ColumnDef) ([]string, error) {
	if col.RefTarget != "" && r.hasIdentifier(col.RefTarget) {
		return []string{col.RefTarget}, nil
	}
	declared := DeclaredTargets(curType, refName)
	var out []string
	for _, cand := range declared { // already in preference order
		if r.hasIdentifier(cand) {
			out = append(out, cand)
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	if len(declared) == 0 {
		for _, cand := range r.reg.Types() {
			if cand != curType && r.hasIdentifier(cand) {
				return []string{cand}, nil
			}
		}
	}
	return nil, fmt.Errorf("no resolvable target type for reference %q", refName)
}

// RefTarget resolves the preferred target type of a reference column
// outside of a full path walk, for callers dereferencing single hops.
func (r *Resolver) RefTarget(curType, refName string) (string, error) {
	targets, err := r.RefTargets(curType, refName)
	if err != nil {
		return "", err
	}
	return targets[0], nil
}

// RefTargets resolves every candidate target type of a reference column,
// for callers joining each candidate table.
func (r *Resolver) RefTargets(curType, refName string) ([]string, error) {
	col, ok := r.reg.Lookup(curType, refName)
	if !ok {
		return nil, &UnresolvedPathError{Type: curType, Path: refName, Segment: refName, Reason: "no such column on " + curType}
	}
	if col.Kind != schema.KindRef {
		return nil, &UnresolvedPathError{Type: curType, Path: refName, Segment: refName, Reason: "not a reference column"}
	}
	return r.refTargets(curType, refName, col)
}

func (r *Resolver) hasIdentifier(typeName string) bool {
	if !r.reg.HasType(typeName) {
		return false
	}
	_, ok := r.reg.Lookup(typeName, "id")
	return ok
}

func joinSegments(segs []pattern.PathSegment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.Name
	}
	return strings.Join(parts, ".")
}
