// Package schema tracks the inferred relational schema for observable types.
//
// Observable properties are not known ahead of time: the registry grows as
// records are ingested, and never shrinks within a session. A column has
// exactly one kind once first observed; a later observation with an
// incompatible kind is a ConflictError, never a silent coercion.
package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Kind is the inferred value kind of a column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindTimestamp
	KindRef
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindRef:
		return "ref"
	case KindList:
		return "list"
	default:
		return "text"
	}
}

// ColumnDef describes one column of an observable type's table.
type ColumnDef struct {
	Name string
	Kind Kind

	// RefTarget is the declared target type for KindRef columns.
	// Empty means the target must be resolved from candidates.
	RefTarget string
}

// ConflictError indicates a property was observed with a kind incompatible
// with its previously recorded kind.
type ConflictError struct {
	Type   string
	Column string
	Have   Kind
	Want   Kind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schema conflict: %s.%s is %s, cannot record as %s",
		e.Type, e.Column, e.Have, e.Want)
}

// DDL receives schema-extension callbacks. Implemented by the storage
// session; calls are serialized per observable type.
type DDL interface {
	CreateTable(typeName string, cols []ColumnDef) error
	AddColumn(typeName string, col ColumnDef) error
}

// Registry is the per-session schema state. Safe for concurrent use;
// first-seen races on the same column issue DDL exactly once.
type Registry struct {
	mu    sync.Mutex
	ddl   DDL
	types map[string]*typeSchema
}

type typeSchema struct {
	mu      sync.Mutex
	created bool
	cols    map[string]ColumnDef
	order   []string
}

// NewRegistry creates an empty registry. ddl may be nil (no backing store,
// used by resolution-only callers and tests).
func NewRegistry(ddl DDL) *Registry {
	return &Registry{ddl: ddl, types: make(map[string]*typeSchema)}
}

func (r *Registry) typeFor(name string) *typeSchema {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.types[name]
	if !ok {
		ts = &typeSchema{cols: make(map[string]ColumnDef)}
		r.types[name] = ts
	}
	return ts
}

// Seed records an already-existing table without issuing DDL. Used when
// opening a session against a store with prior data.
func (r *Registry) Seed(typeName string, cols []ColumnDef) {
	ts := r.typeFor(typeName)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.created = true
	for _, col := range cols {
		if _, ok := ts.cols[col.Name]; !ok {
			ts.cols[col.Name] = col
			ts.order = append(ts.order, col.Name)
		}
	}
}

// withIdentifier prepends the implicit "id" primary-key column when the
// initial set lacks it. Every type table carries id; recording it with the
// create keeps the registry and the physical table in agreement, so a
// later EnsureColumn("id") is a no-op instead of a duplicate ALTER.
func withIdentifier(cols []ColumnDef) []ColumnDef {
	for _, c := range cols {
		if c.Name == "id" {
			return cols
		}
	}
	return append([]ColumnDef{{Name: "id", Kind: KindText}}, cols...)
}

// EnsureType creates the type's table with an initial column set if it does
// not exist yet. Existing columns are checked for compatibility.
func (r *Registry) EnsureType(typeName string, cols []ColumnDef) error {
	ts := r.typeFor(typeName)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if !ts.created {
		cols = withIdentifier(cols)
		if r.ddl != nil {
			if err := r.ddl.CreateTable(typeName, cols); err != nil {
				return err
			}
		}
		ts.created = true
		for _, col := range cols {
			ts.cols[col.Name] = col
			ts.order = append(ts.order, col.Name)
		}
		return nil
	}
	for _, col := range cols {
		if err := ts.ensure(r.ddl, typeName, col); err != nil {
			return err
		}
	}
	return nil
}

// EnsureColumn records the column, issuing an add-column on first sighting.
// Returns the recorded definition, which may differ from the requested one
// when a compatible kind was already fixed.
func (r *Registry) EnsureColumn(typeName string, col ColumnDef) (ColumnDef, error) {
	ts := r.typeFor(typeName)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if !ts.created {
		cols := withIdentifier([]ColumnDef{col})
		if r.ddl != nil {
			if err := r.ddl.CreateTable(typeName, cols); err != nil {
				return ColumnDef{}, err
			}
		}
		ts.created = true
		for _, c := range cols {
			ts.cols[c.Name] = c
			ts.order = append(ts.order, c.Name)
		}
		return ts.cols[col.Name], nil
	}
	if err := ts.ensure(r.ddl, typeName, col); err != nil {
		return ColumnDef{}, err
	}
	return ts.cols[col.Name], nil
}

// ensure must be called with ts.mu held.
func (ts *typeSchema) ensure(ddl DDL, typeName string, col ColumnDef) error {
	existing, ok := ts.cols[col.Name]
	if !ok {
		if ddl != nil {
			if err := ddl.AddColumn(typeName, col); err != nil {
				return err
			}
		}
		ts.cols[col.Name] = col
		ts.order = append(ts.order, col.Name)
		return nil
	}
	if !compatible(existing.Kind, col.Kind) {
		return &ConflictError{Type: typeName, Column: col.Name, Have: existing.Kind, Want: col.Kind}
	}
	if existing.Kind == KindRef && existing.RefTarget == "" && col.RefTarget != "" {
		existing.RefTarget = col.RefTarget
		ts.cols[col.Name] = existing
	}
	return nil
}

// compatible reports whether observing `want` is acceptable for a column
// recorded as `have`. Integers may land in a float column; nothing else
// coerces.
func compatible(have, want Kind) bool {
	if have == want {
		return true
	}
	return have == KindFloat && want == KindInteger
}

// Lookup returns the column definition, or false if the column (or type)
// has not been observed.
func (r *Registry) Lookup(typeName, colName string) (ColumnDef, bool) {
	r.mu.Lock()
	ts, ok := r.types[typeName]
	r.mu.Unlock()
	if !ok {
		return ColumnDef{}, false
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	col, ok := ts.cols[colName]
	return col, ok
}

// HasType reports whether the type has been observed.
func (r *Registry) HasType(typeName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.types[typeName]
	return ok && ts.created
}

// Types returns all observed type names, sorted.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.types))
	for name, ts := range r.types {
		if ts.created {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Columns returns the type's columns in observation order.
func (r *Registry) Columns(typeName string) []ColumnDef {
	r.mu.Lock()
	ts, ok := r.types[typeName]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	cols := make([]ColumnDef, 0, len(ts.order))
	for _, name := range ts.order {
		cols = append(cols, ts.cols[name])
	}
	return cols
}
