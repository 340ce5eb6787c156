package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
)

// ErrUnknownView is returned when a named view does not exist.
var ErrUnknownView = errors.New("unknown view")

// NameConflictError means a view name is already taken by a different
// definition and overwrite was not requested.
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("view %q already exists with a different definition", e.Name)
}

// ViewEntry is one named view: the observable type it projects and the
// SELECT definition it materializes.
type ViewEntry struct {
	Name       string
	Type       string
	Definition string
	BatchID    string
	Appdata    string
}

// ViewRegistry names query results. Entries live in __symtable and are
// materialized as SQL views; mutations are atomic per name.
type ViewRegistry struct {
	s *Session

	mu      sync.Mutex
	entries map[string]ViewEntry
	locks   map[string]*sync.Mutex
}

func newViewRegistry(s *Session) *ViewRegistry {
	return &ViewRegistry{
		s:       s,
		entries: make(map[string]ViewEntry),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (v *ViewRegistry) load(ctx context.Context) error {
	rows, err := v.s.query(ctx, `SELECT "name", "otype", "definition", "batch_id", "appdata" FROM `+
		sqlgen.QuoteIdent(schema.SymbolTable))
	if err != nil {
		return err
	}
	defer rows.Close()

	v.mu.Lock()
	defer v.mu.Unlock()
	for rows.Next() {
		var e ViewEntry
		var batch, appdata sql.NullString
		if err := rows.Scan(&e.Name, &e.Type, &e.Definition, &batch, &appdata); err != nil {
			return err
		}
		e.BatchID = batch.String
		e.Appdata = appdata.String
		v.entries[e.Name] = e
	}
	return rows.Err()
}

// nameLock returns the per-name mutex, creating it on first use.
func (v *ViewRegistry) nameLock(name string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[name]
	if !ok {
		l = &sync.Mutex{}
		v.locks[name] = l
	}
	return l
}

func validViewName(name string) error {
	if !sqlgen.ValidName(name) {
		return fmt.Errorf("invalid view name %q", name)
	}
	if schema.IsReserved(name) {
		return fmt.Errorf("%q is a reserved name", name)
	}
	return nil
}

// Create names a definition. Creating an existing name with an identical
// definition is a no-op; a different definition is a NameConflictError
// unless overwrite is set.
func (v *ViewRegistry) Create(ctx context.Context, name, otype, definition, batchID string, overwrite bool) error {
	if err := validViewName(name); err != nil {
		return err
	}
	l := v.nameLock(name)
	l.Lock()
	defer l.Unlock()

	v.mu.Lock()
	existing, exists := v.entries[name]
	v.mu.Unlock()

	if exists {
		if existing.Definition == definition && existing.Type == otype {
			return nil
		}
		if !overwrite {
			return &NameConflictError{Name: name}
		}
		if _, err := v.s.exec(ctx, "DROP VIEW IF EXISTS "+sqlgen.QuoteIdent(name)); err != nil {
			return err
		}
	}

	if _, err := v.s.exec(ctx,
		fmt.Sprintf("CREATE VIEW %s AS %s", sqlgen.QuoteIdent(name), definition)); err != nil {
		return err
	}

	stmt := "INSERT INTO " + sqlgen.QuoteIdent(schema.SymbolTable) +
		` ("name", "otype", "definition", "batch_id") VALUES (?, ?, ?, ?)
		 ON CONFLICT ("name") DO UPDATE SET
		 "otype" = excluded."otype",
		 "definition" = excluded."definition",
		 "batch_id" = excluded."batch_id"`
	if _, err := v.s.exec(ctx, stmt, name, otype, definition, batchID); err != nil {
		return err
	}

	v.mu.Lock()
	v.entries[name] = ViewEntry{Name: name, Type: otype, Definition: definition, BatchID: batchID, Appdata: existing.Appdata}
	v.mu.Unlock()
	return nil
}

// Rename moves a view to a new name atomically with respect to other
// mutations of either name.
func (v *ViewRegistry) Rename(ctx context.Context, oldName, newName string) error {
	if err := validViewName(newName); err != nil {
		return err
	}
	entry, err := v.Lookup(oldName)
	if err != nil {
		return err
	}
	if _, taken := v.lookup(newName); taken {
		return &NameConflictError{Name: newName}
	}
	if err := v.Create(ctx, newName, entry.Type, entry.Definition, entry.BatchID, false); err != nil {
		return err
	}
	return v.Remove(ctx, oldName)
}

// Remove drops a view and its registry entry.
func (v *ViewRegistry) Remove(ctx context.Context, name string) error {
	l := v.nameLock(name)
	l.Lock()
	defer l.Unlock()

	if _, ok := v.lookup(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	if _, err := v.s.exec(ctx, "DROP VIEW IF EXISTS "+sqlgen.QuoteIdent(name)); err != nil {
		return err
	}
	if _, err := v.s.exec(ctx,
		"DELETE FROM "+sqlgen.QuoteIdent(schema.SymbolTable)+` WHERE "name" = ?`, name); err != nil {
		return err
	}
	v.mu.Lock()
	delete(v.entries, name)
	v.mu.Unlock()
	return nil
}

func (v *ViewRegistry) lookup(name string) (ViewEntry, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[name]
	return e, ok
}

// Lookup returns the entry for a view name.
func (v *ViewRegistry) Lookup(name string) (ViewEntry, error) {
	e, ok := v.lookup(name)
	if !ok {
		return ViewEntry{}, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return e, nil
}

// List returns view names, optionally restricted to one observable type.
func (v *ViewRegistry) List(typeFilter string) []ViewEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ViewEntry, 0, len(v.entries))
	for _, e := range v.entries {
		if typeFilter != "" && e.Type != typeFilter {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetAppdata attaches opaque application data to a view.
func (v *ViewRegistry) SetAppdata(ctx context.Context, name, data string) error {
	l := v.nameLock(name)
	l.Lock()
	defer l.Unlock()

	e, ok := v.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	if _, err := v.s.exec(ctx,
		"UPDATE "+sqlgen.QuoteIdent(schema.SymbolTable)+` SET "appdata" = ? WHERE "name" = ?`,
		data, name); err != nil {
		return err
	}
	e.Appdata = data
	v.mu.Lock()
	v.entries[name] = e
	v.mu.Unlock()
	return nil
}

// Appdata returns the application data attached to a view.
func (v *ViewRegistry) Appdata(name string) (string, error) {
	e, ok := v.lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return e.Appdata, nil
}

// SourceType returns the observable type a view or base table projects.
func (v *ViewRegistry) SourceType(name string) (string, error) {
	if e, ok := v.lookup(name); ok {
		return e.Type, nil
	}
	if v.s.schema.HasType(name) {
		return name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// ReferenceColumn validates a value-position pattern reference: the view
// must exist (or be a base table) and the path must name one of its
// columns directly.
func (v *ViewRegistry) ReferenceColumn(view, path string) (string, string, error) {
	otype, err := v.SourceType(view)
	if err != nil {
		return "", "", err
	}
	if _, ok := v.s.schema.Lookup(otype, path); !ok {
		return "", "", fmt.Errorf("view %q (%s) has no column %q", view, otype, path)
	}
	return view, path, nil
}
