package store

import (
	"context"
	"strings"
	"sync"

	"github.com/gosimple/slug"
	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
)

// Identifier length limit; postgres truncates beyond 63 bytes.
const maxColumnLen = 63

// columnMap records the mapping from original property paths to the
// physical column names actually created, persisted in the __columns
// table so renames survive reopening the store.
type columnMap struct {
	s  *Session
	mu sync.Mutex
	// keyed by type then original property path
	byOriginal map[string]map[string]string
}

func newColumnMap(s *Session) *columnMap {
	return &columnMap{s: s, byOriginal: make(map[string]map[string]string)}
}

// Physical returns the column name to use for a property path, recording
// the mapping on first use when the name needs mangling. Most properties
// pass through unchanged; only names that are unusable as identifiers
// (or too long) are slugged.
func (m *columnMap) Physical(ctx context.Context, typeName, prop string) (string, error) {
	if sqlgen.ValidName(prop) && len(prop) <= maxColumnLen {
		return prop, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if byProp, ok := m.byOriginal[typeName]; ok {
		if phys, ok := byProp[prop]; ok {
			return phys, nil
		}
	}

	phys := mangle(prop)
	stmt := "INSERT INTO " + sqlgen.QuoteIdent(schema.ColumnsTable) +
		` ("otype", "original", "physical") VALUES (?, ?, ?)`
	if _, err := m.s.exec(ctx, stmt, typeName, prop, phys); err != nil {
		return "", err
	}
	m.record(typeName, prop, phys)
	return phys, nil
}

// Original returns the property path a physical column was created for.
func (m *columnMap) Original(typeName, phys string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for orig, p := range m.byOriginal[typeName] {
		if p == phys {
			return orig
		}
	}
	return phys
}

func (m *columnMap) record(typeName, prop, phys string) {
	byProp, ok := m.byOriginal[typeName]
	if !ok {
		byProp = make(map[string]string)
		m.byOriginal[typeName] = byProp
	}
	byProp[prop] = phys
}

// load reads persisted mappings at session open.
func (m *columnMap) load(ctx context.Context) error {
	rows, err := m.s.query(ctx,
		`SELECT "otype", "original", "physical" FROM `+sqlgen.QuoteIdent(schema.ColumnsTable))
	if err != nil {
		return err
	}
	defer rows.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	for rows.Next() {
		var typeName, orig, phys string
		if err := rows.Scan(&typeName, &orig, &phys); err != nil {
			return err
		}
		m.record(typeName, orig, phys)
	}
	return rows.Err()
}

func mangle(prop string) string {
	// Keep the dotted structure readable: slug each part, join with '_'.
	parts := strings.Split(prop, ".")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(slug.Make(p), "-", "_")
	}
	phys := strings.Join(parts, "_")
	if phys == "" {
		phys = "column"
	}
	if len(phys) > maxColumnLen {
		phys = phys[:maxColumnLen]
	}
	return phys
}
