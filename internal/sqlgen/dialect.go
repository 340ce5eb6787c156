// Package sqlgen generates parameterized SQL from resolved patterns and
// simple filter specs. Identifiers are only ever drawn from registry-known
// names and literals are always bound parameters, never interpolated.
package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect abstracts the differences between the supported SQL engines.
// Generated SQL uses '?' placeholders; Rebind converts them to the
// engine's binding syntax as the final step before execution.
type Dialect interface {
	Name() string
	Rebind(sql string) string

	// TextMin and TextMax aggregate text timestamps (MIN/MAX on sqlite,
	// LEAST/GREATEST on postgres).
	TextMin() string
	TextMax() string

	// Match renders a regex match of a bound pattern against expr.
	Match(expr string) string
	// ListContains renders membership of one bound value in a
	// JSON-encoded list column.
	ListContains(expr string) string
	// ListSubset renders "list column is a subset of the bound JSON list".
	ListSubset(expr string) string
	// ListSuperset renders "list column is a superset of the bound JSON list".
	ListSuperset(expr string) string
}

// SQLite generates SQL for the sqlite engine. MATCHES relies on the
// regexp() scalar function registered by the sqlite store at open.
type SQLite struct{}

func (SQLite) Name() string          { return "sqlite" }
func (SQLite) Rebind(s string) string { return s }
func (SQLite) TextMin() string       { return "MIN" }
func (SQLite) TextMax() string       { return "MAX" }

func (SQLite) Match(expr string) string {
	return fmt.Sprintf("regexp(?, %s)", expr)
}

func (SQLite) ListContains(expr string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", expr)
}

func (SQLite) ListSubset(expr string) string {
	return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value NOT IN (SELECT value FROM json_each(?)))", expr)
}

func (SQLite) ListSuperset(expr string) string {
	return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM json_each(?) WHERE json_each.value NOT IN (SELECT value FROM json_each(%s)))", expr)
}

// Postgres generates SQL for the postgres engine. List columns are stored
// as JSON text and compared through jsonb.
type Postgres struct{}

func (Postgres) Name() string    { return "postgres" }
func (Postgres) TextMin() string { return "LEAST" }
func (Postgres) TextMax() string { return "GREATEST" }

// Rebind rewrites '?' placeholders to $1..$n.
func (Postgres) Rebind(s string) string {
	var sb strings.Builder
	n := 0
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\'' {
			inString = !inString
		}
		if ch == '?' && !inString {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}

func (Postgres) Match(expr string) string {
	return fmt.Sprintf("%s ~ ?", expr)
}

func (Postgres) ListContains(expr string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements_text((%s)::jsonb) AS el WHERE el = ?)", expr)
}

func (Postgres) ListSubset(expr string) string {
	return fmt.Sprintf("(%s)::jsonb <@ (?)::jsonb", expr)
}

func (Postgres) ListSuperset(expr string) string {
	return fmt.Sprintf("(%s)::jsonb @> (?)::jsonb", expr)
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][\w-]*$`)

// ValidName reports whether s is usable as a table/view/column identifier.
// Flattened property columns additionally allow interior dots.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if !namePattern.MatchString(part) {
			return false
		}
	}
	return true
}

// QuoteIdent double-quotes an identifier. Callers must only pass names
// validated against the schema or view registries.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, ``) + `"`
}

// QuoteQualified quotes alias."column".
func QuoteQualified(alias, column string) string {
	if alias == "" {
		return QuoteIdent(column)
	}
	return QuoteIdent(alias) + "." + QuoteIdent(column)
}
