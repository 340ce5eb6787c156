package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
)

// ddl implements schema.DDL against the session's database. The registry
// serializes calls per type, so no extra locking here.
type ddl struct {
	s *Session
}

func (d *ddl) CreateTable(typeName string, cols []schema.ColumnDef) error {
	if schema.IsReserved(typeName) {
		return fmt.Errorf("%q is a reserved table name", typeName)
	}
	// The registry always includes the implicit id column in a create;
	// the statement renders exactly the recorded set.
	defs := make([]string, 0, len(cols))
	for _, col := range cols {
		def := sqlgen.QuoteIdent(col.Name) + " " + d.sqlType(col.Kind)
		if col.Name == "id" {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		sqlgen.QuoteIdent(typeName), strings.Join(defs, ", "))
	_, err := d.s.exec(context.Background(), stmt)
	return err
}

func (d *ddl) AddColumn(typeName string, col schema.ColumnDef) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		sqlgen.QuoteIdent(typeName), sqlgen.QuoteIdent(col.Name), d.sqlType(col.Kind))
	_, err := d.s.exec(context.Background(), stmt)
	return err
}

// sqlType maps a column kind onto the engine's storage type. Timestamps,
// references and lists are stored as text (ISO-8601, identifier, JSON).
func (d *ddl) sqlType(k schema.Kind) string {
	pg := d.s.dialect.Name() == "postgres"
	switch k {
	case schema.KindInteger:
		if pg {
			return "BIGINT"
		}
		return "INTEGER"
	case schema.KindFloat:
		if pg {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case schema.KindBoolean:
		if pg {
			return "BOOLEAN"
		}
		return "INTEGER"
	default:
		return "TEXT"
	}
}
