package store

import (
	"context"
	"strings"

	"github.com/pyritedb/pyrite/internal/schema"
)

// reservedDDL creates the bookkeeping tables. All engines accept this
// subset of DDL unchanged except for type names handled by sqlType.
var reservedDDL = []string{
	`CREATE TABLE IF NOT EXISTS "` + schema.SymbolTable + `" (
		"name" TEXT PRIMARY KEY,
		"otype" TEXT NOT NULL,
		"definition" TEXT NOT NULL,
		"batch_id" TEXT,
		"appdata" TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS "` + schema.MembershipTable + `" (
		"sco_id" TEXT NOT NULL,
		"view_name" TEXT NOT NULL,
		UNIQUE ("sco_id", "view_name")
	)`,
	`CREATE TABLE IF NOT EXISTS "` + schema.QueriesTable + `" (
		"sco_id" TEXT NOT NULL,
		"query_id" TEXT NOT NULL,
		UNIQUE ("sco_id", "query_id")
	)`,
	`CREATE TABLE IF NOT EXISTS "` + schema.RefListTable + `" (
		"ref_name" TEXT NOT NULL,
		"source_ref" TEXT NOT NULL,
		"target_ref" TEXT NOT NULL,
		UNIQUE ("ref_name", "source_ref", "target_ref")
	)`,
	`CREATE TABLE IF NOT EXISTS "` + schema.ContainsTable + `" (
		"source_ref" TEXT NOT NULL,
		"target_ref" TEXT NOT NULL,
		UNIQUE ("source_ref", "target_ref")
	)`,
	`CREATE TABLE IF NOT EXISTS "` + schema.ColumnsTable + `" (
		"otype" TEXT NOT NULL,
		"original" TEXT NOT NULL,
		"physical" TEXT NOT NULL,
		UNIQUE ("otype", "original")
	)`,
}

func (s *Session) initReserved(ctx context.Context) error {
	for _, stmt := range reservedDDL {
		if _, err := s.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// introspector lists existing user tables and their columns so a session
// opened over prior data can rebuild its registries.
type introspector interface {
	Tables(ctx context.Context, s *Session) ([]string, error)
	Columns(ctx context.Context, s *Session, table string) ([]physColumn, error)
}

type physColumn struct {
	Name    string
	SQLType string
}

// seedSchema rebuilds the schema registry, column map, and view registry
// from the database.
func (s *Session) seedSchema(ctx context.Context) error {
	if err := s.cols.load(ctx); err != nil {
		return err
	}

	tables, err := s.intro.Tables(ctx, s)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if schema.IsReserved(table) {
			continue
		}
		phys, err := s.intro.Columns(ctx, s, table)
		if err != nil {
			return err
		}
		cols := make([]schema.ColumnDef, 0, len(phys))
		for _, pc := range phys {
			cols = append(cols, seededColumn(pc))
		}
		s.schema.Seed(table, cols)
	}

	return s.views.load(ctx)
}

// seededColumn recovers a column kind from the physical type plus the
// naming conventions used at ingest.
func seededColumn(pc physColumn) schema.ColumnDef {
	col := schema.ColumnDef{Name: pc.Name, Kind: schema.KindText}
	switch {
	case schema.IsRefProp(pc.Name):
		col.Kind = schema.KindRef
	case schema.IsRefListProp(pc.Name):
		col.Kind = schema.KindList
	case schema.IsTimestampProp(lastDotPart(pc.Name)):
		col.Kind = schema.KindTimestamp
	default:
		switch strings.ToUpper(pc.SQLType) {
		case "INTEGER", "BIGINT", "INT", "INT8":
			col.Kind = schema.KindInteger
		case "REAL", "DOUBLE PRECISION", "FLOAT8":
			col.Kind = schema.KindFloat
		case "BOOLEAN":
			col.Kind = schema.KindBoolean
		}
	}
	return col
}

func lastDotPart(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
