package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pyritedb/pyrite/internal/sqlgen"
)

// OpenPostgres opens a postgres-backed store through the pgx stdlib driver.
// The dsn is any libpq-style connection string or URL.
func OpenPostgres(dsn string, log *slog.Logger) (*Session, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres store: %w", err)
	}
	return newSession(db, sqlgen.Postgres{}, pgIntrospector{}, log)
}

type pgIntrospector struct{}

func (pgIntrospector) Tables(ctx context.Context, s *Session) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (pgIntrospector) Columns(ctx context.Context, s *Session, table string) ([]physColumn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []physColumn
	for rows.Next() {
		var pc physColumn
		if err := rows.Scan(&pc.Name, &pc.SQLType); err != nil {
			return nil, err
		}
		cols = append(cols, pc)
	}
	return cols, rows.Err()
}
