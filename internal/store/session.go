// Package store owns the database session: connection lifecycle, schema
// and view registries, and the query operations built on them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pyritedb/pyrite/internal/resolve"
	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
)

// Session is one open store: a database handle plus the registries that
// describe it. All query operations hang off the session.
type Session struct {
	db      *sql.DB
	dialect sqlgen.Dialect
	schema  *schema.Registry
	views   *ViewRegistry
	cols    *columnMap
	intro   introspector
	log     *slog.Logger
}

func newSession(db *sql.DB, dialect sqlgen.Dialect, intro introspector, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{db: db, dialect: dialect, intro: intro, log: log}
	s.schema = schema.NewRegistry(&ddl{s: s})
	s.views = newViewRegistry(s)
	s.cols = newColumnMap(s)

	if err := s.initReserved(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seedSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Session) Close() error { return s.db.Close() }

// DB exposes the handle for operations the session does not wrap.
func (s *Session) DB() *sql.DB { return s.db }

// Dialect returns the session's SQL dialect.
func (s *Session) Dialect() sqlgen.Dialect { return s.dialect }

// Schema returns the session's schema registry.
func (s *Session) Schema() *schema.Registry { return s.schema }

// Views returns the session's view registry.
func (s *Session) Views() *ViewRegistry { return s.views }

// PhysicalColumn maps a property path to the physical column name used
// for it, recording the mapping when the name needs mangling.
func (s *Session) PhysicalColumn(ctx context.Context, typeName, prop string) (string, error) {
	return s.cols.Physical(ctx, typeName, prop)
}

// Resolver returns a path resolver over the session's schema.
func (s *Session) Resolver() *resolve.Resolver {
	return resolve.NewResolver(s.schema)
}

func (s *Session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	bound := s.dialect.Rebind(query)
	s.log.Debug("exec", "sql", bound, "args", len(args))
	res, err := s.db.ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("executing %q: %w", query, err)
	}
	return res, nil
}

func (s *Session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	bound := s.dialect.Rebind(query)
	s.log.Debug("query", "sql", bound, "args", len(args))
	rows, err := s.db.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", query, err)
	}
	return rows, nil
}

func (s *Session) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	bound := s.dialect.Rebind(query)
	s.log.Debug("query", "sql", bound, "args", len(args))
	return s.db.QueryRowContext(ctx, bound, args...)
}

// Tx runs fn inside one transaction, rolling back on error.
func (s *Session) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
