package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"modernc.org/sqlite"

	"github.com/pyritedb/pyrite/internal/sqlgen"
)

var registerUDFs sync.Once

// udfs registers the regexp() scalar function MATCHES compiles to.
func udfs() {
	registerUDFs.Do(func() {
		sqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
	})
}

var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]*regexp.Regexp{}
)

func regexpFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pat, ok1 := asString(args[0])
	val, ok2 := asString(args[1])
	if !ok1 || !ok2 {
		return int64(0), nil
	}
	regexCacheMu.Lock()
	re, ok := regexCache[pat]
	regexCacheMu.Unlock()
	if !ok {
		var err error
		re, err = regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp %q: %w", pat, err)
		}
		regexCacheMu.Lock()
		regexCache[pat] = re
		regexCacheMu.Unlock()
	}
	if re.MatchString(val) {
		return int64(1), nil
	}
	return int64(0), nil
}

func asString(v driver.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// OpenSQLite opens (or creates) a file-backed sqlite store.
func OpenSQLite(path string, log *slog.Logger) (*Session, error) {
	return openSQLite(path, log)
}

// OpenSQLiteInMemory opens an in-memory store (for testing).
func OpenSQLiteInMemory(log *slog.Logger) (*Session, error) {
	return openSQLite(":memory:", log)
}

func openSQLite(dsn string, log *slog.Logger) (*Session, error) {
	udfs()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	// In-memory databases vanish per connection; file databases still
	// want serialized access under modernc's locking model.
	db.SetMaxOpenConns(1)

	pragmas := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
		PRAGMA cache_size = -64000;
		PRAGMA foreign_keys = ON;
	`
	if _, err := db.Exec(pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite store: %w", err)
	}

	return newSession(db, sqlgen.SQLite{}, sqliteIntrospector{}, log)
}

type sqliteIntrospector struct{}

func (sqliteIntrospector) Tables(ctx context.Context, s *Session) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
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

func (sqliteIntrospector) Columns(ctx context.Context, s *Session, table string) ([]physColumn, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", sqlgen.QuoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []physColumn
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, physColumn{Name: name, SQLType: typ})
	}
	return cols, rows.Err()
}
