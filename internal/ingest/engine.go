package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pyritedb/pyrite/internal/identity"
	"github.com/pyritedb/pyrite/internal/resolve"
	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
	"github.com/pyritedb/pyrite/internal/store"
)

// Engine writes normalized observations into a session.
type Engine struct {
	s     *store.Session
	maker *identity.Maker
	log   *slog.Logger
}

// Report summarizes one ingested batch.
type Report struct {
	BatchID      string
	Observations int
	Rows         int
	ByType       map[string]int
}

// New creates an engine. maker may be nil, which selects the built-in
// identity configuration.
func New(s *store.Session, maker *identity.Maker, log *slog.Logger) *Engine {
	if maker == nil {
		maker = identity.NewMaker()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{s: s, maker: maker, log: log}
}

// IngestBundle parses a bundle document and ingests its observations.
func (e *Engine) IngestBundle(ctx context.Context, batchID string, data []byte) (*Report, error) {
	envelopes, err := ParseBundle(data)
	if err != nil {
		return nil, err
	}
	return e.Ingest(ctx, batchID, envelopes)
}

// Ingest normalizes and writes one batch of observations. Schema
// extensions land before any row so no reader sees a row without its
// columns; all rows and edges commit in one transaction.
func (e *Engine) Ingest(ctx context.Context, batchID string, envelopes []Envelope) (*Report, error) {
	report := &Report{BatchID: batchID, ByType: make(map[string]int)}

	var all []*normalized
	for _, env := range envelopes {
		n, err := normalize(env, e.maker)
		if err != nil {
			return nil, err
		}
		all = append(all, n)
	}

	rows := make([]row, 0, len(all)*4)
	for _, n := range all {
		envRow, err := e.prepareRow(ctx, n.Envelope)
		if err != nil {
			return nil, err
		}
		rows = append(rows, envRow)
		for _, m := range n.Members {
			r, err := e.prepareRow(ctx, m)
			if err != nil {
				return nil, err
			}
			rows = append(rows, r)
		}
	}

	err := e.s.Tx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if err := e.upsert(ctx, tx, r); err != nil {
				return err
			}
			if err := e.associate(ctx, tx, r.ID, batchID); err != nil {
				return err
			}
			report.Rows++
			report.ByType[r.Type]++
		}
		// Edges after rows, so an edge never precedes its endpoints.
		for _, n := range all {
			for _, m := range n.Members {
				if err := e.edge(ctx, tx, schema.ContainsTable,
					`("source_ref", "target_ref") VALUES (?, ?)`,
					n.Envelope.ID, m.ID); err != nil {
					return err
				}
			}
			for _, rl := range n.RefLists {
				if err := e.edge(ctx, tx, schema.RefListTable,
					`("ref_name", "source_ref", "target_ref") VALUES (?, ?, ?)`,
					rl.Name, rl.Source, rl.Target); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Observations = len(envelopes)
	e.log.Info("batch ingested", "batch", batchID,
		"observations", report.Observations, "rows", report.Rows)
	return report, nil
}

// row is one prepared upsert: physical columns and driver-ready values.
type row struct {
	Type string
	ID   string
	Cols []string
	Vals []any
}

// prepareRow runs the schema pass for one member: every property gets a
// physical column with an inferred kind before the transaction starts.
func (e *Engine) prepareRow(ctx context.Context, m member) (row, error) {
	names := make([]string, 0, len(m.Props))
	for name := range m.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	r := row{Type: m.Type, ID: m.ID}
	for _, name := range names {
		value := m.Props[name]
		phys, err := e.s.PhysicalColumn(ctx, m.Type, name)
		if err != nil {
			return row{}, err
		}
		def := schema.ColumnDef{Name: phys, Kind: schema.InferKind(name, value)}
		if def.Kind == schema.KindRef {
			if targets := resolve.DeclaredTargets(m.Type, lastSegment(name)); len(targets) == 1 {
				def.RefTarget = targets[0]
			}
		}
		def, err = e.s.Schema().EnsureColumn(m.Type, def)
		if err != nil {
			return row{}, err
		}
		v, err := driverValue(def.Kind, value)
		if err != nil {
			return row{}, fmt.Errorf("%s.%s: %w", m.Type, name, err)
		}
		r.Cols = append(r.Cols, phys)
		r.Vals = append(r.Vals, v)
	}
	return r, nil
}

// upsert merges the row into its type table: the observation window
// widens, the observation count accumulates, everything else takes the
// newest value.
func (e *Engine) upsert(ctx context.Context, tx *sql.Tx, r row) error {
	d := e.s.Dialect()
	table := sqlgen.QuoteIdent(r.Type)

	quoted := make([]string, len(r.Cols))
	ph := make([]string, len(r.Cols))
	for i, c := range r.Cols {
		quoted[i] = sqlgen.QuoteIdent(c)
		ph[i] = "?"
	}

	var sets []string
	for _, c := range r.Cols {
		qc := sqlgen.QuoteIdent(c)
		switch c {
		case "id":
			continue
		case "first_observed":
			sets = append(sets, fmt.Sprintf(`%s = %s(%s.%s, excluded.%s)`,
				qc, d.TextMin(), table, qc, qc))
		case "last_observed":
			sets = append(sets, fmt.Sprintf(`%s = %s(%s.%s, excluded.%s)`,
				qc, d.TextMax(), table, qc, qc))
		case "number_observed":
			sets = append(sets, fmt.Sprintf(`%s = %s.%s + excluded.%s`, qc, table, qc, qc))
		default:
			sets = append(sets, fmt.Sprintf(`%s = excluded.%s`, qc, qc))
		}
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT ("id") DO UPDATE SET %s`,
		table, strings.Join(quoted, ", "), strings.Join(ph, ", "), strings.Join(sets, ", "))
	_, err := tx.ExecContext(ctx, d.Rebind(stmt), r.Vals...)
	if err != nil {
		return fmt.Errorf("upserting %s row %s: %w", r.Type, r.ID, err)
	}
	return nil
}

func (e *Engine) associate(ctx context.Context, tx *sql.Tx, scoID, batchID string) error {
	stmt := "INSERT INTO " + sqlgen.QuoteIdent(schema.QueriesTable) +
		` ("sco_id", "query_id") VALUES (?, ?) ON CONFLICT DO NOTHING`
	_, err := tx.ExecContext(ctx, e.s.Dialect().Rebind(stmt), scoID, batchID)
	return err
}

func (e *Engine) edge(ctx context.Context, tx *sql.Tx, table, tail string, args ...any) error {
	stmt := "INSERT INTO " + sqlgen.QuoteIdent(table) + " " + tail + " ON CONFLICT DO NOTHING"
	_, err := tx.ExecContext(ctx, e.s.Dialect().Rebind(stmt), args...)
	return err
}

// driverValue converts a property value to what the driver stores for the
// column kind. Lists keep a canonical JSON encoding.
func driverValue(kind schema.Kind, value any) (any, error) {
	switch kind {
	case schema.KindList:
		enc, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding list value: %w", err)
		}
		return string(enc), nil
	case schema.KindInteger:
		if f, ok := value.(float64); ok {
			return int64(f), nil
		}
		return value, nil
	default:
		return value, nil
	}
}
