// Package testutil provides reusable fixtures for store-backed tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pyritedb/pyrite/internal/ingest"
	"github.com/pyritedb/pyrite/internal/store"
)

// TestStore wraps an in-memory session for one test.
type TestStore struct {
	Session *store.Session
	t       *testing.T
}

// NewTestStore opens an in-memory store and closes it when the test ends.
func NewTestStore(t *testing.T) *TestStore {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.OpenSQLiteInMemory(log)
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &TestStore{Session: s, t: t}
}

// LoadBundle ingests a bundle document under the given batch id.
func (ts *TestStore) LoadBundle(batchID string, data []byte) *ingest.Report {
	ts.t.Helper()
	engine := ingest.New(ts.Session, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	report, err := engine.IngestBundle(context.Background(), batchID, data)
	if err != nil {
		ts.t.Fatalf("ingesting batch %s: %v", batchID, err)
	}
	return report
}

// MustCount fails the test unless the view has exactly want rows.
func (ts *TestStore) MustCount(view string, want int64) {
	ts.t.Helper()
	got, err := ts.Session.Count(context.Background(), view)
	if err != nil {
		ts.t.Fatalf("counting %s: %v", view, err)
	}
	if got != want {
		ts.t.Errorf("%s: expected %d rows, got %d", view, want, got)
	}
}

// MustLookup returns the rows of a view, failing the test on error.
func (ts *TestStore) MustLookup(view string) []map[string]any {
	ts.t.Helper()
	rows, err := ts.Session.Lookup(context.Background(), view, store.LookupOptions{})
	if err != nil {
		ts.t.Fatalf("lookup %s: %v", view, err)
	}
	return rows
}
