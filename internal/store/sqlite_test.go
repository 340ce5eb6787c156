package store_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/pyritedb/pyrite/internal/ingest"
	"github.com/pyritedb/pyrite/internal/store"
	"github.com/pyritedb/pyrite/internal/testutil"
)

func TestSQLiteScalarFunctions(t *testing.T) {
	ts := testutil.NewTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{name: "regexp match", query: `SELECT regexp('\.exe$', 'calc.exe')`, want: 1},
		{name: "regexp no match", query: `SELECT regexp('\.exe$', 'calc.dll')`, want: 0},
		{name: "regexp anchored", query: `SELECT regexp('^10\.', '10.0.0.1')`, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int64
			if err := ts.Session.DB().QueryRowContext(ctx, tt.query).Scan(&got); err != nil {
				t.Fatalf("query: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s: got %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestMatchesPatternEndToEnd(t *testing.T) {
	ts := testutil.NewTestStore(t)
	ts.LoadBundle("batch-1", testutil.FileBundle(
		"observed-data--11111111-1111-4111-8111-111111111111",
		"calc.exe", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"))
	ts.LoadBundle("batch-1", testutil.FileBundle(
		"observed-data--22222222-2222-4222-8222-222222222222",
		"notes.txt", "aaaac44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852aaaa"))
	ctx := context.Background()

	if err := ts.Session.Extract(ctx, "executables", "file", "",
		`[file:name MATCHES '\.exe$']`, false); err != nil {
		t.Fatalf("extract: %v", err)
	}
	rows := ts.MustLookup("executables")
	if len(rows) != 1 || rows[0]["name"] != "calc.exe" {
		t.Errorf("unexpected matches: %+v", rows)
	}
}

func TestFlattenedHashColumns(t *testing.T) {
	ts := testutil.NewTestStore(t)
	ts.LoadBundle("batch-1", testutil.FileBundle(
		"observed-data--11111111-1111-4111-8111-111111111111",
		"calc.exe", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"))
	ctx := context.Background()

	if err := ts.Session.Extract(ctx, "hits", "file", "",
		"[file:hashes.SHA-256 = 'e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855']", false); err != nil {
		t.Fatalf("extract on flattened column: %v", err)
	}
	ts.MustCount("hits", 1)
}

func TestReopenFileStoreKeepsSchemaAndViews(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s1, err := store.OpenSQLite(path, log)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	eng := ingest.New(s1, nil, log)
	if _, err := eng.IngestBundle(ctx, "batch-1", testutil.ConnBundle(
		"observed-data--11111111-1111-4111-8111-111111111111", "10.0.0.1", "10.0.0.2", 443)); err != nil {
		s1.Close()
		t.Fatalf("ingest: %v", err)
	}
	if err := s1.Extract(ctx, "conns", "network-traffic", "", "[network-traffic:dst_port = 443]", false); err != nil {
		s1.Close()
		t.Fatalf("extract: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := store.OpenSQLite(path, log)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer s2.Close()

	// The schema registry reseeds from the physical tables.
	if _, ok := s2.Schema().Lookup("network-traffic", "dst_port"); !ok {
		t.Error("reopened session lost the inferred schema")
	}
	// The view registry reloads from __symtable.
	entry, err := s2.Views().Lookup("conns")
	if err != nil {
		t.Fatalf("view lookup after reopen: %v", err)
	}
	if entry.Type != "network-traffic" {
		t.Errorf("unexpected view entry: %+v", entry)
	}
	n, err := s2.Count(ctx, "conns")
	if err != nil {
		t.Fatalf("count after reopen: %v", err)
	}
	if n != 1 {
		t.Errorf("view rows after reopen: got %d, want 1", n)
	}

	// Patterns still resolve against the reseeded schema.
	if err := s2.Extract(ctx, "hops", "network-traffic", "",
		"[network-traffic:src_ref.value = '10.0.0.1']", false); err != nil {
		t.Fatalf("extract after reopen: %v", err)
	}
	n, err = s2.Count(ctx, "hops")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("hop extract after reopen: got %d, want 1", n)
	}
}

func TestMangledColumnRoundTrip(t *testing.T) {
	ts := testutil.NewTestStore(t)
	ctx := context.Background()
	bundle := []byte(`{
	  "type": "bundle",
	  "objects": [
	    {
	      "type": "observed-data",
	      "id": "observed-data--33333333-3333-4333-8333-333333333333",
	      "first_observed": "2024-03-02T08:00:00Z",
	      "last_observed": "2024-03-02T08:00:00Z",
	      "number_observed": 1,
	      "objects": {
	        "0": {
	          "type": "file",
	          "name": "calc.exe",
	          "x_scan/av result": "clean"
	        }
	      }
	    }
	  ]
	}`)
	ts.LoadBundle("batch-1", bundle)

	// The physical name is recorded in __columns.
	var phys string
	err := ts.Session.DB().QueryRowContext(ctx,
		`SELECT "physical" FROM "__columns" WHERE "otype" = ? AND "original" = ?`,
		"file", "x_scan/av result").Scan(&phys)
	if err != nil {
		t.Fatalf("reading column mapping: %v", err)
	}
	if phys != "x_scan_av_result" {
		t.Errorf("physical name: got %q", phys)
	}

	// The value lands under the physical column.
	var n int64
	err = ts.Session.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM "file" WHERE "x_scan_av_result" = ?`, "clean").Scan(&n)
	if err != nil {
		t.Fatalf("querying mangled column: %v", err)
	}
	if n != 1 {
		t.Errorf("rows with mangled value: got %d, want 1", n)
	}

	// Columns reports the original property path, not the physical name.
	cols, err := ts.Session.Columns("file")
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	found := false
	for _, c := range cols {
		if c.Column == "x_scan/av result" {
			found = true
		}
		if c.Column == "x_scan_av_result" {
			t.Errorf("physical name leaked into the reported schema: %+v", cols)
		}
	}
	if !found {
		t.Errorf("original property path missing from schema: %+v", cols)
	}
}
