package resolve

import (
	"errors"
	"testing"

	"github.com/pyritedb/pyrite/internal/pattern"
	"github.com/pyritedb/pyrite/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry(nil)
	r.Seed("ipv4-addr", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "value", Kind: schema.KindText},
	})
	r.Seed("network-traffic", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "src_ref", Kind: schema.KindRef},
		{Name: "dst_ref", Kind: schema.KindRef},
		{Name: "dst_port", Kind: schema.KindInteger},
		{Name: "protocols", Kind: schema.KindList},
	})
	r.Seed("file", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "name", Kind: schema.KindText},
		{Name: "hashes.SHA-1", Kind: schema.KindText},
		{Name: "hashes.SHA-256", Kind: schema.KindText},
		{Name: "parent_directory_ref", Kind: schema.KindRef},
	})
	r.Seed("directory", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "path", Kind: schema.KindText},
	})
	return r
}

func mustPath(t *testing.T, text string) pattern.ObjectPath {
	t.Helper()
	pat, err := pattern.Parse("[" + text + " = 'x']")
	if err != nil {
		t.Fatalf("parsing path %q: %v", text, err)
	}
	obs, ok := pat.Root.(pattern.Observation)
	if !ok {
		t.Fatalf("unexpected root %T", pat.Root)
	}
	comp, ok := obs.Expr.(pattern.Comparison)
	if !ok {
		t.Fatalf("unexpected expr %T", obs.Expr)
	}
	return comp.Path
}

func TestResolveDirectColumn(t *testing.T) {
	r := NewResolver(testRegistry(t))
	got, err := r.Resolve("ipv4-addr", mustPath(t, "ipv4-addr:value"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Column.Name != "value" || got.ColumnAlias != "ipv4-addr" || len(got.Joins) != 0 {
		t.Errorf("unexpected resolution: %+v", got)
	}
}

func TestResolveReferenceHop(t *testing.T) {
	r := NewResolver(testRegistry(t))
	got, err := r.Resolve("network-traffic", mustPath(t, "network-traffic:src_ref.value"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got.Joins) != 1 {
		t.Fatalf("expected 1 join, got %+v", got.Joins)
	}
	j := got.Joins[0]
	if j.FromAlias != "network-traffic" || j.Table != "ipv4-addr" || j.Alias != "src_ref" {
		t.Errorf("unexpected join: %+v", j)
	}
	if j.LeftCol != "src_ref" || j.RightCol != "id" {
		t.Errorf("unexpected join columns: %+v", j)
	}
	if got.Column.Name != "value" || got.ColumnAlias != "src_ref" {
		t.Errorf("unexpected terminal: %+v", got)
	}
}

func TestResolveFlattenedColumnWinsOverHop(t *testing.T) {
	// hashes.SHA-1 is a flattened column, not a hop through "hashes".
	r := NewResolver(testRegistry(t))
	got, err := r.Resolve("file", mustPath(t, "file:hashes.SHA-1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Column.Name != "hashes.SHA-1" || len(got.Joins) != 0 {
		t.Errorf("expected flattened column match, got %+v", got)
	}
}

func TestResolveListColumn(t *testing.T) {
	r := NewResolver(testRegistry(t))
	got, err := r.Resolve("network-traffic", mustPath(t, "network-traffic:protocols[*]"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.IsList {
		t.Error("expected a list-shaped resolution")
	}
}

func TestResolveErrors(t *testing.T) {
	r := NewResolver(testRegistry(t))
	tests := []struct {
		name string
		typ  string
		path string
	}{
		{name: "unknown type", typ: "process", path: "process:pid"},
		{name: "unknown column", typ: "ipv4-addr", path: "ipv4-addr:nope"},
		{name: "descend into scalar", typ: "network-traffic", path: "network-traffic:dst_port.value"},
		{name: "ends on reference", typ: "network-traffic", path: "network-traffic:src_ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.typ, mustPath(t, tt.path))
			var unresolved *UnresolvedPathError
			if !errors.As(err, &unresolved) {
				t.Fatalf("expected UnresolvedPathError, got %v", err)
			}
		})
	}
}

func TestRefTargetPrefersDeclaredKnownType(t *testing.T) {
	// Both ipv4-addr and ipv6-addr are declared targets for dst_ref; only
	// ipv4-addr has been observed, so it wins.
	r := NewResolver(testRegistry(t))
	got, err := r.RefTarget("network-traffic", "dst_ref")
	if err != nil {
		t.Fatalf("ref target: %v", err)
	}
	if got != "ipv4-addr" {
		t.Errorf("expected ipv4-addr, got %q", got)
	}
}

func TestRefTargetHonorsRecordedTarget(t *testing.T) {
	reg := schema.NewRegistry(nil)
	reg.Seed("x-custom", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "owner_ref", Kind: schema.KindRef, RefTarget: "user-account"},
	})
	reg.Seed("user-account", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "account_login", Kind: schema.KindText},
	})
	r := NewResolver(reg)
	got, err := r.RefTarget("x-custom", "owner_ref")
	if err != nil {
		t.Fatalf("ref target: %v", err)
	}
	if got != "user-account" {
		t.Errorf("expected user-account, got %q", got)
	}
}

func TestRefTargetUndeclaredFallsBackToObservedTypes(t *testing.T) {
	reg := schema.NewRegistry(nil)
	reg.Seed("x-custom", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "thing_ref", Kind: schema.KindRef},
	})
	reg.Seed("mutex", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "name", Kind: schema.KindText},
	})
	r := NewResolver(reg)
	got, err := r.RefTarget("x-custom", "thing_ref")
	if err != nil {
		t.Fatalf("ref target: %v", err)
	}
	if got != "mutex" {
		t.Errorf("expected fallback to mutex, got %q", got)
	}
}

func TestRefTargetOnScalarColumn(t *testing.T) {
	r := NewResolver(testRegistry(t))
	if _, err := r.RefTarget("network-traffic", "dst_port"); err == nil {
		t.Error("expected error dereferencing a scalar column")
	}
}

func TestResolveFansOutOverCandidateTables(t *testing.T) {
	reg := testRegistry(t)
	reg.Seed("ipv6-addr", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "value", Kind: schema.KindText},
	})
	r := NewResolver(reg)

	got, err := r.Resolve("network-traffic", mustPath(t, "network-traffic:src_ref.value"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got.Joins) != 2 {
		t.Fatalf("expected one join per candidate, got %+v", got.Joins)
	}
	for i, table := range []string{"ipv4-addr", "ipv6-addr"} {
		j := got.Joins[i]
		if j.Table != table || !j.Outer {
			t.Errorf("join %d: expected outer join on %s, got %+v", i, table, j)
		}
		if j.FromAlias != "network-traffic" || j.LeftCol != "src_ref" || j.RightCol != "id" {
			t.Errorf("join %d: unexpected condition: %+v", i, j)
		}
	}
	wantAliases := []string{"src_ref__ipv4-addr", "src_ref__ipv6-addr"}
	if len(got.ColumnAliases) != 2 ||
		got.ColumnAliases[0] != wantAliases[0] || got.ColumnAliases[1] != wantAliases[1] {
		t.Errorf("column aliases: got %v, want %v", got.ColumnAliases, wantAliases)
	}
	if got.ColumnAlias != wantAliases[0] || got.Column.Name != "value" {
		t.Errorf("unexpected terminal: alias %q column %+v", got.ColumnAlias, got.Column)
	}
}

func TestRefTargetsReturnsEveryObservedCandidate(t *testing.T) {
	reg := testRegistry(t)
	reg.Seed("ipv6-addr", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "value", Kind: schema.KindText},
	})
	r := NewResolver(reg)

	got, err := r.RefTargets("network-traffic", "dst_ref")
	if err != nil {
		t.Fatalf("ref targets: %v", err)
	}
	if len(got) != 2 || got[0] != "ipv4-addr" || got[1] != "ipv6-addr" {
		t.Errorf("got %v, want [ipv4-addr ipv6-addr]", got)
	}

	// Only one candidate observed: no fan-out.
	single := NewResolver(testRegistry(t))
	got, err = single.RefTargets("network-traffic", "dst_ref")
	if err != nil {
		t.Fatalf("ref targets: %v", err)
	}
	if len(got) != 1 || got[0] != "ipv4-addr" {
		t.Errorf("got %v, want [ipv4-addr]", got)
	}
}
