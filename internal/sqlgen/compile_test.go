package sqlgen

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/pyritedb/pyrite/internal/pattern"
	"github.com/pyritedb/pyrite/internal/resolve"
	"github.com/pyritedb/pyrite/internal/schema"
)

func compileResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	reg := schema.NewRegistry(nil)
	reg.Seed("ipv4-addr", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "value", Kind: schema.KindText},
	})
	reg.Seed("network-traffic", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "first_observed", Kind: schema.KindTimestamp},
		{Name: "last_observed", Kind: schema.KindTimestamp},
		{Name: "src_ref", Kind: schema.KindRef},
		{Name: "dst_ref", Kind: schema.KindRef},
		{Name: "dst_port", Kind: schema.KindInteger},
		{Name: "protocols", Kind: schema.KindList},
	})
	reg.Seed("file", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "name", Kind: schema.KindText},
		{Name: "size", Kind: schema.KindInteger},
	})
	return resolve.NewResolver(reg)
}

// fixedCatalog resolves every view name in the map to itself.
type fixedCatalog map[string]string

func (c fixedCatalog) ReferenceColumn(view, path string) (string, string, error) {
	col, ok := c[view]
	if !ok || col != path {
		return "", "", fmt.Errorf("unknown view column %s.%s", view, path)
	}
	return view, path, nil
}

func mustParse(t *testing.T, text string) *pattern.Pattern {
	t.Helper()
	pat, err := pattern.Parse(text)
	if err != nil {
		t.Fatalf("parsing %q: %v", text, err)
	}
	return pat
}

func TestCompilePattern(t *testing.T) {
	res := compileResolver(t)
	tests := []struct {
		name      string
		input     string
		target    string
		wantWhere string
		wantArgs  []any
		wantJoins int
	}{
		{
			name:      "single comparison",
			input:     "[ipv4-addr:value = '10.0.0.1']",
			target:    "ipv4-addr",
			wantWhere: `("ipv4-addr"."value" = ?)`,
			wantArgs:  []any{"10.0.0.1"},
		},
		{
			name:      "conjunction with reference hop",
			input:     "[network-traffic:src_ref.value = '10.0.0.1' AND network-traffic:dst_port > 1024]",
			target:    "network-traffic",
			wantWhere: `(("src_ref"."value" = ?) AND ("network-traffic"."dst_port" > ?))`,
			wantArgs:  []any{"10.0.0.1", int64(1024)},
			wantJoins: 1,
		},
		{
			name:      "comparisons on other types drop out",
			input:     "[ipv4-addr:value = '1.2.3.4' AND network-traffic:dst_port = 80]",
			target:    "network-traffic",
			wantWhere: `("network-traffic"."dst_port" = ?)`,
			wantArgs:  []any{int64(80)},
		},
		{
			name:      "joins deduplicated across branches",
			input:     "[network-traffic:src_ref.value = '1.1.1.1' OR network-traffic:src_ref.value = '2.2.2.2']",
			target:    "network-traffic",
			wantWhere: `(("src_ref"."value" = ?) OR ("src_ref"."value" = ?))`,
			wantArgs:  []any{"1.1.1.1", "2.2.2.2"},
			wantJoins: 1,
		},
		{
			name:      "in expands to placeholders",
			input:     "[network-traffic:dst_port IN (80,443)]",
			target:    "network-traffic",
			wantWhere: `("network-traffic"."dst_port" IN (?, ?))`,
			wantArgs:  []any{int64(80), int64(443)},
		},
		{
			name:      "scalar equality on list column tests membership",
			input:     "[network-traffic:protocols[*] = 'tcp']",
			target:    "network-traffic",
			wantWhere: `EXISTS (SELECT 1 FROM json_each("network-traffic"."protocols") WHERE json_each.value = ?)`,
			wantArgs:  []any{"tcp"},
		},
		{
			name:      "list literal equality compares encodings",
			input:     "[network-traffic:protocols[*] = ('tcp','ipv4')]",
			target:    "network-traffic",
			wantWhere: `("network-traffic"."protocols" = ?)`,
			wantArgs:  []any{`["tcp","ipv4"]`},
		},
		{
			name:      "matches uses the dialect regex idiom",
			input:     "[file:name MATCHES 'exe$']",
			target:    "file",
			wantWhere: `regexp(?, "file"."name")`,
			wantArgs:  []any{"exe$"},
		},
		{
			name:      "negated like",
			input:     "[file:name NOT LIKE '%.dll']",
			target:    "file",
			wantWhere: `NOT ("file"."name" LIKE ?)`,
			wantArgs:  []any{"%.dll"},
		},
		{
			name:      "issubset on list column",
			input:     "[network-traffic:protocols[*] ISSUBSET ('tcp','udp','icmp')]",
			target:    "network-traffic",
			wantWhere: `NOT EXISTS (SELECT 1 FROM json_each("network-traffic"."protocols") WHERE json_each.value NOT IN (SELECT value FROM json_each(?)))`,
			wantArgs:  []any{`["tcp","udp","icmp"]`},
		},
		{
			name:   "qualifier bounds the envelope window",
			input:  "[network-traffic:dst_port = 80] START t'2024-01-01T00:00:00Z' STOP t'2024-02-01T00:00:00Z'",
			target: "network-traffic",
			wantWhere: `(("network-traffic"."dst_port" = ?) AND ` +
				`("network-traffic"."first_observed" >= ? AND "network-traffic"."last_observed" <= ?))`,
			wantArgs: []any{int64(80), "2024-01-01T00:00:00Z", "2024-02-01T00:00:00Z"},
		},
		{
			name:      "timestamp literal binds its raw text",
			input:     "[network-traffic:first_observed >= t'2024-01-15T00:00:00Z']",
			target:    "network-traffic",
			wantWhere: `("network-traffic"."first_observed" >= ?)`,
			wantArgs:  []any{"2024-01-15T00:00:00Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompilePattern(mustParse(t, tt.input), tt.target, res, fixedCatalog{}, SQLite{})
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if got.Where != tt.wantWhere {
				t.Errorf("where:\n  got  %s\n  want %s", got.Where, tt.wantWhere)
			}
			if !reflect.DeepEqual(got.Args, tt.wantArgs) {
				t.Errorf("args: got %#v, want %#v", got.Args, tt.wantArgs)
			}
			if len(got.Joins) != tt.wantJoins {
				t.Errorf("joins: got %d, want %d (%+v)", len(got.Joins), tt.wantJoins, got.Joins)
			}
		})
	}
}

func TestCompileNoApplicableComparisons(t *testing.T) {
	res := compileResolver(t)
	_, err := CompilePattern(mustParse(t, "[network-traffic:dst_port = 80]"), "ipv4-addr", res, fixedCatalog{}, SQLite{})
	if !errors.Is(err, ErrNoApplicableComparisons) {
		t.Fatalf("expected ErrNoApplicableComparisons, got %v", err)
	}
}

func TestCompileTypeMismatch(t *testing.T) {
	res := compileResolver(t)
	tests := []struct {
		name   string
		input  string
		target string
	}{
		{name: "issubset on scalar", input: "[ipv4-addr:value ISSUBSET ('a','b')]", target: "ipv4-addr"},
		{name: "matches on integer", input: "[network-traffic:dst_port MATCHES '8.']", target: "network-traffic"},
		{name: "range on list", input: "[network-traffic:protocols[*] > 'tcp']", target: "network-traffic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompilePattern(mustParse(t, tt.input), tt.target, res, fixedCatalog{}, SQLite{})
			var mismatch *TypeMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected TypeMismatchError, got %v", err)
			}
		})
	}
}

func TestCompileReferenceSubselect(t *testing.T) {
	res := compileResolver(t)
	catalog := fixedCatalog{"scanners": "value"}

	got, err := CompilePattern(mustParse(t, "[network-traffic:src_ref.value IN scanners.value]"),
		"network-traffic", res, catalog, SQLite{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := `("src_ref"."value" IN (SELECT "value" FROM "scanners"))`
	if got.Where != want {
		t.Errorf("where:\n  got  %s\n  want %s", got.Where, want)
	}
	if len(got.Args) != 0 {
		t.Errorf("reference subselect must not bind args, got %v", got.Args)
	}

	// Unknown view fails the compile rather than emitting unvalidated SQL.
	_, err = CompilePattern(mustParse(t, "[network-traffic:src_ref.value IN nosuch.value]"),
		"network-traffic", res, catalog, SQLite{})
	if err == nil {
		t.Error("expected error for unknown reference view")
	}
}

func TestCompilePostgresIdioms(t *testing.T) {
	res := compileResolver(t)

	got, err := CompilePattern(mustParse(t, "[network-traffic:protocols[*] = 'tcp']"),
		"network-traffic", res, fixedCatalog{}, Postgres{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := `EXISTS (SELECT 1 FROM jsonb_array_elements_text(("network-traffic"."protocols")::jsonb) AS el WHERE el = ?)`
	if got.Where != want {
		t.Errorf("where:\n  got  %s\n  want %s", got.Where, want)
	}

	got, err = CompilePattern(mustParse(t, "[file:name MATCHES 'exe$']"),
		"file", res, fixedCatalog{}, Postgres{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got.Where != `"file"."name" ~ ?` {
		t.Errorf("unexpected postgres regex idiom: %s", got.Where)
	}
}

func TestCompileCoalescesMultiTargetHop(t *testing.T) {
	reg := schema.NewRegistry(nil)
	reg.Seed("ipv4-addr", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "value", Kind: schema.KindText},
	})
	reg.Seed("ipv6-addr", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "value", Kind: schema.KindText},
	})
	reg.Seed("network-traffic", []schema.ColumnDef{
		{Name: "id", Kind: schema.KindText},
		{Name: "src_ref", Kind: schema.KindRef},
	})
	res := resolve.NewResolver(reg)

	pat := mustParse(t, "[network-traffic:src_ref.value = '2001:db8::1']")
	got, err := CompilePattern(pat, "network-traffic", res, fixedCatalog{}, SQLite{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	wantWhere := `(COALESCE("src_ref__ipv4-addr"."value", "src_ref__ipv6-addr"."value") = ?)`
	if got.Where != wantWhere {
		t.Errorf("where: got %s, want %s", got.Where, wantWhere)
	}
	if !reflect.DeepEqual(got.Args, []any{"2001:db8::1"}) {
		t.Errorf("args: got %v", got.Args)
	}
	if len(got.Joins) != 2 || !got.Joins[0].Outer || !got.Joins[1].Outer {
		t.Fatalf("expected 2 outer joins, got %+v", got.Joins)
	}
	if got.Joins[0].Table != "ipv4-addr" || got.Joins[1].Table != "ipv6-addr" {
		t.Errorf("join tables: %+v", got.Joins)
	}
}
