package sqlgen

import (
	"errors"
	"reflect"
	"testing"
)

func TestQueryRender(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "bare select",
			query:   Query{Source: "ipv4-addr"},
			wantSQL: `SELECT * FROM "ipv4-addr"`,
		},
		{
			name: "projection with filter",
			query: Query{
				Source: "ipv4-addr",
				Cols:   []Projected{Column{Table: "ipv4-addr", Name: "value", Alias: "value"}},
				Filters: []Filter{{Preds: []Predicate{
					{Column: "value", Op: "=", RHS: "10.0.0.1"},
				}}},
			},
			wantSQL:  `SELECT "ipv4-addr"."value" AS "value" FROM "ipv4-addr" WHERE ("value" = ?)`,
			wantArgs: []any{"10.0.0.1"},
		},
		{
			name: "coalesced projection",
			query: Query{
				Source: "network-traffic",
				Cols: []Projected{Coalesced{
					Parts: []Column{
						{Table: "src_ref__ipv4-addr", Name: "value"},
						{Table: "src_ref__ipv6-addr", Name: "value"},
					},
					Alias: "src_ref.value",
				}},
			},
			wantSQL: `SELECT COALESCE("src_ref__ipv4-addr"."value", "src_ref__ipv6-addr"."value")` +
				` AS "src_ref.value" FROM "network-traffic"`,
		},
		{
			name: "empty leading filter still opens WHERE",
			query: Query{
				Source: "ipv4-addr",
				Filters: []Filter{
					{},
					{Preds: []Predicate{{Column: "value", Op: "=", RHS: "10.0.0.1"}}},
				},
			},
			wantSQL:  `SELECT * FROM "ipv4-addr" WHERE ("value" = ?)`,
			wantArgs: []any{"10.0.0.1"},
		},
		{
			name: "star with table stays unquoted",
			query: Query{
				Source:      "conns",
				SourceAlias: "network-traffic",
				Cols:        []Projected{Column{Table: "network-traffic", Name: "*"}},
				Distinct:    true,
			},
			wantSQL: `SELECT DISTINCT "network-traffic".* FROM "conns" AS "network-traffic"`,
		},
		{
			name: "aliased join",
			query: Query{
				Source: "network-traffic",
				Cols:   []Projected{Column{Table: "src_ref", Name: "value", Alias: "src_ref.value"}},
				Joins: []Join{{
					Table: "ipv4-addr", Alias: "src_ref",
					LHS: "network-traffic", LeftCol: "src_ref", RightCol: "id",
				}},
			},
			wantSQL: `SELECT "src_ref"."value" AS "src_ref.value" FROM "network-traffic"` +
				` INNER JOIN "ipv4-addr" AS "src_ref" ON "network-traffic"."src_ref" = "src_ref"."id"`,
		},
		{
			name: "left outer join",
			query: Query{
				Source: "network-traffic",
				Joins: []Join{{
					Table: "ipv4-addr", Alias: "dst_ref",
					LHS: "network-traffic", LeftCol: "dst_ref", RightCol: "id",
					Outer: true,
				}},
			},
			wantSQL: `SELECT * FROM "network-traffic"` +
				` LEFT OUTER JOIN "ipv4-addr" AS "dst_ref" ON "network-traffic"."dst_ref" = "dst_ref"."id"`,
		},
		{
			name: "group by with aggregates",
			query: Query{
				Source:  "conns",
				GroupBy: []string{"dst_port"},
				Aggs: []Aggregation{
					{Func: "SUM", Column: "number_observed", Alias: "number_observed"},
					{Func: "NUNIQUE", Column: "src_ref", Alias: "src_ref"},
				},
			},
			wantSQL: `SELECT "dst_port", SUM("number_observed") AS "number_observed",` +
				` COUNT(DISTINCT "src_ref") AS "src_ref" FROM "conns" GROUP BY "dst_port"`,
		},
		{
			name: "order limit offset",
			query: Query{
				Source:  "conns",
				OrderBy: []OrderCol{{Name: "last_observed", Desc: true}},
				LimitN:  10,
				OffsetN: 20,
			},
			wantSQL: `SELECT * FROM "conns" ORDER BY "last_observed" DESC LIMIT 10 OFFSET 20`,
		},
		{
			name:    "count only",
			query:   Query{Source: "conns", CountOnly: true},
			wantSQL: `SELECT COUNT(*) AS "count" FROM "conns"`,
		},
		{
			name: "in predicate expands placeholders",
			query: Query{
				Source: "conns",
				Filters: []Filter{{Preds: []Predicate{
					{Column: "dst_port", Op: "IN", RHS: []any{80, 443}},
				}}},
			},
			wantSQL:  `SELECT * FROM "conns" WHERE ("dst_port" IN (?, ?))`,
			wantArgs: []any{80, 443},
		},
		{
			name: "nil rhs is null test",
			query: Query{
				Source: "file",
				Filters: []Filter{{Preds: []Predicate{
					{Column: "name", Op: "!=", RHS: nil},
				}}},
			},
			wantSQL: `SELECT * FROM "file" WHERE ("name" IS NOT NULL)`,
		},
		{
			name: "or filter parenthesized",
			query: Query{
				Source: "conns",
				Filters: []Filter{{
					Or: true,
					Preds: []Predicate{
						{Column: "dst_port", Op: "=", RHS: 80},
						{Column: "dst_port", Op: "=", RHS: 443},
					},
				}},
			},
			wantSQL:  `SELECT * FROM "conns" WHERE (("dst_port" = ?) OR ("dst_port" = ?))`,
			wantArgs: []any{80, 443},
		},
		{
			name: "subquery source",
			query: Query{
				SourceSQL: `SELECT * FROM "a" UNION SELECT * FROM "b"`,
				CountOnly: true,
			},
			wantSQL: `SELECT COUNT(*) AS "count" FROM (SELECT * FROM "a" UNION SELECT * FROM "b") AS tmp`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.query.Render()
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql:\n  got  %s\n  want %s", sql, tt.wantSQL)
			}
			if len(tt.wantArgs) > 0 && !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args: got %v, want %v", args, tt.wantArgs)
			}
			if len(tt.wantArgs) == 0 && len(args) != 0 {
				t.Errorf("expected no args, got %v", args)
			}
		})
	}
}

func TestQueryRenderErrors(t *testing.T) {
	if _, _, err := (&Query{}).Render(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for missing source, got %v", err)
	}
	q := Query{
		Source: "conns",
		Cols:   []Projected{Column{Name: "dst_port"}},
		Aggs:   []Aggregation{{Func: "SUM", Column: "number_observed"}},
	}
	if _, _, err := q.Render(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for projection with aggregation, got %v", err)
	}
}

func TestNewPredicateRejectsUnknownOperator(t *testing.T) {
	if _, err := NewPredicate("value", "SOUNDS LIKE", "x"); !errors.Is(err, ErrInvalidOperator) {
		t.Errorf("expected ErrInvalidOperator, got %v", err)
	}
	if _, err := NewPredicate("value", "=", "x"); err != nil {
		t.Errorf("unexpected error for valid operator: %v", err)
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"ipv4-addr", "network-traffic", "hashes.SHA-1", "_private", "a1"}
	for _, s := range valid {
		if !ValidName(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	invalid := []string{"", "1abc", "a b", `a"b`, "a;b", ".", "a..b"}
	for _, s := range invalid {
		if ValidName(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestPostgresRebind(t *testing.T) {
	got := Postgres{}.Rebind(`SELECT * FROM "t" WHERE "a" = ? AND "b" IN (?, ?) AND "c" = 'lit?eral'`)
	want := `SELECT * FROM "t" WHERE "a" = $1 AND "b" IN ($2, $3) AND "c" = 'lit?eral'`
	if got != want {
		t.Errorf("rebind:\n  got  %s\n  want %s", got, want)
	}
}
