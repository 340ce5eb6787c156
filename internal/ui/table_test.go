package ui

import (
	"strings"
	"testing"
)

func TestTableAlignsColumns(t *testing.T) {
	tbl := NewTableWithDisplay(NewDisplayContextWithWidth(120), "view", "type")
	tbl.AddRow("scanners", "ipv4-addr")
	tbl.AddRow("c2", "network-traffic")

	out := tbl.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "scanners  ") {
		t.Errorf("first column not padded: %q", lines[1])
	}
	if !strings.Contains(lines[2], "c2        network-traffic") {
		t.Errorf("short cell not aligned: %q", lines[2])
	}
}

func TestTableTruncatesWideCells(t *testing.T) {
	tbl := NewTableWithDisplay(NewDisplayContextWithWidth(40), "id", "value")
	long := strings.Repeat("a", 100)
	tbl.AddRow("x", long)

	out := tbl.String()
	if strings.Contains(out, long) {
		t.Error("cell was not truncated")
	}
	if !strings.Contains(out, "…") {
		t.Errorf("truncated cell lost its ellipsis:\n%s", out)
	}
}

func TestCellLimitBounds(t *testing.T) {
	tests := []struct {
		width, cols, want int
	}{
		{width: 120, cols: 2, want: 48},
		{width: 60, cols: 3, want: 18},
		{width: 20, cols: 4, want: 16},
		{width: 200, cols: 0, want: 48},
	}
	for _, tt := range tests {
		d := NewDisplayContextWithWidth(tt.width)
		if got := cellLimit(d, tt.cols); got != tt.want {
			t.Errorf("cellLimit(%d, %d) = %d, want %d", tt.width, tt.cols, got, tt.want)
		}
	}
}

func TestPipedOutputNotTruncated(t *testing.T) {
	d := &DisplayContext{TermWidth: DefaultTermWidth, IsTTY: false}
	tbl := NewTableWithDisplay(d, "id", "value")
	long := strings.Repeat("a", 100)
	tbl.AddRow("x", long)
	if !strings.Contains(tbl.String(), long) {
		t.Error("non-tty output should keep full cells")
	}
}

func TestRowsTableColumnOrder(t *testing.T) {
	out := RowsTable([]map[string]any{
		{"dst_port": float64(443), "id": "network-traffic--1", "value": "x", "type": "network-traffic"},
	})
	header := strings.SplitN(out, "\n", 2)[0]
	idIdx := strings.Index(header, "id")
	typeIdx := strings.Index(header, "type")
	valueIdx := strings.Index(header, "value")
	portIdx := strings.Index(header, "dst_port")
	if !(idIdx < typeIdx && typeIdx < valueIdx && valueIdx < portIdx) {
		t.Errorf("unexpected column order: %q", header)
	}
}

func TestRowsTableEmpty(t *testing.T) {
	if out := RowsTable(nil); !strings.Contains(out, "no rows") {
		t.Errorf("empty input should render a hint, got %q", out)
	}
}

func TestCellText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: ""},
		{in: "plain", want: "plain"},
		{in: []byte("bytes"), want: "bytes"},
		{in: float64(443), want: "443"},
		{in: int64(7), want: "7"},
	}
	for _, tt := range tests {
		if got := cellText(tt.in); got != tt.want {
			t.Errorf("cellText(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
