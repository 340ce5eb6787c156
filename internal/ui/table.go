package ui

import (
	"fmt"
	"sort"
	"strings"
)

// Table renders rows with simple spacing alignment, no borders. Cells are
// truncated against the display width so wide JSON values stay readable.

type Table struct {
	header     []string
	rows       [][]string
	colWidths  []int
	colPadding int
	maxCell    int
}

// NewTable creates a table with the given header. Column count follows the
// header; cell truncation adapts to the detected terminal width.
func NewTable(header ...string) *Table {
	return NewTableWithDisplay(NewDisplayContext(), header...)
}

// NewTableWithDisplay creates a table sized against a fixed display context.
func NewTableWithDisplay(d *DisplayContext, header ...string) *Table {
	t := &Table{
		header:     header,
		colWidths:  make([]int, len(header)),
		colPadding: 2,
		maxCell:    cellLimit(d, len(header)),
	}
	for i, h := range header {
		t.colWidths[i] = len(h)
	}
	return t
}

// cellLimit divides the terminal width across columns, clamped so narrow
// terminals still show something and wide ones don't sprawl. Piped output
// is never truncated.
func cellLimit(d *DisplayContext, cols int) int {
	if !d.IsTTY {
		return 0
	}
	limit := 48
	if cols > 0 {
		if per := d.TermWidth/cols - 2; per < limit {
			limit = per
		}
	}
	if limit < 16 {
		limit = 16
	}
	return limit
}

// AddRow adds a row, truncating cells beyond the cell width limit.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.colWidths))
	for i := 0; i < len(t.colWidths) && i < len(cells); i++ {
		cell := cells[i]
		if t.maxCell > 0 && len(cell) > t.maxCell {
			cell = cell[:t.maxCell-1] + "…"
		}
		row[i] = cell
		if len(cell) > t.colWidths[i] {
			t.colWidths[i] = len(cell)
		}
	}
	t.rows = append(t.rows, row)
}

// String renders the table.
func (t *Table) String() string {
	if len(t.rows) == 0 && len(t.header) == 0 {
		return ""
	}
	var sb strings.Builder
	padding := strings.Repeat(" ", t.colPadding)

	if len(t.header) > 0 {
		for i, h := range t.header {
			if i > 0 {
				sb.WriteString(padding)
			}
			if i < len(t.header)-1 {
				sb.WriteString(Muted.Render(fmt.Sprintf("%-*s", t.colWidths[i], h)))
			} else {
				sb.WriteString(Muted.Render(h))
			}
		}
		sb.WriteString("\n")
	}

	for _, row := range t.rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString(padding)
			}
			if i < len(row)-1 {
				sb.WriteString(fmt.Sprintf("%-*s", t.colWidths[i], cell))
			} else {
				sb.WriteString(cell)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RowsTable renders name-keyed rows as a table. Key columns (id, value,
// name) lead; the rest follow alphabetically. Column order is taken from
// the union of keys so ragged rows still line up.
func RowsTable(rows []map[string]any) string {
	if len(rows) == 0 {
		return Hint("no rows") + "\n"
	}

	seen := make(map[string]struct{})
	var cols []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		pi, pj := colRank(cols[i]), colRank(cols[j])
		if pi != pj {
			return pi < pj
		}
		return cols[i] < cols[j]
	})

	t := NewTable(cols...)
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cellText(row[c])
		}
		t.AddRow(cells...)
	}
	return t.String()
}

func colRank(name string) int {
	switch name {
	case "id":
		return 0
	case "type":
		return 1
	case "value", "name":
		return 2
	default:
		return 3
	}
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%g", val), ".0")
	default:
		return fmt.Sprintf("%v", val)
	}
}
