package nba

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is a provider result: named columns, one []any per row. Cells hold
// nil, string, float64, bool or json.Number (numbers are kept in the
// provider's own text form).
type Table struct {
	Columns []string
	Rows    [][]any
}

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Len is the row count.
func (t *Table) Len() int { return len(t.Rows) }

// Cell returns row r's value for col, or nil when the column is absent.
func (t *Table) Cell(r int, col string) any {
	i := t.Index(col)
	if i < 0 || r < 0 || r >= len(t.Rows) || i >= len(t.Rows[r]) {
		return nil
	}
	return t.Rows[r][i]
}

// FormatCell renders a cell for CSV output. Null and NaN render empty.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// CellFloat converts a numeric cell. ok is false for null, blank or text.
func CellFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// CellInt converts an integral cell (ids, games played).
func CellInt(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return i, true
		}
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	f, ok := CellFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
