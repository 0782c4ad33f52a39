package db

import (
	"fmt"
	"strings"
	"time"
)

// Table is the tabular result of a query. Rows hold JSON-friendly values:
// strings, float64/int64, bools, nil.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Truncated is set when the result was cut off at the configured row cap.
	Truncated bool `json:"truncated,omitempty"`
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	ret := make([]map[string]any, 0, t.Len())
	for _, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				m[c] = row[i]
			}
		}
		ret = append(ret, m)
	}
	return ret
}

// Text renders the table as pipe-separated lines, stopping after maxLines
// lines (header included) when maxLines > 0.
func (t *Table) Text(maxLines int) string {
	out := []string{strings.Join(t.Columns, " | ")}
	for _, row := range t.Rows {
		if maxLines > 0 && len(out) >= maxLines {
			out = append(out, fmt.Sprintf("... %d more rows", t.Len()-len(out)+1))
			break
		}
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = FormatValue(v)
		}
		out = append(out, strings.Join(parts, " | "))
	}
	return strings.Join(out, "\n")
}

func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func normalize(v any) any {
	switch vv := v.(type) {
	case []byte:
		return string(vv)
	case time.Time:
		return vv.Format(time.RFC3339)
	case int:
		return int64(vv)
	case int32:
		return int64(vv)
	case int16:
		return int64(vv)
	case int8:
		return int64(vv)
	case uint8:
		return int64(vv)
	case uint16:
		return int64(vv)
	case uint32:
		return int64(vv)
	case float32:
		return float64(vv)
	case fmt.Stringer:
		return vv.String()
	default:
		return v
	}
}
