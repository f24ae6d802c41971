package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// RowRecord is one row of the dataset: a mapping of column name to scalar
// value. Column order is carried separately by the row set's field list.
type RowRecord map[string]any

// maxSafeInteger is the largest integer exactly representable as a float64.
// Values beyond it are kept as strings to avoid precision loss.
const maxSafeInteger = int64(1) << 53

// NormalizeValue narrows large integers to the safe numeric range or keeps
// them as strings, and strips wrapping quotes left over from CSV-style
// ingestion ("46" -> 46 stays a string here; only the quotes are removed).
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case int64:
		if val > maxSafeInteger || val < -maxSafeInteger {
			return fmt.Sprintf("%d", val)
		}
		return val
	case uint64:
		if val > uint64(maxSafeInteger) {
			return fmt.Sprintf("%d", val)
		}
		return int64(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case string:
		if len(val) >= 2 && strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			return val[1 : len(val)-1]
		}
		return val
	default:
		return v
	}
}

// Normalize returns a copy of the row with every value normalized.
func (r RowRecord) Normalize() RowRecord {
	out := make(RowRecord, len(r))
	for k, v := range r {
		out[k] = NormalizeValue(v)
	}
	return out
}

// Describe renders the row as a compact `col: "value"` list in the given
// column order, suitable for embedding in a prompt. Columns absent from the
// order list are appended alphabetically.
func (r RowRecord) Describe(order []string) string {
	seen := make(map[string]bool, len(order))
	var parts []string
	for _, col := range order {
		if v, ok := r[col]; ok {
			parts = append(parts, fmt.Sprintf("%s: %q", col, fmt.Sprint(v)))
			seen[col] = true
		}
	}

	var rest []string
	for col := range r {
		if !seen[col] {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	for _, col := range rest {
		parts = append(parts, fmt.Sprintf("%s: %q", col, fmt.Sprint(r[col])))
	}

	return strings.Join(parts, ", ")
}
