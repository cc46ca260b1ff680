package util

import (
	"fmt"
	"strconv"
	"strings"
)

// HeaderIndex maps column names to indices and verifies every required
// column is present.
func HeaderIndex(headerRow []string, required ...string) (map[string]int, error) {
	index := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		index[strings.TrimSpace(name)] = i
	}

	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	return index, nil
}

// CellAt reads a cell from a row that may be shorter than the header
// row. excelize trims trailing empty cells, so short rows are normal.
func CellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// ParseIntCell accepts both integer cells and the float renderings that
// pandas-written workbooks carry ("3.0").
func ParseIntCell(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}
