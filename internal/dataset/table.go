package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// table is an in-memory tab-separated dataset file.
type table struct {
	header  []string
	rows    [][]string
	columns map[string]int
}

// readTable parses a tab-separated file with a header row.
func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset file %s has no data rows", path)
	}

	t := &table{
		header:  records[0],
		rows:    records[1:],
		columns: make(map[string]int, len(records[0])),
	}
	for i, name := range t.header {
		t.columns[name] = i
	}
	return t, nil
}

// column returns the index of a named column.
func (t *table) column(name string) (int, error) {
	idx, ok := t.columns[name]
	if !ok {
		return 0, fmt.Errorf("dataset is missing column %q", name)
	}
	return idx, nil
}

// float parses the cell at (row, col).
func (t *table) float(row, col int) (float64, error) {
	v, err := strconv.ParseFloat(t.rows[row][col], 64)
	if err != nil {
		return 0, fmt.Errorf("row %d column %q: %w", row+1, t.header[col], err)
	}
	return v, nil
}
