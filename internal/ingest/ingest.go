// Package ingest loads the pipeline's six input tables from CSV extracts.
//
// Structural problems — a missing file or a missing schema column — are
// fatal and abort the run before any output exists, with the file and
// column named in the error. Value-level problems inside a row (bad
// identifier, unparseable timestamp) follow the recoverable path: the
// field is skipped and counted in the table's Stats.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Stats accumulates per-table diagnostic counts during a load.
type Stats struct {
	Rows            int // data rows read, excluding the header
	UnmatchedIDs    int // identifiers that failed normalization
	BadTimestamps   int // timestamps that failed every known layout
	NaiveTimestamps int // timestamps labeled assumed-UTC
	SkippedRows     int // rows excluded for a reason above
}

// table is a fully-read CSV file with header-indexed column access.
type table struct {
	path string
	cols map[string]int
	rows [][]string
}

// openTable reads a CSV file and verifies the required columns exist.
func openTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("ingest: %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("ingest: %s is missing required column %q", path, name)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	return &table{path: path, cols: cols, rows: rows}, nil
}

// get returns a row's value for a column, or "" when the row is ragged.
func (t *table) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// isTrue matches the extracts' boolean spellings.
func isTrue(s string) bool {
	switch s {
	case "true", "True", "TRUE", "t", "1":
		return true
	}
	return false
}
