// Package metadata handles tabular metadata of experiments.
//
// Every table is a Grid: row 0 is the header, the rest are data rows.
// Columns are looked up by header name, case-insensitively.
// Rows may be shorter than the header; missing cells read as "".
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	mderr "github.com/opst/mdclient/pkg/errors"
)

type Grid [][]string

// Header returns row 0, or nil for empty grid.
func (g Grid) Header() []string {
	if len(g) == 0 {
		return nil
	}
	return g[0]
}

// Rows returns data rows (all rows except the header).
func (g Grid) Rows() [][]string {
	if len(g) <= 1 {
		return [][]string{}
	}
	return g[1:]
}

// ColumnIndex finds the first column whose header equals name, ignoring case.
func (g Grid) ColumnIndex(name string) (int, bool) {
	for i, h := range g.Header() {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, true
		}
	}
	return -1, false
}

// Column returns values of the named column, in row order.
func (g Grid) Column(name string) ([]string, bool) {
	idx, ok := g.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	rows := g.Rows()
	col := make([]string, len(rows))
	for n, row := range rows {
		col[n] = cell(row, idx)
	}
	return col, true
}

func cell(row []string, idx int) string {
	if idx < 0 || len(row) <= idx {
		return ""
	}
	return row[idx]
}

// Clone makes a deep copy.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	ret := make(Grid, len(g))
	for n, row := range g {
		ret[n] = append([]string{}, row...)
	}
	return ret
}

const previewRows = 3

// String shows the first few rows.
func (g Grid) String() string {
	lines := []string{fmt.Sprintf("Metadata: %d rows", len(g))}
	for i := 0; i < len(g) && i < previewRows; i++ {
		lines = append(lines, fmt.Sprintf("  Row %d: %s", i+1, strings.Join(g[i], ", ")))
	}
	if previewRows < len(g) {
		lines = append(lines, fmt.Sprintf("  ... and %d more rows", len(g)-previewRows))
	}
	return strings.Join(lines, "\n")
}

// ReadCSV reads all records from r.
//
// Records may have different number of fields.
func ReadCSV(r io.Reader, delimiter rune) (Grid, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	if 0 < len(records) && 0 < len(records[0]) {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return Grid(records), nil
}

// FromCSV loads a Grid from the CSV file at path.
//
// If the file does not exist, it returns *errors.NotFoundError.
func FromCSV(path string, delimiter rune) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, mderr.NewNotFoundError(path)
		}
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, delimiter)
}
