package metadata

import (
	"encoding/json"
	"strings"
)

const (
	ColumnFilename   = "filename"
	ColumnSampleName = "sample_name"
	ColumnCondition  = "condition"
)

// accepted header names for each canonical column
var synonyms = []struct {
	canonical string
	names     []string
}{
	{canonical: ColumnFilename, names: []string{ColumnFilename, "file"}},
	{canonical: ColumnSampleName, names: []string{ColumnSampleName, "sample"}},
	{canonical: ColumnCondition, names: []string{ColumnCondition, "group"}},
}

// ExperimentDesign maps raw filenames to sample names and conditions.
type ExperimentDesign struct {
	Grid
}

// NewExperimentDesign builds an ExperimentDesign from rows.
//
// When the header has all of filename, sample_name and condition
// (or their synonyms: file, sample, group), the table is rewritten to
// exactly these three columns in this order.
// Otherwise the rows are kept as given.
func NewExperimentDesign(rows [][]string) ExperimentDesign {
	return ExperimentDesign{Grid: normalizeDesign(Grid(rows))}
}

func normalizeDesign(g Grid) Grid {
	if len(g) == 0 {
		return g.Clone()
	}

	indices := make([]int, len(synonyms))
	for n, syn := range synonyms {
		indices[n] = -1
		for _, name := range syn.names {
			if idx, ok := g.ColumnIndex(name); ok {
				indices[n] = idx
				break
			}
		}
		if indices[n] < 0 {
			return g.Clone()
		}
	}

	ret := make(Grid, 0, len(g))
	header := make([]string, len(synonyms))
	for n, syn := range synonyms {
		header[n] = syn.canonical
	}
	ret = append(ret, header)
	for _, row := range g.Rows() {
		r := make([]string, len(indices))
		for n, idx := range indices {
			r[n] = cell(row, idx)
		}
		ret = append(ret, r)
	}
	return ret
}

// Filenames returns non-blank values under the "filename" column.
//
// If there are no such column, it returns empty.
func (ed ExperimentDesign) Filenames() []string {
	col, ok := ed.Column(ColumnFilename)
	if !ok {
		return []string{}
	}
	ret := []string{}
	for _, v := range col {
		if strings.TrimSpace(v) != "" {
			ret = append(ret, v)
		}
	}
	return ret
}

func (ed ExperimentDesign) MarshalJSON() ([]byte, error) {
	if ed.Grid == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([][]string(ed.Grid))
}

func (ed *ExperimentDesign) UnmarshalJSON(b []byte) error {
	var rows [][]string
	if err := json.Unmarshal(b, &rows); err != nil {
		return err
	}
	*ed = NewExperimentDesign(rows)
	return nil
}
