package metadata

import (
	"encoding/json"

	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/utils"
)

// SampleMetadata holds per-sample covariates.
type SampleMetadata struct {
	Grid
}

func NewSampleMetadata(rows [][]string) SampleMetadata {
	return SampleMetadata{Grid: Grid(rows).Clone()}
}

// ToColumns projects the table into column-name -> values.
//
// When header names are duplicated, the last column wins.
func (sm SampleMetadata) ToColumns() map[string][]string {
	ret := map[string][]string{}
	rows := sm.Rows()
	for idx, name := range sm.Header() {
		col := make([]string, len(rows))
		for n, row := range rows {
			col[n] = cell(row, idx)
		}
		ret[name] = col
	}
	return ret
}

// PairwiseVsControl makes comparison pairs of each distinct value in column against control.
//
// Pairs are [value, control], in first-seen order of value.
// The control value itself is excluded.
//
// Example: values [a, a, b, c] with control c gives [[a, c], [b, c]].
func (sm SampleMetadata) PairwiseVsControl(column string, control string) ([][]string, error) {
	values, ok := sm.Column(column)
	if !ok {
		return nil, mderr.NewValidationError(column, "is not found in sample metadata header")
	}

	pairs := [][]string{}
	for _, v := range utils.Distinct(values) {
		if v == control {
			continue
		}
		pairs = append(pairs, []string{v, control})
	}
	return pairs, nil
}

func (sm SampleMetadata) MarshalJSON() ([]byte, error) {
	if sm.Grid == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([][]string(sm.Grid))
}

func (sm *SampleMetadata) UnmarshalJSON(b []byte) error {
	var rows [][]string
	if err := json.Unmarshal(b, &rows); err != nil {
		return err
	}
	*sm = NewSampleMetadata(rows)
	return nil
}
