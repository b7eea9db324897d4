package datasets

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/opst/mdclient/pkg/api/types/rfctime"
	"github.com/opst/mdclient/pkg/api/types/wire"
	"github.com/opst/mdclient/pkg/utils"
)

// type of datasets holding raw intensities of an experiment.
const TypeIntensity = "INTENSITY"

// Detail is a dataset: an output of a processing job.
type Detail struct {
	// uuid.Nil until the dataset is created.
	Id uuid.UUID

	// upstream datasets, in order.
	InputDatasetIds []uuid.UUID

	Name string

	// which job produces this dataset.
	JobSlug string

	// job configuration. Its schema depends on JobSlug.
	JobRunParams map[string]any

	Type  string
	State string

	SampleNames []string

	JobRunStartTime *rfctime.RFC3339
}

type detailJson struct {
	Id              string          `json:"id,omitempty"`
	InputDatasetIds []string        `json:"input_dataset_ids"`
	Name            string          `json:"name"`
	JobSlug         string          `json:"job_slug"`
	JobRunParams    map[string]any  `json:"job_run_params"`
	Type            *string         `json:"type,omitempty"`
	State           *string         `json:"state,omitempty"`
	SampleNames     []string        `json:"sample_names,omitempty"`
	JobRunStartTime json.RawMessage `json:"job_run_start_time,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IdStrings serializes uuids as they are sent on the wire.
func IdStrings(ids []uuid.UUID) []string {
	return utils.Map(ids, uuid.UUID.String)
}

// ParseIds parses uuids in order.
func ParseIds(ids []string) ([]uuid.UUID, error) {
	return utils.MapUntilError(ids, uuid.Parse)
}

func (d Detail) MarshalJSON() ([]byte, error) {
	j := detailJson{
		InputDatasetIds: IdStrings(d.InputDatasetIds),
		Name:            d.Name,
		JobSlug:         d.JobSlug,
		JobRunParams:    d.JobRunParams,
		Type:            optional(d.Type),
		State:           optional(d.State),
		SampleNames:     d.SampleNames,
	}
	if d.Id != uuid.Nil {
		j.Id = d.Id.String()
	}
	if j.JobRunParams == nil {
		j.JobRunParams = map[string]any{}
	}
	if d.JobRunStartTime != nil {
		b, err := d.JobRunStartTime.MarshalJSON()
		if err != nil {
			return nil, err
		}
		j.JobRunStartTime = b
	}
	return json.Marshal(j)
}

// UnmarshalJSON reads a dataset sent by the server.
//
// Missing fields are left zero, except JobRunParams which is an empty map.
// job_run_start_time which is not a string is ignored.
func (d *Detail) UnmarshalJSON(b []byte) error {
	var j detailJson
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}

	ret := Detail{
		Name:         j.Name,
		JobSlug:      j.JobSlug,
		JobRunParams: j.JobRunParams,
		Type:         value(j.Type),
		State:        value(j.State),
		SampleNames:  j.SampleNames,
	}
	if ret.JobRunParams == nil {
		ret.JobRunParams = map[string]any{}
	}

	if j.Id != "" {
		id, err := uuid.Parse(j.Id)
		if err != nil {
			return fmt.Errorf("dataset id is malformed: %w", err)
		}
		ret.Id = id
	}

	ids, err := ParseIds(j.InputDatasetIds)
	if err != nil {
		return fmt.Errorf("input_dataset_ids is malformed: %w", err)
	}
	ret.InputDatasetIds = ids

	var start string
	if len(j.JobRunStartTime) != 0 && json.Unmarshal(j.JobRunStartTime, &start) == nil {
		t, err := rfctime.Parse(start)
		if err != nil {
			return fmt.Errorf("job_run_start_time is malformed: %w", err)
		}
		ret.JobRunStartTime = &t
	}

	*d = ret
	return nil
}

func (d Detail) String() string {
	lines := []string{"Name: " + d.Name}
	if d.Id != uuid.Nil {
		lines = append(lines, "ID: "+d.Id.String())
	}
	if d.JobSlug != "" {
		lines = append(lines, "Job Slug: "+d.JobSlug)
	}
	if d.Type != "" {
		lines = append(lines, "Type: "+d.Type)
	}
	if d.State != "" {
		lines = append(lines, "State: "+d.State)
	}
	if len(d.InputDatasetIds) != 0 {
		lines = append(lines, fmt.Sprintf("Input Dataset IDs: %v", IdStrings(d.InputDatasetIds)))
	}
	if len(d.SampleNames) != 0 {
		lines = append(lines, fmt.Sprintf("Sample Names: %v", d.SampleNames))
	}
	if len(d.JobRunParams) != 0 {
		params, err := json.Marshal(d.JobRunParams)
		if err != nil {
			params = []byte(fmt.Sprintf("%v", d.JobRunParams))
		}
		lines = append(lines, "Job Run Params: "+string(params))
	}
	if d.JobRunStartTime != nil {
		lines = append(lines, "Job Run Start Time: "+d.JobRunStartTime.String())
	}
	return strings.Join(lines, "\n")
}

// CreateSpec is a dataset to be submitted.
type CreateSpec struct {
	InputDatasetIds []uuid.UUID
	Name            string
	JobSlug         string
	JobRunParams    map[string]any
}

// AsCreateSpec makes a CreateSpec to submit a dataset like d again.
func (d Detail) AsCreateSpec() CreateSpec {
	return CreateSpec{
		InputDatasetIds: d.InputDatasetIds,
		Name:            d.Name,
		JobSlug:         d.JobSlug,
		JobRunParams:    d.JobRunParams,
	}
}

type createSpecJson struct {
	InputDatasetIds []string       `json:"input_dataset_ids"`
	Name            string         `json:"name"`
	JobSlug         string         `json:"job_slug"`
	JobRunParams    map[string]any `json:"job_run_params"`
}

// MarshalJSON serializes ids as strings. Empty JobRunParams is {}, never null.
func (s CreateSpec) MarshalJSON() ([]byte, error) {
	j := createSpecJson{
		InputDatasetIds: IdStrings(s.InputDatasetIds),
		Name:            s.Name,
		JobSlug:         s.JobSlug,
		JobRunParams:    s.JobRunParams,
	}
	if j.InputDatasetIds == nil {
		j.InputDatasetIds = []string{}
	}
	if j.JobRunParams == nil {
		j.JobRunParams = map[string]any{}
	}
	return json.Marshal(j)
}

func (s *CreateSpec) UnmarshalJSON(b []byte) error {
	var j createSpecJson
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	ids, err := ParseIds(j.InputDatasetIds)
	if err != nil {
		return fmt.Errorf("input_dataset_ids is malformed: %w", err)
	}
	*s = CreateSpec{
		InputDatasetIds: ids,
		Name:            j.Name,
		JobSlug:         j.JobSlug,
		JobRunParams:    j.JobRunParams,
	}
	if s.JobRunParams == nil {
		s.JobRunParams = map[string]any{}
	}
	return nil
}

// CreateRequest is the body of POST /datasets.
type CreateRequest struct {
	Dataset CreateSpec `json:"dataset"`
}

// CreateResponse is the response of POST /datasets.
type CreateResponse struct {
	DatasetId wire.Id `json:"dataset_id"`
}
