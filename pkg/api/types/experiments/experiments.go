package experiments

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/opst/mdclient/pkg/api/types/rfctime"
	"github.com/opst/mdclient/pkg/api/types/uploads"
	"github.com/opst/mdclient/pkg/api/types/wire"
	"github.com/opst/mdclient/pkg/metadata"
)

// Detail is an experiment: raw files and their metadata.
//
// Raw files are located either in S3 (S3Bucket and S3Prefix) or
// in a local directory (FileLocation and Filenames).
type Detail struct {
	// uuid.Nil until the experiment is created.
	Id uuid.UUID

	Name            string
	Source          string
	Description     string
	LabellingMethod string

	S3Bucket string
	S3Prefix string

	// local directory where Filenames are. Client-side only.
	FileLocation string

	Filenames []string

	ExperimentDesign *metadata.ExperimentDesign
	SampleMetadata   *metadata.SampleMetadata

	CreatedAt *rfctime.RFC3339

	// lifecycle label assigned by the server.
	Status string
}

type detailJson struct {
	Id               string                     `json:"id,omitempty"`
	Name             string                     `json:"name"`
	Source           string                     `json:"source"`
	Description      *string                    `json:"description,omitempty"`
	LabellingMethod  *string                    `json:"labelling_method,omitempty"`
	S3Bucket         string                     `json:"s3_bucket"`
	S3Prefix         *string                    `json:"s3_prefix,omitempty"`
	Filenames        []string                   `json:"filenames"`
	ExperimentDesign *metadata.ExperimentDesign `json:"experiment_design,omitempty"`
	SampleMetadata   *metadata.SampleMetadata   `json:"sample_metadata,omitempty"`
	CreatedAt        json.RawMessage            `json:"created_at,omitempty"`
	Status           *string                    `json:"status,omitempty"`
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (d Detail) MarshalJSON() ([]byte, error) {
	j := detailJson{
		Name:             d.Name,
		Source:           d.Source,
		Description:      nonEmpty(d.Description),
		LabellingMethod:  nonEmpty(d.LabellingMethod),
		S3Bucket:         d.S3Bucket,
		S3Prefix:         nonEmpty(d.S3Prefix),
		Filenames:        d.Filenames,
		ExperimentDesign: d.ExperimentDesign,
		SampleMetadata:   d.SampleMetadata,
		Status:           nonEmpty(d.Status),
	}
	if d.Id != uuid.Nil {
		j.Id = d.Id.String()
	}
	if j.Filenames == nil {
		j.Filenames = []string{}
	}
	if d.CreatedAt != nil {
		b, err := d.CreatedAt.MarshalJSON()
		if err != nil {
			return nil, err
		}
		j.CreatedAt = b
	}
	return json.Marshal(j)
}

// UnmarshalJSON reads an experiment sent by the server.
//
// Missing fields are left zero. created_at which is not a string is ignored.
func (d *Detail) UnmarshalJSON(b []byte) error {
	var j detailJson
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}

	ret := Detail{
		Name:             j.Name,
		Source:           j.Source,
		Description:      deref(j.Description),
		LabellingMethod:  deref(j.LabellingMethod),
		S3Bucket:         j.S3Bucket,
		S3Prefix:         deref(j.S3Prefix),
		Filenames:        j.Filenames,
		ExperimentDesign: j.ExperimentDesign,
		SampleMetadata:   j.SampleMetadata,
		Status:           deref(j.Status),
	}
	if ret.Filenames == nil {
		ret.Filenames = []string{}
	}

	if j.Id != "" {
		id, err := uuid.Parse(j.Id)
		if err != nil {
			return fmt.Errorf("experiment id is malformed: %w", err)
		}
		ret.Id = id
	}

	var createdAt string
	if len(j.CreatedAt) != 0 && json.Unmarshal(j.CreatedAt, &createdAt) == nil {
		t, err := rfctime.Parse(createdAt)
		if err != nil {
			return fmt.Errorf("created_at is malformed: %w", err)
		}
		ret.CreatedAt = &t
	}

	*d = ret
	return nil
}

func (d Detail) String() string {
	lines := []string{"Experiment: " + d.Name}
	if d.Id != uuid.Nil {
		lines = append(lines, "ID: "+d.Id.String())
	}
	if d.Description != "" {
		lines = append(lines, "Description: "+d.Description)
	}
	lines = append(lines, "Source: "+d.Source)
	if d.Status != "" {
		lines = append(lines, "Status: "+d.Status)
	}
	if d.LabellingMethod != "" {
		lines = append(lines, "Labelling Method: "+d.LabellingMethod)
	}
	if d.CreatedAt != nil {
		lines = append(lines, "Created: "+d.CreatedAt.String())
	}
	if d.S3Bucket != "" {
		lines = append(lines, "S3 Bucket: "+d.S3Bucket)
	}
	if d.S3Prefix != "" {
		lines = append(lines, "S3 Prefix: "+d.S3Prefix)
	}
	if d.FileLocation != "" {
		lines = append(lines, "File Location: "+d.FileLocation)
	}
	if len(d.Filenames) != 0 {
		lines = append(lines, fmt.Sprintf("Files: %d files", len(d.Filenames)))
	}
	if d.ExperimentDesign != nil && len(d.ExperimentDesign.Grid) != 0 {
		lines = append(lines, "Experiment Design:", d.ExperimentDesign.String())
	}
	if d.SampleMetadata != nil && len(d.SampleMetadata.Grid) != 0 {
		lines = append(lines, "Sample Metadata:", d.SampleMetadata.String())
	}
	return strings.Join(lines, "\n")
}

// CreateRequest is the body of POST /experiments.
type CreateRequest struct {
	Experiment CreateSpec `json:"experiment"`
}

type CreateSpec struct {
	Name             string     `json:"name"`
	Description      *string    `json:"description"`
	ExperimentDesign [][]string `json:"experiment_design"`
	LabellingMethod  *string    `json:"labelling_method"`
	Source           string     `json:"source"`
	S3Bucket         *string    `json:"s3_bucket,omitempty"`
	S3Prefix         *string    `json:"s3_prefix,omitempty"`
	FileLocation     *string    `json:"file_location,omitempty"`
	Filenames        []string   `json:"filenames"`
	FileSizes        []*int64   `json:"file_sizes,omitempty"`
	SampleMetadata   [][]string `json:"sample_metadata"`
}

// ComposeCreateSpec makes a CreateSpec except location.
//
// Location fields (S3Bucket, S3Prefix, FileLocation and FileSizes) are left for the caller.
func ComposeCreateSpec(d Detail) CreateSpec {
	spec := CreateSpec{
		Name:            d.Name,
		Description:     nonEmpty(d.Description),
		LabellingMethod: nonEmpty(d.LabellingMethod),
		Source:          d.Source,
		Filenames:       d.Filenames,
	}
	if spec.Filenames == nil {
		spec.Filenames = []string{}
	}
	if d.ExperimentDesign != nil {
		spec.ExperimentDesign = d.ExperimentDesign.Grid
	}
	if d.SampleMetadata != nil {
		spec.SampleMetadata = d.SampleMetadata.Grid
	}
	return spec
}

// CreateResponse is the response of POST /experiments.
type CreateResponse struct {
	Id wire.Id `json:"id"`

	// set when files should be uploaded by the client.
	Uploads []uploads.Descriptor `json:"uploads,omitempty"`
}

// SampleMetadataUpdate is the body of PUT /experiments/{id}/sample_metadata.
type SampleMetadataUpdate struct {
	SampleMetadata [][]string `json:"sample_metadata"`
}
