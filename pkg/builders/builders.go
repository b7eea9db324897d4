// Package builders shapes job parameters of datasets for specific job types.
package builders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/opst/mdclient/pkg/api/types/datasets"
	mderr "github.com/opst/mdclient/pkg/errors"
)

// Builder makes a ready-to-submit dataset.
type Builder interface {
	// Validate checks fields of the builder.
	//
	// Returns
	//
	// - error: *errors.ValidationError if some field is invalid.
	Validate() error

	// ToDataset composes the dataset. It does not call Validate.
	ToDataset() (datasets.CreateSpec, error)
}

// DatasetCreator is the part of rest.MDClient which Run uses.
type DatasetCreator interface {
	CreateDataset(ctx context.Context, spec datasets.CreateSpec) (string, error)
}

// Run validates the builder, and then creates the dataset.
//
// Returns
//
// - string: id of the created dataset
//
// - error
func Run(ctx context.Context, creator DatasetCreator, b Builder) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	spec, err := b.ToDataset()
	if err != nil {
		return "", err
	}
	return creator.CreateDataset(ctx, spec)
}

func parseIds(ids []string) ([]uuid.UUID, error) {
	ret, err := datasets.ParseIds(ids)
	if err != nil {
		return nil, mderr.NewValidationError("input_dataset_ids", fmt.Sprintf("has malformed id: %s", err))
	}
	return ret, nil
}

// MinimalDataset is a dataset with no job parameters.
type MinimalDataset struct {
	InputDatasetIds []string
	DatasetName     string
	JobSlug         string
}

var _ Builder = MinimalDataset{}

func (m MinimalDataset) Validate() error {
	if len(m.InputDatasetIds) == 0 {
		return mderr.NewValidationError("input_dataset_ids", "cannot be empty")
	}
	if m.DatasetName == "" {
		return mderr.NewValidationError("dataset_name", "is required")
	}
	if m.JobSlug == "" {
		return mderr.NewValidationError("job_slug", "is required")
	}
	return nil
}

func (m MinimalDataset) ToDataset() (datasets.CreateSpec, error) {
	ids, err := parseIds(m.InputDatasetIds)
	if err != nil {
		return datasets.CreateSpec{}, err
	}
	return datasets.CreateSpec{
		InputDatasetIds: ids,
		Name:            m.DatasetName,
		JobSlug:         m.JobSlug,
		JobRunParams:    map[string]any{},
	}, nil
}
