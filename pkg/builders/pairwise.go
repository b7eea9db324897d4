package builders

import (
	"fmt"
	"slices"

	"github.com/opst/mdclient/pkg/api/types/datasets"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/metadata"
)

const PairwiseComparisonJobSlug = "pairwise_comparison"

// values of filter_valid_values_logic
const (
	AllConditions       = "all conditions"
	AtLeastOneCondition = "at least one condition"
	FullExperiment      = "full experiment"
)

// values of FilterCriteria.Method
const (
	FilterByPercentage = "percentage"
	FilterByCount      = "count"
)

// FilterCriteria tells how many valid values are required for an entity to be tested.
type FilterCriteria struct {
	// FilterByPercentage or FilterByCount
	Method string

	// fraction in [0, 1]. Used when Method is FilterByPercentage.
	ThresholdPercentage float64

	// Used when Method is FilterByCount.
	ThresholdCount int
}

func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{Method: FilterByPercentage, ThresholdPercentage: 0.5}
}

func (fc FilterCriteria) validate() error {
	switch fc.Method {
	case FilterByPercentage:
		if fc.ThresholdPercentage < 0 || 1 < fc.ThresholdPercentage {
			return mderr.NewValidationError(
				"filter_threshold_percentage",
				fmt.Sprintf("should be in [0, 1], but %g", fc.ThresholdPercentage),
			)
		}
	case FilterByCount:
		if fc.ThresholdCount < 0 {
			return mderr.NewValidationError(
				"filter_threshold_count",
				fmt.Sprintf("should not be negative, but %d", fc.ThresholdCount),
			)
		}
	default:
		return mderr.NewValidationError(
			"filter_values_criteria",
			fmt.Sprintf("has unknown method %q", fc.Method),
		)
	}
	return nil
}

func (fc FilterCriteria) params() map[string]any {
	if fc.Method == FilterByCount {
		return map[string]any{"method": fc.Method, "filter_threshold_count": fc.ThresholdCount}
	}
	return map[string]any{"method": fc.Method, "filter_threshold_percentage": fc.ThresholdPercentage}
}

// PairwiseComparisonDataset is a differential expression analysis between pairs of conditions.
//
// Create it with NewPairwiseComparisonDataset to get default parameters.
type PairwiseComparisonDataset struct {
	InputDatasetIds []string
	DatasetName     string
	SampleMetadata  metadata.SampleMetadata

	// column of SampleMetadata holding conditions
	ConditionColumn string

	// pairs of conditions, [case, control]
	ConditionComparisons [][]string

	FilterValidValuesLogic string
	FilterValuesCriteria   FilterCriteria
	FitSeparateModels      bool
	LimmaTrend             bool
	RobustEmpiricalBayes   bool

	// nil is sent as null.
	ControlVariables []map[string]string

	EntityType string
	JobSlug    string
}

var _ Builder = PairwiseComparisonDataset{}

func NewPairwiseComparisonDataset(
	inputDatasetIds []string,
	datasetName string,
	sampleMetadata metadata.SampleMetadata,
	conditionColumn string,
	conditionComparisons [][]string,
) PairwiseComparisonDataset {
	return PairwiseComparisonDataset{
		InputDatasetIds:        inputDatasetIds,
		DatasetName:            datasetName,
		SampleMetadata:         sampleMetadata,
		ConditionColumn:        conditionColumn,
		ConditionComparisons:   conditionComparisons,
		FilterValidValuesLogic: AtLeastOneCondition,
		FilterValuesCriteria:   DefaultFilterCriteria(),
		FitSeparateModels:      true,
		LimmaTrend:             true,
		RobustEmpiricalBayes:   true,
		EntityType:             "protein",
		JobSlug:                PairwiseComparisonJobSlug,
	}
}

// ControlComparisons makes ConditionComparisons of every condition in the condition column against control.
func (p PairwiseComparisonDataset) ControlComparisons(control string) ([][]string, error) {
	return p.SampleMetadata.PairwiseVsControl(p.ConditionColumn, control)
}

func (p PairwiseComparisonDataset) Validate() error {
	if len(p.InputDatasetIds) == 0 {
		return mderr.NewValidationError("input_dataset_ids", "cannot be empty")
	}
	if p.DatasetName == "" {
		return mderr.NewValidationError("dataset_name", "is required")
	}
	if p.ConditionColumn == "" {
		return mderr.NewValidationError("condition_column", "is required")
	}
	if len(p.ConditionComparisons) == 0 {
		return mderr.NewValidationError("condition_comparisons", "cannot be empty")
	}
	for n, pair := range p.ConditionComparisons {
		if len(pair) != 2 {
			return mderr.NewValidationError(
				"condition_comparisons",
				fmt.Sprintf("#%d should be a pair, but has %d items", n, len(pair)),
			)
		}
	}
	if !slices.Contains([]string{AllConditions, AtLeastOneCondition, FullExperiment}, p.FilterValidValuesLogic) {
		return mderr.NewValidationError(
			"filter_valid_values_logic",
			fmt.Sprintf("should be one of %q, %q or %q, but %q", AllConditions, AtLeastOneCondition, FullExperiment, p.FilterValidValuesLogic),
		)
	}
	return p.FilterValuesCriteria.validate()
}

func (p PairwiseComparisonDataset) ToDataset() (datasets.CreateSpec, error) {
	ids, err := parseIds(p.InputDatasetIds)
	if err != nil {
		return datasets.CreateSpec{}, err
	}
	jobSlug := p.JobSlug
	if jobSlug == "" {
		jobSlug = PairwiseComparisonJobSlug
	}

	return datasets.CreateSpec{
		InputDatasetIds: ids,
		Name:            p.DatasetName,
		JobSlug:         jobSlug,
		JobRunParams: map[string]any{
			"condition_column": p.ConditionColumn,
			"condition_comparisons": map[string]any{
				"condition_comparison_pairs": p.ConditionComparisons,
			},
			"experiment_design":         p.SampleMetadata.ToColumns(),
			"filter_valid_values_logic": p.FilterValidValuesLogic,
			"filter_values_criteria":    p.FilterValuesCriteria.params(),
			"fit_separate_models":       p.FitSeparateModels,
			"limma_trend":               p.LimmaTrend,
			"robust_empirical_bayes":    p.RobustEmpiricalBayes,
			"control_variables":         p.ControlVariables,
			"entity_type":               p.EntityType,
		},
	}, nil
}
