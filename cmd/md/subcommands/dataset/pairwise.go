package dataset

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/builders"
	kflag "github.com/opst/mdclient/pkg/commandline/flag"
	"github.com/opst/mdclient/pkg/metadata"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

type PairwiseFlags struct {
	Name       string `flag:"name" help:"name of the dataset. Required."`
	Experiment string `flag:"experiment" metavar:"EXPERIMENT_ID" help:"use the initial dataset of the experiment as input, when no INPUT_DATASET_ID are given."`

	SampleMetadata  string           `flag:"sample-metadata" metavar:"CSV" help:"sample metadata. Required."`
	Delimiter       *kflag.Delimiter `flag:"delimiter" metavar:"CHAR" help:"delimiter of the CSV file. Default: comma."`
	ConditionColumn string           `flag:"condition-column" metavar:"COLUMN" help:"column of sample metadata holding conditions. Required."`

	Compare *kflag.Pairs `flag:"compare" metavar:"CASE:CONTROL" help:"a pair of conditions to be compared. Repeatable."`
	Control string       `flag:"control" metavar:"CONDITION" help:"compare every other condition with this one, instead of --compare."`

	Logic      string          `flag:"logic" help:"filter_valid_values_logic: 'all conditions', 'at least one condition' or 'full experiment'."`
	Percentage *kflag.Fraction `flag:"threshold-percentage" metavar:"FRACTION" help:"filter entities by fraction of valid values. Default: 0.5."`
	Count      *kflag.Count    `flag:"threshold-count" metavar:"N" help:"filter entities by count of valid values, instead of fraction."`

	NoSeparateModels bool   `flag:"no-separate-models" help:"fit one model for all comparisons."`
	NoLimmaTrend     bool   `flag:"no-limma-trend" help:"disable limma trend."`
	NoRobustEB       bool   `flag:"no-robust-eb" help:"disable robust empirical Bayes."`
	EntityType       string `flag:"entity-type" help:"type of entities to be tested. Default: protein."`
	JobSlug          string `flag:"job" metavar:"SLUG" help:"job which produces the dataset. Default: pairwise_comparison."`
}

func NewPairwise() (flarc.Command, error) {
	return flarc.NewCommand(
		"Create a pairwise comparison dataset.",
		PairwiseFlags{
			Delimiter:  new(kflag.Delimiter),
			Compare:    new(kflag.Pairs),
			Percentage: new(kflag.Fraction),
			Count:      new(kflag.Count),
		},
		flarc.Args{
			{
				Name: ARG_INPUT_DATASET_ID, Required: false, Repeatable: true,
				Help: "ids of input datasets. If omitted, the initial dataset of --experiment is used.",
			},
		},
		common.NewTask(PairwiseTask()),
		flarc.WithDescription(`
Create a dataset of differential expression analysis between pairs of conditions.

Conditions are read from a column of sample metadata.
Pairs are given with --compare, or made from every condition against --control.

Example
-------

	{{ .Command }} --name de --experiment 0b4b8c57-4b6d-4a0c-9c2b-f3d0e7d7c3a1 \
		--sample-metadata samples.csv --condition-column condition --control ctrl
`),
	)
}

func PairwiseTask() common.Task[PairwiseFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[PairwiseFlags],
		params []any,
	) error {
		flags := cl.Flags()

		if flags.SampleMetadata == "" {
			return fmt.Errorf("%w: --sample-metadata is required", flarc.ErrUsage)
		}
		compare := [][]string{}
		if flags.Compare != nil {
			compare = *flags.Compare
		}
		if len(compare) != 0 && flags.Control != "" {
			return fmt.Errorf("%w: give either --compare or --control, not both", flarc.ErrUsage)
		}
		_, byPercentage := flags.Percentage.Value()
		count, byCount := flags.Count.Value()
		if byPercentage && byCount {
			return fmt.Errorf("%w: give either --threshold-percentage or --threshold-count, not both", flarc.ErrUsage)
		}

		grid, err := metadata.FromCSV(flags.SampleMetadata, flags.Delimiter.Rune())
		if err != nil {
			return fmt.Errorf("cannot load sample metadata: %w", err)
		}

		inputs := cl.Args()[ARG_INPUT_DATASET_ID]
		if len(inputs) == 0 {
			if flags.Experiment == "" {
				return fmt.Errorf("%w: %s or --experiment is required", flarc.ErrUsage, ARG_INPUT_DATASET_ID)
			}
			initial, err := client.FindInitialDataset(ctx, flags.Experiment)
			if err != nil {
				return err
			}
			logger.Printf("input: initial dataset %s of experiment %s", initial.Id, flags.Experiment)
			inputs = []string{initial.Id.String()}
		}

		ds := builders.NewPairwiseComparisonDataset(
			inputs, flags.Name, metadata.NewSampleMetadata(grid), flags.ConditionColumn, compare,
		)
		if flags.Control != "" {
			pairs, err := ds.ControlComparisons(flags.Control)
			if err != nil {
				return usage(err)
			}
			ds.ConditionComparisons = pairs
		}
		if flags.Logic != "" {
			ds.FilterValidValuesLogic = flags.Logic
		}
		if v, ok := flags.Percentage.Value(); ok {
			ds.FilterValuesCriteria = builders.FilterCriteria{
				Method: builders.FilterByPercentage, ThresholdPercentage: v,
			}
		} else if byCount {
			ds.FilterValuesCriteria = builders.FilterCriteria{
				Method: builders.FilterByCount, ThresholdCount: count,
			}
		}
		ds.FitSeparateModels = !flags.NoSeparateModels
		ds.LimmaTrend = !flags.NoLimmaTrend
		ds.RobustEmpiricalBayes = !flags.NoRobustEB
		if flags.EntityType != "" {
			ds.EntityType = flags.EntityType
		}
		if flags.JobSlug != "" {
			ds.JobSlug = flags.JobSlug
		}

		id, err := builders.Run(ctx, client, ds)
		if err != nil {
			return usage(err)
		}
		logger.Printf("dataset %s is created", id)
		return common.WriteJSON(cl.Stdout(), map[string]string{"dataset_id": id})
	}
}
