package dataset

import (
	"context"
	"errors"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/builders"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

type CreateFlags struct {
	Name    string `flag:"name" help:"name of the dataset. Required."`
	JobSlug string `flag:"job" metavar:"SLUG" help:"job which produces the dataset. Required."`
}

const ARG_INPUT_DATASET_ID = "INPUT_DATASET_ID"

func NewCreate() (flarc.Command, error) {
	return flarc.NewCommand(
		"Create a dataset with no job parameters.",
		CreateFlags{},
		flarc.Args{
			{
				Name: ARG_INPUT_DATASET_ID, Required: true, Repeatable: true,
				Help: "ids of datasets to be input of the job.",
			},
		},
		common.NewTask(CreateTask()),
		flarc.WithDescription(`
Create a dataset, which is an output of a job, from input datasets.

The job runs with no parameters. For pairwise comparison, use "pairwise".

Example
-------

	{{ .Command }} --name normalized --job normalisation 4f0e5a7e-3a2b-4b7f-9d0c-2f1f5c0e8a11
`),
	)
}

// usage turns ValidationError into a usage error.
func usage(err error) error {
	if errors.Is(err, mderr.ErrValidation) {
		return errors.Join(flarc.ErrUsage, err)
	}
	return err
}

func CreateTask() common.Task[CreateFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[CreateFlags],
		params []any,
	) error {
		flags := cl.Flags()
		id, err := builders.Run(ctx, client, builders.MinimalDataset{
			InputDatasetIds: cl.Args()[ARG_INPUT_DATASET_ID],
			DatasetName:     flags.Name,
			JobSlug:         flags.JobSlug,
		})
		if err != nil {
			return usage(err)
		}
		logger.Printf("dataset %s is created", id)
		return common.WriteJSON(cl.Stdout(), map[string]string{"dataset_id": id})
	}
}
