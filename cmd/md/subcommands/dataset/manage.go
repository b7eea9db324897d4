package dataset

import (
	"context"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

const ARG_DATASET_ID = "DATASET_ID"

func NewRm() (flarc.Command, error) {
	return flarc.NewCommand(
		"Delete datasets.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_DATASET_ID, Required: true, Repeatable: true,
				Help: "ids of datasets to be deleted.",
			},
		},
		common.NewTask(RmTask()),
		flarc.WithDescription(`
Delete datasets. It stops at the first failure.
`),
	)
}

func RmTask() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		for _, id := range cl.Args()[ARG_DATASET_ID] {
			if err := client.DeleteDataset(ctx, id); err != nil {
				return err
			}
			logger.Printf("dataset %s is deleted", id)
		}
		return nil
	}
}

func NewRetry() (flarc.Command, error) {
	return flarc.NewCommand(
		"Retry a failed dataset.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_DATASET_ID, Required: true,
				Help: "id of the dataset.",
			},
		},
		common.NewTask(RetryTask()),
	)
}

func RetryTask() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		id := cl.Args()[ARG_DATASET_ID][0]
		if err := client.RetryDataset(ctx, id); err != nil {
			return err
		}
		logger.Printf("dataset %s is retried", id)
		return nil
	}
}
