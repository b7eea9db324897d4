package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

type WaitFlags struct {
	Interval time.Duration `flag:"interval" help:"interval of polling."`
	Timeout  time.Duration `flag:"timeout" help:"how long to wait. 0 means no limit."`
	Summary  bool          `flag:"summary" alias:"s" help:"print a human readable summary, instead of JSON."`
}

func NewWait() (flarc.Command, error) {
	return flarc.NewCommand(
		"Wait for a dataset to complete.",
		WaitFlags{
			Interval: common.DefaultPollInterval,
			Timeout:  common.DefaultPollTimeout,
		},
		flarc.Args{
			{
				Name: ARG_EXPERIMENT_ID, Required: true,
				Help: "id of the experiment which the dataset belongs to.",
			},
			{
				Name: ARG_DATASET_ID, Required: true,
				Help: "id of the dataset.",
			},
		},
		common.NewTask(WaitTask()),
		flarc.WithDescription(`
Poll a dataset until its state gets COMPLETED, and print it.

A dataset which is not listed yet is waited for.
It fails when the dataset gets FAILED, ERROR or CANCELLED, or when time is out.
`),
	)
}

func WaitTask() common.Task[WaitFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[WaitFlags],
		params []any,
	) error {
		flags := cl.Flags()
		if flags.Interval <= 0 {
			return fmt.Errorf("%w: --interval should be positive", flarc.ErrUsage)
		}
		experimentId := cl.Args()[ARG_EXPERIMENT_ID][0]
		datasetId := cl.Args()[ARG_DATASET_ID][0]

		d, err := client.WaitDataset(ctx, experimentId, datasetId, flags.Interval, flags.Timeout)
		if err != nil {
			var terr *mderr.TimeoutError
			if errors.As(err, &terr) && terr.LastStatus == "" {
				logger.Printf("dataset %s is not found in experiment %s", datasetId, experimentId)
			}
			return err
		}
		return writeDataset(cl.Stdout(), d, flags.Summary)
	}
}
