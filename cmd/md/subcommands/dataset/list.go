package dataset

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/api/types/datasets"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

type ListFlags struct {
	Summary bool `flag:"summary" alias:"s" help:"print a human readable summary, instead of JSON."`
}

const ARG_EXPERIMENT_ID = "EXPERIMENT_ID"

func NewList() (flarc.Command, error) {
	return flarc.NewCommand(
		"List datasets of an experiment.",
		ListFlags{},
		flarc.Args{
			{
				Name: ARG_EXPERIMENT_ID, Required: true,
				Help: "id of the experiment.",
			},
		},
		common.NewTask(ListTask()),
	)
}

func ListTask() common.Task[ListFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[ListFlags],
		params []any,
	) error {
		ds, err := client.ListDatasets(ctx, cl.Args()[ARG_EXPERIMENT_ID][0])
		if err != nil {
			return err
		}
		if !cl.Flags().Summary {
			return common.WriteJSON(cl.Stdout(), ds)
		}
		for n, d := range ds {
			if 0 < n {
				if _, err := fmt.Fprintln(cl.Stdout()); err != nil {
					return err
				}
			}
			if err := writeSummary(cl.Stdout(), d); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeSummary(w io.Writer, d datasets.Detail) error {
	_, err := fmt.Fprintln(w, d.String())
	return err
}

func writeDataset(w io.Writer, d datasets.Detail, summary bool) error {
	if summary {
		return writeSummary(w, d)
	}
	return common.WriteJSON(w, d)
}

type InitialFlags struct {
	Summary bool `flag:"summary" alias:"s" help:"print a human readable summary, instead of JSON."`
}

func NewInitial() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the initial dataset of an experiment.",
		InitialFlags{},
		flarc.Args{
			{
				Name: ARG_EXPERIMENT_ID, Required: true,
				Help: "id of the experiment.",
			},
		},
		common.NewTask(InitialTask()),
		flarc.WithDescription(`
Show the initial dataset of an experiment.

It is the only INTENSITY dataset named after the experiment, holding raw intensities.
It fails when there are none, or two or more.
`),
	)
}

func InitialTask() common.Task[InitialFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[InitialFlags],
		params []any,
	) error {
		d, err := client.FindInitialDataset(ctx, cl.Args()[ARG_EXPERIMENT_ID][0])
		if err != nil {
			return err
		}
		return writeDataset(cl.Stdout(), d, cl.Flags().Summary)
	}
}
