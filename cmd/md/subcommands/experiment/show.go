package experiment

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/api/types/experiments"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

type ShowFlags struct {
	Name    string `flag:"name" help:"find the experiment by name, instead of id."`
	Summary bool   `flag:"summary" alias:"s" help:"print a human readable summary, instead of JSON."`
}

const ARG_EXPERIMENT_ID = "EXPERIMENT_ID"

func NewShow() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show an experiment.",
		ShowFlags{},
		flarc.Args{
			{
				Name: ARG_EXPERIMENT_ID, Required: false,
				Help: "id of the experiment. Required unless --name is given.",
			},
		},
		common.NewTask(ShowTask()),
		flarc.WithDescription(`
Show an experiment by id, or by name.

Example
-------

	{{ .Command }} 0b4b8c57-4b6d-4a0c-9c2b-f3d0e7d7c3a1
	{{ .Command }} --name my-experiment --summary
`),
	)
}

func ShowTask() common.Task[ShowFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[ShowFlags],
		params []any,
	) error {
		flags := cl.Flags()
		id := ""
		if args := cl.Args()[ARG_EXPERIMENT_ID]; 0 < len(args) {
			id = args[0]
		}

		var exp experiments.Detail
		var err error
		switch {
		case id != "" && flags.Name != "":
			return fmt.Errorf("%w: give either %s or --name, not both", flarc.ErrUsage, ARG_EXPERIMENT_ID)
		case id != "":
			exp, err = client.GetExperiment(ctx, id)
		case flags.Name != "":
			exp, err = client.GetExperimentByName(ctx, flags.Name)
		default:
			return fmt.Errorf("%w: %s or --name is required", flarc.ErrUsage, ARG_EXPERIMENT_ID)
		}
		if err != nil {
			return err
		}
		return writeExperiment(cl.Stdout(), exp, flags.Summary)
	}
}

func writeExperiment(w io.Writer, exp experiments.Detail, summary bool) error {
	if summary {
		_, err := fmt.Fprintln(w, exp.String())
		return err
	}
	return common.WriteJSON(w, exp)
}
