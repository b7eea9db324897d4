package experiment

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	kflag "github.com/opst/mdclient/pkg/commandline/flag"
	"github.com/opst/mdclient/pkg/metadata"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

type MetadataFlags struct {
	Delimiter *kflag.Delimiter `flag:"delimiter" metavar:"CHAR" help:"delimiter of the CSV file. Default: comma."`
}

const ARG_CSV = "CSV"

func NewMetadata() (flarc.Command, error) {
	return flarc.NewCommand(
		"Replace sample metadata of an experiment.",
		MetadataFlags{Delimiter: new(kflag.Delimiter)},
		flarc.Args{
			{
				Name: ARG_EXPERIMENT_ID, Required: true,
				Help: "id of the experiment.",
			},
			{
				Name: ARG_CSV, Required: true,
				Help: "CSV file of sample metadata. The first row is its header.",
			},
		},
		common.NewTask(MetadataTask()),
		flarc.WithDescription(`
Replace sample metadata of an experiment with the content of a CSV file.

Example
-------

	{{ .Command }} 0b4b8c57-4b6d-4a0c-9c2b-f3d0e7d7c3a1 ./samples.csv
`),
	)
}

func MetadataTask() common.Task[MetadataFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[MetadataFlags],
		params []any,
	) error {
		id := cl.Args()[ARG_EXPERIMENT_ID][0]
		path := cl.Args()[ARG_CSV][0]

		grid, err := metadata.FromCSV(path, cl.Flags().Delimiter.Rune())
		if err != nil {
			return fmt.Errorf("cannot load sample metadata: %w", err)
		}
		if len(grid) == 0 {
			return fmt.Errorf("%w: %s is empty", flarc.ErrUsage, path)
		}

		if err := client.UpdateSampleMetadata(ctx, id, metadata.NewSampleMetadata(grid)); err != nil {
			return err
		}
		logger.Printf("sample metadata of %s is updated", id)
		return nil
	}
}
