package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/api/types/experiments"
	kflag "github.com/opst/mdclient/pkg/commandline/flag"
	"github.com/opst/mdclient/pkg/metadata"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/opst/mdclient/pkg/s3source"
	"github.com/youta-t/flarc"
)

type CreateFlags struct {
	Name            string `flag:"name" help:"name of the experiment. Required."`
	Source          string `flag:"source" help:"source of raw files (e.g. instrument or lab)."`
	Description     string `flag:"description" help:"description of the experiment."`
	LabellingMethod string `flag:"labelling-method" help:"labelling method (e.g. LFQ, TMT)."`

	Dir      string `flag:"dir" metavar:"DIR" help:"local directory of raw files. They are uploaded from here."`
	S3Bucket string `flag:"s3-bucket" help:"S3 bucket of raw files, when they are in S3 already."`
	S3Prefix string `flag:"s3-prefix" help:"key prefix of raw files in the S3 bucket."`

	Design         string           `flag:"design" metavar:"CSV" help:"experiment design (filename, sample_name, condition)."`
	SampleMetadata string           `flag:"sample-metadata" metavar:"CSV" help:"sample metadata."`
	Delimiter      *kflag.Delimiter `flag:"delimiter" metavar:"CHAR" help:"delimiter of CSV files. Default: comma."`

	S3Endpoint  string `flag:"s3-endpoint" metavar:"URL" help:"endpoint of S3-compatible storage, to list raw files."`
	S3Region    string `flag:"s3-region" help:"region of the S3 bucket, to list raw files."`
	S3PathStyle bool   `flag:"s3-path-style" help:"use path style addressing to list raw files."`

	PartConcurrency *kflag.Count `flag:"part-concurrency" metavar:"N" help:"how many parts of a large file are uploaded at once. Default: 1."`

	Wait     bool          `flag:"wait" help:"wait for the experiment to complete."`
	Interval time.Duration `flag:"interval" help:"interval of polling, with --wait."`
	Timeout  time.Duration `flag:"timeout" help:"how long to wait, with --wait. 0 means no limit."`
}

const ARG_FILENAME = "FILENAME"

type Option struct {
	newLister func(context.Context, s3source.Config) (rest.FilenameLister, error)
}

func WithLister(
	newLister func(context.Context, s3source.Config) (rest.FilenameLister, error),
) func(*Option) *Option {
	return func(o *Option) *Option {
		o.newLister = newLister
		return o
	}
}

func newS3Lister(ctx context.Context, cfg s3source.Config) (rest.FilenameLister, error) {
	l, err := s3source.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func NewCreate(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{newLister: newS3Lister}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Create an experiment.",
		CreateFlags{
			Delimiter:       new(kflag.Delimiter),
			PartConcurrency: new(kflag.Count),
			Interval:        common.DefaultPollInterval,
			Timeout:         common.DefaultPollTimeout,
		},
		flarc.Args{
			{
				Name: ARG_FILENAME, Required: false, Repeatable: true,
				Help: "raw files. If omitted, filenames in the experiment design are used.",
			},
		},
		common.NewTaskWithClientFactory(CreateTask(option.newLister)),
		flarc.WithDescription(`
Create an experiment.

Raw files are either in a local directory (--dir) or in S3 (--s3-bucket).
Local files are uploaded, and then the workflow of the experiment starts.
For S3, filenames are listed from the bucket when none are given.

Example
-------

Upload raw files in ./raw, listed in design.csv:

	{{ .Command }} --name my-experiment --dir ./raw --design design.csv --sample-metadata samples.csv

Register raw files in S3:

	{{ .Command }} --name my-experiment --s3-bucket raw-files --s3-prefix 2024/run1 --design design.csv
`),
	)
}

func loadGrid(path string, delimiter *kflag.Delimiter) (metadata.Grid, error) {
	if path == "" {
		return nil, nil
	}
	return metadata.FromCSV(path, delimiter.Rune())
}

func CreateTask(
	newLister func(context.Context, s3source.Config) (rest.FilenameLister, error),
) common.TaskWithClientFactory[CreateFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		newClient common.ClientFactory,
		cl flarc.Commandline[CreateFlags],
		params []any,
	) error {
		flags := cl.Flags()
		if flags.Name == "" {
			return fmt.Errorf("%w: --name is required", flarc.ErrUsage)
		}

		exp := experiments.Detail{
			Name:            flags.Name,
			Source:          flags.Source,
			Description:     flags.Description,
			LabellingMethod: flags.LabellingMethod,
			S3Bucket:        flags.S3Bucket,
			S3Prefix:        flags.S3Prefix,
			FileLocation:    flags.Dir,
			Filenames:       cl.Args()[ARG_FILENAME],
		}

		if grid, err := loadGrid(flags.Design, flags.Delimiter); err != nil {
			return fmt.Errorf("cannot load experiment design: %w", err)
		} else if grid != nil {
			design := metadata.NewExperimentDesign(grid)
			exp.ExperimentDesign = &design
			if len(exp.Filenames) == 0 {
				exp.Filenames = design.Filenames()
			}
		}
		if grid, err := loadGrid(flags.SampleMetadata, flags.Delimiter); err != nil {
			return fmt.Errorf("cannot load sample metadata: %w", err)
		} else if grid != nil {
			sm := metadata.NewSampleMetadata(grid)
			exp.SampleMetadata = &sm
		}

		if err := rest.ValidateForCreate(exp); err != nil {
			return errors.Join(flarc.ErrUsage, err)
		}

		bar := newProgress(cl.Stderr())
		defer bar.Finish()
		opts := []rest.Option{rest.WithUploadProgress(bar.Update)}
		if n, ok := flags.PartConcurrency.Value(); ok && 0 < n {
			opts = append(opts, rest.WithPartConcurrency(n))
		}
		if exp.S3Bucket != "" && len(exp.Filenames) == 0 {
			lister, err := newLister(ctx, s3source.Config{
				Region:    flags.S3Region,
				Endpoint:  flags.S3Endpoint,
				PathStyle: flags.S3PathStyle,
			})
			if err != nil {
				return err
			}
			opts = append(opts, rest.WithS3Lister(lister))
		}

		client, err := newClient(opts...)
		if err != nil {
			return err
		}

		id, err := client.CreateExperiment(ctx, exp)
		bar.Finish()
		if err != nil {
			return err
		}
		logger.Printf("experiment %s is created", id)

		if !flags.Wait {
			return common.WriteJSON(cl.Stdout(), map[string]string{"experiment_id": id})
		}

		created, err := client.WaitExperiment(ctx, id, flags.Interval, flags.Timeout)
		if err != nil {
			return err
		}
		return common.WriteJSON(cl.Stdout(), created)
	}
}
