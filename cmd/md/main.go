package main

import (
	"context"
	"os"
	"os/signal"
	"path"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	subdataset "github.com/opst/mdclient/cmd/md/subcommands/dataset"
	subexperiment "github.com/opst/mdclient/cmd/md/subcommands/experiment"
	subhealth "github.com/opst/mdclient/cmd/md/subcommands/health"
	subprofile "github.com/opst/mdclient/cmd/md/subcommands/profile"
	subver "github.com/opst/mdclient/cmd/md/subcommands/version"
	"github.com/opst/mdclient/pkg/logger"
	"github.com/opst/mdclient/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	logger := logger.ForCommand(os.Stderr, path.Base(os.Args[0]))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	profile := try.To(subprofile.New()).OrFatal(logger)
	experiment := try.To(subexperiment.New()).OrFatal(logger)
	dataset := try.To(subdataset.New()).OrFatal(logger)
	health := try.To(subhealth.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	md := try.To(
		flarc.NewCommandGroup(
			"Command line client of the experiment and dataset management API",
			common.Flags(),
			flarc.WithSubcommand("profile", profile),
			flarc.WithSubcommand("experiment", experiment),
			flarc.WithSubcommand("dataset", dataset),
			flarc.WithSubcommand("health", health),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, md, flarc.WithHelp(true)))
}
