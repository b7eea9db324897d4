package health

import (
	"context"
	"errors"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

// ErrUnhealthy is returned when the server does not report "ok".
var ErrUnhealthy = errors.New("server is not healthy")

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Check the API server.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Check the API server, and print its response.

It fails unless the server reports status "ok".
`),
	)
}

func Task() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		client rest.MDClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		h := client.Health(ctx)
		if err := common.WriteJSON(cl.Stdout(), h); err != nil {
			return err
		}
		if h["status"] != "ok" {
			return ErrUnhealthy
		}
		return nil
	}
}
