package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/opst/mdclient/pkg/configs/profiles"
	"github.com/opst/mdclient/pkg/logger"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/youta-t/flarc"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := logger.ForCommand(cl.Stderr(), cl.Fullname())

		return task(ctx, logger, commonFlag, cl, newpos)
	}
}

// ClientFactory creates MDClient for the profile chosen by common flags.
type ClientFactory func(opts ...rest.Option) (rest.MDClient, error)

type TaskWithClientFactory[T any] func(
	ctx context.Context,
	logger *log.Logger,
	newClient ClientFactory,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTaskWithClientFactory is for tasks which configure their client by themselves.
func NewTaskWithClientFactory[T any](task TaskWithClientFactory[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		newClient := func(opts ...rest.Option) (rest.MDClient, error) {
			prof, err := profiles.Resolve(
				commonFlag.ProfileStore, commonFlag.Profile,
				map[string]string{"apiRoot": commonFlag.ApiRoot},
			)
			if err != nil {
				return nil, fmt.Errorf(
					"%w: cannot resolve profile '%s' (store: %s). Try `md profile set` or set %s",
					err, commonFlag.Profile, commonFlag.ProfileStore, profiles.EnvApiRoot,
				)
			}
			opts = append([]rest.Option{rest.WithLogger(logger)}, opts...)
			client, err := rest.NewClient(prof, opts...)
			if err != nil {
				return nil, fmt.Errorf(
					"%w: failed to create client. Your profile (%s in %s) can be broken",
					err, commonFlag.Profile, commonFlag.ProfileStore,
				)
			}
			return client, nil
		}
		return task(ctx, logger, newClient, cl, params)
	})
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	client rest.MDClient,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithClientFactory(func(
		ctx context.Context,
		logger *log.Logger,
		newClient ClientFactory,
		cl flarc.Commandline[T],
		params []any,
	) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return task(ctx, logger, client, cl, params)
	})
}
