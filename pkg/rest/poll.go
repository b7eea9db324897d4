package rest

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/opst/mdclient/pkg/api/types/lifecycle"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/utils/retry"
)

// observer fetches the current state of a resource.
//
// It returns the resource, its status label and whether it is found.
type observer[T any] func(context.Context) (T, string, bool, error)

// poll observes a resource until its status gets terminal.
//
// The first observation is made at once, and then after each interval.
func poll[T any](
	ctx context.Context, logger *log.Logger,
	resource string, id string,
	interval time.Duration, timeout time.Duration,
	observe observer[T],
) (T, error) {
	pollctx := ctx
	if 0 < timeout {
		var cancel context.CancelFunc
		pollctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lastStatus := ""
	last, err := retry.Blocking(
		pollctx, retry.StaticBackoff(interval),
		func(ctx context.Context) (T, error) {
			value, status, found, err := observe(ctx)
			if err != nil {
				return value, err
			}
			if found {
				lastStatus = status
			}

			switch phase := lifecycle.Classify(status, found); phase {
			case lifecycle.Succeeded:
				logger.Printf("%s %s: %s", resource, id, status)
				return value, nil
			case lifecycle.Failure:
				return value, &mderr.RemoteFailureError{Resource: resource, Id: id, Status: status}
			case lifecycle.Pending:
				logger.Printf("%s %s: not found yet", resource, id)
				return value, retry.ErrRetry
			default:
				logger.Printf("%s %s: %s", resource, id, status)
				return value, retry.ErrRetry
			}
		},
	)

	if err != nil && ctx.Err() == nil && errors.Is(pollctx.Err(), context.DeadlineExceeded) {
		return last, &mderr.TimeoutError{
			Resource: resource, Id: id, LastStatus: lastStatus, Timeout: timeout,
		}
	}
	return last, err
}
