package rest

import (
	"fmt"
	"slices"

	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/transport"
)

type StatusCodeRange int

func (sc StatusCodeRange) String() string {
	switch sc {
	case Status1xx:
		return "informational response"
	case Status2xx:
		return "success"
	case Status3xx:
		return "redirect"
	case Status4xx:
		return "client error"
	case Status5xx:
		return "server error"
	default:
		return fmt.Sprintf("unknown (%d)", sc)
	}
}

func StatusCodeRangeOf(statusCode int) StatusCodeRange {
	if statusCode < 100 {
		return StatusUnknown
	}
	if statusCode < 200 {
		return Status1xx
	}
	if statusCode < 300 {
		return Status2xx
	}
	if statusCode < 400 {
		return Status3xx
	}
	if statusCode < 500 {
		return Status4xx
	}
	if statusCode < 600 {
		return Status5xx
	}
	return StatusUnknown
}

const (
	StatusUnknown StatusCodeRange = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

// expectStatus checks that the response has one of success codes.
//
// Otherwise, it returns RemoteCallError with the status code and the body as is.
func expectStatus(resp *transport.Response, operation string, success ...int) error {
	if slices.Contains(success, resp.StatusCode) {
		return nil
	}
	return mderr.NewRemoteCallError(operation, resp.StatusCode, resp.Text())
}

// unmarshalJsonResponse checks status code, then decodes the body into v.
func unmarshalJsonResponse[T any](resp *transport.Response, v *T, operation string, success ...int) error {
	if err := expectStatus(resp, operation, success...); err != nil {
		return err
	}
	if err := resp.JSON(v); err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	return nil
}
