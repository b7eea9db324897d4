package rest

import (
	"context"
	"fmt"
	"net/http"
)

func (c *client) Health(ctx context.Context) map[string]any {
	failed := func(err error) map[string]any {
		return map[string]any{"status": "error", "message": err.Error()}
	}

	resp, err := c.gateway.Request(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return failed(err)
	}
	if StatusCodeRangeOf(resp.StatusCode) != Status2xx {
		return failed(fmt.Errorf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), resp.Text()))
	}
	ret := map[string]any{}
	if err := resp.JSON(&ret); err != nil {
		return failed(err)
	}
	if ret == nil {
		return map[string]any{}
	}
	return ret
}
