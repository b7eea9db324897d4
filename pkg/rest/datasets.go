package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opst/mdclient/pkg/api/types/datasets"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/utils"
	"github.com/opst/mdclient/pkg/utils/retry"
)

func (c *client) CreateDataset(ctx context.Context, spec datasets.CreateSpec) (string, error) {
	resp, err := c.gateway.Request(
		ctx, http.MethodPost, "/datasets", nil,
		datasets.CreateRequest{Dataset: spec},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create dataset: %w", err)
	}
	created := datasets.CreateResponse{}
	if err := unmarshalJsonResponse(
		resp, &created, "create dataset", http.StatusOK, http.StatusCreated,
	); err != nil {
		return "", err
	}
	if created.DatasetId == "" {
		return "", mderr.NewRemoteCallError("create dataset: response has no dataset_id", resp.StatusCode, resp.Text())
	}
	c.logger.Printf("dataset %s (%s) is created", created.DatasetId, spec.JobSlug)
	return created.DatasetId.String(), nil
}

func (c *client) ListDatasets(ctx context.Context, experimentId string) ([]datasets.Detail, error) {
	q := url.Values{}
	q.Set("experiment_id", experimentId)
	resp, err := c.gateway.Request(ctx, http.MethodGet, "/datasets?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get datasets by experiment: %w", err)
	}

	raws := []json.RawMessage{}
	if err := unmarshalJsonResponse(resp, &raws, "get datasets by experiment", http.StatusOK); err != nil {
		return nil, err
	}

	ret := make([]datasets.Detail, 0, len(raws))
	for n, raw := range raws {
		d := datasets.Detail{}
		if err := json.Unmarshal(raw, &d); err != nil {
			c.logger.Printf("skipped malformed dataset #%d of experiment %s: %s", n, experimentId, err)
			continue
		}
		ret = append(ret, d)
	}
	return ret, nil
}

func (c *client) DeleteDataset(ctx context.Context, datasetId string) error {
	resp, err := c.gateway.Request(ctx, http.MethodDelete, "/datasets/"+url.PathEscape(datasetId), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return expectStatus(resp, "delete dataset", http.StatusNoContent)
}

func (c *client) RetryDataset(ctx context.Context, datasetId string) error {
	resp, err := c.gateway.Request(ctx, http.MethodPost, "/datasets/"+url.PathEscape(datasetId)+"/retry", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to retry dataset: %w", err)
	}
	return expectStatus(resp, "retry dataset", http.StatusOK)
}

func (c *client) WaitDataset(ctx context.Context, experimentId string, datasetId string, interval time.Duration, timeout time.Duration) (datasets.Detail, error) {
	return poll(
		ctx, c.logger, "dataset", datasetId, interval, timeout,
		func(ctx context.Context) (datasets.Detail, string, bool, error) {
			list, err := c.ListDatasets(ctx, experimentId)
			if err != nil {
				return datasets.Detail{}, "", false, err
			}
			d, ok := utils.First(list, func(d datasets.Detail) bool { return strings.EqualFold(d.Id.String(), datasetId) })
			if !ok {
				return datasets.Detail{}, "", false, nil
			}
			return d, d.State, true, nil
		},
	)
}

func (c *client) WaitDatasetAsync(ctx context.Context, experimentId string, datasetId string, interval time.Duration, timeout time.Duration) retry.Promise[datasets.Detail] {
	return retry.Go(ctx, func(ctx context.Context) (datasets.Detail, error) {
		return c.WaitDataset(ctx, experimentId, datasetId, interval, timeout)
	})
}

func (c *client) FindInitialDataset(ctx context.Context, experimentId string) (datasets.Detail, error) {
	list, err := c.ListDatasets(ctx, experimentId)
	if err != nil {
		return datasets.Detail{}, err
	}
	exp, err := c.GetExperiment(ctx, experimentId)
	if err != nil {
		return datasets.Detail{}, err
	}

	intensities := utils.Filter(list, func(d datasets.Detail) bool { return d.Type == datasets.TypeIntensity })
	if len(intensities) == 0 {
		return datasets.Detail{}, fmt.Errorf(
			"%w: experiment %s has no %s datasets", mderr.ErrNoInitialDataset, experimentId, datasets.TypeIntensity,
		)
	}

	named := utils.Filter(intensities, func(d datasets.Detail) bool { return d.Name == exp.Name })
	switch len(named) {
	case 1:
		return named[0], nil
	case 0:
		return datasets.Detail{}, fmt.Errorf(
			"%w: no %s datasets are named %q in experiment %s",
			mderr.ErrNoInitialDataset, datasets.TypeIntensity, exp.Name, experimentId,
		)
	default:
		return datasets.Detail{}, fmt.Errorf(
			"%w: %d %s datasets are named %q in experiment %s",
			mderr.ErrAmbiguousInitialDataset, len(named), datasets.TypeIntensity, exp.Name, experimentId,
		)
	}
}
