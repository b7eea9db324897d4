package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/opst/mdclient/pkg/api/types/experiments"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/metadata"
	"github.com/opst/mdclient/pkg/upload"
	"github.com/opst/mdclient/pkg/utils/retry"
)

// ValidateForCreate checks that an experiment has a location of raw files.
//
// Either S3Bucket or FileLocation should be set. With FileLocation, Filenames should not be empty.
// When both are set, FileLocation is used.
func ValidateForCreate(exp experiments.Detail) error {
	if exp.FileLocation != "" {
		if len(exp.Filenames) == 0 {
			return mderr.NewValidationError("filenames", "is required when file_location is specified")
		}
		return nil
	}
	if exp.S3Bucket == "" {
		return mderr.NewValidationError("", "either s3_bucket or file_location must be specified")
	}
	return nil
}

func (c *client) CreateExperiment(ctx context.Context, exp experiments.Detail) (string, error) {
	if err := ValidateForCreate(exp); err != nil {
		return "", err
	}

	spec := experiments.ComposeCreateSpec(exp)
	local := exp.FileLocation != ""
	if local {
		loc := exp.FileLocation
		spec.FileLocation = &loc
		sizes, err := upload.FileSizesForAPI(exp.Filenames, exp.FileLocation)
		if err != nil {
			return "", err
		}
		spec.FileSizes = sizes
	} else {
		bucket := exp.S3Bucket
		spec.S3Bucket = &bucket
		if exp.S3Prefix != "" {
			prefix := exp.S3Prefix
			spec.S3Prefix = &prefix
		}
		if len(spec.Filenames) == 0 && c.s3 != nil {
			names, err := c.s3.Filenames(ctx, exp.S3Bucket, exp.S3Prefix)
			if err != nil {
				return "", fmt.Errorf("failed to list files in s3://%s/%s: %w", exp.S3Bucket, exp.S3Prefix, err)
			}
			c.logger.Printf("found %d files in s3://%s/%s", len(names), exp.S3Bucket, exp.S3Prefix)
			spec.Filenames = names
		}
	}

	resp, err := c.gateway.Request(
		ctx, http.MethodPost, "/experiments", nil,
		experiments.CreateRequest{Experiment: spec},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment: %w", err)
	}
	created := experiments.CreateResponse{}
	if err := unmarshalJsonResponse(
		resp, &created, "create experiment", http.StatusOK, http.StatusCreated,
	); err != nil {
		return "", err
	}
	if created.Id == "" {
		return "", mderr.NewRemoteCallError("create experiment: response has no id", resp.StatusCode, resp.Text())
	}
	id := created.Id.String()
	c.logger.Printf("experiment %s is created", id)

	if local && len(created.Uploads) != 0 {
		if err := c.uploads.UploadAll(ctx, created.Uploads, exp.FileLocation, id); err != nil {
			return "", err
		}
		if err := c.startWorkflow(ctx, id); err != nil {
			return "", err
		}
	}

	return id, nil
}

func (c *client) startWorkflow(ctx context.Context, experimentId string) error {
	resp, err := c.gateway.Request(
		ctx, http.MethodPost, "/experiments/"+url.PathEscape(experimentId)+"/start_workflow", nil, nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}
	if StatusCodeRangeOf(resp.StatusCode) != Status2xx {
		return mderr.NewRemoteCallError("start workflow", resp.StatusCode, resp.Text())
	}
	c.logger.Printf("workflow of experiment %s is started", experimentId)
	return nil
}

func (c *client) getExperiment(ctx context.Context, path string, operation string) (experiments.Detail, error) {
	resp, err := c.gateway.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return experiments.Detail{}, fmt.Errorf("failed to %s: %w", operation, err)
	}
	ret := experiments.Detail{}
	if err := unmarshalJsonResponse(resp, &ret, operation, http.StatusOK); err != nil {
		return experiments.Detail{}, err
	}
	return ret, nil
}

func (c *client) GetExperiment(ctx context.Context, experimentId string) (experiments.Detail, error) {
	return c.getExperiment(ctx, "/experiments/"+url.PathEscape(experimentId), "get experiment")
}

func (c *client) GetExperimentByName(ctx context.Context, name string) (experiments.Detail, error) {
	q := url.Values{}
	q.Set("name", name)
	return c.getExperiment(ctx, "/experiments?"+q.Encode(), "get experiment by name")
}

func (c *client) UpdateSampleMetadata(ctx context.Context, experimentId string, sm metadata.SampleMetadata) error {
	rows := [][]string(sm.Grid)
	if rows == nil {
		rows = [][]string{}
	}
	resp, err := c.gateway.Request(
		ctx, http.MethodPut, "/experiments/"+url.PathEscape(experimentId)+"/sample_metadata", nil,
		experiments.SampleMetadataUpdate{SampleMetadata: rows},
	)
	if err != nil {
		return fmt.Errorf("failed to update sample metadata: %w", err)
	}
	return expectStatus(resp, "update sample metadata", http.StatusOK)
}

func (c *client) WaitExperiment(ctx context.Context, experimentId string, interval time.Duration, timeout time.Duration) (experiments.Detail, error) {
	return poll(
		ctx, c.logger, "experiment", experimentId, interval, timeout,
		func(ctx context.Context) (experiments.Detail, string, bool, error) {
			exp, err := c.GetExperiment(ctx, experimentId)
			if err != nil {
				return exp, "", false, err
			}
			return exp, exp.Status, true, nil
		},
	)
}

func (c *client) WaitExperimentAsync(ctx context.Context, experimentId string, interval time.Duration, timeout time.Duration) retry.Promise[experiments.Detail] {
	return retry.Go(ctx, func(ctx context.Context) (experiments.Detail, error) {
		return c.WaitExperiment(ctx, experimentId, interval, timeout)
	})
}
