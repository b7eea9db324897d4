// Package rest is a client of the experiment/dataset management API.
package rest

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/opst/mdclient/pkg/api/types/datasets"
	"github.com/opst/mdclient/pkg/api/types/experiments"
	"github.com/opst/mdclient/pkg/configs/profiles"
	"github.com/opst/mdclient/pkg/logger"
	"github.com/opst/mdclient/pkg/metadata"
	"github.com/opst/mdclient/pkg/transport"
	"github.com/opst/mdclient/pkg/upload"
	"github.com/opst/mdclient/pkg/utils/retry"
	"go.opentelemetry.io/otel/trace"
)

type MDClient interface {
	// CreateExperiment registers a new experiment.
	//
	// When FileLocation is set, raw files are uploaded from there
	// and then the workflow of the experiment is started.
	//
	// Args
	//
	// - context.Context
	//
	// - experiments.Detail: experiment to be created. Id is ignored.
	//
	// Returns
	//
	// - string: id of the created experiment
	//
	// - error: ValidationError, NotFoundError (local file) or RemoteCallError
	CreateExperiment(ctx context.Context, exp experiments.Detail) (string, error)

	// GetExperiment gets an experiment by id.
	GetExperiment(ctx context.Context, experimentId string) (experiments.Detail, error)

	// GetExperimentByName gets an experiment by name.
	GetExperimentByName(ctx context.Context, name string) (experiments.Detail, error)

	// UpdateSampleMetadata replaces sample metadata of an experiment.
	UpdateSampleMetadata(ctx context.Context, experimentId string, sm metadata.SampleMetadata) error

	// WaitExperiment polls an experiment until its status gets terminal.
	//
	// Args
	//
	// - context.Context
	//
	// - string: experiment id
	//
	// - time.Duration: interval between polls
	//
	// - time.Duration: how long to wait. Zero or negative means no limit.
	//
	// Returns
	//
	// - experiments.Detail: the experiment observed at last
	//
	// - error: TimeoutError, RemoteFailureError or RemoteCallError
	WaitExperiment(ctx context.Context, experimentId string, interval time.Duration, timeout time.Duration) (experiments.Detail, error)

	// WaitExperimentAsync runs WaitExperiment in background. Cancel ctx to stop it.
	WaitExperimentAsync(ctx context.Context, experimentId string, interval time.Duration, timeout time.Duration) retry.Promise[experiments.Detail]

	// CreateDataset submits a dataset.
	//
	// Returns
	//
	// - string: id of the created dataset
	//
	// - error
	CreateDataset(ctx context.Context, spec datasets.CreateSpec) (string, error)

	// ListDatasets lists datasets of an experiment.
	//
	// Malformed records are skipped.
	ListDatasets(ctx context.Context, experimentId string) ([]datasets.Detail, error)

	// DeleteDataset deletes a dataset.
	DeleteDataset(ctx context.Context, datasetId string) error

	// RetryDataset retries a (failed) dataset.
	RetryDataset(ctx context.Context, datasetId string) error

	// WaitDataset polls a dataset in an experiment until its state gets terminal.
	//
	// A dataset which is not listed yet is waited for, until timeout.
	//
	// Args
	//
	// - context.Context
	//
	// - string: experiment id
	//
	// - string: dataset id
	//
	// - time.Duration: interval between polls
	//
	// - time.Duration: how long to wait. Zero or negative means no limit.
	//
	// Returns
	//
	// - datasets.Detail: the dataset observed at last
	//
	// - error: TimeoutError, RemoteFailureError or RemoteCallError
	WaitDataset(ctx context.Context, experimentId string, datasetId string, interval time.Duration, timeout time.Duration) (datasets.Detail, error)

	// WaitDatasetAsync runs WaitDataset in background. Cancel ctx to stop it.
	WaitDatasetAsync(ctx context.Context, experimentId string, datasetId string, interval time.Duration, timeout time.Duration) retry.Promise[datasets.Detail]

	// FindInitialDataset finds the dataset holding raw intensities of an experiment.
	//
	// It is the only dataset of type INTENSITY whose name equals to the experiment's.
	//
	// Returns
	//
	// - datasets.Detail
	//
	// - error: ErrNoInitialDataset if no datasets match, or ErrAmbiguousInitialDataset if two or more match.
	FindInitialDataset(ctx context.Context, experimentId string) (datasets.Detail, error)

	// Health checks the API server.
	//
	// It never fails. Failures are reported as {"status": "error", "message": ...}.
	Health(ctx context.Context) map[string]any
}

// FilenameLister lists raw files stored in S3.
type FilenameLister interface {
	Filenames(ctx context.Context, bucket string, prefix string) ([]string, error)
}

type client struct {
	gateway transport.Gateway
	uploads *upload.Engine
	s3      FilenameLister
	logger  *log.Logger
}

type config struct {
	logger          *log.Logger
	httpclient      *http.Client
	progress        upload.ProgressFunc
	partConcurrency int
	s3              FilenameLister
	tracerProvider  trace.TracerProvider
}

type Option func(*config)

func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithHTTPClient sets http.Client for presigned URLs.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpclient = hc
	}
}

// WithUploadProgress sets a hook for bytes sent per file.
func WithUploadProgress(p upload.ProgressFunc) Option {
	return func(c *config) {
		c.progress = p
	}
}

// WithPartConcurrency sets how many parts of a file are uploaded at once. Default is 1.
func WithPartConcurrency(n int) Option {
	return func(c *config) {
		c.partConcurrency = n
	}
}

// WithS3Lister fills filenames of S3 experiments which have none, on creation.
func WithS3Lister(l FilenameLister) Option {
	return func(c *config) {
		c.s3 = l
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}

// create new MD client for Profile
//
// # Args
//
// - *profiles.Profile
//
// - ...Option
//
// # Return
//
// - MDClient: created client
//
// - error: If given profile is invalid, ErrProfileInvalid is returned.
func NewClient(prof *profiles.Profile, opts ...Option) (MDClient, error) {
	conf := buildConfig(opts)

	hc, err := transport.NewHTTPClient(prof)
	if err != nil {
		return nil, err
	}
	gwopts := []transport.Option{transport.WithHTTPClient(hc)}
	if conf.tracerProvider != nil {
		gwopts = append(gwopts, transport.WithTracerProvider(conf.tracerProvider))
	}
	gw, err := transport.New(prof, gwopts...)
	if err != nil {
		return nil, err
	}
	if conf.httpclient == nil {
		conf.httpclient = hc
	}
	return newClient(gw, conf), nil
}

// New creates MDClient over the gateway.
func New(gw transport.Gateway, opts ...Option) MDClient {
	return newClient(gw, buildConfig(opts))
}

func buildConfig(opts []Option) *config {
	conf := &config{
		logger:          logger.Null(),
		partConcurrency: 1,
	}
	for _, opt := range opts {
		opt(conf)
	}
	return conf
}

func newClient(gw transport.Gateway, conf *config) *client {
	uopts := []upload.Option{
		upload.WithLogger(conf.logger),
		upload.WithPartConcurrency(conf.partConcurrency),
	}
	if conf.httpclient != nil {
		uopts = append(uopts, upload.WithHTTPClient(conf.httpclient))
	}
	if conf.progress != nil {
		uopts = append(uopts, upload.WithProgress(conf.progress))
	}
	if conf.tracerProvider != nil {
		uopts = append(uopts, upload.WithTracerProvider(conf.tracerProvider))
	}

	return &client{
		gateway: gw,
		uploads: upload.New(gw, uopts...),
		s3:      conf.s3,
		logger:  conf.logger,
	}
}
