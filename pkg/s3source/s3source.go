// Package s3source lists raw files of experiments stored in S3 (or S3-compatible storage).
package s3source

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultRegion = "us-east-1"

// Config for New. Zero values fall back to the default chain of the AWS SDK.
type Config struct {
	Region string

	// endpoint of S3-compatible storage (e.g. MinIO). Optional.
	Endpoint string

	// Static credentials. Optional.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	PathStyle bool

	// Optional.
	HTTPClient *http.Client
}

// Lister lists object keys under a bucket and a prefix.
type Lister struct {
	api s3.ListObjectsV2APIClient
}

// New creates Lister with an S3 client built from cfg.
func New(ctx context.Context, cfg Config) (*Lister, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return FromAPI(client), nil
}

// FromAPI creates Lister over an existing client.
func FromAPI(api s3.ListObjectsV2APIClient) *Lister {
	return &Lister{api: api}
}

// Filenames lists objects in bucket under prefix, as names relative to the prefix.
//
// The prefix is treated as a directory: "runs/1" lists "runs/1/a.raw" as "a.raw", but not "runs/10/b.raw".
// Directory placeholders (keys ending with "/") are skipped.
// Names are sorted.
func (l *Lister) Filenames(ctx context.Context, bucket string, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	names := []string{}
	pages := s3.NewListObjectsV2Paginator(l.api, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name, ok := strings.CutPrefix(key, prefix)
			if !ok || name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
