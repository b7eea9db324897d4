// Package upload transfers local raw files to presigned URLs issued on experiment creation.
//
// Files smaller than MultipartThreshold are sent with a single PUT.
// Larger files are split into parts, each sent to its own URL,
// and the upload session is completed by the API server.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/opst/mdclient/pkg/api/types/uploads"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/logger"
	"github.com/opst/mdclient/pkg/transport"
	"github.com/opst/mdclient/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Files of this size or larger are uploaded in multipart mode. (30 MiB)
const MultipartThreshold int64 = 31_457_280

const tracerName = "github.com/opst/mdclient/pkg/upload"

// ModeFor decides transfer mode for a file of the size.
func ModeFor(size int64) uploads.Mode {
	if MultipartThreshold <= size {
		return uploads.Multipart
	}
	return uploads.Single
}

// PartSizes splits size into n contiguous parts.
//
// The leading n-1 parts have size/n bytes, and the last one takes the rest.
// n should be positive.
func PartSizes(size int64, n int) []int64 {
	if n <= 0 {
		return []int64{}
	}
	base := size / int64(n)
	ret := make([]int64, n)
	for i := range ret {
		ret[i] = base
	}
	ret[n-1] = size - base*int64(n-1)
	return ret
}

// FileSizesForAPI reports file sizes to be sent on experiment creation.
//
// For each filename in baseDir, the size is reported if the file needs multipart upload,
// and nil otherwise.
//
// If a file does not exist, it returns *errors.NotFoundError.
func FileSizesForAPI(filenames []string, baseDir string) ([]*int64, error) {
	ret := make([]*int64, len(filenames))
	for n, name := range filenames {
		size, err := fileSize(filepath.Join(baseDir, name))
		if err != nil {
			return nil, err
		}
		if ModeFor(size) == uploads.Multipart {
			ret[n] = &size
		}
	}
	return ret, nil
}

func fileSize(path string) (int64, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, mderr.NewNotFoundError(path)
		}
		return 0, err
	}
	return stat.Size(), nil
}

// ProgressFunc is notified bytes sent for a file so far.
//
// It can be called from multiple goroutines when parts are uploaded concurrently.
type ProgressFunc func(filename string, sent int64, total int64)

// Engine uploads files.
type Engine struct {
	httpclient  *http.Client
	gateway     transport.Gateway
	logger      *log.Logger
	progress    ProgressFunc
	concurrency int
	tracer      trace.Tracer
}

type Option func(*Engine)

// WithHTTPClient sets http.Client used for PUTs to presigned URLs.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Engine) {
		e.httpclient = hc
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithProgress(p ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = p
	}
}

// WithPartConcurrency sets how many parts of a file are uploaded at once.
//
// Default is 1: parts are uploaded one by one.
func WithPartConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// New creates Engine.
//
// gateway is used to complete multipart uploads.
// Presigned URLs are requested with a plain http.Client, without authorization.
func New(gateway transport.Gateway, opts ...Option) *Engine {
	e := &Engine{
		httpclient:  http.DefaultClient,
		gateway:     gateway,
		logger:      logger.Null(),
		progress:    func(string, int64, int64) {},
		concurrency: 1,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type countingReader struct {
	r       io.Reader
	counter *atomic.Int64
	notify  func(int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if 0 < n {
		c.notify(c.counter.Add(int64(n)))
	}
	return n, err
}

// put sends body to a presigned url. 200 and 204 mean success.
func (e *Engine) put(ctx context.Context, url string, body io.Reader, size int64, operation string) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}

	resp, err := e.httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: cannot read response: %w", operation, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, mderr.NewRemoteCallError(operation, resp.StatusCode, string(respBody))
	}
	return resp.Header, nil
}

// UploadSingle sends the whole file at path to url with a PUT.
func (e *Engine) UploadSingle(ctx context.Context, url string, path string) error {
	filename := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mderr.NewNotFoundError(path)
		}
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}
	size := stat.Size()

	body := &countingReader{
		r:       f,
		counter: new(atomic.Int64),
		notify:  func(sent int64) { e.progress(filename, sent, size) },
	}
	_, err = e.put(ctx, url, body, size, "upload "+filename)
	return err
}

// UploadMultipart sends the file at path in len(parts) chunks.
//
// Parts are sorted by part number, and chunk offsets follow that order.
// The first failure cancels the rest.
//
// It returns ETags for each part, in ascending order of part number.
func (e *Engine) UploadMultipart(ctx context.Context, parts []uploads.Part, path string) ([]uploads.CompletedPart, error) {
	filename := filepath.Base(path)
	if len(parts) == 0 {
		return nil, mderr.NewValidationError("parts", "of "+filename+" is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, mderr.NewNotFoundError(path)
		}
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()

	sorted := utils.Sorted(parts, func(a, b uploads.Part) bool { return a.PartNumber < b.PartNumber })
	sizes := PartSizes(size, len(sorted))
	completed := make([]uploads.CompletedPart, len(sorted))
	sent := new(atomic.Int64)

	e.logger.Printf("uploading %s (%d bytes) in %d parts", filename, size, len(sorted))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)

	var offset int64
	for n, part := range sorted {
		off, partSize := offset, sizes[n]
		offset += partSize

		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			body := &countingReader{
				r:       io.NewSectionReader(f, off, partSize),
				counter: sent,
				notify:  func(s int64) { e.progress(filename, s, size) },
			}
			header, err := e.put(
				egctx, part.Url, body, partSize,
				fmt.Sprintf("upload part %d of %s", part.PartNumber, filename),
			)
			if err != nil {
				return err
			}
			completed[n] = uploads.CompletedPart{
				PartNumber: part.PartNumber,
				ETag:       strings.Trim(header.Get("ETag"), `"`),
			}
			e.logger.Printf("uploaded part %d/%d of %s", n+1, len(sorted), filename)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return completed, nil
}

// CompleteMultipart tells the API server that all parts of filename are uploaded.
func (e *Engine) CompleteMultipart(ctx context.Context, experimentId string, filename string, uploadSessionId string) error {
	resp, err := e.gateway.Request(
		ctx, http.MethodPost, "/experiments/"+experimentId+"/uploads/complete", nil,
		uploads.CompleteRequest{Filename: filename, UploadId: uploadSessionId},
	)
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload for %s: %w", filename, err)
	}
	if resp.StatusCode != http.StatusOK {
		return mderr.NewRemoteCallError(
			"complete multipart upload for "+filename, resp.StatusCode, resp.Text(),
		)
	}
	return nil
}

// UploadAll uploads files in baseDir as descriptors tell, in the given order.
//
// It stops at the first failure.
func (e *Engine) UploadAll(ctx context.Context, descriptors []uploads.Descriptor, baseDir string, experimentId string) error {
	for _, d := range descriptors {
		if err := e.uploadOne(ctx, d, baseDir, experimentId); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) uploadOne(ctx context.Context, d uploads.Descriptor, baseDir string, experimentId string) (err error) {
	ctx, span := e.tracer.Start(
		ctx, "md upload",
		trace.WithAttributes(
			attribute.String("md.upload.filename", d.Filename),
			attribute.String("md.upload.mode", string(d.Mode)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	path := filepath.Join(baseDir, d.Filename)
	if _, err := fileSize(path); err != nil {
		return err
	}

	switch d.Mode {
	case uploads.Multipart:
		parts, err := e.UploadMultipart(ctx, d.Parts, path)
		if err != nil {
			return err
		}
		if err := e.CompleteMultipart(ctx, experimentId, d.Filename, d.UploadSessionId); err != nil {
			return err
		}
		e.logger.Printf("uploaded %s (%d parts)", d.Filename, len(parts))
	default:
		if d.Url == "" {
			return mderr.NewValidationError("url", "of "+d.Filename+" is missing")
		}
		if err := e.UploadSingle(ctx, d.Url, path); err != nil {
			return err
		}
		e.logger.Printf("uploaded %s", d.Filename)
	}
	return nil
}
