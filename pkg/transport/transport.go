// Package transport sends authenticated requests to the API server.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opst/mdclient/pkg/configs/profiles"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// replaced in tests.
var systemCertPool = x509.SystemCertPool

// versioned media type of the API.
const MediaType = "application/vnd.md-v1+json"

const tracerName = "github.com/opst/mdclient/pkg/transport"

// Response of the API server. Body is read fully.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as is.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unexpected response body: %w (status code = %d)", err, r.StatusCode)
	}
	return nil
}

type Gateway interface {
	// Request sends a request to the API server.
	//
	// Args
	//
	// - context.Context
	//
	// - method: HTTP method
	//
	// - path: path relative to the API root, with query if any (e.g. "/datasets?experiment_id=...")
	//
	// - headers: extra headers. They are merged over the default headers (accept and authorization).
	//
	// - body: value to be sent as JSON. nil means no body.
	//
	// Returns
	//
	// - *Response: response of any status code.
	//
	// - error: failure before getting response (network, encoding...)
	Request(ctx context.Context, method string, path string, headers http.Header, body any) (*Response, error)
}

type gateway struct {
	httpclient *http.Client
	api        string
	token      string
	tracer     trace.Tracer
}

type Option func(*gateway)

// WithHTTPClient replaces the http.Client built from the profile.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *gateway) {
		g.httpclient = hc
	}
}

// WithTracerProvider sets TracerProvider. The global one is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *gateway) {
		g.tracer = tp.Tracer(tracerName)
	}
}

// create new Gateway for Profile
//
// # Args
//
// - *profiles.Profile
//
// - ...Option
//
// # Return
//
// - Gateway: created gateway
//
// - error: If given profile is invalid, ErrProfileInvalid is returned.
func New(prof *profiles.Profile, opts ...Option) (Gateway, error) {
	if err := prof.Verify(); err != nil {
		return nil, err
	}

	g := &gateway{
		api:    strings.TrimSuffix(prof.ApiRoot, "/"),
		token:  prof.Token,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpclient == nil {
		hc, err := NewHTTPClient(prof)
		if err != nil {
			return nil, err
		}
		g.httpclient = hc
	}
	return g, nil
}

// NewHTTPClient builds http.Client trusting CA in the profile, if any.
func NewHTTPClient(prof *profiles.Profile) (*http.Client, error) {
	hc := new(http.Client)
	if prof.Cert.CA == "" {
		return hc, nil
	}
	return trustCa(hc, []string{prof.Cert.CA})
}

// build URL with path
func (g *gateway) apipath(path string) string {
	return g.api + "/" + strings.TrimPrefix(path, "/")
}

func (g *gateway) Request(ctx context.Context, method string, path string, headers http.Header, body any) (resp *Response, err error) {
	ctx, span := g.tracer.Start(
		ctx, "md "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			if 400 <= resp.StatusCode {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
			}
		}
		span.End()
	}()

	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.apipath(path), payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", MediaType)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	hresp, err := g.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	respBody, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read response body: %w", err)
	}

	return &Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       respBody,
	}, nil
}

func trustCa(hc *http.Client, cacerts []string) (*http.Client, error) {
	if len(cacerts) <= 0 {
		return hc, nil
	}

	if hc.Transport == nil {
		hc.Transport = http.DefaultTransport
	}

	tran, ok := hc.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("failed to add ca cert")
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig.Clone()
	if tcc == nil {
		tcc = &tls.Config{}
	}

	rootcas := tcc.RootCAs
	if rootcas == nil {
		// extra CAs are added on top of the system roots, not in place of them.
		sys, err := systemCertPool()
		if err != nil || sys == nil {
			sys = x509.NewCertPool()
		}
		rootcas = sys
		tcc.RootCAs = rootcas
	}
	for _, ca := range cacerts {
		bin, err := base64.StdEncoding.DecodeString(ca)
		if err != nil {
			return nil, err
		}

		if !rootcas.AppendCertsFromPEM(bin) {
			return nil, fmt.Errorf("failed to add cert")
		}
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}
