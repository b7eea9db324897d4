// Package mdserver is an in-process fake of the API server and of presigned upload endpoints.
//
// Every request is recorded. API routes respond 404 unless a Responder is registered with On.
// Storage (PUT /storage/*) stores request bodies and responds 200 with an ETag.
package mdserver

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

// Request is a recorded request.
type Request struct {
	Method string

	// path, without query
	Path string

	RawQuery string
	Header   http.Header
	Body     []byte
}

type Responder func(c echo.Context) error

const (
	RouteExperiments      = "/experiments"
	RouteExperiment       = "/experiments/:id"
	RouteSampleMetadata   = "/experiments/:id/sample_metadata"
	RouteStartWorkflow    = "/experiments/:id/start_workflow"
	RouteCompleteUpload   = "/experiments/:id/uploads/complete"
	RouteDatasets         = "/datasets"
	RouteDataset          = "/datasets/:id"
	RouteRetryDataset     = "/datasets/:id/retry"
	RouteHealth           = "/health"
	storagePrefix         = "/storage/"
	storageRoute          = storagePrefix + "*"
	defaultNotMockedReply = `{"error":"not mocked"}`
)

type Server struct {
	server *httptest.Server

	mu         sync.Mutex
	requests   []Request
	uploaded   map[string][]byte
	storageErr map[string]int
	responders map[string]Responder
}

// New starts a fake server. It is closed when the test ends.
func New(t *testing.T) *Server {
	s := &Server{
		uploaded:   map[string][]byte{},
		storageErr: map[string]int{},
		responders: map[string]Responder{},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record)

	for _, r := range []struct {
		method string
		route  string
	}{
		{http.MethodPost, RouteExperiments},
		{http.MethodGet, RouteExperiments},
		{http.MethodGet, RouteExperiment},
		{http.MethodPut, RouteSampleMetadata},
		{http.MethodPost, RouteStartWorkflow},
		{http.MethodPost, RouteCompleteUpload},
		{http.MethodPost, RouteDatasets},
		{http.MethodGet, RouteDatasets},
		{http.MethodDelete, RouteDataset},
		{http.MethodPost, RouteRetryDataset},
		{http.MethodGet, RouteHealth},
	} {
		e.Add(r.method, r.route, s.dispatch(r.method, r.route))
	}
	e.PUT(storageRoute, s.store)

	s.server = httptest.NewServer(e)
	t.Cleanup(s.server.Close)
	return s
}

// URL is the API root.
func (s *Server) URL() string {
	return s.server.URL
}

// StorageURL returns presigned-URL-like endpoint for key.
func (s *Server) StorageURL(key string) string {
	return s.server.URL + storagePrefix + key
}

// FailStorage makes PUT to StorageURL(key) respond the status.
func (s *Server) FailStorage(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storageErr[key] = status
}

// On registers a Responder for method and route (one of Route* constants).
func (s *Server) On(method string, route string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method+" "+route] = r
}

// Requests returns all recorded requests, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request{}, s.requests...)
}

// RequestsTo returns recorded requests with the method and the path.
func (s *Server) RequestsTo(method string, path string) []Request {
	ret := []Request{}
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			ret = append(ret, r)
		}
	}
	return ret
}

// StorageRequests returns recorded PUTs to storage.
func (s *Server) StorageRequests() []Request {
	ret := []Request{}
	for _, r := range s.Requests() {
		if r.Method == http.MethodPut && strings.HasPrefix(r.Path, storagePrefix) {
			ret = append(ret, r)
		}
	}
	return ret
}

// Uploaded returns the body stored at key.
func (s *Server) Uploaded(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploaded[key]
	return b, ok
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   req.Method,
			Path:     req.URL.Path,
			RawQuery: req.URL.RawQuery,
			Header:   req.Header.Clone(),
			Body:     body,
		})
		s.mu.Unlock()

		return next(c)
	}
}

func (s *Server) dispatch(method string, route string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		r, ok := s.responders[method+" "+route]
		s.mu.Unlock()

		if !ok {
			return c.JSONBlob(http.StatusNotFound, []byte(defaultNotMockedReply))
		}
		return r(c)
	}
}

func (s *Server) store(c echo.Context) error {
	key := c.Param("*")
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	status, failing := s.storageErr[key]
	if !failing {
		s.uploaded[key] = body
	}
	s.mu.Unlock()

	if failing {
		return c.String(status, "storage denied "+key)
	}
	sum := md5.Sum(body)
	c.Response().Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	return c.NoContent(http.StatusOK)
}

// JSON responds v as JSON with status.
func JSON(status int, v any) Responder {
	return func(c echo.Context) error {
		return c.JSON(status, v)
	}
}

// Text responds text as is.
func Text(status int, text string) Responder {
	return func(c echo.Context) error {
		return c.String(status, text)
	}
}

// Status responds with no content.
func Status(status int) Responder {
	return func(c echo.Context) error {
		return c.NoContent(status)
	}
}

// Sequence responds with rs in turn. The last one is repeated.
func Sequence(rs ...Responder) Responder {
	var mu sync.Mutex
	n := 0
	return func(c echo.Context) error {
		mu.Lock()
		r := rs[n]
		if n < len(rs)-1 {
			n += 1
		}
		mu.Unlock()
		return r(c)
	}
}
