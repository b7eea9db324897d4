package s3source_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/opst/mdclient/pkg/s3source"
	"github.com/opst/mdclient/pkg/utils/try"
)

type fakeAPI struct {
	// pages of keys. Each call returns the next page.
	pages  [][]string
	err    error
	inputs []s3.ListObjectsV2Input
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.inputs = append(f.inputs, *in)
	if f.err != nil {
		return nil, f.err
	}

	n := len(f.inputs) - 1
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.pages[n] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if n < len(f.pages)-1 {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprintf("page-%d", n+1))
	}
	return out, nil
}

func TestFilenames(t *testing.T) {
	t.Run("it lists all pages, relative to the prefix, sorted", func(t *testing.T) {
		api := &fakeAPI{pages: [][]string{
			{"runs/1/", "runs/1/b.raw", "runs/1/sub/"},
			{"runs/1/a.raw", "runs/1/sub/c.raw"},
		}}
		testee := s3source.FromAPI(api)

		got := try.To(testee.Filenames(context.Background(), "bucket", "runs/1")).OrFatal(t)
		if want := []string{"a.raw", "b.raw", "sub/c.raw"}; !slices.Equal(got, want) {
			t.Errorf("filenames: actual=%v, expected=%v", got, want)
		}

		if len(api.inputs) != 2 {
			t.Fatalf("called %d times", len(api.inputs))
		}
		if aws.ToString(api.inputs[0].Bucket) != "bucket" || aws.ToString(api.inputs[0].Prefix) != "runs/1/" {
			t.Errorf("first input: %+v", api.inputs[0])
		}
		if aws.ToString(api.inputs[1].ContinuationToken) != "page-1" {
			t.Errorf("second input: %+v", api.inputs[1])
		}
	})

	t.Run("without prefix", func(t *testing.T) {
		api := &fakeAPI{pages: [][]string{{"x.raw"}}}
		got := try.To(s3source.FromAPI(api).Filenames(context.Background(), "bucket", "")).OrFatal(t)
		if !slices.Equal(got, []string{"x.raw"}) {
			t.Errorf("filenames: %v", got)
		}
		if api.inputs[0].Prefix != nil {
			t.Errorf("prefix is set: %s", *api.inputs[0].Prefix)
		}
	})

	t.Run("empty", func(t *testing.T) {
		api := &fakeAPI{pages: [][]string{{}}}
		got := try.To(s3source.FromAPI(api).Filenames(context.Background(), "bucket", "none/")).OrFatal(t)
		if got == nil || len(got) != 0 {
			t.Errorf("filenames: %#v", got)
		}
	})

	t.Run("error", func(t *testing.T) {
		expectedErr := errors.New("fake")
		api := &fakeAPI{err: expectedErr}
		if _, err := s3source.FromAPI(api).Filenames(context.Background(), "bucket", "p"); !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestNew(t *testing.T) {
	requests := []*http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r)
		if r.Method != http.MethodGet || r.URL.Query().Get("list-type") != "2" {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		b := new(strings.Builder)
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range []string{"exp/a.raw", "exp/b.raw"} {
			fmt.Fprintf(b, "<Contents><Key>%s</Key><Size>1</Size></Contents>", k)
		}
		b.WriteString(`</ListBucketResult>`)
		w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	testee := try.To(s3source.New(context.Background(), s3source.Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	})).OrFatal(t)

	got := try.To(testee.Filenames(context.Background(), "raw-bucket", "exp")).OrFatal(t)
	if !slices.Equal(got, []string{"a.raw", "b.raw"}) {
		t.Errorf("filenames: %v", got)
	}
	if len(requests) != 1 {
		t.Fatalf("requests: %d", len(requests))
	}
	if p := requests[0].URL.Path; p != "/raw-bucket" && p != "/raw-bucket/" {
		t.Errorf("path style is not used: %s", p)
	}
	if a := requests[0].Header.Get("Authorization"); !strings.Contains(a, "AKIA") {
		t.Errorf("static credentials are not used: %s", a)
	}
}
