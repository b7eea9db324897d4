package upload_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/opst/mdclient/pkg/api/types/uploads"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/transport"
	"github.com/opst/mdclient/pkg/upload"
	"github.com/opst/mdclient/pkg/utils/try"
)

func TestModeFor(t *testing.T) {
	for size, expected := range map[int64]uploads.Mode{
		0:        uploads.Single,
		31457279: uploads.Single,
		31457280: uploads.Multipart,
		31457281: uploads.Multipart,
	} {
		if actual := upload.ModeFor(size); actual != expected {
			t.Errorf("ModeFor(%d) = %s, want %s", size, actual, expected)
		}
	}
}

func TestPartSizes(t *testing.T) {
	for _, size := range []int64{1, 2, 9, 10, 11, 1000, 31457280, 31457281} {
		for _, n := range []int{1, 2, 3, 7} {
			t.Run(fmt.Sprintf("%d bytes in %d parts", size, n), func(t *testing.T) {
				sizes := upload.PartSizes(size, n)
				if len(sizes) != n {
					t.Fatalf("len: %d", len(sizes))
				}
				base := size / int64(n)
				var sum int64
				for i, s := range sizes {
					sum += s
					if i < n-1 && s != base {
						t.Errorf("part %d: %d, want %d", i, s, base)
					}
				}
				if last := sizes[n-1]; last != size-base*int64(n-1) {
					t.Errorf("last part: %d", last)
				}
				if sum != size {
					t.Errorf("sum: %d, want %d", sum, size)
				}
			})
		}
	}
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFileSizesForAPI(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.raw", "small")

	large, err := os.Create(filepath.Join(dir, "large.raw"))
	if err != nil {
		t.Fatal(err)
	}
	if err := large.Truncate(upload.MultipartThreshold); err != nil {
		t.Fatal(err)
	}
	large.Close()

	t.Run("sizes are reported only for multipart files", func(t *testing.T) {
		sizes := try.To(upload.FileSizesForAPI([]string{"small.raw", "large.raw"}, dir)).OrFatal(t)
		if len(sizes) != 2 {
			t.Fatalf("len: %d", len(sizes))
		}
		if sizes[0] != nil {
			t.Errorf("small: %d", *sizes[0])
		}
		if sizes[1] == nil || *sizes[1] != upload.MultipartThreshold {
			t.Errorf("large: %v", sizes[1])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := upload.FileSizesForAPI([]string{"small.raw", "missing.raw"}, dir)
		var nf *mderr.NotFoundError
		if !errors.As(err, &nf) || !strings.HasSuffix(nf.Path, "missing.raw") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// storage is a fake of presigned URL endpoints.
type storage struct {
	mu sync.Mutex

	// path -> body
	received map[string]string
	order    []string

	// path -> status code to respond. 200 if missing.
	status map[string]int
}

func newStorage() *storage {
	return &storage{received: map[string]string{}, status: map[string]int{}}
}

func (s *storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.received[r.URL.Path] = string(body)
	s.order = append(s.order, r.URL.Path)
	status, ok := s.status[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		status = http.StatusOK
	}
	if r.Method != http.MethodPut {
		status = http.StatusMethodNotAllowed
	}
	w.Header().Set("ETag", fmt.Sprintf(`"etag-%s"`, strings.TrimPrefix(r.URL.Path, "/")))
	w.WriteHeader(status)
	if status != http.StatusOK && status != http.StatusNoContent {
		w.Write([]byte("denied: " + r.URL.Path))
	}
}

type call struct {
	method string
	path   string
	body   string
}

// gateway is a fake of transport.Gateway.
type gateway struct {
	calls  []call
	status int
}

func (g *gateway) Request(ctx context.Context, method string, path string, headers http.Header, body any) (*transport.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	g.calls = append(g.calls, call{method: method, path: path, body: string(buf)})
	status := g.status
	if status == 0 {
		status = http.StatusOK
	}
	return &transport.Response{StatusCode: status, Body: []byte("complete response")}, nil
}

func TestUploadSingle(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.raw", "content of a")

	for name, status := range map[string]int{"200": http.StatusOK, "204": http.StatusNoContent} {
		t.Run("succeeds with "+name, func(t *testing.T) {
			st := newStorage()
			st.status["/a"] = status
			server := httptest.NewServer(st)
			defer server.Close()

			progress := []int64{}
			engine := upload.New(&gateway{}, upload.WithProgress(func(filename string, sent, total int64) {
				if filename != "a.raw" || total != 12 {
					t.Errorf("progress: %s %d/%d", filename, sent, total)
				}
				progress = append(progress, sent)
			}))
			if err := engine.UploadSingle(context.Background(), server.URL+"/a", path); err != nil {
				t.Fatal(err)
			}
			if st.received["/a"] != "content of a" {
				t.Errorf("received: %q", st.received["/a"])
			}
			if len(progress) == 0 || progress[len(progress)-1] != 12 {
				t.Errorf("progress: %v", progress)
			}
		})
	}

	t.Run("other status is an error with status and body", func(t *testing.T) {
		st := newStorage()
		st.status["/a"] = http.StatusForbidden
		server := httptest.NewServer(st)
		defer server.Close()

		err := upload.New(&gateway{}).UploadSingle(context.Background(), server.URL+"/a", path)
		var rce *mderr.RemoteCallError
		if !errors.As(err, &rce) {
			t.Fatalf("unexpected error: %v", err)
		}
		if rce.StatusCode != http.StatusForbidden || rce.Body != "denied: /a" || !strings.Contains(rce.Error(), "a.raw") {
			t.Errorf("unexpected: %+v", rce)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := upload.New(&gateway{}).UploadSingle(context.Background(), "http://127.0.0.1:0/a", filepath.Join(dir, "missing"))
		if !errors.Is(err, mderr.ErrNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestUploadMultipart(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "b.raw", "abcdefghij")

	t.Run("parts are sliced in order of part number", func(t *testing.T) {
		st := newStorage()
		server := httptest.NewServer(st)
		defer server.Close()

		parts := []uploads.Part{
			{PartNumber: 3, Url: server.URL + "/p3"},
			{PartNumber: 1, Url: server.URL + "/p1"},
			{PartNumber: 2, Url: server.URL + "/p2"},
		}
		completed := try.To(upload.New(&gateway{}).UploadMultipart(context.Background(), parts, path)).OrFatal(t)

		for p, expected := range map[string]string{"/p1": "abc", "/p2": "def", "/p3": "ghij"} {
			if actual := st.received[p]; actual != expected {
				t.Errorf("%s: %q, want %q", p, actual, expected)
			}
		}
		if strings.Join(st.order, ",") != "/p1,/p2,/p3" {
			t.Errorf("order: %v", st.order)
		}

		expected := []uploads.CompletedPart{
			{PartNumber: 1, ETag: "etag-p1"},
			{PartNumber: 2, ETag: "etag-p2"},
			{PartNumber: 3, ETag: "etag-p3"},
		}
		if len(completed) != len(expected) {
			t.Fatalf("completed: %+v", completed)
		}
		for n := range expected {
			if completed[n] != expected[n] {
				t.Errorf("completed[%d] = %+v, want %+v", n, completed[n], expected[n])
			}
		}
	})

	t.Run("concurrent upload reports all parts", func(t *testing.T) {
		st := newStorage()
		server := httptest.NewServer(st)
		defer server.Close()

		parts := []uploads.Part{}
		for i := 4; 1 <= i; i-- {
			parts = append(parts, uploads.Part{PartNumber: i, Url: fmt.Sprintf("%s/c%d", server.URL, i)})
		}
		var mu sync.Mutex
		var last int64
		engine := upload.New(
			&gateway{},
			upload.WithPartConcurrency(4),
			upload.WithProgress(func(_ string, sent, _ int64) {
				mu.Lock()
				defer mu.Unlock()
				if last < sent {
					last = sent
				}
			}),
		)
		completed := try.To(engine.UploadMultipart(context.Background(), parts, path)).OrFatal(t)

		joined := st.received["/c1"] + st.received["/c2"] + st.received["/c3"] + st.received["/c4"]
		if joined != "abcdefghij" {
			t.Errorf("chunks: %q", joined)
		}
		for n, c := range completed {
			if c.PartNumber != n+1 {
				t.Errorf("completed is not sorted: %+v", completed)
			}
		}
		if last != 10 {
			t.Errorf("progress: %d", last)
		}
	})

	t.Run("failure stops the upload", func(t *testing.T) {
		st := newStorage()
		st.status["/p2"] = http.StatusInternalServerError
		server := httptest.NewServer(st)
		defer server.Close()

		parts := []uploads.Part{
			{PartNumber: 1, Url: server.URL + "/p1"},
			{PartNumber: 2, Url: server.URL + "/p2"},
			{PartNumber: 3, Url: server.URL + "/p3"},
		}
		_, err := upload.New(&gateway{}).UploadMultipart(context.Background(), parts, path)
		var rce *mderr.RemoteCallError
		if !errors.As(err, &rce) {
			t.Fatalf("unexpected error: %v", err)
		}
		if rce.StatusCode != http.StatusInternalServerError || !strings.Contains(rce.Error(), "part 2 of b.raw") {
			t.Errorf("unexpected: %v", rce)
		}
		if _, ok := st.received["/p3"]; ok {
			t.Error("part 3 is uploaded after failure")
		}
	})

	t.Run("no parts", func(t *testing.T) {
		_, err := upload.New(&gateway{}).UploadMultipart(context.Background(), nil, path)
		if !errors.Is(err, mderr.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCompleteMultipart(t *testing.T) {
	t.Run("it posts filename and session id", func(t *testing.T) {
		gw := &gateway{}
		if err := upload.New(gw).CompleteMultipart(context.Background(), "exp-1", "b.raw", "sess-1"); err != nil {
			t.Fatal(err)
		}
		if len(gw.calls) != 1 {
			t.Fatalf("calls: %+v", gw.calls)
		}
		c := gw.calls[0]
		if c.method != http.MethodPost || c.path != "/experiments/exp-1/uploads/complete" ||
			c.body != `{"filename":"b.raw","upload_id":"sess-1"}` {
			t.Errorf("unexpected: %+v", c)
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		gw := &gateway{status: http.StatusCreated}
		err := upload.New(gw).CompleteMultipart(context.Background(), "exp-1", "b.raw", "sess-1")
		var rce *mderr.RemoteCallError
		if !errors.As(err, &rce) || rce.StatusCode != http.StatusCreated || rce.Body != "complete response" {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestUploadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.raw", "aaaa")
	writeFile(t, dir, "b.raw", "bbbbbbb")

	t.Run("single and multipart, in given order", func(t *testing.T) {
		st := newStorage()
		server := httptest.NewServer(st)
		defer server.Close()
		gw := &gateway{}

		err := upload.New(gw).UploadAll(context.Background(), []uploads.Descriptor{
			{
				Filename: "b.raw", Mode: uploads.Multipart, UploadSessionId: "sess-b",
				Parts: []uploads.Part{
					{PartNumber: 2, Url: server.URL + "/b2"},
					{PartNumber: 1, Url: server.URL + "/b1"},
				},
			},
			{Filename: "a.raw", Mode: uploads.Single, Url: server.URL + "/a"},
		}, dir, "exp-1")
		if err != nil {
			t.Fatal(err)
		}

		if strings.Join(st.order, ",") != "/b1,/b2,/a" {
			t.Errorf("order: %v", st.order)
		}
		if st.received["/b1"] != "bbb" || st.received["/b2"] != "bbbb" || st.received["/a"] != "aaaa" {
			t.Errorf("received: %v", st.received)
		}
		if len(gw.calls) != 1 || gw.calls[0].body != `{"filename":"b.raw","upload_id":"sess-b"}` {
			t.Errorf("complete calls: %+v", gw.calls)
		}
	})

	t.Run("missing file aborts before any transfer of it", func(t *testing.T) {
		st := newStorage()
		server := httptest.NewServer(st)
		defer server.Close()
		gw := &gateway{}

		err := upload.New(gw).UploadAll(context.Background(), []uploads.Descriptor{
			{Filename: "a.raw", Mode: uploads.Single, Url: server.URL + "/a"},
			{Filename: "missing.raw", Mode: uploads.Single, Url: server.URL + "/m"},
			{Filename: "b.raw", Mode: uploads.Single, Url: server.URL + "/b"},
		}, dir, "exp-1")
		if !errors.Is(err, mderr.ErrNotFound) {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Join(st.order, ",") != "/a" {
			t.Errorf("order: %v", st.order)
		}
	})

	t.Run("failed part skips completion", func(t *testing.T) {
		st := newStorage()
		st.status["/b1"] = http.StatusBadRequest
		server := httptest.NewServer(st)
		defer server.Close()
		gw := &gateway{}

		err := upload.New(gw).UploadAll(context.Background(), []uploads.Descriptor{
			{
				Filename: "b.raw", Mode: uploads.Multipart, UploadSessionId: "sess-b",
				Parts: []uploads.Part{{PartNumber: 1, Url: server.URL + "/b1"}},
			},
		}, dir, "exp-1")
		if !errors.Is(err, mderr.ErrRemoteCall) {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(gw.calls) != 0 {
			t.Errorf("completion is called: %+v", gw.calls)
		}
	})
}
