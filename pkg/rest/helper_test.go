package rest_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opst/mdclient/internal/testutils/mdserver"
	"github.com/opst/mdclient/pkg/configs/profiles"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/opst/mdclient/pkg/utils/try"
)

const token = "s3cr3t"

func newClient(t *testing.T, srv *mdserver.Server, opts ...rest.Option) rest.MDClient {
	t.Helper()
	prof := &profiles.Profile{ApiRoot: srv.URL(), Token: token}
	return try.To(rest.NewClient(prof, opts...)).OrFatal(t)
}

// writeFiles creates files in a new temporary directory, and returns the directory.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	ret := map[string]any{}
	if err := json.Unmarshal(b, &ret); err != nil {
		t.Fatalf("request body is not json object: %s: %s", err, string(b))
	}
	return ret
}
