package subaru

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
)

// setupTestDirs points every global path at a fresh temp tree so tests never
// touch the real cache or prefix.
func setupTestDirs(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	Prefix = filepath.Join(root, "prefix")
	CacheDir = filepath.Join(root, "cache")
	CacheStore = filepath.Join(CacheDir, "sources")
	BuildRoot = filepath.Join(CacheDir, "build")
	LogsDir = filepath.Join(CacheDir, "logs")
	ReceiptDir = filepath.Join(Prefix, "var", "db", "subaru")
	JobCount = 2
	BuildExec = NewExecutor(context.Background())
}

// makeTarGz builds an in-memory gzip tarball with a single top-level
// directory containing the given files.
func makeTarGz(t *testing.T, topDir string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Name:     topDir + "/",
		Typeflag: tar.TypeDir,
		Mode:     0o755,
	}); err != nil {
		t.Fatalf("write dir header: %v", err)
	}
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name:     topDir + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}); err != nil {
			t.Fatalf("write file header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write file body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// serveArchives starts a test HTTP server handing out the given archives by
// filename and counting requests per path.
func serveArchives(t *testing.T, archives map[string][]byte) (*httptest.Server, map[string]*int) {
	t.Helper()
	hits := make(map[string]*int)
	for name := range archives {
		n := 0
		hits[name] = &n
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		data, ok := archives[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		*hits[name]++
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}
